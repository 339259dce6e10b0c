package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/config"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/api"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/auth"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/database"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/learning"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Service exited with error")
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	store, err := storage.NewStore(cfg.DataConfig.Dir)
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}
	log.WithField("dir", store.DataDir()).Info("Data directory ready")

	bus := events.NewBus()
	hist := history.NewService(store, log)

	// Optional Postgres archive. The JSON files stay authoritative.
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.RunMigrations(migrateCtx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		hist.SetArchiver(database.NewRepository(db))
	}

	learn := learning.NewService(cfg.LearningConfig, store, hist, bus, log)
	defer learn.Close()

	// Optional Redis mirror of live learning state for external dashboards.
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer client.Close()

		zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		mirror := database.NewRedisLearningStateRepository(client, zlog)
		wireMirror(bus, mirror)
	}

	authService := auth.NewService(
		cfg.AuthConfig.Enabled,
		cfg.AuthConfig.JWTSecret,
		cfg.AuthConfig.PasswordHash,
		cfg.AuthConfig.AccessTokenDuration,
	)
	if cfg.AuthConfig.Enabled {
		log.Info("API authentication enabled")
	}

	if !cfg.ServerConfig.Enabled {
		log.Info("HTTP server disabled, running headless until interrupted")
		waitForSignal()
		return nil
	}

	server := api.NewServer(cfg.ServerConfig, hist, learn, authService, bus, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// wireMirror forwards bus events into the Redis learning state mirror.
// Writes are best-effort; a dead Redis never blocks the services.
func wireMirror(bus *events.Bus, mirror *database.RedisLearningStateRepository) {
	bus.SubscribeWeightsUpdated(func(ev events.WeightsUpdated) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mirror.SaveWeights(ctx, ev.Weights)
	})
	bus.SubscribeTradeRecorded(func(ev events.TradeRecorded) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mirror.SaveLastTrade(ctx, &database.MirroredTrade{
			Market:     ev.Market,
			Profit:     ev.Profit,
			ProfitRate: ev.ProfitRate,
			Timestamp:  ev.Timestamp,
		})
	})
	bus.SubscribeLearningStateChanged(func(ev events.LearningStateChanged) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mirror.SaveLearningEnabled(ctx, ev.Ticker, ev.Enabled)
	})
}

func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
