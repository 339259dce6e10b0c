package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key layout for the learning state mirror
const (
	// WeightsKey holds the flattened indicator weight map
	WeightsKey = "learning:weights"

	// LearningEnabledKeyPrefix prefixes per-ticker enabled flags
	// Format: learning:enabled:{ticker}
	LearningEnabledKeyPrefix = "learning:enabled"

	// LastTradeKeyPrefix prefixes the most recent trade event per market
	// Format: learning:last_trade:{market}
	LastTradeKeyPrefix = "learning:last_trade"

	// LearningStateTTL bounds staleness when the process dies without
	// cleanup
	LearningStateTTL = 24 * time.Hour
)

// MirroredTrade is the last-trade payload kept per market.
type MirroredTrade struct {
	Market     string    `json:"market"`
	Profit     float64   `json:"profit"`
	ProfitRate float64   `json:"profit_rate"`
	Timestamp  time.Time `json:"timestamp"`
}

// RedisLearningStateRepository mirrors live learning state into Redis so
// external dashboards can read it without touching the JSON files. When
// Redis is unavailable it falls back to an in-memory cache; the mirror is
// best-effort and never blocks the learning path.
type RedisLearningStateRepository struct {
	client         *redis.Client
	logger         zerolog.Logger
	redisAvailable atomic.Bool

	cacheMu       sync.RWMutex
	cachedWeights map[string]float64
	cachedEnabled map[string]bool
	cachedTrades  map[string]*MirroredTrade
}

// NewRedisLearningStateRepository creates the mirror. A nil client means
// memory-only mode.
func NewRedisLearningStateRepository(client *redis.Client, logger zerolog.Logger) *RedisLearningStateRepository {
	repo := &RedisLearningStateRepository{
		client:        client,
		logger:        logger.With().Str("component", "RedisLearningState").Logger(),
		cachedWeights: make(map[string]float64),
		cachedEnabled: make(map[string]bool),
		cachedTrades:  make(map[string]*MirroredTrade),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			repo.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory cache")
			repo.redisAvailable.Store(false)
		} else {
			repo.logger.Info().Msg("Redis connected")
			repo.redisAvailable.Store(true)
		}
	} else {
		repo.logger.Info().Msg("No Redis client provided, using in-memory cache only")
		repo.redisAvailable.Store(false)
	}

	return repo
}

func (r *RedisLearningStateRepository) enabledKey(ticker string) string {
	return fmt.Sprintf("%s:%s", LearningEnabledKeyPrefix, ticker)
}

func (r *RedisLearningStateRepository) lastTradeKey(market string) string {
	return fmt.Sprintf("%s:%s", LastTradeKeyPrefix, market)
}

// SaveWeights mirrors the flattened weight map.
func (r *RedisLearningStateRepository) SaveWeights(ctx context.Context, weights map[string]float64) error {
	r.cacheMu.Lock()
	r.cachedWeights = make(map[string]float64, len(weights))
	for k, v := range weights {
		r.cachedWeights[k] = v
	}
	r.cacheMu.Unlock()

	if r.client == nil || !r.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	if err := r.client.Set(ctx, WeightsKey, data, LearningStateTTL).Err(); err != nil {
		r.markUnavailable(err)
		return nil
	}
	return nil
}

// GetWeights reads the mirrored weight map, preferring Redis.
func (r *RedisLearningStateRepository) GetWeights(ctx context.Context) (map[string]float64, error) {
	if r.client != nil && r.redisAvailable.Load() {
		data, err := r.client.Get(ctx, WeightsKey).Bytes()
		if err == nil {
			weights := make(map[string]float64)
			if err := json.Unmarshal(data, &weights); err == nil {
				return weights, nil
			}
		} else if err != redis.Nil {
			r.markUnavailable(err)
		}
	}

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	out := make(map[string]float64, len(r.cachedWeights))
	for k, v := range r.cachedWeights {
		out[k] = v
	}
	return out, nil
}

// SaveLearningEnabled mirrors one ticker's enabled flag.
func (r *RedisLearningStateRepository) SaveLearningEnabled(ctx context.Context, ticker string, enabled bool) error {
	r.cacheMu.Lock()
	r.cachedEnabled[ticker] = enabled
	r.cacheMu.Unlock()

	if r.client == nil || !r.redisAvailable.Load() {
		return nil
	}

	value := "0"
	if enabled {
		value = "1"
	}
	if err := r.client.Set(ctx, r.enabledKey(ticker), value, LearningStateTTL).Err(); err != nil {
		r.markUnavailable(err)
	}
	return nil
}

// SaveLastTrade mirrors the most recent trade event for a market.
func (r *RedisLearningStateRepository) SaveLastTrade(ctx context.Context, trade *MirroredTrade) error {
	if trade == nil {
		return fmt.Errorf("cannot mirror nil trade")
	}

	r.cacheMu.Lock()
	r.cachedTrades[trade.Market] = trade
	r.cacheMu.Unlock()

	if r.client == nil || !r.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := r.client.Set(ctx, r.lastTradeKey(trade.Market), data, LearningStateTTL).Err(); err != nil {
		r.markUnavailable(err)
	}
	return nil
}

// GetLastTrade reads the most recent mirrored trade for a market.
func (r *RedisLearningStateRepository) GetLastTrade(ctx context.Context, market string) (*MirroredTrade, error) {
	if r.client != nil && r.redisAvailable.Load() {
		data, err := r.client.Get(ctx, r.lastTradeKey(market)).Bytes()
		if err == nil {
			var trade MirroredTrade
			if err := json.Unmarshal(data, &trade); err == nil {
				return &trade, nil
			}
		} else if err != redis.Nil {
			r.markUnavailable(err)
		}
	}

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	if trade, ok := r.cachedTrades[market]; ok {
		copied := *trade
		return &copied, nil
	}
	return nil, nil
}

// TryReconnect re-probes Redis and flips availability back on success.
func (r *RedisLearningStateRepository) TryReconnect(ctx context.Context) bool {
	if r.client == nil || r.redisAvailable.Load() {
		return r.redisAvailable.Load()
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return false
	}
	r.logger.Info().Msg("Redis connection restored")
	r.redisAvailable.Store(true)
	return true
}

func (r *RedisLearningStateRepository) markUnavailable(err error) {
	if r.redisAvailable.CompareAndSwap(true, false) {
		r.logger.Warn().Err(err).Msg("Redis write failed, falling back to in-memory cache")
	}
}
