// Package config loads runtime configuration for the trading services from
// an optional config.json plus environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataConfig     DataConfig     `json:"data"`
	LearningConfig LearningConfig `json:"learning"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
}

// DataConfig locates the per-install data directory holding the JSON state
// files (trading-data/ and learning/ live under it).
type DataConfig struct {
	Dir string `json:"dir"`
}

// LearningConfig holds the tunables of the adaptive learning service.
type LearningConfig struct {
	MinSampleSize        int     `json:"min_sample_size"`
	WeightAdjustmentRate float64 `json:"weight_adjustment_rate"`
	PerformanceWindow    int     `json:"performance_window"` // days
	SaveInterval         int     `json:"save_interval"`      // minutes
	CooldownLearning     bool    `json:"cooldown_learning"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ProductionMode  bool   `json:"production_mode"`
	ReadTimeout     int    `json:"read_timeout"`     // seconds
	WriteTimeout    int    `json:"write_timeout"`    // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// AuthConfig protects the local API with a single app password. The hash is
// bcrypt; tokens are short-lived JWTs.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	PasswordHash        string        `json:"password_hash"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
}

// DatabaseConfig configures the optional Postgres archive. The JSON files
// remain the source of truth; the archive is reporting-only.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig configures the optional live state mirror.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load reads config.json when present, then applies environment variable
// overrides (which take precedence), then validates.
func Load() (*Config, error) {
	// .env first so overrides below can see it
	godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Data directory
	if cfg.DataConfig.Dir == "" {
		cfg.DataConfig.Dir = "data"
	}
	cfg.DataConfig.Dir = getEnvOrDefault("DATA_DIR", cfg.DataConfig.Dir)

	// Learning config
	cfg.LearningConfig.MinSampleSize = getEnvIntOrDefault("LEARNING_MIN_SAMPLE_SIZE", defaultInt(cfg.LearningConfig.MinSampleSize, 20))
	cfg.LearningConfig.WeightAdjustmentRate = getEnvFloatOrDefault("LEARNING_WEIGHT_ADJUSTMENT_RATE", defaultFloat(cfg.LearningConfig.WeightAdjustmentRate, 0.1))
	cfg.LearningConfig.PerformanceWindow = getEnvIntOrDefault("LEARNING_PERFORMANCE_WINDOW", defaultInt(cfg.LearningConfig.PerformanceWindow, 30))
	cfg.LearningConfig.SaveInterval = getEnvIntOrDefault("LEARNING_SAVE_INTERVAL", defaultInt(cfg.LearningConfig.SaveInterval, 30))
	if v := os.Getenv("LEARNING_COOLDOWN_ENABLED"); v != "" {
		cfg.LearningConfig.CooldownLearning = v == "true"
	}

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Server config
	if v := os.Getenv("SERVER_ENABLED"); v != "" {
		cfg.ServerConfig.Enabled = v == "true"
	} else if !cfg.ServerConfig.Enabled {
		cfg.ServerConfig.Enabled = true
	}
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", defaultStr(cfg.ServerConfig.Host, "127.0.0.1"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "http://localhost:5173"))
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Auth config
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.AuthConfig.Enabled = v == "true"
	}
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", defaultDuration(cfg.AuthConfig.AccessTokenDuration, 12*time.Hour))

	// Database config (optional archive)
	if v := os.Getenv("DB_ENABLED"); v != "" {
		cfg.DatabaseConfig.Enabled = v == "true"
	}
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultStr(cfg.DatabaseConfig.User, "trading"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultStr(cfg.DatabaseConfig.Database, "upbit_trading"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultStr(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config (optional state mirror)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
}

func (c *Config) validate() error {
	if c.ServerConfig.Port < 1 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerConfig.Port)
	}
	if c.LearningConfig.WeightAdjustmentRate <= 0 || c.LearningConfig.WeightAdjustmentRate > 1 {
		return fmt.Errorf("LEARNING_WEIGHT_ADJUSTMENT_RATE must be in (0, 1], got %v", c.LearningConfig.WeightAdjustmentRate)
	}
	if c.LearningConfig.SaveInterval <= 0 {
		return fmt.Errorf("LEARNING_SAVE_INTERVAL must be positive, got %d", c.LearningConfig.SaveInterval)
	}
	if c.AuthConfig.Enabled {
		if c.AuthConfig.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when auth is enabled")
		}
		if len(c.AuthConfig.JWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
		}
		if c.AuthConfig.PasswordHash == "" {
			return fmt.Errorf("AUTH_PASSWORD_HASH is required when auth is enabled")
		}
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func defaultStr(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func defaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func defaultFloat(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func defaultDuration(v, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
