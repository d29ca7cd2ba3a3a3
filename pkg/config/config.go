package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig
	Ledger   LedgerConfig

	// Market data providers
	Polygon       ProviderConfig
	UnusualWhales ProviderConfig
	Finviz        ProviderConfig

	// Order execution gateway
	Broker BrokerConfig

	// Index price reconciliation
	Index IndexConfig

	// Strategy YAML (empty = built-in defaults)
	StrategyPath string

	// Per-call upstream timeout
	HTTPTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration.
// Scan history is only persisted when URL is set.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LedgerConfig holds the position ledger file location
type LedgerConfig struct {
	Path string
}

// ProviderConfig holds one market data provider's access settings
type ProviderConfig struct {
	APIKey             string
	BaseURL            string
	RateLimitPerMinute int
	Burst              int
}

// BrokerConfig holds order gateway settings
type BrokerConfig struct {
	BaseURL   string
	AccountID string
	ClientID  int
	Paper     bool    // PaperBroker 사용 (실주문 없음)
	PaperCash float64 // paper 계좌 net liquidation
}

// IndexConfig holds the index/ETF reconciliation policy
type IndexConfig struct {
	IndexSymbol      string  // 지수 (live)
	ProxySymbol      string  // ETF proxy
	ProxyRatio       float64 // index ≈ proxy * ratio
	MaxDivergencePct float64 // live vs derived 허용 괴리 (%)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Ledger: LedgerConfig{
			Path: getEnv("LEDGER_PATH", "data/trades_log.json"),
		},

		// Providers
		Polygon: ProviderConfig{
			APIKey:             getEnv("POLYGON_API_KEY", ""),
			BaseURL:            getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
			RateLimitPerMinute: getEnvAsInt("POLYGON_RATE_LIMIT_PER_MIN", 5),
			Burst:              getEnvAsInt("POLYGON_RATE_BURST", 1),
		},

		UnusualWhales: ProviderConfig{
			APIKey:             getEnv("UW_API_TOKEN", ""),
			BaseURL:            getEnv("UW_BASE_URL", "https://api.unusualwhales.com"),
			RateLimitPerMinute: getEnvAsInt("UW_RATE_LIMIT_PER_MIN", 120),
			Burst:              getEnvAsInt("UW_RATE_BURST", 2),
		},

		Finviz: ProviderConfig{
			APIKey:             getEnv("FINVIZ_AUTH", ""),
			BaseURL:            getEnv("FINVIZ_BASE_URL", "https://elite.finviz.com"),
			RateLimitPerMinute: getEnvAsInt("FINVIZ_RATE_LIMIT_PER_MIN", 30),
			Burst:              getEnvAsInt("FINVIZ_RATE_BURST", 1),
		},

		Broker: BrokerConfig{
			BaseURL:   getEnv("BROKER_BASE_URL", "http://127.0.0.1:5000"),
			AccountID: getEnv("BROKER_ACCOUNT_ID", ""),
			ClientID:  getEnvAsInt("BROKER_CLIENT_ID", 80),
			Paper:     getEnvAsBool("BROKER_PAPER", true),
			PaperCash: getEnvAsFloat("BROKER_PAPER_CASH", 25000),
		},

		Index: IndexConfig{
			IndexSymbol:      getEnv("INDEX_SYMBOL", "I:SPX"),
			ProxySymbol:      getEnv("INDEX_PROXY_SYMBOL", "SPY"),
			ProxyRatio:       getEnvAsFloat("INDEX_PROXY_RATIO", 10.028),
			MaxDivergencePct: getEnvAsFloat("INDEX_MAX_DIVERGENCE_PCT", 0.5),
		},

		StrategyPath: getEnv("STRATEGY_CONFIG", ""),
		HTTPTimeout:  getEnvAsDuration("HTTP_TIMEOUT", "15s"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Ledger.Path == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}

	for name, p := range map[string]ProviderConfig{
		"POLYGON": c.Polygon,
		"UW":      c.UnusualWhales,
		"FINVIZ":  c.Finviz,
	} {
		if p.RateLimitPerMinute <= 0 {
			return fmt.Errorf("%s_RATE_LIMIT_PER_MIN must be > 0", name)
		}
		if p.Burst <= 0 {
			return fmt.Errorf("%s_RATE_BURST must be > 0", name)
		}
	}

	if c.Index.ProxyRatio <= 0 {
		return fmt.Errorf("INDEX_PROXY_RATIO must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
