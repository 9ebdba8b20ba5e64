package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data provider
	Provider ProviderConfig

	// Backtest
	Backtest BacktestConfig

	// Technical analysis defaults
	TA TAConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	ChartBaseURL  string
	SearchBaseURL string
	RatePerSecond float64
	RateBurst     int
}

// BacktestConfig holds simulation and metrics constants
type BacktestConfig struct {
	RiskFreeRatePct     float64 // annual risk-free rate in percent
	TradingDaysPerYear  int
	WeightTolerancePct  float64 // allowed deviation of total weight from 100
	HomeCurrency        string
	FXTickers           map[string]string // foreign currency -> conversion series ticker
	HomeAssetSuffixes   []string          // ticker suffixes already denominated in the home currency
	HomeAssetTickers    []string          // explicit home-currency tickers (indices etc.)
	JPYSuffix           string            // suffix identifying JPY-denominated tickers
}

// TAConfig holds default indicator parameters
type TAConfig struct {
	EMAPeriods []int
	BBPeriod   int
	BBStdDev   float64
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Provider: ProviderConfig{
			ChartBaseURL:  getEnv("PROVIDER_CHART_BASE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			SearchBaseURL: getEnv("PROVIDER_SEARCH_BASE_URL", "https://finance.yahoo.com/lookup"),
			RatePerSecond: getEnvAsFloat("PROVIDER_RATE_PER_SECOND", 2.0),
			RateBurst:     getEnvAsInt("PROVIDER_RATE_BURST", 5),
		},

		Backtest: BacktestConfig{
			RiskFreeRatePct:    getEnvAsFloat("RISK_FREE_RATE", 3.5),
			TradingDaysPerYear: getEnvAsInt("TRADING_DAYS_PER_YEAR", 252),
			WeightTolerancePct: getEnvAsFloat("WEIGHT_TOLERANCE", 0.1),
			HomeCurrency:       "KRW",
			FXTickers: map[string]string{
				"USD": "KRW=X",
				"JPY": "JPYKRW=X",
			},
			HomeAssetSuffixes: []string{".KS", ".KQ"},
			HomeAssetTickers:  []string{"^KS11"},
			JPYSuffix:         ".T",
		},

		TA: TAConfig{
			EMAPeriods: getEnvAsIntSlice("TA_EMA_PERIODS", []int{20, 50, 200}),
			BBPeriod:   getEnvAsInt("TA_BB_PERIOD", 20),
			BBStdDev:   getEnvAsFloat("TA_BB_STD", 2.0),
			RSIPeriod:  getEnvAsInt("TA_RSI_PERIOD", 14),
			MACDFast:   getEnvAsInt("TA_MACD_FAST", 12),
			MACDSlow:   getEnvAsInt("TA_MACD_SLOW", 26),
			MACDSignal: getEnvAsInt("TA_MACD_SIGNAL", 9),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Backtest.TradingDaysPerYear <= 0 {
		return fmt.Errorf("TRADING_DAYS_PER_YEAR must be positive")
	}

	return nil
}

// IsHomeAsset reports whether a ticker is already denominated in the home
// currency and must not be FX-converted.
func (c *BacktestConfig) IsHomeAsset(ticker string) bool {
	for _, suffix := range c.HomeAssetSuffixes {
		if strings.HasSuffix(ticker, suffix) {
			return true
		}
	}
	for _, t := range c.HomeAssetTickers {
		if ticker == t {
			return true
		}
	}
	return false
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		values = append(values, v)
	}

	return values
}
