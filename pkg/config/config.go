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

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port      string
	Env       string // development, staging, production
	AuthToken string // bearer token for mutating endpoints

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// LLM providers
	OpenAI OpenAIConfig
	Gemini GeminiConfig
	LLM    LLMConfig

	// Market data
	MarketData MarketDataConfig

	// Batch
	Batch BatchConfig

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

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	RPS     float64
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	RPS     float64
}

// LLMConfig holds provider-orchestration defaults
type LLMConfig struct {
	// DefaultPolicy is used when a creation request does not name one.
	// One of: SINGLE, FALLBACK, BOTH, HYBRID, AUTO.
	DefaultPolicy string

	// Primary/Secondary fix the provider order for AUTO and the
	// two-provider policies. Values: openai, gemini.
	Primary   string
	Secondary string

	// Translation
	TranslateEnabled  bool
	TranslateLanguage string
}

// MarketDataConfig holds market data source configuration
type MarketDataConfig struct {
	StooqBaseURL   string
	FinvizBaseURL  string
	RequestTimeout time.Duration
}

// BatchConfig holds batch trigger configuration
type BatchConfig struct {
	Tickers   []string
	ChunkSize int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port:      getEnv("PORT", "8087"),
		Env:       getEnv("ENV", "development"),
		AuthToken: getEnv("AUTH_TOKEN", ""),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// LLM providers
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", "90s"),
			RPS:     getEnvAsFloat("OPENAI_RPS", 1.0),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", "90s"),
			RPS:     getEnvAsFloat("GEMINI_RPS", 0.25),
		},
		LLM: LLMConfig{
			DefaultPolicy:     getEnv("LLM_DEFAULT_POLICY", "AUTO"),
			Primary:           getEnv("LLM_PRIMARY", "openai"),
			Secondary:         getEnv("LLM_SECONDARY", "gemini"),
			TranslateEnabled:  getEnvAsBool("TRANSLATE_ENABLED", true),
			TranslateLanguage: getEnv("TRANSLATE_LANGUAGE", "Korean"),
		},

		// Market data
		MarketData: MarketDataConfig{
			StooqBaseURL:   getEnv("STOOQ_BASE_URL", "https://stooq.com"),
			FinvizBaseURL:  getEnv("FINVIZ_BASE_URL", "https://finviz.com"),
			RequestTimeout: getEnvAsDuration("MARKETDATA_TIMEOUT", "30s"),
		},

		// Batch
		Batch: BatchConfig{
			Tickers:   getEnvAsList("BATCH_TICKERS", "QQQ,SPY,AAPL,MSFT,NVDA,GOOGL,AMZN,META,TSLA,AVGO"),
			ChunkSize: getEnvAsInt("BATCH_CHUNK_SIZE", 5),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
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
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.LLM.DefaultPolicy {
	case "SINGLE", "FALLBACK", "BOTH", "HYBRID", "AUTO":
	default:
		return fmt.Errorf("LLM_DEFAULT_POLICY must be one of: SINGLE, FALLBACK, BOTH, HYBRID, AUTO")
	}

	if c.LLM.Primary == c.LLM.Secondary {
		return fmt.Errorf("LLM_PRIMARY and LLM_SECONDARY must differ")
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
			filepath.Join(exeDir, "..", "..", ".env"),
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

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
