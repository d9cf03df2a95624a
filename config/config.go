package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	BotToken      string
	CommandPrefix string

	// Database configuration
	DatabaseURL string

	// Connection pool configuration
	PoolSize     int
	PoolOverflow int
	PoolTimeout  time.Duration
	PoolRecycle  time.Duration

	// Logging configuration
	LogLevel          string
	LogFilePath       string
	LogMaxBytes       int64
	LogBackups        int
	ExternalLogURL    string
	ExternalLogAPIKey string

	// Command rate limits
	MaxCommandsPerMin  int
	MaxCommandsPerHour int

	// Log retention
	LogRetentionDays int

	// NATS configuration (optional external event fan-out)
	NATSServers string

	// Debug mode
	Debug bool

	// Environment
	Environment string // "development", "production", or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Load loads configuration from the environment, returning an error instead
// of panicking. Used by the CLI entrypoints where a missing variable is a
// configuration error (exit code 1), not a crash.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return instance, nil
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	instance = cfg
	return instance, nil
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	config := &Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		CommandPrefix: getEnvWithDefault("COMMAND_PREFIX", "!"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		PoolSize:     getEnvInt("POOL_SIZE", 10),
		PoolOverflow: getEnvInt("POOL_OVERFLOW", 5),
		PoolTimeout:  time.Duration(getEnvInt("POOL_TIMEOUT", 30)) * time.Second,
		PoolRecycle:  time.Duration(getEnvInt("POOL_RECYCLE", 1800)) * time.Second,

		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogFilePath:       os.Getenv("LOG_FILE_PATH"),
		LogMaxBytes:       int64(getEnvInt("LOG_MAX_BYTES", 10*1024*1024)),
		LogBackups:        getEnvInt("LOG_BACKUPS", 5),
		ExternalLogURL:    os.Getenv("EXTERNAL_LOG_URL"),
		ExternalLogAPIKey: os.Getenv("EXTERNAL_LOG_API_KEY"),

		MaxCommandsPerMin:  getEnvInt("MAX_CMDS_PER_MIN", 30),
		MaxCommandsPerHour: getEnvInt("MAX_CMDS_PER_HOUR", 600),

		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),

		NATSServers: os.Getenv("NATS_SERVERS"),

		Debug: os.Getenv("DEBUG") == "1",

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", config.LogLevel)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.BotToken == "" {
			return nil, fmt.Errorf("BOT_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default if unset or malformed
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		CommandPrefix:      "!",
		LogLevel:           "debug",
		MaxCommandsPerMin:  30,
		MaxCommandsPerHour: 600,
		LogRetentionDays:   30,
		PoolSize:           4,
		PoolTimeout:        5 * time.Second,
	}
}
