package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CatalogConfig configures the catalog source.
type CatalogConfig struct {
	BaseURL        string
	RandomDelay    time.Duration
	RequestTimeout time.Duration
	Name           string // key for sweep bookkeeping
}

// StoreConfig selects and configures the catalog store.
type StoreConfig struct {
	Kind string // memory, null, file, postgres, redis
	File string
}

type DBconfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RabbitMQConfig is optional; an empty URL disables events and the sweep
// request listener.
type RabbitMQConfig struct {
	URL string
}

type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Path      string
	Level     slog.Level
	AddSource bool
}

// AppConfig holds the whole application configuration.
type AppConfig struct {
	Catalog  CatalogConfig
	Store    StoreConfig
	Database DBconfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

// LoadConfig reads .env (or envPath[0]) into the environment and builds the
// configuration from it. A missing default .env is fine; a missing file
// that was asked for is an error.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		if len(envPath) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not load .env file (path: %v): %w", envPath, err)
		}
		slog.Debug("Config: no .env file, using environment only")
	}

	cfg := &AppConfig{
		Catalog: CatalogConfig{
			BaseURL:        getEnvAsString("CATALOG_BASE_URL", "https://ollama.com"),
			RandomDelay:    time.Duration(getEnvAsInt("CATALOG_RANDOM_DELAY_MS", 1000)) * time.Millisecond,
			RequestTimeout: time.Duration(getEnvAsInt("CATALOG_REQUEST_TIMEOUT_SEC", 30)) * time.Second,
			Name:           getEnvAsString("CATALOG_NAME", "ollama_library"),
		},
		Store: StoreConfig{
			Kind: strings.ToLower(getEnvAsString("CATALOG_STORE", "memory")),
			File: getEnvAsString("CATALOG_FILE", "catalog.json"),
		},
		Database: DBconfig{URL: os.Getenv("DATABASE_URL")},
		Redis: RedisConfig{
			Addr:     getEnvAsString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnvAsString("REDIS_PREFIX", "catalog"),
		},
		RabbitMQ: RabbitMQConfig{URL: os.Getenv("RABBITMQ_URL")},
		HTTP:     HTTPConfig{Addr: getEnvAsString("HTTP_ADDR", ":8080")},
		Log: LogConfig{
			Path:      getEnvAsString("LOG_PATH", "logs/catalog.log"),
			Level:     getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
			AddSource: getEnvAsBool("LOG_ADD_SOURCE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *AppConfig) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL cannot be empty")
	}
	if c.Catalog.RandomDelay < 0 {
		return fmt.Errorf("CATALOG_RANDOM_DELAY_MS cannot be negative")
	}
	if c.Catalog.RequestTimeout <= 0 {
		return fmt.Errorf("CATALOG_REQUEST_TIMEOUT_SEC must be positive")
	}
	switch c.Store.Kind {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres store")
		}
	case "file":
		if c.Store.File == "" {
			return fmt.Errorf("CATALOG_FILE environment variable is required for the file store")
		}
	}
	return nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt falls back to defaultValue, with a warning, when the variable
// is set but not an integer.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("Config: variable is not an int, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		slog.Warn("Config: variable is not a bool, using default", "key", key, "value", valStr, "default", defaultValue)
		return defaultValue
	}
	return valBool
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(valStr)); err != nil {
		slog.Warn("Config: variable is not a log level, using default", "key", key, "value", valStr, "default", defaultValue)
		return defaultValue
	}
	return level
}
