package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Security      SecurityConfig
	Client        ClientConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ThrottleRPS     float64
	ThrottleBurst   int
	AllowedOrigins  []string
}

// StoreConfig selects where credentials and settings are persisted.
// Backend is "file" (one JSON blob per record under Path) or "sql"
// (Driver is "postgres" or "sqlite", DSN is the connection string).
type StoreConfig struct {
	Backend string
	Path    string
	Driver  string
	DSN     string
}

// SecurityConfig holds the credential encryption settings.
// MasterKey is a 64-char hex string; when empty, values are stored in
// plaintext.
type SecurityConfig struct {
	MasterKey string
}

// ClientConfig tunes the outbound LLM client.
type ClientConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	PollInterval  time.Duration
	HTTPTimeout   time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			ThrottleRPS:     getEnvAsFloat("SERVER_THROTTLE_RPS", 20),
			ThrottleBurst:   getEnvAsInt("SERVER_THROTTLE_BURST", 40),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGIN", "*")},
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "file"),
			Path:    getEnv("STORE_PATH", defaultStorePath()),
			Driver:  getEnv("STORE_DRIVER", "sqlite"),
			DSN:     getEnv("STORE_DSN", ""),
		},
		Security: SecurityConfig{
			MasterKey: getEnv("MASTER_KEY", ""),
		},
		Client: ClientConfig{
			MaxRetries:    getEnvAsInt("CLIENT_MAX_RETRIES", 3),
			InitialDelay:  getEnvAsDuration("CLIENT_INITIAL_DELAY", time.Second),
			BackoffFactor: getEnvAsFloat("CLIENT_BACKOFF_FACTOR", 2),
			PollInterval:  getEnvAsDuration("CLIENT_POLL_INTERVAL", 5*time.Second),
			HTTPTimeout:   getEnvAsDuration("CLIENT_HTTP_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the file backend")
		}
	case "sql":
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
		}
		if c.Store.DSN == "" {
			return fmt.Errorf("store DSN is required for the sql backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Security.MasterKey != "" {
		key, err := hex.DecodeString(c.Security.MasterKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("master key must be 64 hex characters")
		}
	}

	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Client.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be at least 1")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llmbridge"
	}
	return home + "/.llmbridge"
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8390)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8390
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
