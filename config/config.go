package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort     string        `mapstructure:"server_port"`
	ServerHost     string        `mapstructure:"server_host"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`

	// Database configuration
	DBDriver   string `mapstructure:"db_driver"`
	DBPath     string `mapstructure:"db_path"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_ssl_mode"`

	// Redis configuration
	RedisURL      string `mapstructure:"redis_url"`
	RedisHost     string `mapstructure:"redis_host"`
	RedisPort     string `mapstructure:"redis_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Rate limiting
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`

	// Recommendation engine
	ReviewLogPath string `mapstructure:"review_log_path"`
	DefaultNumber int    `mapstructure:"default_number"`
	MaxNumber     int    `mapstructure:"max_number"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// envBindings maps config keys to the environment variables they are read from.
var envBindings = map[string]string{
	"server_port":         "SERVER_PORT",
	"server_host":         "SERVER_HOST",
	"request_timeout":     "REQUEST_TIMEOUT",
	"cors_origins":        "CORS_ORIGINS",
	"db_driver":           "DB_DRIVER",
	"db_path":             "DB_PATH",
	"db_host":             "DB_HOST",
	"db_port":             "DB_PORT",
	"db_user":             "DB_USER",
	"db_password":         "DB_PASSWORD",
	"db_name":             "DB_NAME",
	"db_ssl_mode":         "DB_SSL_MODE",
	"redis_url":           "REDIS_URL",
	"redis_host":          "REDIS_HOST",
	"redis_port":          "REDIS_PORT",
	"redis_password":      "REDIS_PASSWORD",
	"redis_db":            "REDIS_DB",
	"rate_limit_requests": "RATE_LIMIT_REQUESTS",
	"rate_limit_window":   "RATE_LIMIT_WINDOW",
	"review_log_path":     "REVIEW_LOG_PATH",
	"default_number":      "DEFAULT_NUMBER",
	"max_number":          "MAX_NUMBER",
	"log_level":           "LOG_LEVEL",
	"log_format":          "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("cors_origins", "http://localhost:5173")

	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("db_path", "homeal.db")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "homeal")
	v.SetDefault("db_ssl_mode", "disable")

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("rate_limit_requests", 60)
	v.SetDefault("rate_limit_window", time.Minute)

	v.SetDefault("review_log_path", "")
	v.SetDefault("default_number", 5)
	v.SetDefault("max_number", 100)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// LoadConfig reads configuration from the environment, an optional .env file
// and Docker secrets, then validates it for the current environment.
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadSecrets fills sensitive values that were not provided through the
// environment. CI injects them as TEST_* variables, everything else mounts
// Docker secrets.
func loadSecrets(cfg *Config) {
	if GetEnvironment() == CI {
		if cfg.DBPassword == "" {
			cfg.DBPassword = os.Getenv("TEST_DB_PASSWORD")
		}
		if cfg.RedisPassword == "" {
			cfg.RedisPassword = os.Getenv("TEST_REDIS_PASSWORD")
		}
		return
	}

	if cfg.DBUser == "" {
		cfg.DBUser = readSecret("db_user")
	}
	if cfg.DBPassword == "" {
		cfg.DBPassword = readSecret("db_password")
	}
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = readSecret("redis_password")
	}
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// RedisEnabled reports whether a Redis endpoint was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
