package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int
	ShutdownTimeout time.Duration

	DatabaseDriver string // "sqlite" or "mysql"
	DatabaseURL    string // SQLite path or MySQL DSN
	DBMaxOpenConns int

	APIKey       string
	APIKeyHeader string

	LogLevel  string
	LogFormat string // "console" or "json"

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	shutdownSeconds, err := getInt("SHUTDOWN_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	burst, err := getInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))
	dsn, err := databaseURL(driver)
	if err != nil {
		return nil, err
	}

	apiKey := getEnv("API_KEY", "")
	if apiKey == "" {
		return nil, errors.New("API_KEY must be set")
	}

	return &Config{
		ServerPort:      port,
		ShutdownTimeout: time.Duration(shutdownSeconds) * time.Second,
		DatabaseDriver:  driver,
		DatabaseURL:     dsn,
		DBMaxOpenConns:  maxOpen,
		APIKey:          apiKey,
		APIKeyHeader:    getEnv("API_KEY_HEADER", "X-API-Key"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:    rps,
		RateLimitBurst:  burst,
	}, nil
}

// databaseURL resolves the data source for the selected driver. MySQL deployments
// may describe the connection through the MYSQL_* variables instead of a DSN.
func databaseURL(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return getEnv("DATABASE_URL", "./users.db"), nil
	case "mysql":
		if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
			return dsn, nil
		}
		name := getEnv("MYSQL_DATABASE", "")
		if name == "" {
			return "", errors.New("DATABASE_URL or MYSQL_DATABASE must be set for the mysql driver")
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
			getEnv("MYSQL_USER", "root"),
			getEnv("MYSQL_PASSWORD", ""),
			getEnv("MYSQL_HOST", "127.0.0.1"),
			getEnv("MYSQL_PORT", "3306"),
			name,
		), nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
