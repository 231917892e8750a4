package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	DBPath               string
	DBDriver             string
	CatalogTable         string
	APIPort              string
	ServerName           string
	DefaultLimit         int
	MaxLimit             int
	StoreTimeout         time.Duration
	MatchCaseInsensitive bool
	LogLevel             slog.Level
	LogFormat            string
}

// Supported values for DB_DRIVER and CATALOG_TABLE.
var (
	supportedDrivers = []string{"sqlite3", "sqlite"}
	supportedTables  = []string{"news", "heroes"}
)

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or a parent directory, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up to find a .env at the project root
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		DBPath:       getEnv("DB_PATH", "./database/ai_news.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		CatalogTable: getEnv("CATALOG_TABLE", "news"),
		APIPort:      getEnv("API_PORT", "8000"),
		ServerName:   getEnv("SERVER_NAME", "AI and Robotics News Server"),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if !slices.Contains(supportedDrivers, cfg.DBDriver) {
		return nil, fmt.Errorf("DB_DRIVER must be one of %s, got %q", strings.Join(supportedDrivers, ", "), cfg.DBDriver)
	}
	if !slices.Contains(supportedTables, cfg.CatalogTable) {
		return nil, fmt.Errorf("CATALOG_TABLE must be one of %s, got %q", strings.Join(supportedTables, ", "), cfg.CatalogTable)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if cfg.DefaultLimit, err = getEnvInt("DEFAULT_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.MaxLimit, err = getEnvInt("MAX_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.DefaultLimit <= 0 {
		return nil, fmt.Errorf("DEFAULT_LIMIT must be greater than 0")
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		return nil, fmt.Errorf("MAX_LIMIT (%d) must not be smaller than DEFAULT_LIMIT (%d)", cfg.MaxLimit, cfg.DefaultLimit)
	}

	timeout, err := time.ParseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("STORE_TIMEOUT must be a valid duration: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be greater than 0")
	}
	cfg.StoreTimeout = timeout

	caseInsensitive, err := strconv.ParseBool(getEnv("MATCH_CASE_INSENSITIVE", "false"))
	if err != nil {
		return nil, fmt.Errorf("MATCH_CASE_INSENSITIVE must be a boolean: %w", err)
	}
	cfg.MatchCaseInsensitive = caseInsensitive

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable, falling back to defaultValue when unset.
func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}
