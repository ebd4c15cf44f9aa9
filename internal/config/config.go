// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRequestTimeout bounds every backend call.
const DefaultRequestTimeout = 60 * time.Second

// Config holds all application configuration.
type Config struct {
	APIURL         string
	RequestTimeout time.Duration
	DBPath         string
	SocketPath     string
	Locale         string // speech recognition / synthesis locale, e.g. "mr-IN"
	Language       string // assistant answer language: "mr", "hi", "en"
	Location       string // optional "lat,lng" used when no locator is available
	Log            LogConfig
}

// LogConfig controls where and how much the client logs.
type LogConfig struct {
	Level string
	File  string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		APIURL:         getEnv("KRISHI_API_URL", "http://127.0.0.1:8000"),
		RequestTimeout: getEnvDuration("KRISHI_REQUEST_TIMEOUT", DefaultRequestTimeout),
		DBPath:         getEnv("KRISHI_DB_PATH", defaultDataPath("krishi.sqlite")),
		SocketPath:     getEnv("KRISHI_SPEECH_SOCKET", defaultDataPath("speech.sock")),
		Locale:         getEnv("KRISHI_LOCALE", "mr-IN"),
		Language:       getEnv("KRISHI_LANGUAGE", "mr"),
		Location:       getEnv("KRISHI_LOCATION", ""),
		Log: LogConfig{
			Level: getEnv("KRISHI_LOG_LEVEL", "info"),
			File:  getEnv("KRISHI_LOG_FILE", defaultDataPath("krishi.log")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("KRISHI_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("KRISHI_REQUEST_TIMEOUT must be > 0")
	}
	if c.DBPath == "" {
		return fmt.Errorf("KRISHI_DB_PATH cannot be empty")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("KRISHI_SPEECH_SOCKET cannot be empty")
	}
	switch c.Language {
	case "mr", "hi", "en":
	default:
		return fmt.Errorf("KRISHI_LANGUAGE must be one of mr, hi, en")
	}
	return nil
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "krishi", name)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}
