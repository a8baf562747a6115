// Package config contains everything related to configuration
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

// Config holds the application configuration.
type Config struct {
	CollectionDir      string
	ActiveDir          string
	StaticDir          string
	DatabasePath       string
	APIKey             string
	OAuthClientID      string
	OAuthClientSecret  string
	TokenEndpoint      string
	CodeAssistEndpoint string
	LogLevel           string
	Port               int
	Threshold          int
	PollWorkers        int
	RefreshInterval    time.Duration
	RequestTimeout     time.Duration
	Notifications      bool
	WatchActive        bool
}

// Default values
const (
	defaultPort               = 3000
	defaultThreshold          = 10
	defaultPollWorkers        = 3
	defaultRefreshInterval    = time.Minute
	defaultRequestTimeout     = 30 * time.Second
	defaultCollectionDir      = ".gemini-collection"
	defaultActiveDir          = ".gemini"
	defaultStaticDir          = "public"
	defaultTokenEndpoint      = "https://oauth2.googleapis.com/token"
	defaultCodeAssistEndpoint = "https://cloudcode-pa.googleapis.com"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	var defaultClientID, defaultClientSecret string
	if constants := LoadGeminiCLIConstants(); constants != nil {
		defaultClientID = constants.ClientID
		defaultClientSecret = constants.ClientSecret
	}

	apiKey := getEnvString("GEMINI_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnvString("GOOGLE_API_KEY", "")
	}

	cfg := &Config{
		CollectionDir:      getEnvString("COLLECTION_DIR", defaultCollectionDir),
		ActiveDir:          getEnvString("ACTIVE_DIR", defaultActiveDir),
		StaticDir:          getEnvString("STATIC_DIR", defaultStaticDir),
		DatabasePath:       getEnvStringAllowEmpty("DATABASE_PATH", getDefaultDatabasePath()),
		APIKey:             apiKey,
		OAuthClientID:      getEnvString("GEMINI_OAUTH_CLIENT_ID", defaultClientID),
		OAuthClientSecret:  getEnvString("GEMINI_OAUTH_CLIENT_SECRET", defaultClientSecret),
		TokenEndpoint:      getEnvString("TOKEN_ENDPOINT", defaultTokenEndpoint),
		CodeAssistEndpoint: getEnvString("CODE_ASSIST_ENDPOINT", defaultCodeAssistEndpoint),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
		Port:               getEnvInt("PORT", defaultPort),
		Threshold:          getEnvInt("REMAINING_USAGE_THRESHOLD", defaultThreshold),
		PollWorkers:        getEnvInt("POLL_WORKERS", defaultPollWorkers),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", defaultRefreshInterval),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		Notifications:      getEnvBool("NOTIFICATIONS", false),
		WatchActive:        getEnvBool("WATCH_ACTIVE", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if cfg.DatabasePath != "" {
		if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("REMAINING_USAGE_THRESHOLD must be between 0 and 100, got %d", c.Threshold)
	}
	if c.PollWorkers < 1 {
		return fmt.Errorf("POLL_WORKERS must be at least 1, got %d", c.PollWorkers)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %d", c.Port)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	return nil
}

// HasOAuthClient reports whether token refresh can be attempted.
func (c *Config) HasOAuthClient() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "gqs", ".env"),
			filepath.Join(home, ".gemini", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the history database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".config", "gqs", "history.db")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvStringAllowEmpty is like getEnvString but honors an explicitly empty value.
func getEnvStringAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
