package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pevans/historybrief/seen"
)

// DefaultPath returns ~/.historybrief/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".historybrief", "config.yaml"), nil
}

// LoadConfigFile reads the YAML file at path over the defaults. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration: .env files, then the YAML file at path (or
// the default path when empty), then environment overrides.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE, .env.local and .env in that order. Variables
// already set are never overridden, so earlier files win.
func loadEnvFiles() error {
	files := []string{".env.local", ".env"}
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		files = append([]string{envFile}, files...)
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Notion.Token, "NOTION_TOKEN")
	setString(&cfg.Notion.ParentPageID, "NOTION_PARENT_PAGE_ID")
	setString(&cfg.Notion.DatabaseName, "NOTION_DATABASE_NAME")
	setString(&cfg.Sink, "HISTORYBRIEF_SINK")
	setString(&cfg.Sources, "HISTORYBRIEF_SOURCES")
	setString(&cfg.ArchiveDir, "HISTORYBRIEF_ARCHIVE_DIR")
	setString(&cfg.Schedule, "HISTORYBRIEF_SCHEDULE")
	setString(&cfg.Log.Level, "HISTORYBRIEF_LOG_LEVEL")
	setString(&cfg.Fetch.UserAgent, "HISTORYBRIEF_USER_AGENT")
	setString(&cfg.API.Addr, "HISTORYBRIEF_API_ADDR")

	if backend := os.Getenv("HISTORYBRIEF_SEEN_BACKEND"); backend != "" {
		if backend != cfg.Seen.Backend {
			// The DSN of one backend means nothing to another.
			cfg.Seen.DSN = ""
		}
		cfg.Seen.Backend = backend
	}
	setString(&cfg.Seen.DSN, "HISTORYBRIEF_SEEN_DSN")
	if cfg.Seen.Backend == string(seen.BackendRedis) && cfg.Seen.DSN == "" {
		cfg.Seen.DSN = os.Getenv("REDIS_ADDR")
	}

	if value := os.Getenv("HISTORYBRIEF_PARALLEL"); value != "" {
		parallel, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid HISTORYBRIEF_PARALLEL: %w", err)
		}
		cfg.Fetch.Parallel = parallel
	}
	if value := os.Getenv("HISTORYBRIEF_FETCH_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid HISTORYBRIEF_FETCH_TIMEOUT: %w", err)
		}
		cfg.Fetch.Timeout = timeout
	}
	if value := os.Getenv("HISTORYBRIEF_LOG_JSON"); value != "" {
		jsonLogs, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid HISTORYBRIEF_LOG_JSON: %w", err)
		}
		cfg.Log.JSON = jsonLogs
	}
	return nil
}
