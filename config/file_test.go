package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENV_FILE",
	"NOTION_TOKEN",
	"NOTION_PARENT_PAGE_ID",
	"NOTION_DATABASE_NAME",
	"HISTORYBRIEF_SINK",
	"HISTORYBRIEF_SOURCES",
	"HISTORYBRIEF_ARCHIVE_DIR",
	"HISTORYBRIEF_SCHEDULE",
	"HISTORYBRIEF_LOG_LEVEL",
	"HISTORYBRIEF_LOG_JSON",
	"HISTORYBRIEF_USER_AGENT",
	"HISTORYBRIEF_API_ADDR",
	"HISTORYBRIEF_SEEN_BACKEND",
	"HISTORYBRIEF_SEEN_DSN",
	"HISTORYBRIEF_PARALLEL",
	"HISTORYBRIEF_FETCH_TIMEOUT",
	"REDIS_ADDR",
}

// clearEnv blanks every variable the loader reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile_NoFile(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

// TestLoadConfigFile_ValidConfig verifies file values are laid over the
// defaults
func TestLoadConfigFile_ValidConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `sink: archive
archive_dir: /var/lib/historybrief/runs
seen:
  backend: sqlite
  dsn: /var/lib/historybrief/seen.db
fetch:
  timeout: 20s
  parallel: true
log:
  level: debug
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, SinkArchive, cfg.Sink)
	assert.Equal(t, "/var/lib/historybrief/runs", cfg.ArchiveDir)
	assert.Equal(t, "sqlite", cfg.Seen.Backend)
	assert.Equal(t, "/var/lib/historybrief/seen.db", cfg.Seen.DSN)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.True(t, cfg.Fetch.Parallel)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
	assert.Equal(t, DefaultAPIAddr, cfg.API.Addr)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "sink: [unclosed")

	cfg, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// TestLoad_DefaultsWithoutFile verifies a missing file yields the defaults
func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoad_EnvironmentOverridesFile verifies environment variables win over
// the file
func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `sink: archive
notion:
  token: from-file
log:
  level: warn
`)

	t.Setenv("NOTION_TOKEN", "from-env")
	t.Setenv("NOTION_PARENT_PAGE_ID", "parent")
	t.Setenv("HISTORYBRIEF_SINK", "notion")
	t.Setenv("HISTORYBRIEF_SOURCES", "/etc/historybrief/sources.yaml")
	t.Setenv("HISTORYBRIEF_PARALLEL", "true")
	t.Setenv("HISTORYBRIEF_FETCH_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Notion.Token)
	assert.Equal(t, "parent", cfg.Notion.ParentPageID)
	assert.Equal(t, SinkNotion, cfg.Sink)
	assert.Equal(t, "/etc/historybrief/sources.yaml", cfg.Sources)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Fetch.Parallel)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_SeenBackendOverride verifies switching backends drops the file's
// DSN and REDIS_ADDR fills the redis address
func TestLoad_SeenBackendOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `seen:
  backend: file
  dsn: /tmp/seen.json
`)

	t.Setenv("HISTORYBRIEF_SEEN_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Seen.Backend)
	assert.Equal(t, "localhost:6379", cfg.Seen.DSN)
}

// TestLoad_ExplicitSeenDSN verifies HISTORYBRIEF_SEEN_DSN beats REDIS_ADDR
func TestLoad_ExplicitSeenDSN(t *testing.T) {
	clearEnv(t)

	t.Setenv("HISTORYBRIEF_SEEN_BACKEND", "redis")
	t.Setenv("HISTORYBRIEF_SEEN_DSN", "redis://cache:6379/2")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.Seen.DSN)
}

func TestLoad_InvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("HISTORYBRIEF_PARALLEL", "sometimes")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HISTORYBRIEF_PARALLEL")
}

// TestLoad_EnvFile verifies variables are read from ENV_FILE without
// overriding the real environment
func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	unsetEnv(t, "NOTION_TOKEN")
	envFile := writeFile(t, "test.env", "NOTION_TOKEN=from-dotenv\nNOTION_PARENT_PAGE_ID=from-dotenv\n")
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("NOTION_PARENT_PAGE_ID", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Notion.Token)
	assert.Equal(t, "from-env", cfg.Notion.ParentPageID)
}

// TestLoad_MissingEnvFile verifies a missing ENV_FILE is not an error
func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}
