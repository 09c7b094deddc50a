// Package config holds the application settings: the sink, the seen-state
// backend, the sources file and the ambient knobs, read from a YAML file and
// overridden by the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pevans/historybrief/fetch"
	"github.com/pevans/historybrief/seen"
	"github.com/pevans/historybrief/sink"
)

// Sink kinds.
const (
	SinkNotion  = "notion"
	SinkArchive = "archive"
)

// DefaultSchedule runs the pipeline every morning.
const DefaultSchedule = "0 7 * * *"

// DefaultAPIAddr is the listen address of the archive API.
const DefaultAPIAddr = ":8080"

var (
	// ErrMissingCredentials is returned when the Notion sink is selected
	// without a token or a parent page.
	ErrMissingCredentials = errors.New("NOTION_TOKEN and NOTION_PARENT_PAGE_ID are required for the notion sink")
	// ErrInvalidBackend is returned for an unknown seen backend.
	ErrInvalidBackend = errors.New("invalid seen backend")
	// ErrInvalidSink is returned for an unknown sink kind.
	ErrInvalidSink = errors.New("invalid sink")
)

// NotionConfig holds the Notion credentials and database name.
type NotionConfig struct {
	Token        string `yaml:"token"`
	ParentPageID string `yaml:"parent_page_id"`
	DatabaseName string `yaml:"database_name"`
	BaseURL      string `yaml:"base_url"`
}

// SeenConfig selects the fingerprint store.
type SeenConfig struct {
	Backend string `yaml:"backend"`
	// DSN is empty to use the backend's default location.
	DSN string `yaml:"dsn"`
}

// FetchConfig tunes the HTTP helper and collection.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Parallel  bool          `yaml:"parallel"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// APIConfig configures the archive API.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	Sink string `yaml:"sink"`
	// Sources is a path to a sources file; empty uses the embedded list.
	Sources    string `yaml:"sources"`
	ArchiveDir string `yaml:"archive_dir"`
	Schedule   string `yaml:"schedule"`

	Notion NotionConfig `yaml:"notion"`
	Seen   SeenConfig   `yaml:"seen"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Log    LogConfig    `yaml:"log"`
	API    APIConfig    `yaml:"api"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Sink:       SinkNotion,
		ArchiveDir: sink.DefaultArchiveDir,
		Schedule:   DefaultSchedule,
		Notion: NotionConfig{
			DatabaseName: sink.DefaultDatabaseName,
		},
		Seen: SeenConfig{
			Backend: string(seen.BackendFile),
		},
		Fetch: FetchConfig{
			UserAgent: fetch.DefaultUserAgent,
			Timeout:   fetch.DefaultTimeout,
		},
		Log: LogConfig{Level: "info"},
		API: APIConfig{Addr: DefaultAPIAddr},
	}
}

// Validate checks the settings a run depends on. It never touches the
// network.
func (c *Config) Validate() error {
	switch c.Sink {
	case SinkNotion:
		if c.Notion.Token == "" || c.Notion.ParentPageID == "" {
			return ErrMissingCredentials
		}
	case SinkArchive:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSink, c.Sink)
	}

	if !seen.Backend(c.Seen.Backend).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Seen.Backend)
	}
	return nil
}
