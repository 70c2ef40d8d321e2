// Package config handles XDG configuration directory, file paths and
// backend settings.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppName is the application directory name.
	AppName = "tasksync"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// ReplicaExt is the extension of local automerge replicas.
	ReplicaExt = ".automerge"
)

// Backends.
const (
	BackendAutomerge = "automerge"
	BackendGoogle    = "google"
)

// Environment variables. Flags override them.
const (
	EnvBackend      = "TASKSYNC_BACKEND"
	EnvList         = "TASKSYNC_LIST"
	EnvServer       = "TASKSYNC_SERVER"
	EnvStore        = "TASKSYNC_STORE"
	EnvPollInterval = "TASKSYNC_POLL_INTERVAL"
	EnvSyncWindow   = "TASKSYNC_SYNC_WINDOW"
)

// Defaults.
const (
	DefaultStore        = "default"
	DefaultPollInterval = 10 * time.Second
	DefaultSyncWindow   = time.Second
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Backend selects the store: BackendAutomerge or BackendGoogle.
	Backend string

	// ListID is the list to operate on. Empty means the backend default.
	ListID string

	// ServerURL is the tasksyncd base URL. Empty keeps the automerge
	// backend local only.
	ServerURL string

	// Store is the name of the automerge store on the server.
	Store string

	// PollInterval is how often Google Tasks lists are refetched.
	PollInterval time.Duration

	// SyncWindow bounds each automerge sync exchange.
	SyncWindow time.Duration
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/tasksync or $HOME/.config/tasksync.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:          dir,
		Backend:      BackendAutomerge,
		Store:        DefaultStore,
		PollInterval: DefaultPollInterval,
		SyncWindow:   DefaultSyncWindow,
	}, nil
}

// LoadEnv overrides settings from TASKSYNC_* variables.
func (c *Config) LoadEnv() error {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvList); v != "" {
		c.ListID = v
	}
	if v := os.Getenv(EnvServer); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv(EnvSyncWindow); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSyncWindow, err)
		}
		c.SyncWindow = d
	}
	return nil
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAutomerge, BackendGoogle:
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
}

// List returns the list ID to operate on, falling back to the backend default.
func (c *Config) List() string {
	if c.ListID != "" {
		return c.ListID
	}
	return c.DefaultList()
}

// DefaultList returns the ID of the backend's default list.
func (c *Config) DefaultList() string {
	if c.Backend == BackendGoogle {
		return "@default"
	}
	return "default"
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// ReplicaPath returns the path of the local automerge replica for Store.
func (c *Config) ReplicaPath() string {
	return filepath.Join(c.Dir, c.Store+ReplicaExt)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// Logger returns a text logger on w. Only warnings and errors are shown
// unless Debug is set.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
