package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"go.trai.ch/zerr"
)

var (
	// ErrMissingRemote is returned when the remote store URL or key is unset.
	ErrMissingRemote = zerr.New("SUPABASE_URL and SUPABASE_KEY must be set")
)

// Config is the process configuration, read from the environment.
type Config struct {
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_KEY"`

	RequestTimeout time.Duration `env:"CAMPAIGN_MCP_REQUEST_TIMEOUT" envDefault:"10s"`

	CachePrefix     string        `env:"CAMPAIGN_MCP_CACHE_PREFIX"     envDefault:"campaign"`
	CacheTTL        time.Duration `env:"CAMPAIGN_MCP_CACHE_TTL"        envDefault:"24h"`
	CachePersistent bool          `env:"CAMPAIGN_MCP_CACHE_PERSISTENT" envDefault:"true"`
	CacheDir        string        `env:"CAMPAIGN_MCP_CACHE_DIR"`
	// CacheSocket, when set, points at a cache daemon shared between processes.
	CacheSocket string `env:"CAMPAIGN_MCP_CACHE_SOCK"`

	// SnapshotDir receives inventory snapshots; defaults to CacheDir/snapshots.
	SnapshotDir string `env:"CAMPAIGN_MCP_SNAPSHOT_DIR"`

	LogPath string `env:"CAMPAIGN_MCP_LOG"`
}

// Load parses the environment and fills in path defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, zerr.Wrap(err, "parse env")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cacheHome(), "campaign-mcp")
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = filepath.Join(cfg.CacheDir, "snapshots")
	}
	return cfg, nil
}

// RequireRemote reports ErrMissingRemote unless the remote store is configured.
func (c Config) RequireRemote() error {
	if c.SupabaseURL == "" || c.SupabaseKey == "" {
		return ErrMissingRemote
	}
	return nil
}

// DefaultSocketPath is where the cache daemon listens when no socket is configured.
func (c Config) DefaultSocketPath() string {
	if c.CacheSocket != "" {
		return c.CacheSocket
	}
	return filepath.Join(c.CacheDir, "cache.sock")
}

func cacheHome() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache")
}
