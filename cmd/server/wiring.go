package main

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/config"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
	"github.com/leonardcser/campaign-mcp/internal/tools"
)

const daemonBinary = "campaign-mcp-cache"

type app struct {
	deps    tools.Deps
	closeKV func() error
}

func (a *app) Close() {
	if err := a.closeKV(); err != nil {
		logger.Warnf("close cache: %v", err)
	}
}

// openApp builds the cache, data client, ledger and query service from the
// environment.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireRemote(); err != nil {
		return nil, err
	}
	deps, err := postgrest.LoadDependencies()
	if err != nil {
		return nil, err
	}
	kv, closeKV, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	client := postgrest.New(postgrest.Config{
		URL:         cfg.SupabaseURL,
		APIKey:      cfg.SupabaseKey,
		CachePrefix: cfg.CachePrefix,
		Timeout:     cfg.RequestTimeout,
	}, kv, deps)
	logger.Infof("Initialized data client for %s (cache ttl %s)", cfg.SupabaseURL, cfg.CacheTTL)

	return &app{
		deps: tools.Deps{
			Ledger:      ledger.New(client),
			Campaign:    campaign.New(client, kv),
			Cache:       kv,
			SnapshotDir: cfg.SnapshotDir,
		},
		closeKV: closeKV,
	}, nil
}

// openCache returns the cache daemon client when a socket is configured and
// an in-process store otherwise.
func openCache(cfg config.Config) (cache.KV, func() error, error) {
	noop := func() error { return nil }
	if cfg.CacheSocket != "" {
		kv, err := connectOrStartDaemon(cfg.CacheSocket)
		if err != nil {
			return nil, nil, err
		}
		return kv, noop, nil
	}
	store, err := cache.Open(cache.Options{
		TTL:        cfg.CacheTTL,
		Persistent: cfg.CachePersistent,
		Directory:  cfg.CacheDir,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Opened in-process cache (persistent=%t, dir=%s)", cfg.CachePersistent, cfg.CacheDir)
	return store, store.Close, nil
}

func connectOrStartDaemon(sock string) (cache.KV, error) {
	logger.Infof("Attempting to connect to cache daemon at %s", sock)
	kv, err := connectCache(sock)
	if err == nil {
		logger.Infof("Successfully connected to cache daemon")
		return kv, nil
	}
	logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
	if startErr := startCacheDaemon(); startErr != nil {
		logger.Errorf("Failed to start cache daemon: %v", startErr)
	} else {
		logger.Infof("Cache daemon started successfully")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if kv, err = connectCache(sock); err == nil {
			logger.Infof("Successfully connected to cache daemon")
			return kv, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	logger.Errorf("Failed to connect to cache daemon after startup attempt: %v", err)
	return nil, err
}

func connectCache(sock string) (cache.KV, error) {
	conn, err := net.DialTimeout("unix", sock, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	_ = conn.Close()
	return cache.NewClient(sock), nil
}

// startCacheDaemon looks for the daemon next to this executable, then on
// PATH, then in the working directory.
func startCacheDaemon() error {
	var candidates []string
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), daemonBinary))
	}
	if path, err := exec.LookPath(daemonBinary); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./"+daemonBinary)

	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		cmd := exec.Command(c)
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return exec.ErrNotFound
}
