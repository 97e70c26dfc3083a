// Command campaign-mcp-cache runs the shared response cache behind a Unix
// socket so several campaign-mcp processes see the same cached reads.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/config"
	"github.com/leonardcser/campaign-mcp/internal/logger"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	if err := run(); err != nil {
		logger.Errorf("cache daemon: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sock := cfg.DefaultSocketPath()

	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)

	l, err := net.Listen("unix", sock)
	if err != nil {
		return err
	}
	_ = os.Chmod(sock, 0o600)

	store, err := cache.Open(cache.Options{
		TTL:        cfg.CacheTTL,
		Persistent: cfg.CachePersistent,
		Directory:  cfg.CacheDir,
	})
	if err != nil {
		_ = l.Close()
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	logger.Infof("cache daemon listening on %s (dir=%s, ttl=%s)", sock, cfg.CacheDir, cfg.CacheTTL)
	err = cache.Serve(l, store)
	logger.Infof("cache daemon stopped")
	return err
}
