// Command metacatd is the metacat web daemon. It serves the user and
// service connection pages from the YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/config"
	"github.com/GoCodeAlone/metacat/gateway"
	"github.com/GoCodeAlone/metacat/gateway/mock"
	"github.com/GoCodeAlone/metacat/internal/version"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/web"
)

var (
	configPath = flag.String("config", "", "path to config file (defaults when empty)")
	addr       = flag.String("addr", "", "listen address (overrides server.addr)")
	offline    = flag.Bool("offline", false, "serve the built-in demo catalog instead of the gateway")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	logger.Info("starting metacatd",
		"version", version.Version,
		"commit", version.Commit,
	)

	var gw catalog.Gateway
	if *offline {
		logger.Info("serving the demo catalog")
		gw = mock.Demo()
	} else {
		gw = gateway.New(cfg.Gateway.URL, cfg.Gateway.Token, cfg.Gateway.Timeout, logger)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}
	store, err := recent.Open(filepath.Join(cfg.DataDir, "recent.db"), cfg.Search.RecentLimit)
	if err != nil {
		log.Fatalf("Failed to open recent store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	srv := web.New(*cfg, gw, version.Version, logger)
	srv.SetRecentStore(store)

	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if err := srv.RefreshSession(ctx); err != nil {
		logger.Warn("could not load the catalog user behind the token", "error", err)
	}
	cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("metacat running on http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	fmt.Println("Shutting down...")
	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}
