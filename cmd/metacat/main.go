// Command metacat is the metacat CLI. It drives the same page controllers
// the daemon renders, printing their views to the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/config"
	"github.com/GoCodeAlone/metacat/gateway"
	"github.com/GoCodeAlone/metacat/gateway/mock"
	"github.com/GoCodeAlone/metacat/notify"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the root's persistent flags.
type options struct {
	configPath string
	dataDir    string
	offline    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "metacat",
		Short:         "Browse metadata catalog users, feeds and services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory for local state (overrides data_dir)")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use the built-in demo catalog instead of the gateway")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of errors only")

	cmd.AddCommand(newUserCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newRecentCmd(opts))
	cmd.AddCommand(newConnectionCmd(opts))
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newUpdateCmd())
	return cmd
}

// env is what a command needs to talk to the catalog.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	gw      catalog.Gateway
	session *session.Session
	toasts  *notify.Center
	unsub   func()
}

// newEnv loads the config and connects to the catalog. Toasts are printed
// to the command's stderr as they are raised.
func newEnv(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}

	level := slog.LevelError
	if opts.verbose {
		level = cfg.SlogLevel()
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	var gw catalog.Gateway
	if opts.offline {
		gw = mock.Demo()
	} else {
		gw = gateway.New(cfg.Gateway.URL, cfg.Gateway.Token, cfg.Gateway.Timeout, logger)
	}

	e := &env{
		cfg:     cfg,
		logger:  logger,
		gw:      gw,
		session: session.New(!cfg.Auth.Disabled),
		toasts:  notify.NewCenter(logger),
	}
	stderr := cmd.ErrOrStderr()
	e.unsub = e.toasts.Subscribe(func(_ context.Context, t notify.Toast) {
		fmt.Fprintf(stderr, "! %s\n", t.Message) //nolint:errcheck
	})

	if err := e.session.Refresh(cmd.Context(), gw); err != nil {
		logger.Debug("no logged in user", slog.Any("err", err))
	}
	return e, nil
}

func (e *env) close() {
	e.unsub()
}

// openRecent opens the recent store under the data directory.
func (e *env) openRecent() (*recent.Store, error) {
	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return recent.Open(filepath.Join(e.cfg.DataDir, "recent.db"), e.cfg.Search.RecentLimit)
}

// touchRecent records an item, logging instead of failing the command.
func (e *env) touchRecent(kind recent.Kind, key, text string, meta map[string]string) {
	store, err := e.openRecent()
	if err != nil {
		e.logger.Warn("open recent store", slog.Any("err", err))
		return
	}
	defer store.Close() //nolint:errcheck
	if err := store.Touch(kind, key, text, meta); err != nil {
		e.logger.Warn("record recent", slog.String("key", key), slog.Any("err", err))
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
