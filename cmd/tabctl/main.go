// Command tabctl administers a drink tab directly against its storage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drinktab/adapters/factory"
	"drinktab/config"
	"drinktab/engine"
	"drinktab/tab"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tabctl",
		Short:         "Manage users, inventory and achievements of a drink tab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "JSON config file (default: environment only)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(usersCmd(opts))
	cmd.AddCommand(itemsCmd(opts))
	cmd.AddCommand(purchaseCmd(opts))
	cmd.AddCommand(depositCmd(opts))
	cmd.AddCommand(evaluateCmd(opts))
	cmd.AddCommand(statsCmd(opts))
	cmd.AddCommand(badgesCmd(opts))
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openService loads configuration and opens the configured storage. The
// returned func closes both.
func openService(ctx context.Context, opts *rootOptions) (*engine.TabService, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFromFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loc, err := time.LoadLocation(cfg.Tab.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone %q: %w", cfg.Tab.Timezone, err)
	}

	storage, closeStorage, err := factory.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	svc := tab.New(
		tab.WithStorage(storage),
		tab.WithDispatchMode(engine.DispatchSync),
		tab.WithLocation(loc),
		tab.WithLogger(logger),
	)
	return svc, func() {
		svc.Close()
		if err := closeStorage(); err != nil {
			logger.Error("closing storage failed", "error", err)
		}
	}, nil
}

// withService runs fn against a freshly opened service.
func withService(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, svc *engine.TabService) error) error {
	ctx := cmd.Context()
	svc, closeFn, err := openService(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}
