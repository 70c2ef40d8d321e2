// Package main is the entry point for the tasksync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tasksync/internal/backend/amstore"
	"tasksync/internal/backend/googletasks"
	"tasksync/internal/cli"
	"tasksync/internal/commands"
	"tasksync/internal/config"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, openStore)

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// openStore opens the backend selected by cfg.
func openStore(ctx context.Context, cfg *config.Config) (commands.Store, error) {
	log := cfg.Logger(os.Stderr)

	if cfg.Backend == config.BackendGoogle {
		client, err := googletasks.New(ctx, cfg,
			googletasks.WithPollInterval(cfg.PollInterval),
			googletasks.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}
	session, err := amstore.OpenSession(ctx, amstore.SessionConfig{
		Path:      cfg.ReplicaPath(),
		ServerURL: cfg.ServerURL,
		StoreName: cfg.Store,
		Window:    cfg.SyncWindow,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
