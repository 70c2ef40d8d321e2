// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

// Store is the backend a command works against.
type Store interface {
	service.SyncedStore

	// Follow keeps pulling remote changes until ctx is done.
	Follow(ctx context.Context)

	// Close flushes local state and releases the store.
	Close(ctx context.Context) error
}

// ListManager is implemented by stores that can enumerate and manage lists.
type ListManager interface {
	Lists(ctx context.Context) ([]service.TaskList, error)
	NewList(ctx context.Context, name string) (service.TaskList, error)
	DeleteList(ctx context.Context, listID string) error
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsStore returns true if the command works on a backend store.
	// Commands like help, version, login, logout return false.
	NeedsStore() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, backend).
	// store is nil if NeedsStore() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int
}
