package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ListsCmd{})
}

// ListsCmd implements the lists command.
type ListsCmd struct{}

func (c *ListsCmd) Name() string      { return "lists" }
func (c *ListsCmd) Aliases() []string { return nil }
func (c *ListsCmd) Synopsis() string  { return "Print all lists" }
func (c *ListsCmd) Usage() string     { return "tasksync lists [common flags]" }
func (c *ListsCmd) NeedsStore() bool  { return true }

func (c *ListsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListsCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	lm, ok := listManager(store, errOut)
	if !ok {
		return exitcode.UserError
	}

	lists, err := lm.Lists(ctx)
	if err != nil {
		return report(errOut, err)
	}
	for _, list := range lists {
		output.FormatListName(out, list, list.ID == cfg.List())
	}
	return exitcode.Success
}

// listManager returns store as a ListManager, printing an error if the
// backend can't manage lists.
func listManager(store Store, errOut io.Writer) (ListManager, bool) {
	lm, ok := store.(ListManager)
	if !ok {
		fmt.Fprintln(errOut, "error: backend does not support list management")
	}
	return lm, ok
}
