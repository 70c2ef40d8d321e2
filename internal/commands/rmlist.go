package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&RmListCmd{})
}

// RmListCmd implements the rmlist command.
type RmListCmd struct {
	force bool
}

// SetForce sets the force flag (for testing).
func (c *RmListCmd) SetForce(force bool) {
	c.force = force
}

func (c *RmListCmd) Name() string      { return "rmlist" }
func (c *RmListCmd) Aliases() []string { return nil }
func (c *RmListCmd) Synopsis() string  { return "Delete a list" }
func (c *RmListCmd) Usage() string     { return "tasksync rmlist [common flags] [--force] <list-id>" }
func (c *RmListCmd) NeedsStore() bool  { return true }

func (c *RmListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "")
}

func (c *RmListCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(errOut, "error: list id required")
		return exitcode.UserError
	}
	listID := args[0]

	// Cannot delete default list
	if listID == cfg.DefaultList() {
		fmt.Fprintln(errOut, "error: cannot delete default list")
		return exitcode.UserError
	}

	lm, ok := listManager(store, errOut)
	if !ok {
		return exitcode.UserError
	}

	// Check if list is empty (unless --force)
	if !c.force {
		s, err := openSessionFor(ctx, cfg, store, listID, errOut)
		if err != nil {
			return report(errOut, err)
		}
		list, _ := s.current()
		s.close()
		if open, _ := list.Counts(); open > 0 {
			fmt.Fprintln(errOut, "error: list not empty (use --force)")
			return exitcode.UserError
		}
	}

	if err := lm.DeleteList(ctx, listID); err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
