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
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasksync` (no args) and `tasksync list [<list-id>]`.
type ListCmd struct {
	openOnly bool
}

// SetOpenOnly hides completed tasks (for testing).
func (c *ListCmd) SetOpenOnly(open bool) {
	c.openOnly = open
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "tasksync list [common flags] [--open] [<list-id>]" }
func (c *ListCmd) NeedsStore() bool  { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.openOnly, "open", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	listID := cfg.List()
	switch len(args) {
	case 0:
	case 1:
		listID = args[0]
	default:
		fmt.Fprintln(errOut, "error: too many arguments")
		return exitcode.UserError
	}

	s, err := openSessionFor(ctx, cfg, store, listID, errOut)
	if err != nil {
		return report(errOut, err)
	}
	defer s.close()

	list, _ := s.current()
	output.FormatList(out, list, c.openOnly)

	open, done := list.Counts()
	if open == 0 && (c.openOnly || done == 0) && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	return exitcode.Success
}
