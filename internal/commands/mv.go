package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&MvCmd{})
}

// MvCmd implements the mv command. Moves are free-form: a task may be placed
// on either side of the completed block.
type MvCmd struct{}

func (c *MvCmd) Name() string      { return "mv" }
func (c *MvCmd) Aliases() []string { return []string{"move"} }
func (c *MvCmd) Synopsis() string  { return "Move a task to another row" }
func (c *MvCmd) Usage() string     { return "tasksync mv [common flags] <from> <to>" }
func (c *MvCmd) NeedsStore() bool  { return true }

func (c *MvCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MvCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "error: source and destination rows required")
		return exitcode.UserError
	}
	from, err := parseRow(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	to, err := parseRow(args[1])
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	s, err := openSession(ctx, cfg, store, errOut)
	if err != nil {
		return report(errOut, err)
	}
	defer s.close()

	list, _ := s.current()
	for _, row := range []int{from, to} {
		if _, err := taskAt(list, row); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
	}

	if from != to {
		_, err = s.mutate(ctx, func(ctx context.Context, ctl *controller.Controller) error {
			return ctl.MoveTask(ctx, from-1, to-1)
		})
		if errors.Is(err, service.ErrNotFound) {
			// The list changed under us.
			fmt.Fprintf(errOut, "error: task number out of range: %d\n", from)
			return exitcode.UserError
		}
		if err != nil {
			return report(errOut, err)
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
