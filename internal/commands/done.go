package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. Running it on a completed task
// reopens it.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string  { return "Toggle a task between open and completed" }
func (c *DoneCmd) Usage() string     { return "tasksync done [common flags] <n>" }
func (c *DoneCmd) NeedsStore() bool  { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	row, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	return onTask(ctx, cfg, store, row, out, errOut, func(ctx context.Context, ctl *controller.Controller, task service.Task) error {
		return ctl.ToggleCompletion(ctx, task.ID)
	})
}

// onTask resolves row against the current list and runs op on it, waiting
// for the store to echo the change.
func onTask(ctx context.Context, cfg *config.Config, store Store, row int, out, errOut io.Writer,
	op func(context.Context, *controller.Controller, service.Task) error) int {
	s, err := openSession(ctx, cfg, store, errOut)
	if err != nil {
		return report(errOut, err)
	}
	defer s.close()

	list, _ := s.current()
	task, err := taskAt(list, row)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	_, err = s.mutate(ctx, func(ctx context.Context, ctl *controller.Controller) error {
		return op(ctx, ctl, task)
	})
	if err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
