package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd prints the list every time it changes, until interrupted.
type WatchCmd struct {
	openOnly bool
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Print the list whenever it changes" }
func (c *WatchCmd) Usage() string     { return "tasksync watch [common flags] [--open]" }
func (c *WatchCmd) NeedsStore() bool  { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.openOnly, "open", false, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	s, err := openSession(ctx, cfg, store, errOut)
	if err != nil {
		return report(errOut, err)
	}
	defer s.close()

	followCtx, stop := context.WithCancel(ctx)
	defer stop()
	go store.Follow(followCtx)

	list, version := s.current()
	for {
		output.FormatList(out, list, c.openOnly)
		fmt.Fprintln(out)

		list, version, err = s.waitAfter(ctx, version)
		if errors.Is(err, context.Canceled) {
			return exitcode.Success
		}
		if err != nil {
			return report(errOut, err)
		}
	}
}
