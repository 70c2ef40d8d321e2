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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "tasksync help" }
func (c *HelpCmd) NeedsStore() bool  { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, store Store, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	writeAliases(out, DefaultRegistry)
	return exitcode.Success
}

// writeAliases prints the alternative names of every registered command.
func writeAliases(out io.Writer, r *Registry) {
	var lines []string
	for _, cmd := range r.All() {
		for _, alias := range cmd.Aliases() {
			lines = append(lines, fmt.Sprintf("  %-10s %s\n", alias, cmd.Name()))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprint(out, "\nAliases:\n")
	for _, l := range lines {
		fmt.Fprint(out, l)
	}
}

const helpText = `Usage:
  tasksync                                      List tasks in the current list
  tasksync list [common flags] [--open] [<list-id>]
  tasksync add [common flags] <text...>
  tasksync done [common flags] <n>              Toggle task n open/completed
  tasksync edit [common flags] <n> <text...>
  tasksync mv [common flags] <from> <to>
  tasksync rm [common flags] <n>
  tasksync watch [common flags] [--open]        Print the list on every change
  tasksync lists [common flags]
  tasksync createlist [common flags] <list-name>
  tasksync rmlist [common flags] [--force] <list-id>
  tasksync login [common flags]
  tasksync logout [common flags]
  tasksync help
  tasksync version

Tasks are referenced by the row number shown by list.

Common flags:
  --config <dir>     Override config directory
  --quiet            Suppress informational output
  --debug            Print debug logs to stderr
  --backend <name>   automerge (default) or google
  --list <id>        List to operate on
  --server <url>     tasksyncd URL for the automerge backend

Environment:
  TASKSYNC_BACKEND, TASKSYNC_LIST, TASKSYNC_SERVER, TASKSYNC_STORE,
  TASKSYNC_POLL_INTERVAL, TASKSYNC_SYNC_WINDOW
`
