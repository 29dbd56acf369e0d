package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todo/internal/app"
	"todo/internal/config"
	"todo/internal/exitcode"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. It toggles completion, so running it
// twice on the same task reopens it.
type DoneCmd struct{}

func (c *DoneCmd) Name() string          { return "done" }
func (c *DoneCmd) Aliases() []string     { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string      { return "Toggle task completion" }
func (c *DoneCmd) Usage() string         { return "todo done <ref...>" }
func (c *DoneCmd) Requires() Requirement { return NeedsAuth }

func (c *DoneCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	ids, err := ResolveTaskRefs(refs, env.Tasks.Tasks())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	for _, id := range ids {
		// An #id from a later page is not in the synced collection yet.
		if _, err := env.Tasks.Locate(ctx, id); err != nil {
			return reportError(errOut, err)
		}
		task, err := env.Tasks.ToggleCompleted(ctx, id)
		if err != nil {
			return reportError(errOut, err)
		}
		if !cfg.Quiet {
			state := "open"
			if task.Completed {
				state = "done"
			}
			fmt.Fprintf(out, "#%d %s\n", task.ID, state)
		}
	}
	return exitcode.Success
}
