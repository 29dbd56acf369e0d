package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/pflag"

	"todo/internal/app"
	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/taskstore"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command, which is also what `todo` with no
// args runs.
type ListCmd struct {
	skip  int
	limit int
}

// SetPage sets the page window (for testing).
func (c *ListCmd) SetPage(skip, limit int) {
	c.skip = skip
	c.limit = limit
}

func (c *ListCmd) Name() string          { return "list" }
func (c *ListCmd) Aliases() []string     { return []string{"ls"} }
func (c *ListCmd) Synopsis() string      { return "List tasks" }
func (c *ListCmd) Usage() string         { return "todo list [--skip <n>] [--limit <n>]" }
func (c *ListCmd) Requires() Requirement { return NeedsAuth }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.skip, "skip", 0, "")
	fs.IntVar(&c.limit, "limit", taskstore.DefaultLimit, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.skip < 0 {
		fmt.Fprintf(errOut, "error: invalid skip: %d\n", c.skip)
		return exitcode.UserError
	}
	limit := c.limit
	if limit <= 0 {
		limit = taskstore.DefaultLimit
	}

	tasks, err := env.Tasks.ListTasks(ctx, c.skip, limit)
	if err != nil {
		return reportError(errOut, err)
	}
	// Later commands resolve positions against the first page, so tasks
	// on later pages are labelled with their ID.
	for i, task := range tasks {
		if c.skip > 0 {
			output.FormatTaskRef(out, "#"+strconv.Itoa(task.ID), task)
			continue
		}
		output.FormatTask(out, i+1, task)
	}
	return exitcode.Success
}
