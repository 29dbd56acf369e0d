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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string          { return "help" }
func (c *HelpCmd) Aliases() []string     { return nil }
func (c *HelpCmd) Synopsis() string      { return "Print usage" }
func (c *HelpCmd) Usage() string         { return "todo help" }
func (c *HelpCmd) Requires() Requirement { return NeedsNothing }

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  todo                                               List tasks
  todo list [common flags] [--skip <n>] [--limit <n>]
  todo add [common flags] [--description <text>] <title...>
  todo create [common flags] [--description <text>] <title...>
  todo edit [common flags] [--title <text>] [--description <text>] <ref>
  todo done [common flags] <ref...>                  Toggle completion
  todo rm [common flags] <ref...>
  todo login [common flags] [--password <pw>] <email>
  todo login [common flags] --google
  todo register [common flags] [--password <pw>] [--login] <email>
  todo logout [common flags]
  todo whoami [common flags]
  todo profile [common flags] [--name --phone --address --document --picture --lat --lon]
  todo help
  todo version

Task references:
  <n>              Position as printed by "todo list" (first page)
  #<id>            Server task ID

Common flags:
  --config <dir>   Override config directory
  --api-url <url>  Override the API base URL
  -q, --quiet      Suppress informational output
  --debug          Print debug logs to stderr
`
