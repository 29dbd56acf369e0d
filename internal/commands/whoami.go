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
	Register(&WhoamiCmd{})
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string          { return "whoami" }
func (c *WhoamiCmd) Aliases() []string     { return nil }
func (c *WhoamiCmd) Synopsis() string      { return "Print the logged-in email" }
func (c *WhoamiCmd) Usage() string         { return "todo whoami" }
func (c *WhoamiCmd) Requires() Requirement { return NeedsAuth }

func (c *WhoamiCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	user, ok := env.Session.User()
	if !ok {
		fmt.Fprintln(errOut, notLoggedIn)
		return exitcode.AuthError
	}
	fmt.Fprintln(out, user.Email)
	return exitcode.Success
}
