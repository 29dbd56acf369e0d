package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"todo/internal/app"
	"todo/internal/config"
	"todo/internal/exitcode"
)

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	password string
	login    bool
}

// SetPassword sets the password (for testing).
func (c *RegisterCmd) SetPassword(pw string) {
	c.password = pw
}

// SetLogin makes the command log in after registering (for testing).
func (c *RegisterCmd) SetLogin(login bool) {
	c.login = login
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account" }

func (c *RegisterCmd) Usage() string {
	return "todo register [--password <pw>] [--login] <email>"
}

func (c *RegisterCmd) Requires() Requirement { return NeedsSession }

func (c *RegisterCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "")
	fs.BoolVar(&c.login, "login", false, "")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(errOut, "error: email required")
		return exitcode.UserError
	}
	email := strings.TrimSpace(args[0])
	password, err := passwordOrPrompt(c.password, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	user, ok := env.Session.Register(ctx, email, password)
	if !ok {
		fmt.Fprintln(errOut, "error: registration failed (email may already be registered)")
		return exitcode.UserError
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "registered %s\n", user.Email)
	}

	if c.login {
		if !env.Session.Login(ctx, email, password) {
			fmt.Fprintln(errOut, "error: login failed")
			return exitcode.AuthError
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "logged in as %s\n", user.Email)
		}
	}
	return exitcode.Success
}
