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
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	password string
	google   bool
}

// SetPassword sets the password (for testing).
func (c *LoginCmd) SetPassword(pw string) {
	c.password = pw
}

// SetGoogle selects Google login (for testing).
func (c *LoginCmd) SetGoogle(google bool) {
	c.google = google
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Log in with email and password, or with Google" }

func (c *LoginCmd) Usage() string {
	return "todo login [--password <pw>] <email> | todo login --google"
}

func (c *LoginCmd) Requires() Requirement { return NeedsSession }

func (c *LoginCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "")
	fs.BoolVar(&c.google, "google", false, "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	if env.Session.IsAuthenticated() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if c.google {
		if len(args) > 0 {
			fmt.Fprintln(errOut, "error: --google takes no email")
			return exitcode.UserError
		}
		if !cfg.HasGoogleClient() {
			printGoogleSetup(errOut, cfg)
			return exitcode.AuthError
		}
		if !env.Session.LoginWithGoogle(ctx) {
			fmt.Fprintln(errOut, "error: google login failed (run with --debug for details)")
			return exitcode.AuthError
		}
		return c.done(cfg, env, out)
	}

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

	if !env.Session.Login(ctx, email, password) {
		fmt.Fprintln(errOut, "error: login failed (check email and password)")
		return exitcode.AuthError
	}
	return c.done(cfg, env, out)
}

func (c *LoginCmd) done(cfg *config.Config, env *app.Env, out io.Writer) int {
	if !cfg.Quiet {
		if user, ok := env.Session.User(); ok {
			fmt.Fprintf(out, "logged in as %s\n", user.Email)
		}
	}
	return exitcode.Success
}

func printGoogleSetup(errOut io.Writer, cfg *config.Config) {
	fmt.Fprintf(errOut, "error: %s not found\n\n", cfg.GoogleClientPath())
	fmt.Fprintln(errOut, "To log in with Google, you need OAuth credentials:")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(errOut, "2. Create OAuth 2.0 credentials:")
	fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(errOut, "   - Download the JSON file")
	fmt.Fprintln(errOut, "3. Save it as:")
	fmt.Fprintf(errOut, "   %s\n", cfg.GoogleClientPath())
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'todo login --google' again.")
}
