// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"todo/internal/app"
	"todo/internal/config"
)

// Requirement is what a command needs from the dispatcher before it runs.
type Requirement int

const (
	// NeedsNothing commands run without a backend or session (help, version).
	NeedsNothing Requirement = iota

	// NeedsSession commands get a restored session that may be
	// unauthenticated (login, register, logout).
	NeedsSession

	// NeedsAuth commands get an authenticated session; the dispatcher
	// rejects the call otherwise.
	NeedsAuth
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// Requires reports what the command needs before it runs.
	Requires() Requirement

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths).
	// env is nil if Requires() returns NeedsNothing.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int
}
