package commands

import (
	"errors"
	"fmt"
	"io"

	"todo/internal/exitcode"
	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/taskstore"
)

// notLoggedIn is printed whenever a command needs a session it does not have.
const notLoggedIn = "error: not logged in (run: todo login)"

// reportError prints err on errOut and returns the matching exit code.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, taskstore.ErrNoToken),
		errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, service.ErrUnauthorized):
		fmt.Fprintln(errOut, notLoggedIn)
		return exitcode.AuthError
	case errors.Is(err, taskstore.ErrEmptyTitle):
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	case errors.Is(err, taskstore.ErrNotFound), errors.Is(err, service.ErrNotFound):
		fmt.Fprintln(errOut, "error: task not found")
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}
