// Package exitcode defines the process exit codes of the todo CLI.
package exitcode

const (
	Success = 0

	// UserError covers bad arguments, unknown commands, out-of-range task
	// references and tasks the server does not know.
	UserError = 1

	// AuthError means there is no usable session: not logged in, rejected
	// credentials, a revoked token or an unreadable key store.
	AuthError = 2

	// BackendError is any other failure talking to the remote API,
	// including timeouts.
	BackendError = 3
)
