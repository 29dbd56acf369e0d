package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword prompts on errOut and reads a password from the terminal
// with echo disabled. Tests replace it.
var readPassword = func(errOut io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt (use --password)")
	}

	fmt.Fprint(errOut, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// passwordOrPrompt returns flagValue if set, otherwise prompts.
func passwordOrPrompt(flagValue string, errOut io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return readPassword(errOut)
}
