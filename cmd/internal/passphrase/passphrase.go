// Package passphrase resolves the government keystore passphrase for the
// daemon, preferring the environment over an interactive prompt.
package passphrase

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Resolve returns the keystore passphrase. A set environment variable wins;
// otherwise the operator is prompted when stdin is a terminal. Whitespace-only
// values are rejected so a keystore is never left effectively unprotected.
func Resolve(envVar string) (string, error) {
	envVar = strings.TrimSpace(envVar)
	if envVar != "" {
		if value, ok := os.LookupEnv(envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", envVar)
			}
			return value, nil
		}
	}
	return prompt(envVar)
}

func prompt(envVar string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", envVar)
		}
		return "", fmt.Errorf("keystore passphrase required and no terminal available")
	}
	fmt.Fprint(os.Stderr, "Enter government keystore passphrase: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(secret)) == "" {
		return "", fmt.Errorf("keystore passphrase cannot be empty")
	}
	return string(secret), nil
}
