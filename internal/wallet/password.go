package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// PasswordEnvVar is checked first when discovering the wallet password.
const PasswordEnvVar = "WALLET_PASSWORD"

// ErrNoPassword is returned when no password source is available.
var ErrNoPassword = errors.New(
	"wallet password not found: set " + PasswordEnvVar +
		" or create ~/.dcastake/.wallet_password")

// Password discovers the wallet password: the environment variable first,
// then the password file in the agent's home directory.
func Password() (string, error) {
	if pw := os.Getenv(PasswordEnvVar); pw != "" {
		return pw, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", ErrNoPassword
	}
	data, err := os.ReadFile(filepath.Join(home, ".dcastake", ".wallet_password"))
	if err != nil {
		return "", ErrNoPassword
	}
	return strings.TrimSpace(string(data)), nil
}
