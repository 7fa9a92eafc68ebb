// Package config holds helpers for cmd/server's stdlib flag-based
// configuration (no cobra/pflag introduced); flag parsing itself stays in
// each command's main.
package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns value verbatim, unless it begins with "@" in which
// case the remainder is treated as a file path and its trimmed contents are
// returned instead — the "paths-to-files indirection" spec.md §6
// recommends for SFU key/secret so they need not be passed as literal
// command-line arguments.
func ResolveSecret(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	path := value[1:]
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read secret file %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
