// Package secrets resolves API keys and other credentials from files or
// inline configuration. Key material never appears in logs; only the
// source name does.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a secret comes from.
type Source struct {
	// Name appears in error messages for context.
	Name string
	// Value is an inline secret from configuration or flags.
	Value string
	// File points to a file holding the secret. When set it takes
	// precedence over Value.
	File string
}

// Load resolves the secret, trimmed of surrounding whitespace. An error is
// returned when neither File nor Value yield a usable value.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		src.Value = string(data)
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		if file != "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return "", fmt.Errorf("%s is not configured", name)
	}

	return secret, nil
}
