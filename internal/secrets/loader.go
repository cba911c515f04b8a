package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when none of the sources carry a value.
var ErrNotConfigured = errors.New("not configured")

// Source describes where a credential can come from. File wins over Value,
// Value wins over Env.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name  string
	Value string
	File  string
	// Env names an environment variable consulted last.
	Env string
}

// Load returns the trimmed credential resolved from src.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
		return "", fmt.Errorf("%s (%s): %w", name, env, ErrNotConfigured)
	}

	return "", fmt.Errorf("%s: %w", name, ErrNotConfigured)
}

// LoadAll resolves every source and reports all missing ones in a single
// error, so startup can name each absent credential at once.
func LoadAll(srcs ...Source) ([]string, error) {
	values := make([]string, len(srcs))
	var errs []error
	for i, src := range srcs {
		v, err := Load(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}
