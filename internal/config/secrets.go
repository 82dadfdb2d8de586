package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the value of envName. When envName+"_FILE" is set,
// the secret is read from that path instead and surrounding whitespace is
// trimmed. Neither set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			// The path is reported, never the content.
			return "", fmt.Errorf("read secret %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// ResolveSecrets resolves each name in order and stops at the first failure.
func ResolveSecrets(names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		v, err := ResolveSecret(name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
