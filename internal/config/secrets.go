package config

import (
	"os"
	"strings"
)

// GetSecret returns the value of envVar, falling back to the contents of the
// file named by envVar_FILE (Docker and Kubernetes secrets), then to
// defaultValue. File contents are trimmed.
func GetSecret(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}

	if filePath := os.Getenv(envVar + "_FILE"); filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return defaultValue
}
