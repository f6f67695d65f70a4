package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetSecret(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		fileContent  string
		filePath     string
		defaultValue string
		want         string
	}{
		{
			name:         "direct environment variable",
			envValue:     "direct-value",
			defaultValue: "default",
			want:         "direct-value",
		},
		{
			name:         "default when nothing is set",
			defaultValue: "default-value",
			want:         "default-value",
		},
		{
			name: "empty default",
			want: "",
		},
		{
			name:         "file referenced by _FILE",
			fileContent:  "file-content",
			defaultValue: "default",
			want:         "file-content",
		},
		{
			name:         "file content is trimmed",
			fileContent:  "  123456:ABC-token\n\t",
			defaultValue: "default",
			want:         "123456:ABC-token",
		},
		{
			name:         "environment wins over file",
			envValue:     "direct-value",
			fileContent:  "file-content",
			defaultValue: "default",
			want:         "direct-value",
		},
		{
			name:         "default when file is missing",
			filePath:     "/nonexistent/path/to/secret",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SECRET", tt.envValue)
			t.Setenv("TEST_SECRET_FILE", "")

			switch {
			case tt.fileContent != "":
				t.Setenv("TEST_SECRET_FILE", writeSecret(t, tt.fileContent))
			case tt.filePath != "":
				t.Setenv("TEST_SECRET_FILE", tt.filePath)
			}

			assert.Equal(t, tt.want, GetSecret("TEST_SECRET", tt.defaultValue))
		})
	}
}

func TestGetSecret_DockerSecret(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN_FILE", writeSecret(t, "123456:ABC-def"))

	assert.Equal(t, "123456:ABC-def", GetSecret("TELEGRAM_BOT_TOKEN", ""))
}
