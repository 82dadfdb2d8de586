package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func secretFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return path
}

func TestResolveSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		file    *string
		want    string
		wantErr bool
	}{
		{name: "neither set", want: ""},
		{name: "env only", env: "env-pass", want: "env-pass"},
		{name: "file only", file: strPtr("file-pass\n"), want: "file-pass"},
		{name: "file wins", env: "env-pass", file: strPtr("file-pass"), want: "file-pass"},
		{name: "whitespace trimmed", file: strPtr("  spaced  \n\n"), want: "spaced"},
		{name: "empty file", file: strPtr(""), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STEPWISE_TEST_SECRET", tt.env)
			t.Setenv("STEPWISE_TEST_SECRET_FILE", "")
			if tt.file != nil {
				t.Setenv("STEPWISE_TEST_SECRET_FILE", secretFile(t, *tt.file))
			}
			got, err := ResolveSecret("STEPWISE_TEST_SECRET")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSecretMissingFile(t *testing.T) {
	t.Setenv("STEPWISE_TEST_SECRET_FILE", "/nonexistent/stepwise/secret")
	_, err := ResolveSecret("STEPWISE_TEST_SECRET")
	if err == nil {
		t.Fatal("expected error when file does not exist")
	}
	if !strings.Contains(err.Error(), "STEPWISE_TEST_SECRET_FILE") {
		t.Errorf("expected variable name in error, got %v", err)
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("STEPWISE_A", "alpha")
	t.Setenv("STEPWISE_A_FILE", "")
	t.Setenv("STEPWISE_B", "")
	t.Setenv("STEPWISE_B_FILE", secretFile(t, "bravo\n"))

	got, err := ResolveSecrets("STEPWISE_A", "STEPWISE_B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "alpha" || got[1] != "bravo" {
		t.Errorf("got %q", got)
	}

	t.Setenv("STEPWISE_B_FILE", "/nonexistent/stepwise/secret")
	if _, err := ResolveSecrets("STEPWISE_A", "STEPWISE_B"); err == nil {
		t.Error("expected error from the second secret")
	}
}

func strPtr(s string) *string { return &s }
