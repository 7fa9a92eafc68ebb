package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSecretLiteral(t *testing.T) {
	got, err := ResolveSecret("plain-value")
	if err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	if got != "plain-value" {
		t.Fatalf("got %q, want plain-value", got)
	}
}

func TestResolveSecretFileIndirection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(path, []byte("file-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveSecret("@" + path)
	if err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	if got != "file-secret" {
		t.Fatalf("got %q, want file-secret", got)
	}
}

func TestResolveSecretMissingFile(t *testing.T) {
	_, err := ResolveSecret("@/nonexistent/path")
	if err == nil {
		t.Fatalf("expected error for missing secret file")
	}
}
