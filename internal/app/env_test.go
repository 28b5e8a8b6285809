package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	os.Unsetenv("XM_FOO")
	os.Unsetenv("XM_BAR")
	os.Unsetenv("XM_BAZ")
	t.Cleanup(func() {
		os.Unsetenv("XM_FOO")
		os.Unsetenv("XM_BAR")
		os.Unsetenv("XM_BAZ")
	})

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "\n# sample\nXM_FOO=alpha\nexport XM_BAR=\"beta # kept\"\nXM_BAZ=gamma # dropped\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("XM_FOO"); got != "alpha" {
		t.Fatalf("XM_FOO=%q, want alpha", got)
	}
	if got := os.Getenv("XM_BAR"); got != "beta # kept" {
		t.Fatalf("XM_BAR=%q, want quoted value", got)
	}
	if got := os.Getenv("XM_BAZ"); got != "gamma" {
		t.Fatalf("XM_BAZ=%q, want gamma", got)
	}
}

func TestLoadEnvFiles_OverrideOrderAndPreset(t *testing.T) {
	t.Setenv("XM_PRESET", "process")
	os.Unsetenv("XM_K")
	t.Cleanup(func() { os.Unsetenv("XM_K") })
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("XM_K=first\nXM_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("XM_K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("XM_K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
	if got := os.Getenv("XM_PRESET"); got != "process" {
		t.Fatalf("process env must win over dotenv, got %q", got)
	}
}
