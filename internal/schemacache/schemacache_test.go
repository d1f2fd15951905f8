package schemacache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReturnsNilWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	if got := Load(dir, "0.1.0"); got != nil {
		t.Fatalf("Load() = %v, want nil", got)
	}
}

func TestLoadReturnsNilOnEmptyInputs(t *testing.T) {
	if got := Load("", "0.1.0"); got != nil {
		t.Fatalf("Load() with empty stateDir = %v, want nil", got)
	}
	if got := Load(t.TempDir(), ""); got != nil {
		t.Fatalf("Load() with empty version = %v, want nil", got)
	}
}

func TestLoadParsesCachedSchemas(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "schema-cache", "1.2.3")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"sandboxPolicy": ["read-only", "workspace-write"]}`
	if err := os.WriteFile(filepath.Join(cacheDir, schemaFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got := Load(dir, "1.2.3")
	if got == nil {
		t.Fatal("Load() = nil, want parsed map")
	}
	want := []string{"read-only", "workspace-write"}
	if len(got["sandboxPolicy"]) != len(want) || got["sandboxPolicy"][0] != want[0] {
		t.Fatalf("Load()[sandboxPolicy] = %v, want %v", got["sandboxPolicy"], want)
	}
}

func TestLoadIgnoresMalformedFile(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "schema-cache", "9.9.9")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, schemaFileName), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Load(dir, "9.9.9"); got != nil {
		t.Fatalf("Load() on malformed file = %v, want nil", got)
	}
}

func TestParseVersionToken(t *testing.T) {
	cases := map[string]string{
		"codex-cli 1.2.3\n":        "1.2.3",
		"codex 0.9.0-beta":         "0.9.0-beta",
		"":                         "",
		"\n":                       "",
		"codex version 1\nignored": "1",
	}
	for input, want := range cases {
		if got := parseVersionToken(input); got != want {
			t.Errorf("parseVersionToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDiscoverVersionEmptyBinary(t *testing.T) {
	if got := DiscoverVersion(""); got != "" {
		t.Fatalf("DiscoverVersion(\"\") = %q, want \"\"", got)
	}
}

func TestDiscoverVersionNonexistentBinary(t *testing.T) {
	if got := DiscoverVersion("/nonexistent/path/to/codex-binary-xyz"); got != "" {
		t.Fatalf("DiscoverVersion() on bad binary = %q, want \"\"", got)
	}
}
