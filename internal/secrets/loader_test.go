package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  s3cret \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(Source{Name: "api key", File: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("Load = %q, want trimmed secret", got)
	}
}

func TestLoadFilePrecedesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(Source{Value: "inline", File: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("Load = %q, want file to win", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatal("empty source accepted")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Source{Name: "api key", File: empty}); err == nil {
		t.Fatal("blank file accepted")
	}

	if _, err := Load(Source{Name: "api key", File: "/no/such/file"}); err == nil {
		t.Fatal("missing file accepted")
	}
}
