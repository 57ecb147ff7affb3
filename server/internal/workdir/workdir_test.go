package workdir

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var hex8 = regexp.MustCompile(`^[0-9a-f]{8}$`)

func TestShortID(t *testing.T) {
	for i := 0; i < 16; i++ {
		if id := ShortID(); !hex8.MatchString(id) {
			t.Errorf("ShortID() = %q, expected 8 hex characters", id)
		}
	}
}

func TestAcquireAndRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")

	d, err := Acquire(root, `Test: Mix/2024`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if filepath.Dir(d.Path) != root {
		t.Errorf("Expected directory under %s, got %s", root, d.Path)
	}

	base := filepath.Base(d.Path)
	if !strings.HasPrefix(base, "Test_ Mix_2024_"+d.ID+"_") {
		t.Errorf("Unexpected directory name %s", base)
	}

	if err := os.WriteFile(filepath.Join(d.Path, "file"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := d.Release(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := d.Release(); err != nil {
		t.Fatalf("Expected second release to be a no-op, got %v", err)
	}

	if _, err := os.Stat(d.Path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed", d.Path)
	}
}

func TestAcquireIsUnique(t *testing.T) {
	root := t.TempDir()

	a, err := Acquire(root, "same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Acquire(root, "same")
	if err != nil {
		t.Fatal(err)
	}

	if a.Path == b.Path || a.ID == b.ID {
		t.Error("Expected distinct working directories")
	}
}
