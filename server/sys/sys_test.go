package sys

import (
	"path/filepath"
	"testing"
)

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if free == 0 {
		t.Error("Expected some free space in the temp dir")
	}
}

func TestFreeSpaceMissingPath(t *testing.T) {
	if _, err := FreeSpace(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected an error for a missing path")
	}
}
