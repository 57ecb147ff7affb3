package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func fakeExecutable(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	exe := fakeExecutable(t, `echo "2024.08.06"`)

	v, err := Version(context.Background(), exe)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if v != "2024.08.06" {
		t.Errorf("Expected version 2024.08.06, got %q", v)
	}
}

func TestUpdateExecutableFailure(t *testing.T) {
	exe := fakeExecutable(t, "echo 'ERROR: You installed yt-dlp with pip'\nexit 1\n")

	if err := UpdateExecutable(context.Background(), exe); err == nil {
		t.Error("Expected an error")
	}
}
