package workdir

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/playlistzip/playlist-zip/server/internal/sanitize"
)

// longest title prefix kept in the directory name
const maxTitleLength = 64

// Dir is a working directory owned by exactly one run.
type Dir struct {
	ID   string
	Path string

	once sync.Once
	err  error
}

// ShortID returns the first group of a random UUID: 8 hex characters.
func ShortID() string {
	return strings.Split(uuid.NewString(), "-")[0]
}

// Acquire creates a fresh directory under root (the OS temp dir when
// empty) named after the sanitized title and a random identifier.
func Acquire(root, title string) (*Dir, error) {
	id := ShortID()

	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work root: %w", err)
		}
	}

	prefix := fmt.Sprintf("%s_%s_", sanitize.Title(title, maxTitleLength), id)

	path, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	slog.Debug("acquired working directory", slog.String("id", id), slog.String("path", path))

	return &Dir{ID: id, Path: path}, nil
}

// Release removes the directory and everything in it. Safe to call more
// than once.
func (d *Dir) Release() error {
	d.once.Do(func() {
		d.err = os.RemoveAll(d.Path)
		if d.err != nil {
			slog.Error("failed to release working directory",
				slog.String("path", d.Path),
				slog.Any("err", d.err),
			)
			return
		}
		slog.Debug("released working directory", slog.String("id", d.ID))
	})
	return d.err
}
