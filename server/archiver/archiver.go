package archiver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
)

type Stats struct {
	Entries int
	Size    int64
}

// Archive stores every regular file under dir, except the archive itself,
// into a deflate compressed zip written at archivePath. Entry names are
// slash separated paths relative to dir.
func Archive(ctx context.Context, dir, archivePath string) (Stats, error) {
	var stats Stats

	archivePath, err := filepath.Abs(archivePath)
	if err != nil {
		return stats, err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return stats, err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return stats, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || path == archivePath {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if err := addFile(zw, path, filepath.ToSlash(rel), d); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}

		stats.Entries++
		return nil
	})
	if err != nil {
		zw.Close()
		return stats, err
	}

	if err := zw.Close(); err != nil {
		return stats, err
	}

	info, err := out.Stat()
	if err != nil {
		return stats, err
	}
	stats.Size = info.Size()

	slog.Info("archive written",
		slog.String("path", archivePath),
		slog.Int("entries", stats.Entries),
		slog.String("size", humanize.Bytes(uint64(stats.Size))),
	)

	return stats, nil
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
