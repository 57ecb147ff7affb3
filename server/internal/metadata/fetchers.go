package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
)

// Fetcher queries playlist metadata without downloading anything.
type Fetcher struct {
	Executable string
}

func NewFetcher(executable string) *Fetcher {
	return &Fetcher{Executable: executable}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Playlist, error) {
	cmd := exec.CommandContext(ctx, f.Executable,
		url,
		"--flat-playlist",
		"--yes-playlist",
		"--no-warnings",
		"-J",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("retrieving metadata", slog.String("url", url))

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}

	var p Playlist
	if err := json.NewDecoder(&stdout).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if p.Type == "" {
		return nil, errors.New("probably not a valid URL")
	}

	slog.Info("decoded metadata",
		slog.String("url", url),
		slog.String("title", p.DisplayTitle()),
		slog.Int("count", p.Count()),
	)

	return &p, nil
}
