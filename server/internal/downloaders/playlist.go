package downloaders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/playlistzip/playlist-zip/server/internal/hook"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const (
	DefaultFormat            = "bestvideo+bestaudio/best"
	DefaultMergeOutputFormat = "mp4"

	playlistFilename = "%(playlist_index)03d - %(title)s.%(ext)s"
	singleFilename   = "001 - %(title)s.%(ext)s"
)

// one JSON document per progress report
const progressTemplate = `download:{"progress":%(progress)j,"id":%(info.id)j}`

// PlaylistDownloader downloads every item of a playlist with yt-dlp,
// continuing past items that fail.
type PlaylistDownloader struct {
	Executable        string
	Format            string
	MergeOutputFormat string
}

func NewPlaylistDownloader(executable, format, mergeOutputFormat string) *PlaylistDownloader {
	if format == "" {
		format = DefaultFormat
	}
	if mergeOutputFormat == "" {
		mergeOutputFormat = DefaultMergeOutputFormat
	}
	return &PlaylistDownloader{
		Executable:        executable,
		Format:            format,
		MergeOutputFormat: mergeOutputFormat,
	}
}

func (p *PlaylistDownloader) Download(ctx context.Context, req Request, h *hook.Hook) error {
	params := p.buildParams(req)

	slog.Info("requesting download", slog.String("url", req.URL), slog.Any("params", params))

	cmd := exec.CommandContext(ctx, p.Executable, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// yt-dlp spawns ffmpeg children, the whole process group must go
	cmd.Cancel = func() error { return killProcessGroup(cmd.Process) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get a stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get a stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp process: %w", err)
	}

	var (
		logs          = make(chan logEntry)
		g             errgroup.Group
		consumer      = NewJSONLogConsumer()
		skippedBefore = len(h.RunContext().Skipped)
		lastError     string
	)

	g.Go(func() error { return produceLogs(stdout, pipeStdout, logs) })
	g.Go(func() error { return produceLogs(stderr, pipeStderr, logs) })

	go func() {
		g.Wait()
		close(logs)
	}()

	// the hook is only ever driven from this goroutine
	for entry := range logs {
		if entry.pipe == pipeStderr && strings.TrimSpace(entry.line) != "" {
			lastError = strings.TrimSpace(entry.line)
		}
		consumer.ParseLogEntry(entry, h)
	}

	if err := g.Wait(); err != nil {
		slog.Warn("failed reading yt-dlp output", slog.Any("err", err))
	}

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		skipped := len(h.RunContext().Skipped) - skippedBefore

		if errors.As(err, &exitErr) && skipped > 0 {
			slog.Warn("yt-dlp finished with skipped items",
				slog.String("url", req.URL),
				slog.Int("skipped", skipped),
			)
			return nil
		}

		if lastError != "" {
			return fmt.Errorf("%s: %w", lastError, err)
		}
		return err
	}

	return nil
}

func (p *PlaylistDownloader) buildParams(req Request) []string {
	filename := playlistFilename
	if req.Single {
		filename = singleFilename
	}

	return []string{
		req.URL,
		"--yes-playlist",
		"--ignore-errors",
		"--newline",
		"--no-colors",
		"--quiet",
		"--progress",
		"--no-exec",
		"-f", p.Format,
		"--merge-output-format", p.MergeOutputFormat,
		"-o", filepath.Join(req.Dir, filename),
		"--progress-template", progressTemplate,
	}
}

func killProcessGroup(proc *os.Process) error {
	if proc == nil {
		return errors.New("*os.Process not set")
	}

	pgid, err := unix.Getpgid(proc.Pid)
	if err != nil {
		return err
	}

	return unix.Kill(-pgid, unix.SIGTERM)
}
