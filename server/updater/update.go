package updater

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = time.Second * 10

// Version asks the yt-dlp executable for its version.
func Version(ctx context.Context, executable string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, executable, "--version").Output()
	if ctx.Err() != nil {
		return "", errors.New("requesting yt-dlp version took too long")
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}

// Update using the builtin function of yt-dlp
func UpdateExecutable(ctx context.Context, executable string) error {
	out, err := exec.CommandContext(ctx, executable, "-U").CombinedOutput()
	slog.Info("yt-dlp update", slog.String("output", strings.TrimSpace(string(out))))

	return err
}
