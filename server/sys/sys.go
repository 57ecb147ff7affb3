package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding path (the OS temp dir when empty).
func FreeSpace(path string) (uint64, error) {
	if path == "" {
		path = os.TempDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}
