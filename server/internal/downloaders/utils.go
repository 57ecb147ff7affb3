package downloaders

import (
	"bufio"
	"io"
)

// lines longer than this are dropped by the scanner
const maxLineSize = 1024 * 1024

func produceLogs(r io.Reader, p pipe, logs chan<- logEntry) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		logs <- logEntry{pipe: p, line: scanner.Text()}
	}

	if err := scanner.Err(); err != nil {
		// keep draining so the child never blocks on a full pipe
		io.Copy(io.Discard, r)
		return err
	}

	return nil
}
