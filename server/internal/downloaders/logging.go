package downloaders

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/playlistzip/playlist-zip/server/internal/hook"
)

type pipe int

const (
	pipeStdout pipe = iota
	pipeStderr
)

type logEntry struct {
	pipe pipe
	line string
}

type LogConsumer interface {
	GetName() string
	ParseLogEntry(entry logEntry, h *hook.Hook)
}

// ERROR: [youtube] dQw4w9WgXcQ: Video unavailable
var itemErrorRe = regexp.MustCompile(`^ERROR:\s*\[[^\]]+\]\s*([^\s:]+):`)

type progressLine struct {
	Progress hook.Event `json:"progress"`
	Id       string     `json:"id"`
}

type JSONLogConsumer struct{}

func NewJSONLogConsumer() LogConsumer {
	return &JSONLogConsumer{}
}

func (j *JSONLogConsumer) GetName() string { return "json-log-consumer" }

func (j *JSONLogConsumer) ParseLogEntry(entry logEntry, h *hook.Hook) {
	if entry.pipe == pipeStderr {
		j.parseStderr(entry.line, h)
		return
	}

	var line progressLine
	if err := json.Unmarshal([]byte(entry.line), &line); err != nil || line.Progress.Status == "" {
		slog.Debug("yt-dlp output", slog.String("line", entry.line))
		return
	}

	e := line.Progress
	e.ItemID = line.Id
	h.Handle(e)
}

func (j *JSONLogConsumer) parseStderr(line string, h *hook.Hook) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if !strings.HasPrefix(line, "ERROR:") {
		slog.Warn("yt-dlp", slog.String("output", line))
		return
	}

	slog.Error("yt-dlp item error", slog.String("err", line))

	var id string
	if m := itemErrorRe.FindStringSubmatch(line); m != nil {
		id = m[1]
	}

	h.Handle(hook.Event{Status: hook.StatusError, ItemID: id})
}
