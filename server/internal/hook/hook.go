package hook

import (
	"fmt"
	"log/slog"
)

type Status string

const (
	StatusDownloading Status = "downloading"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
)

const unknownItem = "Unknown video"

// Event is a single state transition of a playlist item as reported by
// the download engine.
type Event struct {
	Status             Status   `json:"status"`
	DownloadedBytes    *float64 `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Filename           string   `json:"filename"`
	ItemID             string   `json:"-"`
}

// Observer receives the aggregated progress of a run.
type Observer interface {
	OnProgress(fraction float64)
	OnItemFinished(completed, total int)
	OnItemError(id string)
}

// RunContext holds the mutable state of one run.
type RunContext struct {
	Completed int
	Total     int
	Skipped   []string

	finished map[string]struct{}
}

func NewRunContext(total int) *RunContext {
	return &RunContext{
		Total:    total,
		Skipped:  []string{},
		finished: make(map[string]struct{}),
	}
}

// Hook translates engine events into observer calls. It is not safe for
// concurrent use: the engine invokes it from a single goroutine.
type Hook struct {
	rc  *RunContext
	obs Observer
}

func New(rc *RunContext, obs Observer) *Hook {
	if rc.finished == nil {
		rc.finished = make(map[string]struct{})
	}
	return &Hook{rc: rc, obs: obs}
}

func (h *Hook) RunContext() *RunContext { return h.rc }

// Handle must never panic, a panicking hook would abort the whole download.
func (h *Hook) Handle(e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("progress observer panicked",
				slog.String("status", string(e.Status)),
				slog.Any("panic", r),
			)
		}
	}()

	switch e.Status {
	case StatusDownloading:
		h.onDownloading(e)
	case StatusFinished:
		h.onFinished(e)
	case StatusError:
		h.onError(e)
	}
}

func (h *Hook) onDownloading(e Event) {
	if e.DownloadedBytes == nil {
		return
	}

	var total float64
	switch {
	case e.TotalBytes != nil && *e.TotalBytes > 0:
		total = *e.TotalBytes
	case e.TotalBytesEstimate != nil && *e.TotalBytesEstimate > 0:
		total = *e.TotalBytesEstimate
	default:
		slog.Debug("progress without total size", slog.String("filename", e.Filename))
		return
	}

	if h.obs != nil {
		h.obs.OnProgress(*e.DownloadedBytes / total)
	}
}

func (h *Hook) onFinished(e Event) {
	key := e.ItemID
	if key == "" {
		key = e.Filename
	}

	// merged formats report one "finished" per stream
	if key != "" {
		if _, seen := h.rc.finished[key]; seen {
			return
		}
		h.rc.finished[key] = struct{}{}
	}

	if h.rc.Total <= 0 || h.rc.Completed < h.rc.Total {
		h.rc.Completed++
	}

	if h.obs != nil {
		h.obs.OnItemFinished(h.rc.Completed, h.rc.Total)
	}
}

func (h *Hook) onError(e Event) {
	id := e.Filename
	if id == "" {
		id = e.ItemID
	}
	if id == "" {
		id = unknownItem
	}

	h.rc.Skipped = append(h.rc.Skipped, id)

	if h.obs != nil {
		h.obs.OnItemError(id)
	}
}

// StatusLine is the human readable status after an item finished.
func StatusLine(completed, total int) string {
	return fmt.Sprintf("Downloaded %d of %d videos...", completed, total)
}

// SkippedWarning is the aggregate warning shown once at the end of a run.
func SkippedWarning(skipped int) string {
	return fmt.Sprintf("Skipped %d video(s) due to copyright or download issues.", skipped)
}
