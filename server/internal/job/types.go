package job

import (
	"time"

	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
)

type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventPhase    EventType = "phase"
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventWarning  EventType = "warning"
	EventReady    EventType = "ready"
	EventError    EventType = "error"
)

type ArchiveInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Entries int    `json:"entries"`
	Skipped int    `json:"skipped"`
}

type Event struct {
	Type     EventType      `json:"type"`
	JobId    string         `json:"job_id"`
	Phase    pipeline.Phase `json:"phase,omitempty"`
	Percent  int            `json:"percent"`
	Message  string         `json:"message,omitempty"`
	Archive  *ArchiveInfo   `json:"archive,omitempty"`
	Snapshot *Snapshot      `json:"snapshot,omitempty"`
}

// Terminal events end a job's event stream.
func (e Event) Terminal() bool {
	return e.Type == EventReady || e.Type == EventError
}

type Snapshot struct {
	Id         string         `json:"id"`
	URL        string         `json:"url"`
	Phase      pipeline.Phase `json:"phase"`
	Percent    int            `json:"percent"`
	Status     string         `json:"status,omitempty"`
	Warning    string         `json:"warning,omitempty"`
	Success    string         `json:"success,omitempty"`
	Error      string         `json:"error,omitempty"`
	Archive    *ArchiveInfo   `json:"archive,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func (s Snapshot) Terminal() bool {
	switch s.Phase {
	case pipeline.PhaseReady, pipeline.PhaseError, PhaseRetrieved, PhaseExpired:
		return true
	}
	return false
}
