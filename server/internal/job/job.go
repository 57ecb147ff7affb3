package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/playlistzip/playlist-zip/server/internal/hook"
	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
)

const (
	PhaseRetrieved pipeline.Phase = "retrieved"
	PhaseExpired   pipeline.Phase = "expired"
)

const (
	successMessage = "Download complete!"
	errorPrefix    = "Error during download: "
)

var (
	ErrNotReady = errors.New("archive is not ready yet")
	ErrGone     = errors.New("archive is no longer available")
)

type Runner interface {
	Run(ctx context.Context, url string, obs pipeline.Observer) (*pipeline.Artifact, error)
}

// Job is one playlist run as seen by the web page.
type Job struct {
	Id  string
	URL string

	runner Runner
	bus    EventBus.Bus

	mu         sync.RWMutex
	phase      pipeline.Phase
	percent    int
	status     string
	warning    string
	success    string
	err        string
	artifact   *pipeline.Artifact
	archive    *ArchiveInfo
	createdAt  time.Time
	finishedAt time.Time

	subMu    sync.Mutex
	subs     map[int]*subscriber
	nextSub  int
	terminal bool
}

func New(url string, runner Runner, bus EventBus.Bus) *Job {
	j := &Job{
		Id:        uuid.NewString(),
		URL:       url,
		runner:    runner,
		bus:       bus,
		phase:     pipeline.PhaseIdle,
		createdAt: time.Now(),
		subs:      make(map[int]*subscriber),
	}

	if bus != nil {
		if err := bus.Subscribe(Topic(j.Id), j.dispatch); err != nil {
			slog.Error("failed to attach job to the bus", slog.String("job", j.Id), slog.Any("err", err))
		}
	}

	return j
}

func (j *Job) GetId() string { return j.Id }

// Start runs the pipeline. It blocks until the archive is ready or the
// run failed.
func (j *Job) Start(ctx context.Context) error {
	slog.Info("job started", slog.String("id", j.Id), slog.String("url", j.URL))

	artifact, err := j.runner.Run(ctx, j.URL, j)
	if err != nil {
		slog.Error("job failed", slog.String("id", j.Id), slog.Any("err", err))
		j.fail(err)
		return err
	}

	if n := len(artifact.Skipped); n > 0 {
		j.warn(hook.SkippedWarning(n))
	}

	j.ready(artifact)

	slog.Info("job completed",
		slog.String("id", j.Id),
		slog.String("archive", artifact.Name),
		slog.Int("skipped", len(artifact.Skipped)),
	)
	return nil
}

func (j *Job) OnPhase(p pipeline.Phase) {
	j.mu.Lock()
	j.phase = p
	j.mu.Unlock()

	j.publish(Event{Type: EventPhase, Phase: p})
}

func (j *Job) OnProgress(fraction float64) {
	percent := int(fraction * 100)
	percent = max(0, min(percent, 100))

	j.mu.Lock()
	j.percent = percent
	j.mu.Unlock()

	j.publish(Event{Type: EventProgress, Percent: percent})
}

func (j *Job) OnItemFinished(completed, total int) {
	msg := hook.StatusLine(completed, total)

	j.mu.Lock()
	j.status = msg
	j.mu.Unlock()

	j.publish(Event{Type: EventStatus, Message: msg})
}

// per-item failures are only surfaced by the final warning
func (j *Job) OnItemError(id string) {
	slog.Warn("item skipped", slog.String("job", j.Id), slog.String("item", id))
}

func (j *Job) warn(msg string) {
	j.mu.Lock()
	j.warning = msg
	j.mu.Unlock()

	j.publish(Event{Type: EventWarning, Message: msg})
}

func (j *Job) ready(a *pipeline.Artifact) {
	info := &ArchiveInfo{
		Name:    a.Name,
		Size:    a.Size,
		Entries: a.Entries,
		Skipped: len(a.Skipped),
	}

	j.mu.Lock()
	j.phase = pipeline.PhaseReady
	j.artifact = a
	j.archive = info
	j.success = successMessage
	j.finishedAt = time.Now()
	j.mu.Unlock()

	j.publish(Event{Type: EventReady, Phase: pipeline.PhaseReady, Message: successMessage, Archive: info})
}

func (j *Job) fail(err error) {
	msg := errorPrefix + err.Error()

	j.mu.Lock()
	j.phase = pipeline.PhaseError
	j.err = msg
	j.finishedAt = time.Now()
	j.mu.Unlock()

	j.publish(Event{Type: EventError, Phase: pipeline.PhaseError, Message: msg})
}

func (j *Job) publish(e Event) {
	e.JobId = j.Id
	if j.bus != nil {
		j.bus.Publish(Topic(j.Id), e)
		return
	}
	j.dispatch(e)
}

// Retrieve hands the archive to fn exactly once and then deletes it,
// whatever fn returns.
func (j *Job) Retrieve(fn func(a *pipeline.Artifact) error) error {
	j.mu.Lock()
	switch j.phase {
	case pipeline.PhaseReady:
	case PhaseRetrieved, PhaseExpired:
		j.mu.Unlock()
		return ErrGone
	default:
		j.mu.Unlock()
		return ErrNotReady
	}

	a := j.artifact
	j.artifact = nil
	j.phase = PhaseRetrieved
	j.mu.Unlock()

	defer a.Close()

	return fn(a)
}

// Expire releases an archive nobody retrieved.
func (j *Job) Expire() {
	j.mu.Lock()
	a := j.artifact
	j.artifact = nil
	if j.phase == pipeline.PhaseReady {
		j.phase = PhaseExpired
	}
	j.mu.Unlock()

	if a != nil {
		slog.Info("archive expired", slog.String("job", j.Id), slog.String("archive", a.Name))
		a.Close()
	}
}

// IsFinished reports whether the run is over and since when.
func (j *Job) IsFinished() (bool, time.Time) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return !j.finishedAt.IsZero(), j.finishedAt
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return Snapshot{
		Id:         j.Id,
		URL:        j.URL,
		Phase:      j.phase,
		Percent:    j.percent,
		Status:     j.status,
		Warning:    j.warning,
		Success:    j.success,
		Error:      j.err,
		Archive:    j.archive,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
}
