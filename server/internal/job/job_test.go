package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
)

type fakeRunner struct {
	skipped  []string
	err      error
	progress []float64
	path     string
}

func (f *fakeRunner) Run(ctx context.Context, url string, obs pipeline.Observer) (*pipeline.Artifact, error) {
	obs.OnPhase(pipeline.PhaseFetching)
	if f.err != nil {
		return nil, f.err
	}

	obs.OnPhase(pipeline.PhaseDownloading)
	for _, p := range f.progress {
		obs.OnProgress(p)
	}
	for i := 1; i <= 3; i++ {
		obs.OnItemFinished(i, 3)
	}
	for _, s := range f.skipped {
		obs.OnItemError(s)
	}
	obs.OnPhase(pipeline.PhaseArchiving)

	return &pipeline.Artifact{ID: "deadbeef", Name: "deadbeef.zip", Path: f.path, Skipped: f.skipped}, nil
}

func collect(t *testing.T, bus EventBus.Bus, id string) *[]Event {
	t.Helper()

	events := &[]Event{}
	if err := bus.Subscribe(Topic(id), func(e Event) { *events = append(*events, e) }); err != nil {
		t.Fatal(err)
	}
	return events
}

func count(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestJobSuccessWithoutWarning(t *testing.T) {
	bus := EventBus.New()
	j := New("https://example.com/list", &fakeRunner{progress: []float64{0.5, 1.7, -0.2}}, bus)
	events := collect(t, bus, j.Id)

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if n := count(*events, EventWarning); n != 0 {
		t.Errorf("Expected no warning, got %d", n)
	}
	if n := count(*events, EventReady); n != 1 {
		t.Errorf("Expected one ready event, got %d", n)
	}

	var percents []int
	for _, e := range *events {
		if e.Type == EventProgress {
			percents = append(percents, e.Percent)
		}
	}
	expected := []int{50, 100, 0}
	for i := range expected {
		if percents[i] != expected[i] {
			t.Errorf("progress %d = %d, expected %d", i, percents[i], expected[i])
		}
	}

	s := j.Snapshot()
	if s.Phase != pipeline.PhaseReady {
		t.Errorf("Expected phase ready, got %s", s.Phase)
	}
	if s.Success != "Download complete!" {
		t.Errorf("Unexpected success message %q", s.Success)
	}
	if s.Status != "Downloaded 3 of 3 videos..." {
		t.Errorf("Unexpected status %q", s.Status)
	}
	if s.Archive == nil || s.Archive.Name != "deadbeef.zip" {
		t.Errorf("Unexpected archive %+v", s.Archive)
	}
}

func TestJobPartialFailureWarnsOnce(t *testing.T) {
	bus := EventBus.New()
	j := New("u", &fakeRunner{skipped: []string{"002 - b.mp4"}}, bus)
	events := collect(t, bus, j.Id)

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if n := count(*events, EventWarning); n != 1 {
		t.Fatalf("Expected exactly one warning, got %d", n)
	}

	expected := "Skipped 1 video(s) due to copyright or download issues."
	if j.Snapshot().Warning != expected {
		t.Errorf("Expected warning %q, got %q", expected, j.Snapshot().Warning)
	}
	if j.Snapshot().Success == "" {
		t.Error("Expected success message even with skipped items")
	}
}

func TestJobFailure(t *testing.T) {
	bus := EventBus.New()
	j := New("bad", &fakeRunner{err: errors.New("not a valid URL")}, bus)
	events := collect(t, bus, j.Id)

	if err := j.Start(context.Background()); err == nil {
		t.Fatal("Expected an error")
	}

	s := j.Snapshot()
	if s.Phase != pipeline.PhaseError {
		t.Errorf("Expected phase error, got %s", s.Phase)
	}
	if s.Error != "Error during download: not a valid URL" {
		t.Errorf("Unexpected error message %q", s.Error)
	}
	if s.Archive != nil {
		t.Error("Expected no archive")
	}
	if count(*events, EventReady) != 0 || count(*events, EventError) != 1 {
		t.Errorf("Unexpected events %+v", *events)
	}

	if err := j.Retrieve(func(*pipeline.Artifact) error { return nil }); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestRetrieveOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadbeef.zip")
	if err := os.WriteFile(path, []byte("zip"), 0644); err != nil {
		t.Fatal(err)
	}

	j := New("u", &fakeRunner{path: path}, nil)
	if err := j.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var got string
	err := j.Retrieve(func(a *pipeline.Artifact) error {
		data, err := os.ReadFile(a.Path)
		got = string(data)
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "zip" {
		t.Errorf("Unexpected archive content %q", got)
	}

	if err := j.Retrieve(func(*pipeline.Artifact) error { return nil }); !errors.Is(err, ErrGone) {
		t.Errorf("Expected ErrGone, got %v", err)
	}
}

func TestExpire(t *testing.T) {
	j := New("u", &fakeRunner{}, nil)
	if err := j.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	j.Expire()

	if j.Snapshot().Phase != PhaseExpired {
		t.Errorf("Expected phase expired, got %s", j.Snapshot().Phase)
	}
	if err := j.Retrieve(func(*pipeline.Artifact) error { return nil }); !errors.Is(err, ErrGone) {
		t.Errorf("Expected ErrGone, got %v", err)
	}
}

func TestSubscribeAndClose(t *testing.T) {
	bus := EventBus.New()
	j := New("u", &fakeRunner{}, bus)

	a := j.Subscribe(64)
	b := j.Subscribe(64)

	j.OnPhase(pipeline.PhaseFetching)

	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("Expected both subscribers to receive the event, got %d and %d", len(a.Events), len(b.Events))
	}

	a.Close()
	a.Close()
	j.OnPhase(pipeline.PhaseDownloading)

	if len(a.Events) != 1 || len(b.Events) != 2 {
		t.Errorf("Expected only the open subscription to receive, got %d and %d", len(a.Events), len(b.Events))
	}
	if n := j.Subscribers(); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}

	j.Detach()

	if bus.HasCallback(Topic(j.Id)) {
		t.Error("Expected the job to leave the bus")
	}
	if n := j.Subscribers(); n != 0 {
		t.Errorf("Expected no subscribers, got %d", n)
	}
	select {
	case <-b.Finished:
	default:
		t.Error("Expected detached subscriptions to be finished")
	}
}

func TestTerminalEventSurvivesFullBuffer(t *testing.T) {
	bus := EventBus.New()
	progress := make([]float64, 300)
	for i := range progress {
		progress[i] = float64(i) / 300
	}
	j := New("u", &fakeRunner{progress: progress}, bus)

	sub := j.Subscribe(256)
	defer sub.Close()

	if err := j.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(sub.Events) != 256 {
		t.Fatalf("Expected a full buffer, got %d", len(sub.Events))
	}

	select {
	case <-sub.Finished:
	default:
		t.Fatal("Expected the subscription to be finished")
	}

	if snap := j.Snapshot(); !snap.Terminal() || snap.Phase != pipeline.PhaseReady {
		t.Errorf("Expected a ready snapshot, got %s", snap.Phase)
	}
}

func TestSubscribeAfterTerminal(t *testing.T) {
	j := New("u", &fakeRunner{}, nil)
	if err := j.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sub := j.Subscribe(1)
	defer sub.Close()

	select {
	case <-sub.Finished:
	default:
		t.Error("Expected a late subscription to start finished")
	}
}
