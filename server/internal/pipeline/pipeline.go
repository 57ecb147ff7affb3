package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/playlistzip/playlist-zip/server/archiver"
	"github.com/playlistzip/playlist-zip/server/internal/downloaders"
	"github.com/playlistzip/playlist-zip/server/internal/hook"
	"github.com/playlistzip/playlist-zip/server/internal/metadata"
	"github.com/playlistzip/playlist-zip/server/internal/workdir"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseDownloading Phase = "downloading"
	PhaseArchiving   Phase = "archiving"
	PhaseReady       Phase = "ready"
	PhaseError       Phase = "error"
)

type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) (*metadata.Playlist, error)
}

// Observer receives the hook events of a run plus its phase changes.
type Observer interface {
	hook.Observer
	OnPhase(p Phase)
}

type Pipeline struct {
	fetcher    MetadataFetcher
	downloader downloaders.Downloader
	workRoot   string
}

func New(fetcher MetadataFetcher, downloader downloaders.Downloader, workRoot string) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		downloader: downloader,
		workRoot:   workRoot,
	}
}

// Run fetches the playlist metadata, downloads every item into a fresh
// working directory and zips the result. On success the caller owns the
// returned artifact and must Close it once the archive has been handed
// off; on failure nothing is left on disk.
func (p *Pipeline) Run(ctx context.Context, url string, obs Observer) (*Artifact, error) {
	obs.OnPhase(PhaseFetching)

	meta, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	dir, err := workdir.Acquire(p.workRoot, meta.DisplayTitle())
	if err != nil {
		return nil, err
	}

	artifact, err := p.run(ctx, url, meta, dir, obs)
	if err != nil {
		dir.Release()
		return nil, err
	}

	return artifact, nil
}

func (p *Pipeline) run(ctx context.Context, url string, meta *metadata.Playlist, dir *workdir.Dir, obs Observer) (*Artifact, error) {
	rc := hook.NewRunContext(meta.Count())

	obs.OnPhase(PhaseDownloading)

	err := p.downloader.Download(ctx, downloaders.Request{
		URL:    url,
		Dir:    dir.Path,
		Single: !meta.IsPlaylist(),
	}, hook.New(rc, obs))
	if err != nil {
		return nil, err
	}

	obs.OnPhase(PhaseArchiving)

	name := dir.ID + ".zip"
	path := filepath.Join(dir.Path, name)

	stats, err := archiver.Archive(ctx, dir.Path, path)
	if err != nil {
		return nil, fmt.Errorf("failed to archive downloads: %w", err)
	}

	slog.Info("playlist archived",
		slog.String("id", dir.ID),
		slog.String("title", meta.DisplayTitle()),
		slog.Int("total", rc.Total),
		slog.Int("completed", rc.Completed),
		slog.Int("skipped", len(rc.Skipped)),
	)

	return &Artifact{
		ID:      dir.ID,
		Name:    name,
		Path:    path,
		Title:   meta.DisplayTitle(),
		Total:   rc.Total,
		Entries: stats.Entries,
		Size:    stats.Size,
		Skipped: rc.Skipped,
		dir:     dir,
	}, nil
}

// Artifact is a finished archive together with the working directory
// that holds it.
type Artifact struct {
	ID      string
	Name    string
	Path    string
	Title   string
	Total   int
	Entries int
	Size    int64
	Skipped []string

	dir *workdir.Dir
}

func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Close deletes the working directory and the archive with it.
func (a *Artifact) Close() error {
	if a.dir == nil {
		return nil
	}
	return a.dir.Release()
}
