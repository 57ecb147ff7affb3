package rest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/dustin/go-humanize"
	"github.com/playlistzip/playlist-zip/server/internal/job"
	"github.com/playlistzip/playlist-zip/server/internal/kv"
	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
	"github.com/playlistzip/playlist-zip/server/internal/queue"
	"github.com/playlistzip/playlist-zip/server/sys"
	"github.com/playlistzip/playlist-zip/server/updater"
)

//TODO: load from build info instead of a constant
const serverVersion = "1.0.0"

// how long a submission waits for room in the queue
var publishTimeout = 2 * time.Second

var ErrEmptyURL = errors.New("Please enter a valid playlist URL")

type Service struct {
	mdb            *kv.Store
	mq             *queue.MessageQueue
	bus            EventBus.Bus
	runner         job.Runner
	workDir        string
	downloaderPath string
}

func NewService(args *ContainerArgs) *Service {
	return &Service{
		mdb:            args.MDB,
		mq:             args.MQ,
		bus:            args.Bus,
		runner:         args.Runner,
		workDir:        args.WorkDir,
		downloaderPath: args.DownloaderPath,
	}
}

// Exec queues a new playlist run and returns the job id.
func (s *Service) Exec(ctx context.Context, req DownloadRequest) (string, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return "", ErrEmptyURL
	}

	if free, err := sys.FreeSpace(s.workDir); err == nil {
		slog.Info("free space before run", slog.String("free", humanize.Bytes(free)))
	}

	j := job.New(url, s.runner, s.bus)

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id := s.mdb.Set(j)
	if err := s.mq.Publish(ctx, j); err != nil {
		s.mdb.Delete(id)
		return "", err
	}

	return id, nil
}

func (s *Service) Job(id string) (*job.Job, error) {
	return s.mdb.Get(id)
}

func (s *Service) Snapshot(id string) (*job.Snapshot, error) {
	j, err := s.mdb.Get(id)
	if err != nil {
		return nil, err
	}

	snap := j.Snapshot()
	return &snap, nil
}

// Retrieve hands the archive of job id to fn, then deletes it.
func (s *Service) Retrieve(id string, fn func(a *pipeline.Artifact) error) error {
	j, err := s.mdb.Get(id)
	if err != nil {
		return err
	}
	return j.Retrieve(fn)
}

type Version struct {
	Server string `json:"server"`
	YtDlp  string `json:"yt-dlp"`
}

func (s *Service) GetVersion(ctx context.Context) (*Version, error) {
	v, err := updater.Version(ctx, s.downloaderPath)
	if err != nil {
		return &Version{Server: serverVersion}, err
	}

	return &Version{Server: serverVersion, YtDlp: v}, nil
}

type Status struct {
	FreeSpace      uint64 `json:"free_space"`
	FreeSpaceHuman string `json:"free_space_human"`
	Jobs           int    `json:"jobs"`
	Active         int    `json:"active"`
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
	}

	free, err := sys.FreeSpace(s.workDir)
	if err != nil {
		return nil, err
	}

	status := &Status{
		FreeSpace:      free,
		FreeSpaceHuman: humanize.Bytes(free),
	}

	for _, snap := range s.mdb.All() {
		status.Jobs++
		if !snap.Terminal() {
			status.Active++
		}
	}

	return status, nil
}
