package rest

import (
	"github.com/asaskevich/EventBus"
	"github.com/playlistzip/playlist-zip/server/internal/job"
	"github.com/playlistzip/playlist-zip/server/internal/kv"
	"github.com/playlistzip/playlist-zip/server/internal/queue"
)

type ContainerArgs struct {
	MDB            *kv.Store
	MQ             *queue.MessageQueue
	Bus            EventBus.Bus
	Runner         job.Runner
	WorkDir        string
	DownloaderPath string
}

type DownloadRequest struct {
	URL string `json:"url"`
}
