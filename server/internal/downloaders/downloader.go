package downloaders

import (
	"context"

	"github.com/playlistzip/playlist-zip/server/internal/hook"
)

// Request describes one bulk download into a working directory.
type Request struct {
	URL string
	Dir string
	// Single is set when the URL resolves to one item instead of a playlist.
	Single bool
}

type Downloader interface {
	Download(ctx context.Context, req Request, h *hook.Hook) error
}
