package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/playlistzip/playlist-zip/server/internal/job"
	"github.com/playlistzip/playlist-zip/server/internal/kv"
	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
	"github.com/playlistzip/playlist-zip/server/internal/queue"
)

const writeWait = 10 * time.Second

// pending events per websocket before progress starts being dropped
var eventsBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	return ProvideHandler(ProvideService(args)).Routes
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/exec", h.Exec)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/jobs/{id}/ws", h.WebSocket)
	r.Get("/jobs/{id}/archive", h.Archive)
	r.Get("/version", h.GetVersion)
	r.Get("/status", h.Status)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrEmptyURL):
		status = http.StatusBadRequest
	case errors.Is(err, kv.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, job.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, job.ErrGone):
		status = http.StatusGone
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) Exec(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.Exec(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.service.Retrieve(id, func(a *pipeline.Artifact) error {
		f, err := a.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
		if a.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
		}
		w.WriteHeader(http.StatusOK)

		n, err := io.Copy(w, f)
		slog.Info("archive handed off",
			slog.String("job", id),
			slog.String("archive", a.Name),
			slog.Int64("bytes", n),
		)
		return err
	})

	if err != nil {
		if errors.Is(err, kv.ErrNotFound) || errors.Is(err, job.ErrNotReady) || errors.Is(err, job.ErrGone) {
			writeError(w, err)
			return
		}
		// headers are already sent
		slog.Error("failed to send archive", slog.String("job", id), slog.Any("err", err))
	}
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.service.Job(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	sub := j.Subscribe(eventsBuffer)
	defer sub.Close()

	closed := make(chan struct{})

	// detect the client going away
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := j.Snapshot()
	if err := writeEvent(conn, job.Event{Type: job.EventSnapshot, JobId: id, Snapshot: &snap}); err != nil {
		return
	}
	if snap.Terminal() {
		closeNormal(conn)
		return
	}

	for {
		select {
		case <-closed:
			return
		case e := <-sub.Events:
			if err := writeEvent(conn, e); err != nil {
				return
			}
			if e.Terminal() {
				closeNormal(conn)
				return
			}
		case <-sub.Finished:
			finishStream(conn, j, sub)
			return
		}
	}
}

// finishStream flushes what is still buffered. When the terminal event was
// dropped the final state goes out as a snapshot instead.
func finishStream(conn *websocket.Conn, j *job.Job, sub *job.Subscription) {
	defer closeNormal(conn)

	for {
		select {
		case e := <-sub.Events:
			if err := writeEvent(conn, e); err != nil {
				return
			}
			if e.Terminal() {
				return
			}
		default:
			snap := j.Snapshot()
			writeEvent(conn, job.Event{Type: job.EventSnapshot, JobId: j.Id, Snapshot: &snap})
			return
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

func writeEvent(conn *websocket.Conn, e job.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetVersion(r.Context())
	if err != nil {
		slog.Warn("failed to get yt-dlp version", slog.Any("err", err))
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
