// a stupid package name...
package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/playlistzip/playlist-zip/server/config"
	"github.com/playlistzip/playlist-zip/server/internal/downloaders"
	"github.com/playlistzip/playlist-zip/server/internal/kv"
	"github.com/playlistzip/playlist-zip/server/internal/metadata"
	"github.com/playlistzip/playlist-zip/server/internal/pipeline"
	"github.com/playlistzip/playlist-zip/server/internal/queue"
	"github.com/playlistzip/playlist-zip/server/logging"
	middlewares "github.com/playlistzip/playlist-zip/server/middleware"
	"github.com/playlistzip/playlist-zip/server/rest"
	"github.com/playlistzip/playlist-zip/server/updater"
	"golang.org/x/sync/errgroup"
)

const janitorInterval = time.Minute

type RunConfig struct {
	App fs.FS
}

type serverConfig struct {
	frontend fs.FS
	mdb      *kv.Store
	mq       *queue.MessageQueue
	bus      EventBus.Bus
	runner   *pipeline.Pipeline
	workDir  string
}

func Run(ctx context.Context, rc *RunConfig) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	// file based logging
	if conf.Logging.EnableFileLogging {
		logger, err := logging.NewRotableLogger(conf.Logging.LogPath)
		if err != nil {
			return err
		}

		defer logger.Close()

		go func() {
			ticker := time.NewTicker(time.Hour * 24)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := logger.Rotate(); err != nil {
						slog.Error("failed to rotate log file", slog.Any("err", err))
					}
				}
			}
		}()

		logWriters = append(logWriters, logger)
	}

	// make the new logger the default one with all the new writers
	slog.SetDefault(logging.NewLogger(io.MultiWriter(logWriters...), conf.Logging.Level))
	// ----------------------------------------------------------------

	workDir := conf.Paths.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return err
	}

	if conf.Downloader.UpdateOnStart {
		if err := updater.UpdateExecutable(ctx, conf.Paths.DownloaderPath); err != nil {
			slog.Warn("failed to update yt-dlp", slog.Any("err", err))
		}
	}

	bus := EventBus.New()
	mdb := kv.NewStore()

	mq, err := queue.NewMessageQueue(conf.Server.QueueSize)
	if err != nil {
		return err
	}
	mq.SetupConsumers()

	runner := pipeline.New(
		metadata.NewFetcher(conf.Paths.DownloaderPath),
		downloaders.NewPlaylistDownloader(
			conf.Paths.DownloaderPath,
			conf.Downloader.Format,
			conf.Downloader.MergeOutputFormat,
		),
		workDir,
	)

	scfg := serverConfig{
		frontend: rc.App,
		mdb:      mdb,
		mq:       mq,
		bus:      bus,
		runner:   runner,
		workDir:  workDir,
	}

	srv := newServer(scfg)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		mq.Stop()
		return err
	}

	slog.Info("playlist-zip started",
		slog.String("address", address),
		slog.String("work_dir", workDir),
		slog.Duration("archive_ttl", conf.Server.ArchiveTTL),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mdb.Janitor(gctx, conf.Server.ArchiveTTL, janitorInterval)
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		gracefulShutdown(gctx, srv, &scfg)
		return nil
	})

	return g.Wait()
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	baseUrl := config.Instance().Server.BaseURL
	r.Mount(baseUrl+"/", http.StripPrefix(baseUrl, http.FileServerFS(c.frontend)))

	// REST API handlers
	r.Route(baseUrl+"/api/v1", func(r chi.Router) {
		r.Use(middlewares.RequestLogger)
		r.Use(middlewares.LimitBody)

		rest.ApplyRouter(&rest.ContainerArgs{
			MDB:            c.mdb,
			MQ:             c.mq,
			Bus:            c.bus,
			Runner:         c.runner,
			WorkDir:        c.workDir,
			DownloaderPath: config.Instance().Paths.DownloaderPath,
		})(r)
	})

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	// running jobs see their context cancelled and release their directories
	cfg.mq.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", slog.Any("err", err))
	}

	// workers are gone, so nothing can turn ready after this
	cfg.mdb.Close()
}
