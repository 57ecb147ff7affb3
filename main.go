package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/playlistzip/playlist-zip/server"
	"github.com/playlistzip/playlist-zip/server/config"

	"github.com/spf13/viper"
)

//go:embed frontend/index.html
var frontend embed.FS

func main() {
	// Parse optional config path from flag
	var (
		configFile  string
		printConfig bool
	)
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.BoolVar(&printConfig, "print-config", false, "Print the resolved configuration and exit")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3033)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.queue_size", 2)
	v.SetDefault("server.archive_ttl", "30m")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.work_dir", "")
	v.SetDefault("downloader.format", "bestvideo+bestaudio/best")
	v.SetDefault("downloader.merge_output_format", "mp4")
	v.SetDefault("downloader.update_on_start", false)
	v.SetDefault("logging.log_path", "playlist-zip.log")
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("frontend_path", "")

	// Env binding
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults")
	}

	cfg := config.Instance()
	if err := v.Unmarshal(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
	}

	if cfg.Server.QueueSize <= 0 || runtime.NumCPU() <= 2 {
		cfg.Server.QueueSize = 2
	}
	if cfg.Server.ArchiveTTL <= 0 {
		cfg.Server.ArchiveTTL = time.Minute * 30
	}

	if printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			slog.Error("failed to print config", "error", err)
			os.Exit(1)
		}
		return
	}

	// Frontend FS
	var appFS fs.FS
	if fp := cfg.FrontendPath; fp != "" {
		appFS = os.DirFS(fp)
	} else {
		sub, err := fs.Sub(frontend, "frontend")
		if err != nil {
			slog.Error("failed to load embedded frontend", "error", err)
			os.Exit(1)
		}
		appFS = sub
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"queue_size", cfg.Server.QueueSize,
	)

	if err := server.Run(ctx, &server.RunConfig{App: appFS}); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
