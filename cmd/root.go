package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/downloader"
	"github.com/carlbunn/musicbox/jukebox"
	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/player"
	"github.com/carlbunn/musicbox/scheduler"
	"github.com/carlbunn/musicbox/server"
	"github.com/carlbunn/musicbox/types"
	"github.com/carlbunn/musicbox/websocket"
)

var rootCmd = &cobra.Command{
	Use:   "musicbox",
	Short: "Tap-to-play rfid jukebox",
	Long: `musicbox turns a directory of audio files into a tap-to-play jukebox:
tap a tag, hear a song. Tracks resume where they left off, and an HTTP
API exposes control, catalog management and downloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAppliance()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
}

func runAppliance() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logger.Sync()

	store, err := catalog.NewStore(cfg.MusicRoot, cfg.DatabasePath, cfg.FlushInterval)
	if err != nil {
		return err
	}
	if err := store.ScanDirectory(); err != nil {
		logger.Error("initial scan failed", zap.Error(err))
	}

	hub := websocket.NewHub()
	go hub.Run()

	controller := player.NewController(player.NewBeepEngine(), store, cfg)
	controller.SetOnChange(func(st types.PlayerStatus) {
		hub.Broadcast(types.Event{
			Topic:    types.TopicStatus,
			Type:     "change",
			Playback: &st,
		})
	})

	reader, err := newReader(cfg)
	if err != nil {
		return err
	}
	sched := scheduler.New(reader, cfg)
	sched.Start()

	var rescan <-chan struct{}
	var watcher *catalog.Watcher
	if cfg.WatchMusicDir {
		watcher, err = catalog.NewWatcher(cfg.MusicRoot)
		if err != nil {
			logger.Warn("music directory watch unavailable", zap.Error(err))
		} else {
			rescan = watcher.Requests()
		}
	}

	var queue *downloader.Queue
	if cfg.DownloaderEnabled {
		queue = downloader.NewQueue(cfg.SpotdlPath, cfg.MusicRoot, hub, func() {
			if err := store.ScanDirectory(); err != nil {
				logger.Error("post-download rescan failed", zap.Error(err))
			}
		})
		queue.Start()
	}

	srv := server.New(cfg, store, controller, queue, hub)
	srv.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jb := jukebox.New(store, controller, sched, rescan, hub, cfg)
	jb.Run(ctx)

	logger.Info("shutting down")

	sched.Stop()
	reader.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	controller.Stop()
	if queue != nil {
		queue.Stop()
	}
	if watcher != nil {
		watcher.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("final catalog flush failed", zap.Error(err))
		return err
	}

	logger.Info("goodbye")
	return nil
}

func newReader(cfg *config.Config) (scheduler.TagReader, error) {
	if cfg.ReaderDevice != "" {
		reader, err := scheduler.NewDeviceReader(cfg.ReaderDevice)
		if err == nil {
			return reader, nil
		}
		return nil, fmt.Errorf("tag reader device: %w", err)
	}
	return scheduler.NewKeyboardReader()
}
