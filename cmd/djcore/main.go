package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaki95/dj-emulator/config"
	"github.com/jaki95/dj-emulator/internal/cache"
	"github.com/jaki95/dj-emulator/internal/library"
	"github.com/jaki95/dj-emulator/internal/output"
	"github.com/jaki95/dj-emulator/internal/session"
	"github.com/jaki95/dj-emulator/internal/status"
	"github.com/jaki95/dj-emulator/internal/storage"
)

const (
	exitOK         = 0
	exitInit       = 1
	exitAudioError = 2
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n  %s [-config path] play <track1> [track2]\n  %s [-config path] analyze <dir>\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML configuration")
	flag.Usage = usage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return exitInit
	}

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Cache)
	if err != nil {
		slog.Error("Failed to open metadata cache", "error", err)
		return exitInit
	}
	c := cache.New(store)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return exitInit
	}
	switch args[0] {
	case "play":
		if len(args) < 2 || len(args) > 3 {
			flag.Usage()
			return exitInit
		}
		return play(ctx, cfg, c, args[1:])
	case "analyze":
		if len(args) != 2 {
			flag.Usage()
			return exitInit
		}
		return analyze(ctx, cfg, c, args[1])
	default:
		flag.Usage()
		return exitInit
	}
}

// loadConfig reads path. The default path may be absent, in which case the
// built-in defaults apply.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func play(ctx context.Context, cfg *config.Config, c *cache.Cache, tracks []string) int {
	tracker := status.NewTracker(64)
	s := session.New(cfg, c, tracker)

	host, err := output.Open(s.Engine(), cfg.Audio.DeviceBufferMs)
	if err != nil {
		slog.Error("Failed to open audio device", "error", err)
		s.Close()
		return exitInit
	}
	// Producers stop before the device goes away.
	defer func() {
		s.Close()
		host.Close()
	}()

	for i, path := range tracks {
		if err := s.Load(ctx, i, path); err != nil {
			slog.Error("Failed to load track", "deck", session.DeckName(i), "error", err)
			return exitInit
		}
	}
	if len(tracks) == 1 {
		s.Engine().SetCrossfader(-1)
	}
	if err := s.SetMaster(0); err != nil {
		slog.Error("Failed to set master deck", "error", err)
	}

	host.Start()
	for i := range tracks {
		s.Deck(i).Play()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := len(tracks)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Interrupted, shutting down")
			return exitOK
		case err := <-host.Done():
			if err == nil {
				slog.Info("Audio output ended")
				return exitOK
			}
			slog.Error("Unrecoverable audio error", "error", err)
			return exitAudioError
		case ev := <-tracker.Events():
			slog.Info("Deck status", "deck", ev.Deck, "stage", ev.Stage, "message", ev.Message, "loadId", ev.LoadID)
			if ev.Stage == status.StageEnded || ev.Stage == status.StageError {
				remaining--
				if remaining == 0 {
					slog.Info("All decks finished")
					return exitOK
				}
			}
		case <-ticker.C:
			logState(s.State())
		}
	}
}

func logState(st session.State) {
	data, err := json.Marshal(st.Mixer)
	if err != nil {
		return
	}
	for _, d := range st.Decks {
		if !d.Loaded {
			continue
		}
		slog.Info("Deck state",
			"deck", d.Name,
			"title", d.Title,
			"position", d.Position,
			"duration", d.Duration,
			"bpm", d.BPM,
			"playing", d.Playing,
			"master", d.Master,
		)
	}
	for _, ev := range st.Status {
		if ev != nil {
			slog.Debug("Deck status", "deck", ev.Deck, "stage", ev.Stage, "loadId", ev.LoadID)
		}
	}
	if st.DroppedEvents > 0 {
		slog.Warn("Status events dropped", "count", st.DroppedEvents)
	}
	slog.Debug("Mixer state", "controls", json.RawMessage(data))
}

func analyze(ctx context.Context, cfg *config.Config, c *cache.Cache, dir string) int {
	a := library.NewAnalyzer(c, cfg.Library)
	report, err := a.Run(ctx, dir)
	fmt.Println()
	if err != nil {
		slog.Error("Library analysis failed", "dir", dir, "error", err)
		return exitInit
	}
	slog.Info("Library analysis complete", "analyzed", report.Analyzed, "cached", report.Cached, "failed", report.Failed)
	return exitOK
}
