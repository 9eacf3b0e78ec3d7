package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mantonx/tonearm/internal/assets"
	"github.com/mantonx/tonearm/internal/config"
	"github.com/mantonx/tonearm/internal/database"
	"github.com/mantonx/tonearm/internal/events"
	"github.com/mantonx/tonearm/internal/logger"
	"github.com/mantonx/tonearm/internal/scanner"
	"github.com/mantonx/tonearm/internal/server"
	"github.com/mantonx/tonearm/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("TONEARM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Logging.Level)

	ctx := context.Background()
	bus := events.NewBus(256)
	bus.Start(ctx)
	defer bus.Stop()

	// A database that cannot be opened is not fatal: the store degrades to
	// memory and the catalog still works for this session.
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open database, running memory-only", "error", err)
	}
	store := storage.New(db)
	store.OnDegrade(func(op string, cause error) {
		bus.PublishAsync(events.NewEvent(events.EventStorageDegraded, "Storage Degraded",
			fmt.Sprintf("durable backend failed during %s: %v", op, cause)))
	})
	store.Initialize()

	assetMgr, err := assets.NewManager(cfg.Assets)
	if err != nil {
		logger.Warn("cover art storage unavailable", "error", err)
		assetMgr = nil
	}

	engine := scanner.New(store, assetMgr, bus, cfg.Scanner)

	if cfg.Scanner.WatchEnabled {
		if monitor, err := scanner.NewFolderMonitor(engine); err != nil {
			logger.Warn("library watching disabled", "error", err)
		} else {
			monitor.Start(ctx)
			defer monitor.Stop()
			bus.Subscribe(func(ev events.Event) {
				if path, ok := ev.Data["path"].(string); ok {
					if err := monitor.Watch(path); err != nil {
						logger.Warn("cannot watch library folder", "error", err)
					}
				}
			}, events.EventScanStarted)
		}
	}

	if len(os.Args) > 2 && os.Args[1] == "scan" {
		runScan(ctx, engine, os.Args[2])
		return
	}

	srv := server.New(engine, store)
	r := srv.SetupRouter()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting tonearm server", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// runScan performs a one-shot scan, waits for enrichment to finish and
// prints the final catalog.
func runScan(ctx context.Context, engine *scanner.Engine, dir string) {
	songs, err := engine.Scan(ctx, dir)
	if err != nil {
		if errors.Is(err, scanner.ErrEmptyLibrary) {
			fmt.Printf("No audio files found in %s\n", dir)
			return
		}
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d audio files, reading tags...\n", len(songs))

	generation := engine.Generation()
	for snap := range engine.Updates() {
		if snap.Generation != generation || !snap.Complete {
			continue
		}
		for _, song := range snap.Songs {
			fmt.Printf("%-40s %-25s %-25s %s\n", song.Title, song.Artist, song.Album, song.FormattedDuration())
		}
		return
	}
}
