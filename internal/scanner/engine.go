// Package scanner turns a folder of audio files into a progressively
// enriched catalog. A scan returns a usable placeholder catalog immediately,
// then a bounded worker pool reads tag metadata from each file and persists
// the enriched entries through the storage layer, emitting full-catalog
// snapshots as it goes.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mantonx/tonearm/internal/assets"
	"github.com/mantonx/tonearm/internal/config"
	"github.com/mantonx/tonearm/internal/database"
	"github.com/mantonx/tonearm/internal/events"
	"github.com/mantonx/tonearm/internal/logger"
	"github.com/mantonx/tonearm/internal/storage"
	"github.com/mantonx/tonearm/internal/tagreader"
	"github.com/mantonx/tonearm/internal/utils"
)

const defaultWorkerCount = 4

// Snapshot is an immutable copy of the catalog at one point in time. The
// generation token lets consumers discard snapshots from a superseded scan.
type Snapshot struct {
	Generation uint64          `json:"generation"`
	Songs      []database.Song `json:"songs"`
	Complete   bool            `json:"complete"`
}

// probeFunc matches tagreader.ProbeFile and exists so tests can substitute
// the metadata read.
type probeFunc func(path string, headSize, tailSize int64) *tagreader.Result

// Engine orchestrates directory listing, placeholder construction and
// concurrent metadata enrichment for one library session.
type Engine struct {
	store   *storage.Store
	assets  *assets.Manager // optional
	bus     *events.Bus     // optional
	monitor *LoadMonitor

	workers   int
	headChunk int64
	tailChunk int64
	probe     probeFunc

	mu      sync.RWMutex
	folder  string
	catalog []database.Song

	generation atomic.Uint64
	updates    chan Snapshot
}

// New creates an engine. The asset manager and event bus may be nil.
func New(store *storage.Store, assetMgr *assets.Manager, bus *events.Bus, cfg config.ScannerConfig) *Engine {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = defaultWorkerCount
	}
	return &Engine{
		store:     store,
		assets:    assetMgr,
		bus:       bus,
		monitor:   NewLoadMonitor(),
		workers:   workers,
		headChunk: cfg.HeadChunkSize,
		tailChunk: cfg.TailChunkSize,
		probe:     tagreader.ProbeFile,
		updates:   make(chan Snapshot, 64),
	}
}

// Updates returns the snapshot channel. Sends are fire-and-forget: a slow
// consumer misses intermediate snapshots but the channel buffer keeps the
// final one reachable.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Generation returns the token of the current scan session.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Catalog returns an immutable copy of the current catalog.
func (e *Engine) Catalog() []database.Song {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]database.Song(nil), e.catalog...)
}

// LoadFromCache restores a catalog from the storage layer without touching
// the filesystem. Returns empty when nothing is stored.
func (e *Engine) LoadFromCache() []database.Song {
	return e.store.GetAll()
}

// Scan lists the folder, publishes a placeholder catalog synchronously and
// launches background enrichment against it. The returned slice is the
// placeholder catalog; the caller never has to wait for tag I/O.
//
// A listing failure returns a *ScanError and emits nothing. A folder with no
// recognized audio files returns ErrEmptyLibrary alongside an empty catalog.
func (e *Engine) Scan(ctx context.Context, dir string) ([]database.Song, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.publish(events.NewEvent(events.EventScanFailed, "Scan Failed",
			fmt.Sprintf("cannot list %s: %v", dir, err)))
		return nil, &ScanError{Path: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if utils.IsAudioFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	// Starting a new session invalidates snapshots from any prior scan.
	gen := e.generation.Add(1)

	if len(names) == 0 {
		e.setCatalog(dir, nil)
		return []database.Song{}, ErrEmptyLibrary
	}

	placeholders := make([]database.Song, len(names))
	for i, name := range names {
		placeholders[i] = e.placeholderSong(dir, name)
	}
	e.setCatalog(dir, placeholders)

	event := events.NewEvent(events.EventScanStarted, "Library Scan Started",
		fmt.Sprintf("found %d audio files in %s", len(names), dir))
	event.Data = map[string]interface{}{"files": len(names), "path": dir, "generation": gen}
	e.publish(event)

	go e.enrich(ctx, gen, append([]database.Song(nil), placeholders...))

	return append([]database.Song(nil), placeholders...), nil
}

func (e *Engine) placeholderSong(dir, name string) database.Song {
	uri := filepath.Join(dir, name)
	return database.Song{
		ID:     uri,
		Title:  utils.TitleFromFilename(name),
		Artist: database.UnknownArtist,
		Album:  database.UnknownAlbum,
		URI:    uri,
	}
}

func (e *Engine) setCatalog(dir string, songs []database.Song) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.folder = dir
	e.catalog = songs
}

// enrich drains a closed work channel with a fixed pool of workers. Each
// index is consumed exactly once; entries complete in no particular order.
func (e *Engine) enrich(ctx context.Context, gen uint64, songs []database.Song) {
	start := time.Now()

	work := make(chan int, len(songs))
	for i := range songs {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				e.monitor.Throttle()
				enriched := e.enrichSong(songs[idx])
				e.applyUpdate(gen, idx, enriched)
				e.notify(gen, false)
			}
		}()
	}
	wg.Wait()

	e.notify(gen, true)

	if gen == e.generation.Load() {
		cpu, mem := e.monitor.Metrics()
		logger.Info("library scan completed",
			"files", len(songs),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"cpu_pct", fmt.Sprintf("%.1f", cpu),
			"mem_pct", fmt.Sprintf("%.1f", mem),
			"storage_mode", e.store.Mode())
		event := events.NewEvent(events.EventScanCompleted, "Library Scan Completed",
			fmt.Sprintf("enriched %d files", len(songs)))
		event.Data = map[string]interface{}{"files": len(songs), "generation": gen}
		e.publish(event)
	}
}

// enrichSong reads tag metadata for one file and persists the result. Tag
// read failures degrade to sentinel metadata for this file only; the save
// itself never fails visibly because the store has its own fallback.
func (e *Engine) enrichSong(song database.Song) database.Song {
	result := e.probe(song.URI, e.headChunk, e.tailChunk)
	if result == nil {
		logger.Debug("no readable tags, keeping placeholder metadata", "uri", song.URI)
	} else {
		if result.Title != "" {
			song.Title = result.Title
		}
		if result.Artist != "" {
			song.Artist = result.Artist
		}
		if result.Album != "" {
			song.Album = result.Album
		}
		if result.Duration > 0 {
			song.Duration = result.Duration
		}
		if len(result.Cover) > 0 && e.assets != nil {
			if path, err := e.assets.SaveCover(song.ID, result.Cover, result.CoverMIME); err == nil {
				song.Cover = path
			} else {
				logger.Warn("failed to store cover art", "uri", song.URI, "error", err)
			}
		}
	}

	e.store.Save(&song)
	return song
}

// applyUpdate replaces one catalog entry wholesale. Updates from a
// superseded scan are discarded; their storage writes were idempotent
// upserts and remain harmless. Duration never regresses to unknown.
func (e *Engine) applyUpdate(gen uint64, idx int, song database.Song) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation.Load() || idx >= len(e.catalog) {
		return
	}
	if song.Duration == 0 && e.catalog[idx].Duration > 0 {
		song.Duration = e.catalog[idx].Duration
	}
	e.catalog[idx] = song
}

// notify emits a full-catalog snapshot so consumers never merge deltas.
func (e *Engine) notify(gen uint64, complete bool) {
	e.mu.RLock()
	if gen != e.generation.Load() {
		e.mu.RUnlock()
		return
	}
	snap := Snapshot{
		Generation: gen,
		Songs:      append([]database.Song(nil), e.catalog...),
		Complete:   complete,
	}
	e.mu.RUnlock()

	select {
	case e.updates <- snap:
	default:
		// Consumer is behind; it will catch up on a later snapshot.
	}

	if !complete {
		event := events.NewEvent(events.EventScanProgress, "Scan Progress", "")
		event.Data = map[string]interface{}{"generation": gen, "songs": len(snap.Songs)}
		e.publish(event)
	}
}

// IngestFile enriches a single file discovered after the initial scan and
// folds it into the current catalog, reusing the existing entry when the
// URI is already known.
func (e *Engine) IngestFile(path string) {
	if !utils.IsAudioFile(path) {
		return
	}
	gen := e.generation.Load()
	song := e.placeholderSong(filepath.Dir(path), filepath.Base(path))
	enriched := e.enrichSong(song)

	e.mu.Lock()
	if gen != e.generation.Load() {
		e.mu.Unlock()
		return
	}
	replaced := false
	for i := range e.catalog {
		if e.catalog[i].URI == enriched.URI {
			if enriched.Duration == 0 && e.catalog[i].Duration > 0 {
				enriched.Duration = e.catalog[i].Duration
			}
			e.catalog[i] = enriched
			replaced = true
			break
		}
	}
	if !replaced {
		e.catalog = append(e.catalog, enriched)
	}
	e.mu.Unlock()

	event := events.NewEvent(events.EventLibraryFileAdded, "Library File Added", enriched.URI)
	e.publish(event)
	e.notify(gen, false)
}

// DropFromCatalog removes an entry from the live catalog only. Storage keeps
// the record; a future full rescan is what reconciles deletions.
func (e *Engine) DropFromCatalog(uri string) {
	gen := e.generation.Load()

	e.mu.Lock()
	for i := range e.catalog {
		if e.catalog[i].URI == uri {
			e.catalog = append(e.catalog[:i], e.catalog[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	e.publish(events.NewEvent(events.EventLibraryFileRemoved, "Library File Removed", uri))
	e.notify(gen, false)
}

func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.PublishAsync(event)
	}
}
