package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mantonx/tonearm/internal/logger"
	"github.com/mantonx/tonearm/internal/utils"
)

// FolderMonitor watches a scanned library folder and feeds file changes
// back into the engine, so files dropped in after the scan show up without
// a rescan. Rapid event bursts for the same path (editors, partial copies)
// are debounced.
type FolderMonitor struct {
	engine  *Engine
	watcher *fsnotify.Watcher

	debounce time.Duration
	mu       sync.Mutex
	pending  map[string]*time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFolderMonitor creates a monitor bound to the engine.
func NewFolderMonitor(engine *Engine) (*FolderMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FolderMonitor{
		engine:   engine,
		watcher:  watcher,
		debounce: 2 * time.Second,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Watch adds a folder to the watch set.
func (fm *FolderMonitor) Watch(dir string) error {
	if err := fm.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("watching library folder", "path", dir)
	return nil
}

// Start launches the event loop.
func (fm *FolderMonitor) Start(ctx context.Context) {
	ctx, fm.cancel = context.WithCancel(ctx)
	fm.wg.Add(1)
	go fm.watchEvents(ctx)
}

// Stop shuts the monitor down and waits for the event loop to exit.
func (fm *FolderMonitor) Stop() {
	if fm.cancel != nil {
		fm.cancel()
	}
	fm.watcher.Close()
	fm.wg.Wait()
}

func (fm *FolderMonitor) watchEvents(ctx context.Context) {
	defer fm.wg.Done()

	for {
		select {
		case event, ok := <-fm.watcher.Events:
			if !ok {
				return
			}
			fm.handleEvent(event)
		case err, ok := <-fm.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (fm *FolderMonitor) handleEvent(event fsnotify.Event) {
	if !utils.IsAudioFile(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		fm.scheduleIngest(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		fm.cancelPending(event.Name)
		fm.engine.DropFromCatalog(event.Name)
	}
}

// scheduleIngest (re)arms the debounce timer for a path. Only the last
// event in a burst triggers an ingest, once the file has settled.
func (fm *FolderMonitor) scheduleIngest(path string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if timer, ok := fm.pending[path]; ok {
		timer.Stop()
	}
	fm.pending[path] = time.AfterFunc(fm.debounce, func() {
		fm.mu.Lock()
		delete(fm.pending, path)
		fm.mu.Unlock()

		logger.Debug("ingesting watched file", "path", path)
		fm.engine.IngestFile(path)
	})
}

func (fm *FolderMonitor) cancelPending(path string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if timer, ok := fm.pending[path]; ok {
		timer.Stop()
		delete(fm.pending, path)
	}
}
