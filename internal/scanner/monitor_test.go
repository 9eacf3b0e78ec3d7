package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/tonearm/internal/tagreader"
)

func newTestMonitor(t *testing.T, e *Engine) *FolderMonitor {
	t.Helper()
	fm, err := NewFolderMonitor(e)
	require.NoError(t, err)
	fm.debounce = 50 * time.Millisecond
	t.Cleanup(fm.Stop)
	return fm
}

func TestFolderMonitorIngestsCreatedFile(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t)
	e.probe = func(string, int64, int64) *tagreader.Result {
		return &tagreader.Result{Artist: "Dropped In"}
	}

	fm := newTestMonitor(t, e)
	require.NoError(t, fm.Watch(dir))
	fm.Start(context.Background())

	path := filepath.Join(dir, "dropped.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		for _, s := range e.Catalog() {
			if s.URI == path && s.Artist == "Dropped In" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "created file should join the catalog after the debounce")
}

func TestFolderMonitorIgnoresNonAudio(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t)
	e.probe = func(string, int64, int64) *tagreader.Result { return nil }

	fm := newTestMonitor(t, e)
	require.NoError(t, fm.Watch(dir))
	fm.Start(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, e.Catalog())
}

func TestFolderMonitorDropsRemovedFile(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t)
	e.probe = func(string, int64, int64) *tagreader.Result { return nil }

	path := filepath.Join(dir, "short-lived.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	e.IngestFile(path)
	require.Len(t, e.Catalog(), 1)

	fm := newTestMonitor(t, e)
	require.NoError(t, fm.Watch(dir))
	fm.Start(context.Background())

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		return len(e.Catalog()) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFolderMonitorWatchMissingFolder(t *testing.T) {
	e := newTestEngine(t)
	fm := newTestMonitor(t, e)
	assert.Error(t, fm.Watch(filepath.Join(t.TempDir(), "nope")))
}
