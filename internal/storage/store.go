// Package storage persists song records against an embedded database with an
// automatic in-memory fallback. Once the durable backend fails in any way the
// store degrades to memory for the rest of its lifetime; it never retries the
// backend mid-session.
package storage

import (
	"errors"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/mantonx/tonearm/internal/database"
	"github.com/mantonx/tonearm/internal/logger"
)

var errAllBackendsFailed = errors.New("all durable backends rejected schema setup")

// Mode describes the store's persistence state.
type Mode int32

const (
	ModeInitializing Mode = iota
	ModeReady
	ModeDegradedMemory
)

func (m Mode) String() string {
	switch m {
	case ModeReady:
		return "ready"
	case ModeDegradedMemory:
		return "degraded-memory"
	default:
		return "initializing"
	}
}

// Store is the resilient song store. All methods are safe for concurrent use
// by enrichment workers.
type Store struct {
	backends []DurableBackend
	mem      *memoryStore

	mu     sync.RWMutex // protects active
	active DurableBackend

	mode     atomic.Int32
	initOnce sync.Once

	degradeHook func(op string, err error)
}

// New creates a store over the given database handle. A nil handle is
// accepted and simply means the store starts degraded after Initialize.
func New(db *gorm.DB) *Store {
	var backends []DurableBackend
	if db != nil {
		backends = DefaultBackends(db)
	}
	return NewWithBackends(backends...)
}

// NewWithBackends creates a store with an explicit backend probe order.
func NewWithBackends(backends ...DurableBackend) *Store {
	return &Store{
		backends: backends,
		mem:      newMemoryStore(),
	}
}

// Initialize probes the backend strategies in order and keeps the first one
// that can set up the record schema. When none succeeds the store enters
// degraded memory mode. Initialize runs at most once; later calls (including
// the implicit ones from Save and GetAll) return immediately.
func (s *Store) Initialize() {
	s.initOnce.Do(s.initialize)
}

func (s *Store) initialize() {
	for _, b := range s.backends {
		if err := b.EnsureSchema(); err != nil {
			logger.Warn("durable backend rejected schema setup", "backend", b.Name(), "error", err)
			continue
		}
		s.mu.Lock()
		s.active = b
		s.mu.Unlock()
		s.mode.Store(int32(ModeReady))
		logger.Info("song store ready", "backend", b.Name())
		return
	}
	s.degrade("initialize", errAllBackendsFailed)
}

// OnDegrade registers a callback fired once, on the transition into degraded
// memory mode. It must be set before the store is used concurrently.
func (s *Store) OnDegrade(fn func(op string, err error)) {
	s.degradeHook = fn
}

// Mode reports the current persistence state.
func (s *Store) Mode() Mode {
	return Mode(s.mode.Load())
}

func (s *Store) activeBackend() DurableBackend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// degrade flips the store into memory-only mode. The transition is one way:
// once persistence has failed the backend is never retried, so a flaky
// driver cannot mask further failures with partial writes.
func (s *Store) degrade(op string, err error) {
	already := s.mode.Swap(int32(ModeDegradedMemory)) == int32(ModeDegradedMemory)
	logger.Error("durable backend failed, degrading to in-memory store", "op", op, "error", err)
	if !already && s.degradeHook != nil {
		s.degradeHook(op, err)
	}
}

// Save upserts the record by id, reconciling by URI when needed. A nil or
// unidentifiable record is a no-op, not an error; enrichment callers are
// allowed to save speculatively. A durable write failure degrades the store
// but the save still completes in memory, so no enrichment work is lost.
func (s *Store) Save(song *database.Song) {
	if song == nil || (song.ID == "" && song.URI == "") {
		return
	}
	s.Initialize()

	song.Normalize()

	if s.Mode() == ModeReady {
		if err := s.activeBackend().Upsert(song); err != nil {
			s.degrade("save", err)
		}
	}
	s.mem.save(*song)
}

// GetAll returns every stored record, in no particular order. A durable read
// failure degrades the store and falls back to whatever memory holds.
func (s *Store) GetAll() []database.Song {
	s.Initialize()

	if s.Mode() == ModeReady {
		songs, err := s.activeBackend().FetchAll()
		if err == nil {
			return songs
		}
		s.degrade("getAll", err)
	}
	return s.mem.all()
}
