package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mantonx/tonearm/internal/database"
)

// stubBackend is a controllable backend for exercising the store's probe
// order and degradation paths without a real database.
type stubBackend struct {
	name      string
	schemaErr error
	upsertErr error
	fetchErr  error

	mu          sync.Mutex
	schemaCalls int
	upsertCalls int
	rows        map[string]database.Song
}

func newStubBackend(name string) *stubBackend {
	return &stubBackend{name: name, rows: make(map[string]database.Song)}
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) EnsureSchema() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schemaCalls++
	return b.schemaErr
}

func (b *stubBackend) Upsert(song *database.Song) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsertCalls++
	if b.upsertErr != nil {
		return b.upsertErr
	}
	b.rows[song.ID] = *song
	return nil
}

func (b *stubBackend) FetchAll() ([]database.Song, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	songs := make([]database.Song, 0, len(b.rows))
	for _, s := range b.rows {
		songs = append(songs, s)
	}
	return songs, nil
}

func (b *stubBackend) upserts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upsertCalls
}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store := New(db)
	store.Initialize()
	require.Equal(t, ModeReady, store.Mode())
	return store
}

func TestSaveAndGetAll(t *testing.T) {
	store := newSQLiteStore(t)

	store.Save(&database.Song{ID: "song-1", Title: "First", Artist: "Someone", URI: "/music/first.mp3", Duration: 120})

	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "First", songs[0].Title)
	assert.Equal(t, "Someone", songs[0].Artist)
	assert.Equal(t, 120.0, songs[0].Duration)
}

func TestSaveIsIdempotentUpsert(t *testing.T) {
	store := newSQLiteStore(t)

	store.Save(&database.Song{ID: "song-1", Title: "Before", URI: "/music/track.mp3"})
	store.Save(&database.Song{ID: "song-1", Title: "After", Artist: "Found Artist", URI: "/music/track.mp3", Duration: 95})

	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "After", songs[0].Title)
	assert.Equal(t, "Found Artist", songs[0].Artist)
	assert.Equal(t, 95.0, songs[0].Duration)
}

func TestSaveReconcilesByURI(t *testing.T) {
	store := newSQLiteStore(t)

	store.Save(&database.Song{ID: "old-id", Title: "Original", URI: "/music/same.mp3"})
	store.Save(&database.Song{ID: "new-id", Title: "Replacement", URI: "/music/same.mp3"})

	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "old-id", songs[0].ID, "a row matched by URI keeps its original id")
	assert.Equal(t, "Replacement", songs[0].Title)
}

func TestSaveNormalizesRecord(t *testing.T) {
	store := newSQLiteStore(t)

	store.Save(&database.Song{URI: "/music/bare.mp3"})

	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "/music/bare.mp3", songs[0].ID)
	assert.Equal(t, database.UnknownTitle, songs[0].Title)
	assert.Equal(t, database.UnknownArtist, songs[0].Artist)
	assert.Equal(t, database.UnknownAlbum, songs[0].Album)
}

func TestSaveIgnoresUnidentifiableRecords(t *testing.T) {
	store := newSQLiteStore(t)

	store.Save(nil)
	store.Save(&database.Song{Title: "no identity"})

	assert.Empty(t, store.GetAll())
}

func TestInitializeProbesBackendsInOrder(t *testing.T) {
	broken := newStubBackend("broken")
	broken.schemaErr = errors.New("no such api")
	working := newStubBackend("working")

	store := NewWithBackends(broken, working)
	store.Initialize()

	assert.Equal(t, ModeReady, store.Mode())

	store.Save(&database.Song{ID: "s1", URI: "/music/a.mp3"})
	assert.Equal(t, 0, broken.upserts(), "rejected backend must never see writes")
	assert.Equal(t, 1, working.upserts())
}

func TestInitializeRunsOnce(t *testing.T) {
	backend := newStubBackend("counting")
	store := NewWithBackends(backend)

	store.Initialize()
	store.Initialize()
	store.GetAll() // implicit initialize

	backend.mu.Lock()
	calls := backend.schemaCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestAllBackendsFailingDegradesToMemory(t *testing.T) {
	first := newStubBackend("first")
	first.schemaErr = errors.New("locked")
	second := newStubBackend("second")
	second.schemaErr = errors.New("corrupt")

	store := NewWithBackends(first, second)
	store.Initialize()

	assert.Equal(t, ModeDegradedMemory, store.Mode())

	store.Save(&database.Song{ID: "s1", Title: "Still Works", URI: "/music/a.mp3"})
	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "Still Works", songs[0].Title)
}

func TestNoBackendsMeansDegraded(t *testing.T) {
	store := New(nil)
	store.Initialize()
	assert.Equal(t, ModeDegradedMemory, store.Mode())
}

func TestWriteFailureDegradesButSaveCompletes(t *testing.T) {
	backend := newStubBackend("flaky")
	backend.upsertErr = errors.New("disk I/O error")

	store := NewWithBackends(backend)
	store.Initialize()
	require.Equal(t, ModeReady, store.Mode())

	store.Save(&database.Song{ID: "s1", Title: "Survivor", URI: "/music/a.mp3"})

	assert.Equal(t, ModeDegradedMemory, store.Mode())
	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "Survivor", songs[0].Title)
}

func TestDegradationIsPermanent(t *testing.T) {
	backend := newStubBackend("recovering")
	backend.upsertErr = errors.New("transient failure")

	store := NewWithBackends(backend)
	store.Initialize()

	store.Save(&database.Song{ID: "s1", URI: "/music/a.mp3"})
	require.Equal(t, ModeDegradedMemory, store.Mode())

	// The backend "recovers", but the store must never go back to it.
	backend.mu.Lock()
	backend.upsertErr = nil
	backend.mu.Unlock()

	store.Save(&database.Song{ID: "s2", URI: "/music/b.mp3"})

	assert.Equal(t, ModeDegradedMemory, store.Mode())
	assert.Equal(t, 1, backend.upserts(), "degraded store must not retry the backend")
	assert.Len(t, store.GetAll(), 2)
}

func TestDegradeHookFiresOnce(t *testing.T) {
	backend := newStubBackend("flaky")
	backend.upsertErr = errors.New("write failed")
	backend.fetchErr = errors.New("read failed")

	store := NewWithBackends(backend)
	var fired int
	var gotOp string
	store.OnDegrade(func(op string, err error) {
		fired++
		gotOp = op
	})
	store.Initialize()

	store.Save(&database.Song{ID: "s1", URI: "/music/a.mp3"})
	store.GetAll()
	store.Save(&database.Song{ID: "s2", URI: "/music/b.mp3"})

	assert.Equal(t, 1, fired, "the degraded transition happens exactly once")
	assert.Equal(t, "save", gotOp)
}

func TestDegradeHookFiresWhenAllBackendsFail(t *testing.T) {
	backend := newStubBackend("dead")
	backend.schemaErr = errors.New("no schema")

	store := NewWithBackends(backend)
	var fired int
	store.OnDegrade(func(string, error) { fired++ })
	store.Initialize()

	assert.Equal(t, 1, fired)
	assert.Equal(t, ModeDegradedMemory, store.Mode())
}

func TestReadFailureDegradesAndServesMemoryMirror(t *testing.T) {
	backend := newStubBackend("readbroken")

	store := NewWithBackends(backend)
	store.Initialize()

	// Both saves succeed durably and are mirrored in memory.
	store.Save(&database.Song{ID: "s1", Title: "One", URI: "/music/a.mp3"})
	store.Save(&database.Song{ID: "s2", Title: "Two", URI: "/music/b.mp3"})

	backend.mu.Lock()
	backend.fetchErr = errors.New("database is closed")
	backend.mu.Unlock()

	songs := store.GetAll()
	assert.Equal(t, ModeDegradedMemory, store.Mode())
	assert.Len(t, songs, 2, "records saved before degradation stay readable")
}

func TestConcurrentSaves(t *testing.T) {
	store := newSQLiteStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Save(&database.Song{
				ID:  fmt.Sprintf("song-%d", n),
				URI: fmt.Sprintf("/music/%d.mp3", n),
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.GetAll(), 16)
}

func TestExecBackendWriteFailureInjection(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS songs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM songs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO songs").WillReturnError(errors.New("disk I/O error"))

	store := NewWithBackends(&execBackend{db: gdb})
	store.Initialize()
	require.Equal(t, ModeReady, store.Mode())

	store.Save(&database.Song{ID: "s1", Title: "Kept", URI: "/music/a.mp3"})

	assert.Equal(t, ModeDegradedMemory, store.Mode())
	songs := store.GetAll()
	require.Len(t, songs, 1)
	assert.Equal(t, "Kept", songs[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecBackendSchemaFailureInjection(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS songs").WillReturnError(errors.New("attempt to write a readonly database"))

	store := NewWithBackends(&execBackend{db: gdb})
	store.Initialize()

	assert.Equal(t, ModeDegradedMemory, store.Mode())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreURIReconciliation(t *testing.T) {
	m := newMemoryStore()

	m.save(database.Song{ID: "a", Title: "First", URI: "/music/x.mp3"})
	m.save(database.Song{ID: "b", Title: "Second", URI: "/music/x.mp3"})

	require.Equal(t, 1, m.count())
	songs := m.all()
	assert.Equal(t, "a", songs[0].ID)
	assert.Equal(t, "Second", songs[0].Title)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "initializing", ModeInitializing.String())
	assert.Equal(t, "ready", ModeReady.String())
	assert.Equal(t, "degraded-memory", ModeDegradedMemory.String())
}
