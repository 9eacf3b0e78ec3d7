package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mantonx/tonearm/internal/database"
)

// DurableBackend is one strategy for talking to the embedded record store.
// The driver API surface differs across deployments, so the store probes an
// ordered list of strategies at initialization and keeps the first one whose
// schema setup succeeds.
type DurableBackend interface {
	Name() string
	EnsureSchema() error
	Upsert(song *database.Song) error
	FetchAll() ([]database.Song, error)
}

// DefaultBackends returns the probe order used by the store: explicit
// transactions first, then batched writes, then raw single statements.
func DefaultBackends(db *gorm.DB) []DurableBackend {
	return []DurableBackend{
		&transactionalBackend{db: db},
		&batchBackend{db: db},
		&execBackend{db: db},
	}
}

// transactionalBackend wraps every operation in an explicit transaction.
type transactionalBackend struct {
	db *gorm.DB
}

func (b *transactionalBackend) Name() string { return "transactional" }

func (b *transactionalBackend) EnsureSchema() error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(&database.Song{})
	})
}

func (b *transactionalBackend) Upsert(song *database.Song) error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		var existing database.Song
		err := tx.Where("id = ? OR uri = ?", song.ID, song.URI).First(&existing).Error
		if err == nil {
			// Wholesale replacement of the matched row. A row found by URI
			// keeps its original id so playback references stay valid.
			song.ID = existing.ID
			song.CreatedAt = existing.CreatedAt
			return tx.Model(&database.Song{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
				"title":    song.Title,
				"artist":   song.Artist,
				"album":    song.Album,
				"uri":      song.URI,
				"duration": song.Duration,
				"cover":    song.Cover,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(song).Error
	})
}

func (b *transactionalBackend) FetchAll() ([]database.Song, error) {
	var songs []database.Song
	err := b.db.Transaction(func(tx *gorm.DB) error {
		return tx.Find(&songs).Error
	})
	return songs, err
}

// batchBackend uses conflict-aware batched creates.
type batchBackend struct {
	db *gorm.DB
}

func (b *batchBackend) Name() string { return "batch" }

func (b *batchBackend) EnsureSchema() error {
	return b.db.AutoMigrate(&database.Song{})
}

func (b *batchBackend) Upsert(song *database.Song) error {
	var existing database.Song
	err := b.db.Where("uri = ? AND id <> ?", song.URI, song.ID).First(&existing).Error
	if err == nil {
		song.ID = existing.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches([]*database.Song{song}, 1).Error
}

func (b *batchBackend) FetchAll() ([]database.Song, error) {
	var songs []database.Song
	err := b.db.Find(&songs).Error
	return songs, err
}

// execBackend issues raw single statements for drivers where the higher
// level APIs misbehave.
type execBackend struct {
	db *gorm.DB
}

func (b *execBackend) Name() string { return "exec" }

func (b *execBackend) EnsureSchema() error {
	return b.db.Exec(`CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT,
		artist TEXT,
		album TEXT,
		uri TEXT UNIQUE NOT NULL,
		duration REAL,
		cover TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`).Error
}

func (b *execBackend) Upsert(song *database.Song) error {
	// Reconcile a legacy row that carries the same URI under another id
	// before inserting, the insert below only resolves id conflicts.
	if err := b.db.Exec(`DELETE FROM songs WHERE uri = ? AND id <> ?`, song.URI, song.ID).Error; err != nil {
		return err
	}
	return b.db.Exec(`INSERT INTO songs (id, title, artist, album, uri, duration, cover, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			uri = excluded.uri,
			duration = excluded.duration,
			cover = excluded.cover,
			updated_at = CURRENT_TIMESTAMP`,
		song.ID, song.Title, song.Artist, song.Album, song.URI, song.Duration, song.Cover).Error
}

func (b *execBackend) FetchAll() ([]database.Song, error) {
	var songs []database.Song
	err := b.db.Raw(`SELECT id, title, artist, album, uri, duration, cover FROM songs`).Scan(&songs).Error
	return songs, err
}
