package storage

import (
	"sync"

	"github.com/mantonx/tonearm/internal/database"
)

// memoryStore is the in-process fallback record store. It mirrors every
// successful save so a mid-session degradation never loses records, and
// becomes the only store once the durable backend has failed.
type memoryStore struct {
	mu    sync.RWMutex
	songs map[string]database.Song
	byURI map[string]string // uri -> id
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		songs: make(map[string]database.Song),
		byURI: make(map[string]string),
	}
}

// save upserts by id, reconciling by URI when the id is new but the URI is
// already known. Replacement is wholesale, not field-by-field.
func (m *memoryStore) save(song database.Song) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[song.ID]; !ok {
		if id, ok := m.byURI[song.URI]; ok {
			song.ID = id
		}
	}
	m.songs[song.ID] = song
	if song.URI != "" {
		m.byURI[song.URI] = song.ID
	}
}

func (m *memoryStore) all() []database.Song {
	m.mu.RLock()
	defer m.mu.RUnlock()

	songs := make([]database.Song, 0, len(m.songs))
	for _, s := range m.songs {
		songs = append(songs, s)
	}
	return songs
}

func (m *memoryStore) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.songs)
}
