package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel values used when a tag field is missing or unreadable.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Song represents one audio track in the catalog. A Song starts as a
// placeholder built from its file name and is enriched in place as tag
// metadata becomes available.
type Song struct {
	ID       string  `gorm:"primaryKey" json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	URI      string  `gorm:"uniqueIndex;not null" json:"uri"`
	Duration float64 `json:"duration"` // seconds; 0 means not yet known
	Cover    string  `json:"cover,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize fills empty fields with sentinel values and derives an ID from
// the URI when none is set. After Normalize the ID is never empty.
func (s *Song) Normalize() {
	if s.ID == "" {
		if s.URI != "" {
			s.ID = s.URI
		} else {
			s.ID = uuid.NewString()
		}
	}
	if s.Title == "" {
		s.Title = UnknownTitle
	}
	if s.Artist == "" {
		s.Artist = UnknownArtist
	}
	if s.Album == "" {
		s.Album = UnknownAlbum
	}
	if s.Duration < 0 {
		s.Duration = 0
	}
}

// FormattedDuration renders the duration as mm:ss.
func (s *Song) FormattedDuration() string {
	total := int(s.Duration)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
