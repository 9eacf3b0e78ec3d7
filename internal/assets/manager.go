// Package assets stores cover art extracted from audio files. Covers are
// kept on disk under a data directory and referenced from song records by
// path, so durable rows stay small.
package assets

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"

	"github.com/mantonx/tonearm/internal/config"
	"github.com/mantonx/tonearm/internal/logger"
)

// Manager persists cover art blobs, optionally re-encoding them to WebP.
type Manager struct {
	dataDir    string
	enableWebP bool
	quality    float32
}

// NewManager creates the asset directory and returns a manager for it.
func NewManager(cfg config.AssetConfig) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	quality := float32(cfg.Quality)
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Manager{
		dataDir:    cfg.DataDir,
		enableWebP: cfg.EnableWebP,
		quality:    quality,
	}, nil
}

// SaveCover writes the cover blob for the given song and returns the stored
// path. JPEG and PNG covers are re-encoded to WebP when enabled; anything
// else is written as-is.
func (m *Manager) SaveCover(songID string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cover data cannot be empty")
	}

	name := coverName(songID)

	if m.enableWebP {
		if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			path := filepath.Join(m.dataDir, name+".webp")
			var buf bytes.Buffer
			if err := webp.Encode(&buf, img, &webp.Options{Quality: m.quality}); err == nil {
				if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
					return "", fmt.Errorf("failed to write cover: %w", err)
				}
				return path, nil
			}
			logger.Debug("webp encode failed, storing original cover", "song", songID)
		}
	}

	path := filepath.Join(m.dataDir, name+extForMIME(mimeType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write cover: %w", err)
	}
	return path, nil
}

// coverName derives a filesystem-safe name from a song id, which is usually
// a URI full of separators.
func coverName(songID string) string {
	sum := sha1.Sum([]byte(songID))
	return hex.EncodeToString(sum[:])
}

func extForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".img"
	}
}
