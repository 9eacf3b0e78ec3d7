package utils

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// AudioFileExtensions defines the audio formats the scanner recognizes.
var AudioFileExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".wma":  true,
	".ape":  true,
	".mpc":  true,
	".wv":   true,
	".opus": true,
	".aiff": true,
}

// IsAudioFile checks if a file name has a recognized audio extension.
// The check is case-insensitive.
func IsAudioFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return AudioFileExtensions[ext]
}

// TitleFromFilename derives a display title from a file name or URI: the
// percent-decoded base name with the extension stripped. "Song%20A.mp3"
// becomes "Song A"; "song_b.wav" becomes "song_b".
func TitleFromFilename(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	base := path.Base(filepath.ToSlash(name))
	return strings.TrimSuffix(base, path.Ext(base))
}
