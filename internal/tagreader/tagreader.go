// Package tagreader extracts embedded tag metadata (title, artist, album,
// cover art, duration) from bounded byte ranges of audio files. Tag formats
// in the wild are too inconsistent to treat parse failure as exceptional, so
// every reader here is best effort: a chunk that cannot be parsed yields nil,
// never an error.
package tagreader

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
	"github.com/h2non/filetype"

	"github.com/mantonx/tonearm/internal/database"
)

// Default chunk sizes for the two-phase probe. Prefixed tag containers
// (ID3v2, MP4 moov with faststart) fit in the head chunk; appended ones
// (ID3v1, late moov) are caught by the tail chunk.
const (
	DefaultHeadChunkSize int64 = 128 * 1024
	DefaultTailChunkSize int64 = 256 * 1024
)

// Result holds whatever metadata a chunk read could recover. Zero values
// mean the field was not present in the chunk.
type Result struct {
	Title     string
	Artist    string
	Album     string
	Duration  float64 // seconds, 0 when unknown
	Cover     []byte
	CoverMIME string
	Format    string // sniffed container extension, e.g. "mp3"
}

// Incomplete reports whether a follow-up read of the file tail is worth the
// extra I/O: the artist is missing or unreadable, or no cover was found.
func (r *Result) Incomplete() bool {
	if r == nil {
		return true
	}
	return r.Artist == "" || r.Artist == database.UnknownArtist || len(r.Cover) == 0
}

// ReadChunk reads size bytes starting at position (fewer at end of file) and
// attempts to parse an embedded tag container from the chunk. It returns nil
// when nothing could be extracted.
func ReadChunk(ra io.ReaderAt, position, size int64) *Result {
	if size <= 0 || position < 0 {
		return nil
	}
	buf := make([]byte, size)
	n, err := ra.ReadAt(buf, position)
	if err != nil && err != io.EOF {
		return nil
	}
	if n == 0 {
		return nil
	}
	return parseChunk(buf[:n])
}

func parseChunk(buf []byte) *Result {
	result := &Result{}

	if kind, err := filetype.Match(buf); err == nil && kind != filetype.Unknown {
		result.Format = kind.Extension
	}

	parsed := false
	if m, err := tag.ReadFrom(bytes.NewReader(buf)); err == nil {
		result.Title = m.Title()
		result.Artist = m.Artist()
		result.Album = m.Album()
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			result.Cover = pic.Data
			result.CoverMIME = pic.MIMEType
		}
		parsed = true
	}

	if d := chunkDuration(buf, result.Format); d > 0 {
		result.Duration = d
		parsed = true
	}

	if !parsed {
		return nil
	}
	return result
}

// chunkDuration recovers the track duration from container headers that
// carry it up front. MP3 frames would need a full-file walk, so MP3 duration
// stays unknown here.
func chunkDuration(buf []byte, format string) float64 {
	switch format {
	case "wav":
		return wavDuration(buf)
	case "m4a", "mp4", "mov":
		info, err := mp4.Probe(bytes.NewReader(buf))
		if err != nil || info.Timescale == 0 {
			return 0
		}
		return float64(info.Duration) / float64(info.Timescale)
	default:
		return 0
	}
}

// wavDuration walks the RIFF chunk list in the buffer and derives the
// duration from the fmt byte rate and the data chunk size. Both live in the
// file header, so a head chunk is enough even for long recordings.
func wavDuration(buf []byte) float64 {
	if len(buf) < 44 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return 0
	}

	var byteRate uint32
	var dataSize uint32

	off := 12
	for off+8 <= len(buf) {
		id := string(buf[off : off+4])
		size := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+12 <= len(buf) {
				byteRate = binary.LittleEndian.Uint32(buf[body+8 : body+12])
			}
		case "data":
			dataSize = size
		}
		if byteRate > 0 && dataSize > 0 {
			break
		}
		// Chunks are word aligned.
		off = body + int(size)
		if size%2 == 1 {
			off++
		}
		if off <= body {
			break
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0
	}
	return float64(dataSize) / float64(byteRate)
}

// ProbeFile runs the two-phase read strategy against a file on disk: a head
// chunk for prefixed tags, then, only if that result is incomplete, a tail
// chunk for appended tags. The merged result is field independent, so a
// title from the head read combines with a cover from the tail read.
func ProbeFile(path string, headSize, tailSize int64) *Result {
	if headSize <= 0 {
		headSize = DefaultHeadChunkSize
	}
	if tailSize <= 0 {
		tailSize = DefaultTailChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}

	head := ReadChunk(f, 0, headSize)
	if !head.Incomplete() {
		return head
	}

	position := info.Size() - tailSize
	if position < 0 {
		position = 0
	}
	tail := ReadChunk(f, position, tailSize)

	return Merge(head, tail)
}

// Merge combines two chunk results field by field, preferring the head
// read's value, then the tail read's. It returns nil only when both reads
// came up empty.
func Merge(head, tail *Result) *Result {
	if head == nil {
		return tail
	}
	if tail == nil {
		return head
	}

	merged := *head
	if merged.Title == "" {
		merged.Title = tail.Title
	}
	if (merged.Artist == "" || merged.Artist == database.UnknownArtist) && tail.Artist != "" {
		merged.Artist = tail.Artist
	}
	if merged.Album == "" {
		merged.Album = tail.Album
	}
	if merged.Duration == 0 {
		merged.Duration = tail.Duration
	}
	if len(merged.Cover) == 0 {
		merged.Cover = tail.Cover
		merged.CoverMIME = tail.CoverMIME
	}
	if merged.Format == "" {
		merged.Format = tail.Format
	}
	return &merged
}
