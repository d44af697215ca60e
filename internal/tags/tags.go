package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"melodex/internal/mediatypes"
)

// Metadata is the parsed tag and audio-property view of one file, as
// supplied by the metadata-extraction collaborator. The engine treats it
// as opaque and already validated.
type Metadata struct {
	Title         string
	Album         string
	Artist        string   // raw artist tag string, possibly multi-valued
	Artists       []string // explicit artist array when the format has one
	AlbumArtist   string
	Genres        []string
	Date          string // raw date/year tag value
	DiscNumber    int
	TrackNumber   int
	MusicBrainzID string
	ReleaseType   string

	// Audio properties
	Duration    int // seconds; 0 when unknown
	ContentType string
}

// Reader extracts Metadata from an audio file.
type Reader interface {
	Read(path string) (*Metadata, error)
}

// TagReader reads tags with dhowden/tag.
type TagReader struct{}

// NewReader returns the default tag reader.
func NewReader() *TagReader {
	return &TagReader{}
}

// Read parses the file's tags. Title falls back to the file basename and
// album to "[Unknown Album]" so every readable file yields a usable
// Metadata even when untagged.
func (r *TagReader) Read(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	md := &Metadata{
		ContentType: mediatypes.MimeTypeForPath(path),
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged but supported files still get indexed
		md.Title = basenameTitle(path)
		md.Album = "[Unknown Album]"
		return md, nil
	}

	md.Title = m.Title()
	if md.Title == "" {
		md.Title = basenameTitle(path)
	}

	md.Album = m.Album()
	if md.Album == "" {
		md.Album = "[Unknown Album]"
	}

	md.Artist = m.Artist()
	md.AlbumArtist = m.AlbumArtist()
	if genre := strings.TrimSpace(m.Genre()); genre != "" {
		md.Genres = []string{genre}
	}

	md.TrackNumber, _ = m.Track()
	md.DiscNumber, _ = m.Disc()
	md.Date = rawDate(m)

	if raw := m.Raw(); raw != nil {
		if v, ok := raw["MUSICBRAINZ_ALBUMID"]; ok {
			md.MusicBrainzID = fmt.Sprint(v)
		}
		if v, ok := raw["RELEASETYPE"]; ok {
			md.ReleaseType = fmt.Sprint(v)
		}
	}

	return md, nil
}

// rawDate prefers a full DATE tag over the bare year.
func rawDate(m tag.Metadata) string {
	if raw := m.Raw(); raw != nil {
		for _, key := range []string{"DATE", "date", "TDRC", "TYER"} {
			if v, ok := raw[key]; ok {
				if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
					return s
				}
			}
		}
	}
	if y := m.Year(); y > 0 {
		return fmt.Sprintf("%d", y)
	}
	return ""
}

func basenameTitle(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
