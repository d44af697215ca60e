package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"melodex/internal/catalog"
	"melodex/internal/logging"
	"melodex/internal/mediatypes"
	"melodex/internal/tags"
)

// Writer applies resolved links back onto the catalog: it upserts the
// track record, maintains the album's membership list and derived
// fields, and keeps artist back-links consistent. Every write is
// idempotent; re-running on an unchanged file produces no effective
// state change.
type Writer struct {
	catalog *catalog.Catalog
}

// NewWriter creates a Writer over the catalog.
func NewWriter(c *catalog.Catalog) *Writer {
	return &Writer{catalog: c}
}

// WriteTrack upserts the track identified by trackID along with its
// album, artist back-links, cover art, and path index entry.
// coverPath is the cover image found in the track's directory, or "".
func (w *Writer) WriteTrack(ctx context.Context, trackID, path string, md *tags.Metadata, res *Resolution, coverPath string) error {
	// Previous record, for duration deltas on re-scan of changed files
	var prev *catalog.Track
	if t, err := w.catalog.GetTrack(ctx, trackID); err == nil {
		prev = t
	} else if !errors.Is(err, catalog.ErrNotFound) && !catalog.IsMalformed(err) {
		return fmt.Errorf("load existing track: %w", err)
	}

	track := w.buildTrack(trackID, path, md, res)

	album, err := w.upsertAlbum(ctx, track, prev, md, res, coverPath)
	if err != nil {
		return fmt.Errorf("upsert album: %w", err)
	}

	if album.CoverArtID != "" {
		track.CoverArtID = album.CoverArtID
	}

	if err := w.linkArtists(ctx, album); err != nil {
		return fmt.Errorf("link artists: %w", err)
	}

	if err := w.catalog.PutTrack(ctx, track); err != nil {
		return fmt.Errorf("put track: %w", err)
	}

	if err := w.catalog.BindPath(ctx, path, trackID); err != nil {
		return fmt.Errorf("bind path: %w", err)
	}

	return nil
}

func (w *Writer) buildTrack(trackID, path string, md *tags.Metadata, res *Resolution) *catalog.Track {
	contentType := md.ContentType
	if contentType == "" {
		contentType = mediatypes.MimeTypeForPath(path)
	}

	date := catalog.ParseReleaseDate(md.Date)

	return &catalog.Track{
		ID:            trackID,
		Path:          path,
		ContentType:   contentType,
		Duration:      md.Duration,
		DiscNumber:    md.DiscNumber,
		TrackNumber:   md.TrackNumber,
		AlbumID:       res.AlbumID,
		ArtistIDs:     append([]string(nil), res.ArtistIDs...),
		Title:         md.Title,
		Year:          catalog.ReleaseYear(date),
		Genres:        normalizeGenres(md.Genres),
		MusicBrainzID: md.MusicBrainzID,
	}
}

// upsertAlbum attaches the track to its album, recomputing membership,
// counts, duration, disc metadata, and credited artists. The album is
// persisted only when something actually changed.
func (w *Writer) upsertAlbum(ctx context.Context, track *catalog.Track, prev *catalog.Track, md *tags.Metadata, res *Resolution, coverPath string) (*catalog.Album, error) {
	album, err := w.catalog.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) && !catalog.IsMalformed(err) {
			return nil, err
		}
		// The resolver's cached album vanished mid-run; reseed it.
		logging.Warn("Album %s missing during write, reseeding", res.AlbumID)
		date := catalog.ParseReleaseDate(md.Date)
		album = &catalog.Album{
			ID:            res.AlbumID,
			Name:          strings.TrimSpace(md.Album),
			Song:          []string{},
			ArtistIDs:     append([]string(nil), res.ArtistIDs...),
			DisplayArtist: catalog.DisplayArtist(res.ArtistNames),
			ReleaseDate:   date,
			Year:          catalog.ReleaseYear(date),
		}
	}

	changed := false

	if !album.HasSong(track.ID) {
		album.Song = append(album.Song, track.ID)
		album.Duration += track.Duration
		changed = true
	} else if prev != nil && prev.Duration != track.Duration {
		album.Duration += track.Duration - prev.Duration
		changed = true
	}
	if album.SongCount != len(album.Song) {
		album.SongCount = len(album.Song)
		changed = true
	}

	if track.DiscNumber > 0 && !album.HasDisc(track.DiscNumber) {
		album.DiscTitles = append(album.DiscTitles, catalog.DiscTitle{Disc: track.DiscNumber})
		changed = true
	}

	for _, artistID := range res.ArtistIDs {
		if !album.HasArtist(artistID) {
			album.ArtistIDs = append(album.ArtistIDs, artistID)
			changed = true
		}
	}

	if coverPath != "" {
		if err := w.upsertCover(ctx, album.ID, coverPath); err != nil {
			return nil, err
		}
		if album.CoverArtID != album.ID {
			album.CoverArtID = album.ID
			changed = true
		}
	}

	if changed {
		if err := w.catalog.PutAlbum(ctx, album); err != nil {
			return nil, err
		}
	}

	return album, nil
}

// upsertCover writes the cover record for an album. The cover id is the
// album id, so repeated scans hit the same record.
func (w *Writer) upsertCover(ctx context.Context, albumID, coverPath string) error {
	want := &catalog.CoverArt{
		ID:       albumID,
		Path:     coverPath,
		MimeType: mediatypes.MimeTypeForPath(coverPath),
	}

	existing, err := w.catalog.GetCover(ctx, albumID)
	if err == nil && existing.Path == want.Path && existing.MimeType == want.MimeType {
		return nil
	}
	if err != nil && !errors.Is(err, catalog.ErrNotFound) && !catalog.IsMalformed(err) {
		return err
	}
	return w.catalog.PutCover(ctx, want)
}

// linkArtists ensures every artist credited on the album back-links the
// album and that albumCount tracks the album list length.
func (w *Writer) linkArtists(ctx context.Context, album *catalog.Album) error {
	for _, artistID := range album.ArtistIDs {
		artist, err := w.catalog.GetArtist(ctx, artistID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) || catalog.IsMalformed(err) {
				// Resolved this run, so it should exist; the sweep will
				// reconcile the credit if it truly is gone.
				logging.Warn("Artist %s missing while linking album %s", artistID, album.ID)
				continue
			}
			return err
		}

		changed := false
		if !artist.HasAlbum(album.ID) {
			artist.Albums = append(artist.Albums, album.ID)
			changed = true
		}
		if artist.AlbumCount != len(artist.Albums) {
			artist.AlbumCount = len(artist.Albums)
			changed = true
		}

		if changed {
			if err := w.catalog.PutArtist(ctx, artist); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
