package scanner

import (
	"context"
	"testing"

	"melodex/internal/catalog"
	"melodex/internal/tags"
)

func writeOneTrack(t *testing.T, c *catalog.Catalog, path string, md *tags.Metadata, coverPath string) (string, *Resolution) {
	t.Helper()
	ctx := context.Background()

	res, err := NewResolver(c, ";").Resolve(ctx, md)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	trackID := catalog.TrackIDForPath(path)
	if err := NewWriter(c).WriteTrack(ctx, trackID, path, md, res, coverPath); err != nil {
		t.Fatalf("WriteTrack failed: %v", err)
	}
	return trackID, res
}

func TestWriteTrackCreatesEverything(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	md := &tags.Metadata{
		Title:    "Song One",
		Album:    "The Album",
		Artist:   "The Band",
		Duration: 180,
		Date:     "2003-06-17",
		Genres:   []string{"Rock", " "},
	}
	trackID, res := writeOneTrack(t, c, "/music/band/album/01.flac", md, "")

	track, err := c.GetTrack(ctx, trackID)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.Title != "Song One" || track.Duration != 180 || track.Year != 2003 {
		t.Errorf("Unexpected track: %+v", track)
	}
	if len(track.Genres) != 1 || track.Genres[0] != "Rock" {
		t.Errorf("Expected genres [Rock], got %v", track.Genres)
	}

	album, err := c.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if !album.HasSong(trackID) {
		t.Error("Expected album to list the track")
	}
	if album.SongCount != 1 || album.Duration != 180 {
		t.Errorf("Expected songCount 1 duration 180, got %d and %d", album.SongCount, album.Duration)
	}

	artist, err := c.GetArtist(ctx, res.ArtistIDs[0])
	if err != nil {
		t.Fatalf("GetArtist failed: %v", err)
	}
	if !artist.HasAlbum(res.AlbumID) || artist.AlbumCount != 1 {
		t.Errorf("Expected artist back-link, got %+v", artist)
	}

	mapped, err := c.LookupPath(ctx, "/music/band/album/01.flac")
	if err != nil {
		t.Fatalf("LookupPath failed: %v", err)
	}
	if mapped != trackID {
		t.Errorf("Expected path index to map to %s, got %s", trackID, mapped)
	}
}

func TestWriteTrackIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	md := &tags.Metadata{Title: "Song", Album: "Album", Artist: "Band", Duration: 120}

	trackID, res := writeOneTrack(t, c, "/music/a.flac", md, "")
	// Re-scan of the identical file
	trackID2, res2 := writeOneTrack(t, c, "/music/a.flac", md, "")

	if trackID != trackID2 {
		t.Errorf("Expected stable track id, got %s and %s", trackID, trackID2)
	}
	if res.AlbumID != res2.AlbumID {
		t.Error("Expected stable album id across scans")
	}

	album, err := c.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if len(album.Song) != 1 {
		t.Errorf("Expected 1 song after re-scan, got %d", len(album.Song))
	}
	if album.Duration != 120 {
		t.Errorf("Expected duration 120 after re-scan, got %d", album.Duration)
	}

	artist, err := c.GetArtist(ctx, res.ArtistIDs[0])
	if err != nil {
		t.Fatalf("GetArtist failed: %v", err)
	}
	if len(artist.Albums) != 1 || artist.AlbumCount != 1 {
		t.Errorf("Expected 1 album credit after re-scan, got %+v", artist)
	}
}

func TestWriteTrackUpdatesAlbumDurationOnChange(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	md := &tags.Metadata{Title: "Song", Album: "Album", Artist: "Band", Duration: 120}
	_, res := writeOneTrack(t, c, "/music/a.flac", md, "")

	// Same file re-tagged with a different duration
	md.Duration = 150
	writeOneTrack(t, c, "/music/a.flac", md, "")

	album, err := c.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if album.Duration != 150 {
		t.Errorf("Expected album duration 150 after re-tag, got %d", album.Duration)
	}
}

func TestWriteTrackAccumulatesAlbum(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	res := func() *Resolution {
		r := NewResolver(c, ";")
		writer := NewWriter(c)
		var last *Resolution
		for i, path := range []string{"/m/01.flac", "/m/02.flac", "/m/03.flac"} {
			md := &tags.Metadata{
				Title:    "Song",
				Album:    "Album",
				Artist:   "Band",
				Duration: 100,
				DiscNumber: 1 + i%2,
			}
			r2, err := r.Resolve(ctx, md)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if err := writer.WriteTrack(ctx, catalog.TrackIDForPath(path), path, md, r2, ""); err != nil {
				t.Fatalf("WriteTrack failed: %v", err)
			}
			last = r2
		}
		return last
	}()

	album, err := c.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if album.SongCount != 3 || album.Duration != 300 {
		t.Errorf("Expected 3 songs totalling 300s, got %d and %d", album.SongCount, album.Duration)
	}
	if len(album.DiscTitles) != 2 {
		t.Errorf("Expected 2 disc entries, got %v", album.DiscTitles)
	}
}

func TestWriteTrackCoverFlow(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	md := &tags.Metadata{Title: "Song", Album: "Album", Artist: "Band", Duration: 60}
	trackID, res := writeOneTrack(t, c, "/music/a.flac", md, "/music/cover.jpg")

	// The album's cover record shares the album id
	cover, err := c.GetCover(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetCover failed: %v", err)
	}
	if cover.Path != "/music/cover.jpg" {
		t.Errorf("Expected cover path preserved, got %q", cover.Path)
	}
	if cover.MimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", cover.MimeType)
	}

	album, err := c.GetAlbum(ctx, res.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if album.CoverArtID != album.ID {
		t.Errorf("Expected album cover id %s, got %s", album.ID, album.CoverArtID)
	}

	track, err := c.GetTrack(ctx, trackID)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.CoverArtID != album.CoverArtID {
		t.Error("Expected track to inherit the album cover")
	}
}

func TestNormalizeGenres(t *testing.T) {
	t.Parallel()

	if got := normalizeGenres([]string{" Rock ", "", "Jazz"}); len(got) != 2 || got[0] != "Rock" || got[1] != "Jazz" {
		t.Errorf("Expected [Rock Jazz], got %v", got)
	}
	if got := normalizeGenres([]string{"", "  "}); got != nil {
		t.Errorf("Expected nil for blank genres, got %v", got)
	}
}
