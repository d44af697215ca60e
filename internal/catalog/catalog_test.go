package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"melodex/internal/store"
)

// setupTestCatalog creates a catalog over a temp-directory store.
func setupTestCatalog(t testing.TB) *Catalog {
	t.Helper()

	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return New(s)
}

func TestTrackRoundTrip(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	track := &Track{
		ID:          "track-1",
		Path:        "/music/a.flac",
		ContentType: "audio/flac",
		Duration:    215,
		TrackNumber: 3,
		AlbumID:     "album-1",
		ArtistIDs:   []string{"artist-1"},
		Title:       "Song",
		Year:        2003,
		Genres:      []string{"Rock"},
	}
	if err := c.PutTrack(ctx, track); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}

	got, err := c.GetTrack(ctx, "track-1")
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if got.Title != "Song" || got.AlbumID != "album-1" || got.Duration != 215 {
		t.Errorf("Round trip mismatch: got %+v", got)
	}
}

func TestGetTrackNotFound(t *testing.T) {
	c := setupTestCatalog(t)

	_, err := c.GetTrack(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPutTrackRejectsInvalid(t *testing.T) {
	c := setupTestCatalog(t)

	err := c.PutTrack(context.Background(), &Track{ID: "t", Path: "/p"})
	if err == nil {
		t.Error("Expected PutTrack to reject a track without an album id")
	}
}

func TestEachTrackDeletesMalformed(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	good := &Track{ID: "good", Path: "/music/good.flac", AlbumID: "album-1"}
	if err := c.PutTrack(ctx, good); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}
	if err := c.Store().Put(ctx, CollectionTracks, "bad", []byte("{not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var seen []string
	err := c.EachTrack(ctx, func(tr *Track) error {
		seen = append(seen, tr.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("EachTrack failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "good" {
		t.Errorf("Expected only the good track, got %v", seen)
	}

	// The malformed record is deleted, not just skipped
	has, err := c.Store().Has(ctx, CollectionTracks, "bad")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Expected malformed track record to be deleted")
	}
}

func TestEachTrackDeletesInvalidSchema(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	// Valid JSON but missing required fields
	if err := c.Store().Put(ctx, CollectionTracks, "incomplete", []byte(`{"id":"incomplete"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := c.EachTrack(ctx, func(tr *Track) error { return nil })
	if err != nil {
		t.Fatalf("EachTrack failed: %v", err)
	}

	has, err := c.Store().Has(ctx, CollectionTracks, "incomplete")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Expected schema-invalid track record to be deleted")
	}
}

func TestEachPlaylistSkipsMalformedWithoutDeleting(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	if err := c.Store().Put(ctx, CollectionPlaylists, "bad", []byte("{not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	count := 0
	err := c.EachPlaylist(ctx, func(p *Playlist) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("EachPlaylist failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no playlists from callback, got %d", count)
	}

	// User-authored data is preserved even when it cannot be decoded
	has, err := c.Store().Has(ctx, CollectionPlaylists, "bad")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !has {
		t.Error("Expected malformed playlist record to survive iteration")
	}
}

func TestEachCallbackMayWrite(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		track := &Track{ID: id, Path: "/music/" + id, AlbumID: "album-1"}
		if err := c.PutTrack(ctx, track); err != nil {
			t.Fatalf("PutTrack failed: %v", err)
		}
	}

	// Deleting from inside the iteration must not deadlock or error
	err := c.EachTrack(ctx, func(tr *Track) error {
		return c.DeleteTrack(ctx, tr.ID)
	})
	if err != nil {
		t.Fatalf("EachTrack with writes failed: %v", err)
	}

	n, err := c.Store().Count(ctx, CollectionTracks)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected all tracks deleted, %d remain", n)
	}
}

func TestPathIndex(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	if err := c.BindPath(ctx, "/music/a.flac", "track-1"); err != nil {
		t.Fatalf("BindPath failed: %v", err)
	}

	id, err := c.LookupPath(ctx, "/music/a.flac")
	if err != nil {
		t.Fatalf("LookupPath failed: %v", err)
	}
	if id != "track-1" {
		t.Errorf("Expected track-1, got %q", id)
	}

	if err := c.DeletePathMapping(ctx, "/music/a.flac"); err != nil {
		t.Fatalf("DeletePathMapping failed: %v", err)
	}
	if _, err := c.LookupPath(ctx, "/music/a.flac"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestFindAdmin(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	admin, err := c.FindAdmin(ctx)
	if err != nil {
		t.Fatalf("FindAdmin failed: %v", err)
	}
	if admin != nil {
		t.Error("Expected nil admin with no accounts")
	}

	regular := &Account{Username: "bob", PasswordHash: "x", Created: time.Now()}
	if err := c.PutAccount(ctx, regular); err != nil {
		t.Fatalf("PutAccount failed: %v", err)
	}

	admin, err = c.FindAdmin(ctx)
	if err != nil {
		t.Fatalf("FindAdmin failed: %v", err)
	}
	if admin != nil {
		t.Error("Expected nil admin with only non-admin accounts")
	}

	root := &Account{Username: "alice", PasswordHash: "y", Admin: true, Created: time.Now()}
	if err := c.PutAccount(ctx, root); err != nil {
		t.Fatalf("PutAccount failed: %v", err)
	}

	admin, err = c.FindAdmin(ctx)
	if err != nil {
		t.Fatalf("FindAdmin failed: %v", err)
	}
	if admin == nil || admin.Username != "alice" {
		t.Errorf("Expected alice, got %+v", admin)
	}
}

func TestAutoShareIndex(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	if _, err := c.GetAutoShare(ctx, "cover-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := c.PutAutoShare(ctx, "cover-1", "share-1"); err != nil {
		t.Fatalf("PutAutoShare failed: %v", err)
	}

	id, err := c.GetAutoShare(ctx, "cover-1")
	if err != nil {
		t.Fatalf("GetAutoShare failed: %v", err)
	}
	if id != "share-1" {
		t.Errorf("Expected share-1, got %q", id)
	}
}

func TestRadioStationRoundTrip(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	station := &RadioStation{
		ID:        "radio-1",
		Name:      "Jazz FM",
		StreamURL: "https://example.com/stream",
		Created:   time.Now(),
	}
	if err := c.PutRadioStation(ctx, station); err != nil {
		t.Fatalf("PutRadioStation failed: %v", err)
	}

	got, err := c.GetRadioStation(ctx, "radio-1")
	if err != nil {
		t.Fatalf("GetRadioStation failed: %v", err)
	}
	if got.StreamURL != "https://example.com/stream" {
		t.Errorf("Expected stream url preserved, got %q", got.StreamURL)
	}
}

func TestGenresAggregation(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	tracks := []*Track{
		{ID: "t1", Path: "/m/1", AlbumID: "a1", Genres: []string{"Rock"}},
		{ID: "t2", Path: "/m/2", AlbumID: "a1", Genres: []string{"Rock", "Blues"}},
		{ID: "t3", Path: "/m/3", AlbumID: "a2", Genres: []string{"Rock"}},
	}
	for _, tr := range tracks {
		if err := c.PutTrack(ctx, tr); err != nil {
			t.Fatalf("PutTrack failed: %v", err)
		}
	}

	genres, err := c.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres failed: %v", err)
	}
	if len(genres) != 2 {
		t.Fatalf("Expected 2 genres, got %d", len(genres))
	}
	// Sorted by name: Blues, Rock
	if genres[0].Name != "Blues" || genres[0].SongCount != 1 || genres[0].AlbumCount != 1 {
		t.Errorf("Unexpected Blues aggregation: %+v", genres[0])
	}
	if genres[1].Name != "Rock" || genres[1].SongCount != 3 || genres[1].AlbumCount != 2 {
		t.Errorf("Unexpected Rock aggregation: %+v", genres[1])
	}
}

func TestCountAll(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	if err := c.PutTrack(ctx, &Track{ID: "t1", Path: "/m/1", AlbumID: "a1"}); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}
	if err := c.PutAlbum(ctx, &Album{ID: "a1", Name: "Album"}); err != nil {
		t.Fatalf("PutAlbum failed: %v", err)
	}

	stats, err := c.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll failed: %v", err)
	}
	if stats.Tracks != 1 || stats.Albums != 1 || stats.Artists != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
