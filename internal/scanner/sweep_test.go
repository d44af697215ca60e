package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/tags"
)

// seedLibrary indexes a few files and returns the observed path set.
func seedLibrary(t *testing.T, c *catalog.Catalog, paths []string) map[string]struct{} {
	t.Helper()
	ctx := context.Background()

	r := NewResolver(c, ";")
	w := NewWriter(c)
	observed := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		md := &tags.Metadata{Title: path, Album: "Album", Artist: "Band", Duration: 100}
		res, err := r.Resolve(ctx, md)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if err := w.WriteTrack(ctx, catalog.TrackIDForPath(path), path, md, res, ""); err != nil {
			t.Fatalf("WriteTrack failed: %v", err)
		}
		observed[path] = struct{}{}
	}
	return observed
}

func TestSweepNoopOnConsistentCatalog(t *testing.T) {
	c := newTestCatalog(t)
	observed := seedLibrary(t, c, []string{"/m/1.flac", "/m/2.flac"})

	result, err := NewSweep(c).Run(context.Background(), observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.TracksDeleted != 0 || result.AlbumsDeleted != 0 || result.ArtistsDeleted != 0 {
		t.Errorf("Expected no deletions on a consistent catalog, got %+v", result)
	}
}

func TestSweepRemovesVanishedFile(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac", "/m/2.flac"})

	// /m/2.flac disappears from disk
	delete(observed, "/m/2.flac")

	result, err := NewSweep(c).Run(ctx, observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.PathsDeleted != 1 {
		t.Errorf("Expected 1 path deleted, got %d", result.PathsDeleted)
	}
	if result.TracksDeleted != 1 {
		t.Errorf("Expected 1 track deleted, got %d", result.TracksDeleted)
	}

	goneID := catalog.TrackIDForPath("/m/2.flac")
	if _, err := c.GetTrack(ctx, goneID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected vanished track to be gone, got %v", err)
	}
	if _, err := c.LookupPath(ctx, "/m/2.flac"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected path mapping to be gone, got %v", err)
	}

	// The album survives with the remaining track and repaired counts
	survivor, err := c.GetTrack(ctx, catalog.TrackIDForPath("/m/1.flac"))
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	album, err := c.GetAlbum(ctx, survivor.AlbumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if album.SongCount != 1 || album.Duration != 100 {
		t.Errorf("Expected repaired album (1 song, 100s), got %d and %d", album.SongCount, album.Duration)
	}
	if result.AlbumsRepaired != 1 {
		t.Errorf("Expected 1 album repaired, got %d", result.AlbumsRepaired)
	}
}

func TestSweepCascadesToAlbumAndArtist(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedLibrary(t, c, []string{"/m/1.flac"})

	// The whole library disappears
	result, err := NewSweep(c).Run(ctx, map[string]struct{}{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.TracksDeleted != 1 || result.AlbumsDeleted != 1 || result.ArtistsDeleted != 1 {
		t.Errorf("Expected full cascade, got %+v", result)
	}

	for _, collection := range []string{
		catalog.CollectionTracks,
		catalog.CollectionAlbums,
		catalog.CollectionArtists,
		catalog.CollectionPathIndex,
	} {
		n, err := c.Store().Count(ctx, collection)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected empty %s collection, got %d records", collection, n)
		}
	}
}

func TestSweepDeletesOrphanedTrackWithoutMapping(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac"})

	// A track whose path mapping write was lost
	orphan := &catalog.Track{
		ID:      "orphan-id",
		Path:    "/m/ghost.flac",
		AlbumID: "some-album",
	}
	if err := c.PutTrack(ctx, orphan); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}
	observed["/m/ghost.flac"] = struct{}{}

	result, err := NewSweep(c).Run(ctx, observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.TracksDeleted != 1 {
		t.Errorf("Expected 1 orphan track deleted, got %d", result.TracksDeleted)
	}
	if _, err := c.GetTrack(ctx, "orphan-id"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected orphan track to be gone, got %v", err)
	}
}

func TestSweepRepairsArtistAlbumList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac"})

	track, err := c.GetTrack(ctx, catalog.TrackIDForPath("/m/1.flac"))
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}

	// Corrupt the artist's back-links with a stale album id
	artist, err := c.GetArtist(ctx, track.ArtistIDs[0])
	if err != nil {
		t.Fatalf("GetArtist failed: %v", err)
	}
	artist.Albums = append(artist.Albums, "stale-album-id")
	artist.AlbumCount = 7
	if err := c.PutArtist(ctx, artist); err != nil {
		t.Fatalf("PutArtist failed: %v", err)
	}

	result, err := NewSweep(c).Run(ctx, observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.ArtistsRepaired != 1 {
		t.Errorf("Expected 1 artist repaired, got %d", result.ArtistsRepaired)
	}

	repaired, err := c.GetArtist(ctx, artist.ID)
	if err != nil {
		t.Fatalf("GetArtist failed: %v", err)
	}
	if len(repaired.Albums) != 1 || repaired.Albums[0] != track.AlbumID {
		t.Errorf("Expected album list [%s], got %v", track.AlbumID, repaired.Albums)
	}
	if repaired.AlbumCount != 1 {
		t.Errorf("Expected albumCount 1, got %d", repaired.AlbumCount)
	}
}

func TestSweepCleansOrphanedCoversSharesAndAnnotations(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac"})

	// Orphaned cover with its auto-share and index entry
	orphanCover := &catalog.CoverArt{ID: "dead-cover", Path: "/m/old/cover.jpg", MimeType: "image/jpeg"}
	if err := c.PutCover(ctx, orphanCover); err != nil {
		t.Fatalf("PutCover failed: %v", err)
	}
	deadShare := &catalog.Share{
		ID:       "dead-share",
		Username: "alice",
		ItemID:   "dead-cover",
		ItemType: catalog.ItemTypeCoverArt,
		Created:  time.Now(),
	}
	if err := c.PutShare(ctx, deadShare); err != nil {
		t.Fatalf("PutShare failed: %v", err)
	}
	if err := c.PutAutoShare(ctx, "dead-cover", "dead-share"); err != nil {
		t.Fatalf("PutAutoShare failed: %v", err)
	}

	// A non-cover share is never touched by the cover cascade
	trackShare := &catalog.Share{
		ID:       "track-share",
		Username: "alice",
		ItemID:   "whatever",
		ItemType: catalog.ItemTypeTrack,
		Created:  time.Now(),
	}
	if err := c.PutShare(ctx, trackShare); err != nil {
		t.Fatalf("PutShare failed: %v", err)
	}

	// Annotation on a dead track and one on a live track
	liveID := catalog.TrackIDForPath("/m/1.flac")
	stale := &catalog.UserData{Username: "alice", EntityType: catalog.ItemTypeTrack, EntityID: "gone-track", PlayCount: 3}
	live := &catalog.UserData{Username: "alice", EntityType: catalog.ItemTypeTrack, EntityID: liveID, PlayCount: 5}
	for _, u := range []*catalog.UserData{stale, live} {
		if err := c.PutUserData(ctx, u); err != nil {
			t.Fatalf("PutUserData failed: %v", err)
		}
	}

	result, err := NewSweep(c).Run(ctx, observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.CoversDeleted != 1 {
		t.Errorf("Expected 1 cover deleted, got %d", result.CoversDeleted)
	}
	if result.SharesDeleted != 1 {
		t.Errorf("Expected 1 share deleted, got %d", result.SharesDeleted)
	}
	if result.UserDataDeleted != 1 {
		t.Errorf("Expected 1 annotation deleted, got %d", result.UserDataDeleted)
	}

	if _, err := c.GetShare(ctx, "track-share"); err != nil {
		t.Errorf("Expected non-cover share to survive: %v", err)
	}
	if _, err := c.GetAutoShare(ctx, "dead-cover"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected auto-share index entry to be cleaned, got %v", err)
	}
	if _, err := c.GetUserData(ctx, "alice", catalog.ItemTypeTrack, liveID); err != nil {
		t.Errorf("Expected live annotation to survive: %v", err)
	}
}

func TestSweepPrunesPlaylists(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac"})

	liveID := catalog.TrackIDForPath("/m/1.flac")
	p := &catalog.Playlist{
		ID:    "p1",
		Name:  "Mix",
		Owner: "alice",
		Entry: []string{liveID, "gone-track"},
	}
	if err := c.PutPlaylist(ctx, p); err != nil {
		t.Fatalf("PutPlaylist failed: %v", err)
	}

	result, err := NewSweep(c).Run(ctx, observed)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.PlaylistsPruned != 1 {
		t.Errorf("Expected 1 playlist pruned, got %d", result.PlaylistsPruned)
	}

	pruned, err := c.GetPlaylist(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(pruned.Entry) != 1 || pruned.Entry[0] != liveID {
		t.Errorf("Expected playlist entry [%s], got %v", liveID, pruned.Entry)
	}
	if pruned.SongCount != 1 || pruned.Duration != 100 {
		t.Errorf("Expected songCount 1 duration 100, got %d and %d", pruned.SongCount, pruned.Duration)
	}
}

func TestSweepIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	observed := seedLibrary(t, c, []string{"/m/1.flac", "/m/2.flac"})
	delete(observed, "/m/2.flac")

	sweep := NewSweep(c)
	if _, err := sweep.Run(ctx, observed); err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}

	second, err := sweep.Run(ctx, observed)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if second.TracksDeleted != 0 || second.AlbumsDeleted != 0 ||
		second.AlbumsRepaired != 0 || second.ArtistsRepaired != 0 {
		t.Errorf("Expected second sweep to be a no-op, got %+v", second)
	}
}

func TestHardResetPreservesUserData(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	seedLibrary(t, c, []string{"/m/1.flac"})

	p := &catalog.Playlist{ID: "p1", Name: "Mix", Owner: "alice"}
	if err := c.PutPlaylist(ctx, p); err != nil {
		t.Fatalf("PutPlaylist failed: %v", err)
	}
	u := &catalog.UserData{Username: "alice", EntityType: catalog.ItemTypeTrack, EntityID: "t", Rating: 5}
	if err := c.PutUserData(ctx, u); err != nil {
		t.Fatalf("PutUserData failed: %v", err)
	}
	account := &catalog.Account{Username: "alice", PasswordHash: "x", Admin: true, Created: time.Now()}
	if err := c.PutAccount(ctx, account); err != nil {
		t.Fatalf("PutAccount failed: %v", err)
	}

	if err := NewSweep(c).HardReset(ctx); err != nil {
		t.Fatalf("HardReset failed: %v", err)
	}

	for _, collection := range []string{
		catalog.CollectionTracks,
		catalog.CollectionAlbums,
		catalog.CollectionArtists,
		catalog.CollectionPathIndex,
		catalog.CollectionShares,
		catalog.CollectionAutoShares,
	} {
		n, err := c.Store().Count(ctx, collection)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected %s cleared by reset, got %d records", collection, n)
		}
	}

	if _, err := c.GetPlaylist(ctx, "p1"); err != nil {
		t.Errorf("Expected playlist to survive reset: %v", err)
	}
	if _, err := c.GetUserData(ctx, "alice", catalog.ItemTypeTrack, "t"); err != nil {
		t.Errorf("Expected annotation to survive reset: %v", err)
	}
	if _, err := c.GetAccount(ctx, "alice"); err != nil {
		t.Errorf("Expected account to survive reset: %v", err)
	}
}
