package catalog

import (
	"context"
	"testing"
)

func TestRefreshPlaylistPrunesMissingTracks(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	live := &Track{ID: "t1", Path: "/m/1", AlbumID: "a1", Duration: 100}
	if err := c.PutTrack(ctx, live); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}

	p := &Playlist{
		ID:        "p1",
		Name:      "Mix",
		Owner:     "alice",
		Entry:     []string{"t1", "gone", "t1"},
		SongCount: 3,
	}

	changed, err := c.RefreshPlaylist(ctx, p)
	if err != nil {
		t.Fatalf("RefreshPlaylist failed: %v", err)
	}
	if !changed {
		t.Error("Expected refresh to report a change")
	}
	if len(p.Entry) != 2 {
		t.Errorf("Expected 2 surviving entries, got %d", len(p.Entry))
	}
	if p.SongCount != 2 {
		t.Errorf("Expected songCount 2, got %d", p.SongCount)
	}
	if p.Duration != 200 {
		t.Errorf("Expected duration 200, got %d", p.Duration)
	}
}

func TestRefreshPlaylistNoChange(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	track := &Track{ID: "t1", Path: "/m/1", AlbumID: "a1", Duration: 60}
	if err := c.PutTrack(ctx, track); err != nil {
		t.Fatalf("PutTrack failed: %v", err)
	}

	p := &Playlist{
		ID:        "p1",
		Name:      "Mix",
		Owner:     "alice",
		Entry:     []string{"t1"},
		SongCount: 1,
		Duration:  60,
	}

	changed, err := c.RefreshPlaylist(ctx, p)
	if err != nil {
		t.Fatalf("RefreshPlaylist failed: %v", err)
	}
	if changed {
		t.Error("Expected no change for a consistent playlist")
	}
}

func TestRefreshPlaylistDerivesCover(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	noCover := &Track{ID: "t1", Path: "/m/1", AlbumID: "a1", Duration: 60}
	withCover := &Track{ID: "t2", Path: "/m/2", AlbumID: "a2", Duration: 60, CoverArtID: "cov-2"}
	for _, tr := range []*Track{noCover, withCover} {
		if err := c.PutTrack(ctx, tr); err != nil {
			t.Fatalf("PutTrack failed: %v", err)
		}
	}

	p := &Playlist{ID: "p1", Name: "Mix", Owner: "alice", Entry: []string{"t1", "t2"}}
	if _, err := c.RefreshPlaylist(ctx, p); err != nil {
		t.Fatalf("RefreshPlaylist failed: %v", err)
	}

	// Cover comes from the first entry whose track has one
	if p.CoverArtID != "cov-2" {
		t.Errorf("Expected cover cov-2, got %q", p.CoverArtID)
	}
}

func TestSavePlaylistStampsTimes(t *testing.T) {
	c := setupTestCatalog(t)
	ctx := context.Background()

	p := &Playlist{ID: "p1", Name: "Mix", Owner: "alice"}
	if err := c.SavePlaylist(ctx, p); err != nil {
		t.Fatalf("SavePlaylist failed: %v", err)
	}

	if p.Created.IsZero() {
		t.Error("Expected Created to be stamped")
	}
	if p.Changed.IsZero() {
		t.Error("Expected Changed to be stamped")
	}

	got, err := c.GetPlaylist(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("Expected owner alice, got %q", got.Owner)
	}

	created := p.Created
	if err := c.SavePlaylist(ctx, p); err != nil {
		t.Fatalf("SavePlaylist failed: %v", err)
	}
	if !p.Created.Equal(created) {
		t.Error("Expected Created to be preserved on subsequent saves")
	}
}
