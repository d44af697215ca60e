package share

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/store"
)

func setupTestManager(t *testing.T) (*Manager, *catalog.Catalog) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := catalog.New(s)
	return NewManager(c), c
}

func addAdmin(t *testing.T, c *catalog.Catalog) {
	t.Helper()

	err := c.PutAccount(context.Background(), &catalog.Account{
		Username:     "alice",
		PasswordHash: "x",
		Admin:        true,
		Created:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to add admin: %v", err)
	}
}

func TestGetOrCreateWithoutAdmin(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "cover-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if s != nil {
		t.Errorf("Expected nil share without an admin account, got %+v", s)
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	m, c := setupTestManager(t)
	ctx := context.Background()
	addAdmin(t, c)

	first, err := m.GetOrCreate(ctx, "cover-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first == nil {
		t.Fatal("Expected a share to be created")
	}
	if first.Username != "alice" {
		t.Errorf("Expected share owned by alice, got %q", first.Username)
	}
	if first.ItemType != catalog.ItemTypeCoverArt {
		t.Errorf("Expected coverArt share, got %q", first.ItemType)
	}
	if first.ItemID != "cover-1" {
		t.Errorf("Expected share for cover-1, got %q", first.ItemID)
	}

	second, err := m.GetOrCreate(ctx, "cover-1")
	if err != nil {
		t.Fatalf("Second GetOrCreate failed: %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("Expected the same share back, got %+v", second)
	}
}

func TestGetOrCreateHealsStaleIndex(t *testing.T) {
	m, c := setupTestManager(t)
	ctx := context.Background()
	addAdmin(t, c)

	// Index entry pointing at a share that was deleted out from under it.
	if err := c.PutAutoShare(ctx, "cover-1", "gone-share-id"); err != nil {
		t.Fatalf("PutAutoShare failed: %v", err)
	}

	s, err := m.GetOrCreate(ctx, "cover-1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if s == nil {
		t.Fatal("Expected a recreated share")
	}
	if s.ID == "gone-share-id" {
		t.Error("Expected a fresh share id, got the stale one")
	}

	shareID, err := c.GetAutoShare(ctx, "cover-1")
	if err != nil {
		t.Fatalf("GetAutoShare failed: %v", err)
	}
	if shareID != s.ID {
		t.Errorf("Expected index to point at %s, got %s", s.ID, shareID)
	}
}

func TestEnsureAll(t *testing.T) {
	m, c := setupTestManager(t)
	ctx := context.Background()
	addAdmin(t, c)

	for _, id := range []string{"cov-1", "cov-2", "cov-3"} {
		err := c.PutCover(ctx, &catalog.CoverArt{ID: id, Path: "/art/" + id + ".jpg", MimeType: "image/jpeg"})
		if err != nil {
			t.Fatalf("PutCover failed: %v", err)
		}
	}

	// One cover already shared; EnsureAll should only fill the gaps.
	if _, err := m.GetOrCreate(ctx, "cov-2"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	created, err := m.EnsureAll(ctx)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if created != 2 {
		t.Errorf("Expected 2 shares created, got %d", created)
	}

	for _, id := range []string{"cov-1", "cov-2", "cov-3"} {
		if _, err := c.GetAutoShare(ctx, id); err != nil {
			t.Errorf("Expected auto-share for %s, got error: %v", id, err)
		}
	}
}

func TestEnsureAllWithoutAdmin(t *testing.T) {
	m, c := setupTestManager(t)
	ctx := context.Background()

	err := c.PutCover(ctx, &catalog.CoverArt{ID: "cov-1", Path: "/art/cov-1.jpg", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("PutCover failed: %v", err)
	}

	created, err := m.EnsureAll(ctx)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if created != 0 {
		t.Errorf("Expected no shares without an admin, got %d", created)
	}
}
