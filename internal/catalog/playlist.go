package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RefreshPlaylist prunes entries whose tracks no longer exist and
// recomputes the derived fields: songCount, duration, and cover art.
// The cover is taken from the first entry whose track has cover art.
// Returns whether anything changed. Both user-initiated playlist edits
// and the consistency sweep run the same recompute.
func (c *Catalog) RefreshPlaylist(ctx context.Context, p *Playlist) (bool, error) {
	kept := make([]string, 0, len(p.Entry))
	duration := 0
	cover := ""

	for _, trackID := range p.Entry {
		t, err := c.GetTrack(ctx, trackID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || IsMalformed(err) {
				continue
			}
			return false, fmt.Errorf("playlist %s entry %s: %w", p.ID, trackID, err)
		}
		kept = append(kept, trackID)
		duration += t.Duration
		if cover == "" && t.CoverArtID != "" {
			cover = t.CoverArtID
		}
	}

	changed := len(kept) != len(p.Entry) ||
		p.SongCount != len(kept) ||
		p.Duration != duration ||
		p.CoverArtID != cover

	p.Entry = kept
	p.SongCount = len(kept)
	p.Duration = duration
	p.CoverArtID = cover

	return changed, nil
}

// SavePlaylist applies a user edit: the playlist is refreshed the same
// way the sweep refreshes it, stamped, and persisted.
func (c *Catalog) SavePlaylist(ctx context.Context, p *Playlist) error {
	if _, err := c.RefreshPlaylist(ctx, p); err != nil {
		return err
	}
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	p.Changed = time.Now()
	return c.PutPlaylist(ctx, p)
}
