package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/logging"
	"melodex/internal/metrics"
)

// Sweep is the post-scan reconciliation pass. It walks every persisted
// collection in dependency order (tracks → albums → artists → playlists
// → covers → shares → user data), computing each pass's "in use" set
// from the previous pass's survivors, and deletes or repairs records
// whose referents no longer exist.
type Sweep struct {
	catalog *catalog.Catalog
}

// NewSweep creates a Sweep over the catalog.
func NewSweep(c *catalog.Catalog) *Sweep {
	return &Sweep{catalog: c}
}

// SweepResult tallies what one sweep removed or repaired.
type SweepResult struct {
	PathsDeleted     int `json:"pathsDeleted"`
	TracksDeleted    int `json:"tracksDeleted"`
	AlbumsDeleted    int `json:"albumsDeleted"`
	AlbumsRepaired   int `json:"albumsRepaired"`
	ArtistsDeleted   int `json:"artistsDeleted"`
	ArtistsRepaired  int `json:"artistsRepaired"`
	PlaylistsPruned  int `json:"playlistsPruned"`
	CoversDeleted    int `json:"coversDeleted"`
	SharesDeleted    int `json:"sharesDeleted"`
	UserDataDeleted  int `json:"userDataDeleted"`
}

// liveTrack is the per-survivor state later passes consult.
type liveTrack struct {
	albumID   string
	artistIDs []string
	coverID   string
	duration  int
}

// Run executes the sweep given the set of absolute file paths observed
// during discovery. The context is checked between passes; every write
// is idempotent, so an interrupted sweep is safely resumable.
func (s *Sweep) Run(ctx context.Context, observed map[string]struct{}) (*SweepResult, error) {
	metrics.SweepRunsTotal.Inc()
	result := &SweepResult{}

	tracks := make(map[string]liveTrack)

	passes := []struct {
		name string
		fn   func(context.Context, map[string]struct{}, map[string]liveTrack, *SweepResult) error
	}{
		{"paths", s.passPaths},
		{"tracks", s.passTracks},
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		start := time.Now()
		err := p.fn(ctx, observed, tracks, result)
		metrics.SweepPassDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		if err != nil {
			return result, fmt.Errorf("sweep %s pass: %w", p.name, err)
		}
	}

	albums, albumsByArtist, coversInUse, err := s.passAlbums(ctx, tracks, result)
	if err != nil {
		return result, fmt.Errorf("sweep albums pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	artists, err := s.passArtists(ctx, tracks, albums, albumsByArtist, coversInUse, result)
	if err != nil {
		return result, fmt.Errorf("sweep artists pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.passPlaylists(ctx, coversInUse, result); err != nil {
		return result, fmt.Errorf("sweep playlists pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	orphanedCovers, err := s.passCovers(ctx, coversInUse, result)
	if err != nil {
		return result, fmt.Errorf("sweep covers pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.passShares(ctx, orphanedCovers, result); err != nil {
		return result, fmt.Errorf("sweep shares pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.passUserData(ctx, tracks, albums, artists, result); err != nil {
		return result, fmt.Errorf("sweep userData pass: %w", err)
	}

	logging.Info("Sweep complete: -%d paths, -%d tracks, -%d albums, -%d artists, -%d covers, -%d shares, -%d annotations, %d playlists pruned",
		result.PathsDeleted, result.TracksDeleted, result.AlbumsDeleted, result.ArtistsDeleted,
		result.CoversDeleted, result.SharesDeleted, result.UserDataDeleted, result.PlaylistsPruned)

	return result, nil
}

// passPaths deletes every path index entry whose path was not observed
// during discovery, together with its track.
func (s *Sweep) passPaths(ctx context.Context, observed map[string]struct{}, _ map[string]liveTrack, result *SweepResult) error {
	return s.catalog.EachPathMapping(ctx, func(path, trackID string) error {
		if _, seen := observed[path]; seen {
			return nil
		}
		if err := s.catalog.DeletePathMapping(ctx, path); err != nil {
			return err
		}
		result.PathsDeleted++
		metrics.SweepDeletions.WithLabelValues(catalog.CollectionPathIndex).Inc()

		if err := s.catalog.DeleteTrack(ctx, trackID); err != nil {
			return err
		}
		result.TracksDeleted++
		metrics.SweepDeletions.WithLabelValues(catalog.CollectionTracks).Inc()
		return nil
	})
}

// passTracks verifies every persisted track against the path index. A
// track without a mapping back to its own id is orphaned (the mapping
// write did not survive a partial failure) and is deleted. Survivors
// populate the in-use state for later passes.
func (s *Sweep) passTracks(ctx context.Context, _ map[string]struct{}, tracks map[string]liveTrack, result *SweepResult) error {
	return s.catalog.EachTrack(ctx, func(t *catalog.Track) error {
		mappedID, err := s.catalog.LookupPath(ctx, t.Path)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return err
		}
		if mappedID != t.ID {
			logging.Warn("Deleting orphaned track %s (%s): no path index entry", t.ID, t.Path)
			if err := s.catalog.DeleteTrack(ctx, t.ID); err != nil {
				return err
			}
			result.TracksDeleted++
			metrics.SweepDeletions.WithLabelValues(catalog.CollectionTracks).Inc()
			return nil
		}

		tracks[t.ID] = liveTrack{
			albumID:   t.AlbumID,
			artistIDs: t.ArtistIDs,
			coverID:   t.CoverArtID,
			duration:  t.Duration,
		}
		return nil
	})
}

// passAlbums deletes albums no surviving track references and repairs
// the membership list and derived fields of the rest.
func (s *Sweep) passAlbums(ctx context.Context, tracks map[string]liveTrack, result *SweepResult) (
	albums map[string]struct{}, albumsByArtist map[string]map[string]struct{}, coversInUse map[string]struct{}, err error) {

	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("albums").Observe(time.Since(start).Seconds())
	}()

	albumsInUse := make(map[string]struct{})
	for _, t := range tracks {
		albumsInUse[t.albumID] = struct{}{}
	}

	albums = make(map[string]struct{})
	albumsByArtist = make(map[string]map[string]struct{})
	coversInUse = make(map[string]struct{})

	for _, t := range tracks {
		if t.coverID != "" {
			coversInUse[t.coverID] = struct{}{}
		}
	}

	err = s.catalog.EachAlbum(ctx, func(a *catalog.Album) error {
		if _, used := albumsInUse[a.ID]; !used {
			logging.Debug("Deleting orphaned album %s (%q)", a.ID, a.Name)
			if err := s.catalog.DeleteAlbum(ctx, a.ID); err != nil {
				return err
			}
			result.AlbumsDeleted++
			metrics.SweepDeletions.WithLabelValues(catalog.CollectionAlbums).Inc()
			return nil
		}

		kept := make([]string, 0, len(a.Song))
		duration := 0
		for _, trackID := range a.Song {
			t, live := tracks[trackID]
			if !live || t.albumID != a.ID {
				continue
			}
			kept = append(kept, trackID)
			duration += t.duration
		}

		changed := len(kept) != len(a.Song) || a.SongCount != len(kept) || a.Duration != duration
		a.Song = kept
		a.SongCount = len(kept)
		a.Duration = duration

		if changed {
			if err := s.catalog.PutAlbum(ctx, a); err != nil {
				return err
			}
			result.AlbumsRepaired++
			metrics.SweepRepairs.WithLabelValues(catalog.CollectionAlbums).Inc()
		}

		albums[a.ID] = struct{}{}
		for _, artistID := range a.ArtistIDs {
			if albumsByArtist[artistID] == nil {
				albumsByArtist[artistID] = make(map[string]struct{})
			}
			albumsByArtist[artistID][a.ID] = struct{}{}
		}
		if a.CoverArtID != "" {
			coversInUse[a.CoverArtID] = struct{}{}
		}
		return nil
	})
	return albums, albumsByArtist, coversInUse, err
}

// passArtists deletes artists referenced by no surviving track or album
// and repairs the album back-link list of the rest.
func (s *Sweep) passArtists(ctx context.Context, tracks map[string]liveTrack, albums map[string]struct{},
	albumsByArtist map[string]map[string]struct{}, coversInUse map[string]struct{}, result *SweepResult) (map[string]struct{}, error) {

	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("artists").Observe(time.Since(start).Seconds())
	}()

	inUse := make(map[string]struct{})
	for _, t := range tracks {
		for _, artistID := range t.artistIDs {
			inUse[artistID] = struct{}{}
		}
	}
	for artistID := range albumsByArtist {
		inUse[artistID] = struct{}{}
	}

	survivors := make(map[string]struct{})
	err := s.catalog.EachArtist(ctx, func(a *catalog.Artist) error {
		if _, used := inUse[a.ID]; !used {
			logging.Debug("Deleting orphaned artist %s (%q)", a.ID, a.Name)
			if err := s.catalog.DeleteArtist(ctx, a.ID); err != nil {
				return err
			}
			result.ArtistsDeleted++
			metrics.SweepDeletions.WithLabelValues(catalog.CollectionArtists).Inc()
			return nil
		}

		// The album list must contain exactly the surviving albums that
		// credit this artist: drop stale ids, add missing back-links.
		credited := albumsByArtist[a.ID]
		kept := make([]string, 0, len(a.Albums))
		have := make(map[string]struct{}, len(a.Albums))
		for _, albumID := range a.Albums {
			if _, ok := credited[albumID]; !ok {
				continue
			}
			if _, dup := have[albumID]; dup {
				continue
			}
			kept = append(kept, albumID)
			have[albumID] = struct{}{}
		}
		missing := make([]string, 0)
		for albumID := range credited {
			if _, ok := have[albumID]; !ok {
				missing = append(missing, albumID)
			}
		}
		sort.Strings(missing)
		kept = append(kept, missing...)

		changed := len(kept) != len(a.Albums) || a.AlbumCount != len(kept)
		if !changed {
			for i := range kept {
				if kept[i] != a.Albums[i] {
					changed = true
					break
				}
			}
		}
		a.Albums = kept
		a.AlbumCount = len(kept)

		if changed {
			if err := s.catalog.PutArtist(ctx, a); err != nil {
				return err
			}
			result.ArtistsRepaired++
			metrics.SweepRepairs.WithLabelValues(catalog.CollectionArtists).Inc()
		}

		survivors[a.ID] = struct{}{}
		if a.CoverArtID != "" {
			coversInUse[a.CoverArtID] = struct{}{}
		}
		return nil
	})
	return survivors, err
}

// passPlaylists prunes stale entries and recomputes derived playlist
// fields. Malformed playlists are logged and left intact by EachPlaylist.
func (s *Sweep) passPlaylists(ctx context.Context, coversInUse map[string]struct{}, result *SweepResult) error {
	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("playlists").Observe(time.Since(start).Seconds())
	}()

	return s.catalog.EachPlaylist(ctx, func(p *catalog.Playlist) error {
		changed, err := s.catalog.RefreshPlaylist(ctx, p)
		if err != nil {
			return err
		}
		if changed {
			p.Changed = time.Now()
			if err := s.catalog.PutPlaylist(ctx, p); err != nil {
				return err
			}
			result.PlaylistsPruned++
			metrics.SweepRepairs.WithLabelValues(catalog.CollectionPlaylists).Inc()
		}
		if p.CoverArtID != "" {
			coversInUse[p.CoverArtID] = struct{}{}
		}
		return nil
	})
}

// passCovers deletes cover art referenced by no surviving entity, in
// bounded batches, and returns the orphaned ids for share cleanup.
func (s *Sweep) passCovers(ctx context.Context, coversInUse map[string]struct{}, result *SweepResult) (map[string]struct{}, error) {
	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("covers").Observe(time.Since(start).Seconds())
	}()

	var orphanIDs []string
	err := s.catalog.EachCover(ctx, func(cov *catalog.CoverArt) error {
		if _, used := coversInUse[cov.ID]; !used {
			orphanIDs = append(orphanIDs, cov.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	deleted, commits, err := s.catalog.Store().DeleteKeys(ctx, catalog.CollectionCovers, orphanIDs)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		logging.Info("Deleted %d orphaned covers in %d batches", deleted, commits)
	}
	result.CoversDeleted += deleted
	metrics.SweepDeletions.WithLabelValues(catalog.CollectionCovers).Add(float64(deleted))

	orphaned := make(map[string]struct{}, len(orphanIDs))
	for _, id := range orphanIDs {
		orphaned[id] = struct{}{}
	}
	return orphaned, nil
}

// passShares deletes coverArt-type shares pointing at covers the
// previous pass orphaned, along with their auto-share index entries.
func (s *Sweep) passShares(ctx context.Context, orphanedCovers map[string]struct{}, result *SweepResult) error {
	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("shares").Observe(time.Since(start).Seconds())
	}()

	var shareIDs []string
	var indexKeys []string
	err := s.catalog.EachShare(ctx, func(sh *catalog.Share) error {
		if sh.ItemType != catalog.ItemTypeCoverArt {
			return nil
		}
		if _, orphaned := orphanedCovers[sh.ItemID]; orphaned {
			shareIDs = append(shareIDs, sh.ID)
			indexKeys = append(indexKeys, catalog.AutoShareKey(sh.ItemID))
		}
		return nil
	})
	if err != nil {
		return err
	}

	deleted, commits, err := s.catalog.Store().DeleteKeys(ctx, catalog.CollectionShares, shareIDs)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logging.Info("Deleted %d orphaned cover shares in %d batches", deleted, commits)
	}
	result.SharesDeleted += deleted
	metrics.SweepDeletions.WithLabelValues(catalog.CollectionShares).Add(float64(deleted))

	// Keep the idempotent-lookup index aligned with the shares it names
	_, _, err = s.catalog.Store().DeleteKeys(ctx, catalog.CollectionAutoShares, indexKeys)
	return err
}

// passUserData deletes annotations whose entity no longer exists, in
// bounded batches.
func (s *Sweep) passUserData(ctx context.Context, tracks map[string]liveTrack,
	albums, artists map[string]struct{}, result *SweepResult) error {

	start := time.Now()
	defer func() {
		metrics.SweepPassDuration.WithLabelValues("userData").Observe(time.Since(start).Seconds())
	}()

	var staleKeys []string
	err := s.catalog.EachUserData(ctx, func(key string, u *catalog.UserData) error {
		alive := true
		switch u.EntityType {
		case catalog.ItemTypeTrack:
			_, alive = tracks[u.EntityID]
		case catalog.ItemTypeAlbum:
			_, alive = albums[u.EntityID]
		case catalog.ItemTypeArtist:
			_, alive = artists[u.EntityID]
		default:
			// Playlist annotations and unknown types are left alone
		}
		if !alive {
			staleKeys = append(staleKeys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	deleted, commits, err := s.catalog.Store().DeleteKeys(ctx, catalog.CollectionUserData, staleKeys)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logging.Info("Deleted %d stale annotations in %d batches", deleted, commits)
	}
	result.UserDataDeleted += deleted
	metrics.SweepDeletions.WithLabelValues(catalog.CollectionUserData).Add(float64(deleted))
	return nil
}

// HardReset clears the filesystem-derived collections unconditionally,
// forcing the next scan to rebuild from scratch. Playlists, user
// annotations, and accounts are preserved.
func (s *Sweep) HardReset(ctx context.Context) error {
	collections := []string{
		catalog.CollectionTracks,
		catalog.CollectionAlbums,
		catalog.CollectionArtists,
		catalog.CollectionCovers,
		catalog.CollectionPathIndex,
		catalog.CollectionShares,
		catalog.CollectionAutoShares,
		catalog.CollectionRadio,
	}
	for _, collection := range collections {
		n, err := s.catalog.Store().DropCollection(ctx, collection)
		if err != nil {
			return fmt.Errorf("reset %s: %w", collection, err)
		}
		logging.Info("Reset cleared %d records from %s", n, collection)
	}
	return nil
}
