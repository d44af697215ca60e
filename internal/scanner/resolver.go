package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"melodex/internal/catalog"
	"melodex/internal/tags"
)

// Resolver converts raw tag strings into normalized artist and album
// links, creating records on first encounter. Its name→id caches are
// owned by exactly one scan invocation; resolution must stay sequential
// within a run, otherwise two lookups for the same new name could race
// to create duplicate records.
type Resolver struct {
	catalog    *catalog.Catalog
	separators string

	artistCache     map[string]string // normalized artist name -> artist id
	artistNameCache map[string]string // artist id -> name, for album matching
	albumCache      map[string]string // album cache key -> album id
}

// NewResolver creates a Resolver with fresh caches for one scan run.
// separators is the set of characters splitting multi-artist tag strings.
func NewResolver(c *catalog.Catalog, separators string) *Resolver {
	return &Resolver{
		catalog:         c,
		separators:      separators,
		artistCache:     make(map[string]string),
		artistNameCache: make(map[string]string),
		albumCache:      make(map[string]string),
	}
}

// Resolution carries the resolved links for one track.
type Resolution struct {
	ArtistIDs   []string
	ArtistNames []string
	AlbumID     string
}

// Resolve resolves the artists and album for one track's metadata.
func (r *Resolver) Resolve(ctx context.Context, md *tags.Metadata) (*Resolution, error) {
	names := r.artistNames(md)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := r.resolveArtist(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve artist %q: %w", name, err)
		}
		ids = append(ids, id)
	}

	albumID, err := r.resolveAlbum(ctx, md, ids, names)
	if err != nil {
		return nil, fmt.Errorf("resolve album %q: %w", md.Album, err)
	}

	return &Resolution{
		ArtistIDs:   ids,
		ArtistNames: names,
		AlbumID:     albumID,
	}, nil
}

// artistNames produces the credited artist names for a track: the
// explicit artist array when present, otherwise the artist string split
// on the configured separators; trimmed, deduplicated case-insensitively,
// first-seen order preserved.
func (r *Resolver) artistNames(md *tags.Metadata) []string {
	raw := md.Artists
	if len(raw) == 0 && md.Artist != "" {
		raw = SplitNames(md.Artist, r.separators)
	}

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		norm := catalog.NormalizeName(name)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		names = append(names, name)
	}
	return names
}

// SplitNames splits a multi-valued tag string on any of the separator
// characters.
func SplitNames(raw, separators string) []string {
	if separators == "" {
		return []string{raw}
	}
	return strings.FieldsFunc(raw, func(c rune) bool {
		return strings.ContainsRune(separators, c)
	})
}

// resolveArtist finds or creates the artist for a name: the per-run
// cache first, then a scan of the persisted collection by normalized
// name, then creation.
func (r *Resolver) resolveArtist(ctx context.Context, name string) (string, error) {
	norm := catalog.NormalizeName(name)
	if id, ok := r.artistCache[norm]; ok {
		return id, nil
	}

	var foundID string
	err := r.catalog.EachArtist(ctx, func(a *catalog.Artist) error {
		if foundID == "" && catalog.NormalizeName(a.Name) == norm {
			foundID = a.ID
			r.artistNameCache[a.ID] = a.Name
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if foundID == "" {
		artist := &catalog.Artist{
			ID:     uuid.NewString(),
			Name:   strings.TrimSpace(name),
			Albums: []string{},
		}
		// A new artist's cover defaults to its own id
		artist.CoverArtID = artist.ID
		if err := r.catalog.PutArtist(ctx, artist); err != nil {
			return "", err
		}
		foundID = artist.ID
		r.artistNameCache[artist.ID] = artist.Name
	}

	r.artistCache[norm] = foundID
	return foundID, nil
}

// albumCacheKey combines the normalized album name with the sorted,
// normalized credited artist names.
func albumCacheKey(name string, artistNames []string) string {
	norms := make([]string, 0, len(artistNames))
	for _, n := range artistNames {
		norms = append(norms, catalog.NormalizeName(n))
	}
	sort.Strings(norms)
	return catalog.NormalizeName(name) + "\x00" + strings.Join(norms, "\x00")
}

// resolveAlbum finds or creates the album for a track. An existing album
// matches only if its name matches case-insensitively and, when artist
// names are supplied, at least one credited artist name overlaps. Two
// albums sharing a title across disjoint artists stay distinct.
func (r *Resolver) resolveAlbum(ctx context.Context, md *tags.Metadata, artistIDs, artistNames []string) (string, error) {
	cacheKey := albumCacheKey(md.Album, artistNames)
	if id, ok := r.albumCache[cacheKey]; ok {
		return id, nil
	}

	norm := catalog.NormalizeName(md.Album)
	supplied := make(map[string]struct{}, len(artistNames))
	for _, n := range artistNames {
		supplied[catalog.NormalizeName(n)] = struct{}{}
	}

	var foundID string
	err := r.catalog.EachAlbum(ctx, func(a *catalog.Album) error {
		if foundID != "" || catalog.NormalizeName(a.Name) != norm {
			return nil
		}
		if len(supplied) == 0 {
			foundID = a.ID
			return nil
		}
		overlap, err := r.artistOverlap(ctx, a, supplied)
		if err != nil {
			return err
		}
		if overlap {
			foundID = a.ID
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if foundID == "" {
		date := catalog.ParseReleaseDate(md.Date)
		album := &catalog.Album{
			ID:            uuid.NewString(),
			Name:          strings.TrimSpace(md.Album),
			Song:          []string{},
			ArtistIDs:     append([]string(nil), artistIDs...),
			DisplayArtist: catalog.DisplayArtist(artistNames),
			ReleaseDate:   date,
			Year:          catalog.ReleaseYear(date),
		}
		if err := r.catalog.PutAlbum(ctx, album); err != nil {
			return "", err
		}
		foundID = album.ID
	}

	r.albumCache[cacheKey] = foundID
	return foundID, nil
}

// artistOverlap reports whether any of the album's credited artists has
// a name in the supplied normalized-name set.
func (r *Resolver) artistOverlap(ctx context.Context, a *catalog.Album, supplied map[string]struct{}) (bool, error) {
	for _, id := range a.ArtistIDs {
		name, ok := r.artistNameCache[id]
		if !ok {
			artist, err := r.catalog.GetArtist(ctx, id)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) || catalog.IsMalformed(err) {
					continue
				}
				return false, err
			}
			name = artist.Name
			r.artistNameCache[id] = name
		}
		if _, hit := supplied[catalog.NormalizeName(name)]; hit {
			return true, nil
		}
	}
	return false, nil
}
