package catalog

import (
	"context"
	"sort"
)

// GenreCount aggregates track and album membership for one genre name.
type GenreCount struct {
	Name       string `json:"name"`
	SongCount  int    `json:"songCount"`
	AlbumCount int    `json:"albumCount"`
}

// Genres aggregates genre usage across all tracks, for the serving
// layer's genre listings. Read-only.
func (c *Catalog) Genres(ctx context.Context) ([]GenreCount, error) {
	songs := make(map[string]int)
	albums := make(map[string]map[string]struct{})

	err := c.EachTrack(ctx, func(t *Track) error {
		for _, g := range t.Genres {
			songs[g]++
			if albums[g] == nil {
				albums[g] = make(map[string]struct{})
			}
			albums[g][t.AlbumID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]GenreCount, 0, len(songs))
	for name, count := range songs {
		out = append(out, GenreCount{
			Name:       name,
			SongCount:  count,
			AlbumCount: len(albums[name]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stats reports record counts per collection.
type Stats struct {
	Tracks    int `json:"tracks"`
	Albums    int `json:"albums"`
	Artists   int `json:"artists"`
	Covers    int `json:"covers"`
	Playlists int `json:"playlists"`
	Shares    int `json:"shares"`
	UserData  int `json:"userData"`
	Paths     int `json:"paths"`
}

// CountAll counts records across all primary collections.
func (c *Catalog) CountAll(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		collection string
		dst        *int
	}{
		{CollectionTracks, &s.Tracks},
		{CollectionAlbums, &s.Albums},
		{CollectionArtists, &s.Artists},
		{CollectionCovers, &s.Covers},
		{CollectionPlaylists, &s.Playlists},
		{CollectionShares, &s.Shares},
		{CollectionUserData, &s.UserData},
		{CollectionPathIndex, &s.Paths},
	}
	for _, cnt := range counts {
		n, err := c.store.Count(ctx, cnt.collection)
		if err != nil {
			return s, err
		}
		*cnt.dst = n
	}
	return s, nil
}
