package catalog

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Collection prefixes in the flat keyspace.
const (
	CollectionTracks     = "tracks"
	CollectionAlbums     = "albums"
	CollectionArtists    = "artists"
	CollectionCovers     = "covers"
	CollectionPlaylists  = "playlists"
	CollectionShares     = "shares"
	CollectionUserData   = "userData"
	CollectionPathIndex  = "filePathToId"
	CollectionAutoShares = "autoShares"
	CollectionAccounts   = "accounts"
	CollectionRadio      = "radioStations"
)

// TrackIDForPath derives the stable track id for an absolute file path.
// The digest is fixed-length and deterministic, so re-scanning an
// unchanged file reproduces the same id across runs and restarts.
func TrackIDForPath(path string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(path)))
}

// UserDataKey builds the composite key for a per-user annotation.
func UserDataKey(username string, entityType ItemType, entityID string) string {
	return username + ":" + string(entityType) + ":" + entityID
}

// ParseUserDataKey splits a composite userData key back into its parts.
// Returns false if the key is not well formed.
func ParseUserDataKey(key string) (username string, entityType ItemType, entityID string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], ItemType(parts[1]), parts[2], true
}

// AutoShareKey builds the secondary-index key for a system-generated
// cover-art share.
func AutoShareKey(coverID string) string {
	return string(ItemTypeCoverArt) + ":" + coverID
}

// NormalizeName produces the case-insensitive, trimmed form used for
// artist and album name matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DisplayArtist renders a credited-artist list for display:
// one name as-is, several as "A, B & C".
func DisplayArtist(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
	}
}

// defaultReleaseDate is the fallback when a date tag is absent or malformed.
const defaultReleaseDate = "1970-01-01"

// ParseReleaseDate normalizes a YYYY-MM-DD-style tag value. Bare years
// are accepted as YYYY-01-01. Anything unparseable falls back to
// 1970-01-01.
func ParseReleaseDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultReleaseDate
	}

	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2006", raw); err == nil {
		return t.Format("2006") + "-01-01"
	}
	// Some taggers write full timestamps; keep the date part if it parses.
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return defaultReleaseDate
}

// ReleaseYear extracts the year from a normalized release date.
func ReleaseYear(date string) int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 1970
	}
	return t.Year()
}
