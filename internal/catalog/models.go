package catalog

import (
	"errors"
	"fmt"
	"time"
)

// ItemType identifies what kind of entity a Share or UserData record
// references.
type ItemType string

const (
	ItemTypeTrack    ItemType = "track"
	ItemTypeAlbum    ItemType = "album"
	ItemTypeArtist   ItemType = "artist"
	ItemTypePlaylist ItemType = "playlist"
	ItemTypeCoverArt ItemType = "coverArt"
)

// Track is one indexed audio file with tag metadata.
// Its id is derived deterministically from the file path and never changes.
type Track struct {
	ID            string   `json:"id"`
	Path          string   `json:"path"`
	ContentType   string   `json:"contentType"`
	Duration      int      `json:"duration"`
	DiscNumber    int      `json:"discNumber,omitempty"`
	TrackNumber   int      `json:"track,omitempty"`
	AlbumID       string   `json:"albumId"`
	ArtistIDs     []string `json:"artists"`
	CoverArtID    string   `json:"coverArt,omitempty"`
	Title         string   `json:"title"`
	Year          int      `json:"year,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	MusicBrainzID string   `json:"musicBrainzId,omitempty"`
}

// Validate checks the fields required for the track to participate in
// catalog reconciliation.
func (t *Track) Validate() error {
	if t.ID == "" {
		return errors.New("track missing id")
	}
	if t.Path == "" {
		return fmt.Errorf("track %s missing path", t.ID)
	}
	if t.AlbumID == "" {
		return fmt.Errorf("track %s missing albumId", t.ID)
	}
	return nil
}

// DiscTitle names one disc of a multi-disc album.
type DiscTitle struct {
	Disc  int    `json:"disc"`
	Title string `json:"title,omitempty"`
}

// Album aggregates tracks sharing album identity. Duration and SongCount
// are recomputed from the Song list, never independently trusted.
type Album struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Duration      int         `json:"duration"`
	Song          []string    `json:"song"`
	SongCount     int         `json:"songCount"`
	ArtistIDs     []string    `json:"artists"`
	DisplayArtist string      `json:"displayArtist,omitempty"`
	DiscTitles    []DiscTitle `json:"discTitles,omitempty"`
	ReleaseDate   string      `json:"releaseDate,omitempty"`
	Year          int         `json:"year,omitempty"`
	CoverArtID    string      `json:"coverArt,omitempty"`
}

func (a *Album) Validate() error {
	if a.ID == "" {
		return errors.New("album missing id")
	}
	if a.Name == "" {
		return fmt.Errorf("album %s missing name", a.ID)
	}
	return nil
}

// HasSong reports whether the album's song list contains the track id.
func (a *Album) HasSong(trackID string) bool {
	for _, id := range a.Song {
		if id == trackID {
			return true
		}
	}
	return false
}

// HasArtist reports whether the album credits the artist id.
func (a *Album) HasArtist(artistID string) bool {
	for _, id := range a.ArtistIDs {
		if id == artistID {
			return true
		}
	}
	return false
}

// HasDisc reports whether the album already records the disc number.
func (a *Album) HasDisc(disc int) bool {
	for _, dt := range a.DiscTitles {
		if dt.Disc == disc {
			return true
		}
	}
	return false
}

// Artist is a named contributor credited on tracks and albums.
// Matching is by case-insensitive, trimmed name equality.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Albums     []string `json:"album"`
	AlbumCount int      `json:"albumCount"`
	CoverArtID string   `json:"coverArt,omitempty"`
}

func (a *Artist) Validate() error {
	if a.ID == "" {
		return errors.New("artist missing id")
	}
	if a.Name == "" {
		return fmt.Errorf("artist %s missing name", a.ID)
	}
	return nil
}

// HasAlbum reports whether the artist's album list contains the album id.
func (a *Artist) HasAlbum(albumID string) bool {
	for _, id := range a.Albums {
		if id == albumID {
			return true
		}
	}
	return false
}

// CoverArt is a cover image on disk. It exists only while referenced by
// at least one live track, album, artist, playlist, or coverArt share.
type CoverArt struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

func (c *CoverArt) Validate() error {
	if c.ID == "" {
		return errors.New("cover missing id")
	}
	if c.Path == "" {
		return fmt.Errorf("cover %s missing path", c.ID)
	}
	return nil
}

// Playlist is a user-authored ordered list of track ids. SongCount and
// Duration always track the current Entry list; CoverArtID is derived
// from the first entry whose track has cover art.
type Playlist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	Entry      []string  `json:"entry"`
	SongCount  int       `json:"songCount"`
	Duration   int       `json:"duration"`
	Public     bool      `json:"public"`
	CoverArtID string    `json:"coverArt,omitempty"`
	Created    time.Time `json:"created"`
	Changed    time.Time `json:"changed"`
}

func (p *Playlist) Validate() error {
	if p.ID == "" {
		return errors.New("playlist missing id")
	}
	if p.Owner == "" {
		return fmt.Errorf("playlist %s missing owner", p.ID)
	}
	return nil
}

// Share is a public reference to an item. CoverArt-type shares may be
// system-generated auto-shares, indexed separately for idempotent lookup.
type Share struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	ItemID      string     `json:"itemId"`
	ItemType    ItemType   `json:"itemType"`
	Description string     `json:"description,omitempty"`
	Created     time.Time  `json:"created"`
	Expires     *time.Time `json:"expires,omitempty"`
	ViewCount   int        `json:"viewCount"`
}

func (s *Share) Validate() error {
	if s.ID == "" {
		return errors.New("share missing id")
	}
	if s.ItemID == "" || s.ItemType == "" {
		return fmt.Errorf("share %s missing item reference", s.ID)
	}
	return nil
}

// UserData holds per-user annotations for one entity. It exists only
// while the annotated entity still exists.
type UserData struct {
	Username   string     `json:"username"`
	EntityType ItemType   `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Starred    *time.Time `json:"starred,omitempty"`
	Played     *time.Time `json:"played,omitempty"`
	PlayCount  int        `json:"playCount,omitempty"`
	Rating     int        `json:"rating,omitempty"`
}

func (u *UserData) Validate() error {
	if u.Username == "" {
		return errors.New("userData missing username")
	}
	if u.EntityType == "" || u.EntityID == "" {
		return fmt.Errorf("userData for %s missing entity reference", u.Username)
	}
	return nil
}

// Account is a user account. Auto-shares require at least one account
// with Admin set.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Admin        bool      `json:"admin"`
	Created      time.Time `json:"created"`
}

func (a *Account) Validate() error {
	if a.Username == "" {
		return errors.New("account missing username")
	}
	if a.PasswordHash == "" {
		return fmt.Errorf("account %s missing password hash", a.Username)
	}
	return nil
}

// RadioStation is a user-added internet radio stream. Stations are not
// derived from the filesystem but are cleared by a hard reset.
type RadioStation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StreamURL   string    `json:"streamUrl"`
	HomepageURL string    `json:"homepageUrl,omitempty"`
	Created     time.Time `json:"created"`
}

func (r *RadioStation) Validate() error {
	if r.ID == "" {
		return errors.New("radio station missing id")
	}
	if r.StreamURL == "" {
		return fmt.Errorf("radio station %s missing stream url", r.ID)
	}
	return nil
}
