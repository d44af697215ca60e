package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"melodex/internal/logging"
	"melodex/internal/store"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = store.ErrNotFound

// MalformedError reports a persisted record that failed JSON decoding or
// schema validation. Retaining such a record would block every future
// sweep from reasoning about it, so callers are expected to apply
// HandleMalformed rather than propagate it.
type MalformedError struct {
	Collection string
	Key        string
	Err        error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed record %s/%s: %v", e.Collection, e.Key, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err indicates a malformed persisted record.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// record is any persisted catalog record with schema validation.
type record interface {
	Validate() error
}

// Catalog provides typed access to catalog collections over the store.
type Catalog struct {
	store *store.Store
}

// New creates a Catalog over the given store.
func New(s *store.Store) *Catalog {
	return &Catalog{store: s}
}

// Store exposes the underlying key-value store.
func (c *Catalog) Store() *store.Store {
	return c.store
}

// HandleMalformed applies the self-healing policy for a record that
// failed validation: the record is deleted and the failure logged at
// warning level. This is deliberate policy, not silent data loss
// avoidance — a record that cannot be decoded cannot be reconciled.
func (c *Catalog) HandleMalformed(ctx context.Context, collection, key string, decodeErr error) {
	logging.Warn("Deleting malformed %s record %q: %v", collection, key, decodeErr)
	if err := c.store.Delete(ctx, collection, key); err != nil {
		logging.Error("Failed to delete malformed %s record %q: %v", collection, key, err)
	}
}

func (c *Catalog) getRecord(ctx context.Context, collection, key string, v record) error {
	raw, err := c.store.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &MalformedError{Collection: collection, Key: key, Err: err}
	}
	if err := v.Validate(); err != nil {
		return &MalformedError{Collection: collection, Key: key, Err: err}
	}
	return nil
}

func (c *Catalog) putRecord(ctx context.Context, collection, key string, v record) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid %s record: %w", collection, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return c.store.Put(ctx, collection, key, raw)
}

type rawPair struct {
	key   string
	value []byte
}

// eachRecord iterates a collection, decoding each record. Iteration works
// on a snapshot of the collection so callbacks may freely write back to
// the store. Records failing decode are handled per deleteMalformed:
// deleted and logged (filesystem-derived collections) or logged and left
// intact (user-authored collections).
func (c *Catalog) eachRecord(ctx context.Context, collection string, deleteMalformed bool,
	newRecord func() record, fn func(key string, rec record) error) error {

	var pairs []rawPair
	err := c.store.Each(ctx, collection, func(key string, value []byte) error {
		cp := make([]byte, len(value))
		copy(cp, value)
		pairs = append(pairs, rawPair{key: key, value: cp})
		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate %s: %w", collection, err)
	}

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := newRecord()
		var decodeErr error
		if err := json.Unmarshal(p.value, rec); err != nil {
			decodeErr = err
		} else if err := rec.Validate(); err != nil {
			decodeErr = err
		}

		if decodeErr == nil {
			if err := fn(p.key, rec); err != nil {
				return err
			}
			continue
		}

		if deleteMalformed {
			c.HandleMalformed(ctx, collection, p.key, &MalformedError{Collection: collection, Key: p.key, Err: decodeErr})
		} else {
			logging.Warn("Skipping malformed %s record %q: %v", collection, p.key, decodeErr)
		}
	}
	return nil
}

// --- Tracks ---

func (c *Catalog) GetTrack(ctx context.Context, id string) (*Track, error) {
	var t Track
	if err := c.getRecord(ctx, CollectionTracks, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Catalog) PutTrack(ctx context.Context, t *Track) error {
	return c.putRecord(ctx, CollectionTracks, t.ID, t)
}

func (c *Catalog) DeleteTrack(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionTracks, id)
}

// EachTrack iterates all well-formed tracks. Malformed track records are
// deleted as corrupt.
func (c *Catalog) EachTrack(ctx context.Context, fn func(t *Track) error) error {
	return c.eachRecord(ctx, CollectionTracks, true,
		func() record { return &Track{} },
		func(_ string, rec record) error { return fn(rec.(*Track)) })
}

// --- Albums ---

func (c *Catalog) GetAlbum(ctx context.Context, id string) (*Album, error) {
	var a Album
	if err := c.getRecord(ctx, CollectionAlbums, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Catalog) PutAlbum(ctx context.Context, a *Album) error {
	return c.putRecord(ctx, CollectionAlbums, a.ID, a)
}

func (c *Catalog) DeleteAlbum(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionAlbums, id)
}

func (c *Catalog) EachAlbum(ctx context.Context, fn func(a *Album) error) error {
	return c.eachRecord(ctx, CollectionAlbums, true,
		func() record { return &Album{} },
		func(_ string, rec record) error { return fn(rec.(*Album)) })
}

// --- Artists ---

func (c *Catalog) GetArtist(ctx context.Context, id string) (*Artist, error) {
	var a Artist
	if err := c.getRecord(ctx, CollectionArtists, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Catalog) PutArtist(ctx context.Context, a *Artist) error {
	return c.putRecord(ctx, CollectionArtists, a.ID, a)
}

func (c *Catalog) DeleteArtist(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionArtists, id)
}

func (c *Catalog) EachArtist(ctx context.Context, fn func(a *Artist) error) error {
	return c.eachRecord(ctx, CollectionArtists, true,
		func() record { return &Artist{} },
		func(_ string, rec record) error { return fn(rec.(*Artist)) })
}

// --- Cover art ---

func (c *Catalog) GetCover(ctx context.Context, id string) (*CoverArt, error) {
	var cov CoverArt
	if err := c.getRecord(ctx, CollectionCovers, id, &cov); err != nil {
		return nil, err
	}
	return &cov, nil
}

func (c *Catalog) PutCover(ctx context.Context, cov *CoverArt) error {
	return c.putRecord(ctx, CollectionCovers, cov.ID, cov)
}

func (c *Catalog) DeleteCover(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionCovers, id)
}

func (c *Catalog) EachCover(ctx context.Context, fn func(cov *CoverArt) error) error {
	return c.eachRecord(ctx, CollectionCovers, true,
		func() record { return &CoverArt{} },
		func(_ string, rec record) error { return fn(rec.(*CoverArt)) })
}

// --- Playlists ---

func (c *Catalog) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var p Playlist
	if err := c.getRecord(ctx, CollectionPlaylists, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Catalog) PutPlaylist(ctx context.Context, p *Playlist) error {
	return c.putRecord(ctx, CollectionPlaylists, p.ID, p)
}

func (c *Catalog) DeletePlaylist(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionPlaylists, id)
}

// EachPlaylist iterates all well-formed playlists. Playlists are
// user-authored, not filesystem-derived, so malformed playlist records
// are logged and left intact rather than deleted.
func (c *Catalog) EachPlaylist(ctx context.Context, fn func(p *Playlist) error) error {
	return c.eachRecord(ctx, CollectionPlaylists, false,
		func() record { return &Playlist{} },
		func(_ string, rec record) error { return fn(rec.(*Playlist)) })
}

// --- Shares ---

func (c *Catalog) GetShare(ctx context.Context, id string) (*Share, error) {
	var s Share
	if err := c.getRecord(ctx, CollectionShares, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Catalog) PutShare(ctx context.Context, s *Share) error {
	return c.putRecord(ctx, CollectionShares, s.ID, s)
}

func (c *Catalog) DeleteShare(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionShares, id)
}

func (c *Catalog) EachShare(ctx context.Context, fn func(s *Share) error) error {
	return c.eachRecord(ctx, CollectionShares, true,
		func() record { return &Share{} },
		func(_ string, rec record) error { return fn(rec.(*Share)) })
}

// --- User data ---

func (c *Catalog) GetUserData(ctx context.Context, username string, entityType ItemType, entityID string) (*UserData, error) {
	var u UserData
	key := UserDataKey(username, entityType, entityID)
	if err := c.getRecord(ctx, CollectionUserData, key, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Catalog) PutUserData(ctx context.Context, u *UserData) error {
	key := UserDataKey(u.Username, u.EntityType, u.EntityID)
	return c.putRecord(ctx, CollectionUserData, key, u)
}

func (c *Catalog) DeleteUserData(ctx context.Context, key string) error {
	return c.store.Delete(ctx, CollectionUserData, key)
}

// EachUserData iterates all well-formed user annotations with their
// composite keys.
func (c *Catalog) EachUserData(ctx context.Context, fn func(key string, u *UserData) error) error {
	return c.eachRecord(ctx, CollectionUserData, true,
		func() record { return &UserData{} },
		func(key string, rec record) error { return fn(key, rec.(*UserData)) })
}

// --- Accounts ---

func (c *Catalog) GetAccount(ctx context.Context, username string) (*Account, error) {
	var a Account
	if err := c.getRecord(ctx, CollectionAccounts, username, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Catalog) PutAccount(ctx context.Context, a *Account) error {
	return c.putRecord(ctx, CollectionAccounts, a.Username, a)
}

func (c *Catalog) EachAccount(ctx context.Context, fn func(a *Account) error) error {
	return c.eachRecord(ctx, CollectionAccounts, true,
		func() record { return &Account{} },
		func(_ string, rec record) error { return fn(rec.(*Account)) })
}

// FindAdmin returns the first account with administrative privilege, in
// key order. Returns (nil, nil) when no admin account exists; callers
// must treat absence as a soft failure.
func (c *Catalog) FindAdmin(ctx context.Context) (*Account, error) {
	var admin *Account
	err := c.EachAccount(ctx, func(a *Account) error {
		if admin == nil && a.Admin {
			admin = a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// --- Radio stations ---

func (c *Catalog) GetRadioStation(ctx context.Context, id string) (*RadioStation, error) {
	var r RadioStation
	if err := c.getRecord(ctx, CollectionRadio, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Catalog) PutRadioStation(ctx context.Context, r *RadioStation) error {
	return c.putRecord(ctx, CollectionRadio, r.ID, r)
}

func (c *Catalog) DeleteRadioStation(ctx context.Context, id string) error {
	return c.store.Delete(ctx, CollectionRadio, id)
}

func (c *Catalog) EachRadioStation(ctx context.Context, fn func(r *RadioStation) error) error {
	return c.eachRecord(ctx, CollectionRadio, true,
		func() record { return &RadioStation{} },
		func(_ string, rec record) error { return fn(rec.(*RadioStation)) })
}

// --- Path index ---

// LookupPath returns the track id bound to an absolute file path.
func (c *Catalog) LookupPath(ctx context.Context, path string) (string, error) {
	raw, err := c.store.Get(ctx, CollectionPathIndex, path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// BindPath records the path → track id mapping. The mapping is the sole
// authority for "has this file been indexed".
func (c *Catalog) BindPath(ctx context.Context, path, trackID string) error {
	return c.store.Put(ctx, CollectionPathIndex, path, []byte(trackID))
}

// DeletePathMapping removes a path index entry.
func (c *Catalog) DeletePathMapping(ctx context.Context, path string) error {
	return c.store.Delete(ctx, CollectionPathIndex, path)
}

// EachPathMapping iterates all path index entries.
func (c *Catalog) EachPathMapping(ctx context.Context, fn func(path, trackID string) error) error {
	var pairs []rawPair
	err := c.store.Each(ctx, CollectionPathIndex, func(key string, value []byte) error {
		cp := make([]byte, len(value))
		copy(cp, value)
		pairs = append(pairs, rawPair{key: key, value: cp})
		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate %s: %w", CollectionPathIndex, err)
	}
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p.key, string(p.value)); err != nil {
			return err
		}
	}
	return nil
}

// --- Auto-share secondary index ---

// GetAutoShare returns the share id recorded for a cover id, or
// ErrNotFound.
func (c *Catalog) GetAutoShare(ctx context.Context, coverID string) (string, error) {
	raw, err := c.store.Get(ctx, CollectionAutoShares, AutoShareKey(coverID))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// PutAutoShare records the durable (coverArt, coverID) → shareID index
// entry that makes auto-share creation idempotent.
func (c *Catalog) PutAutoShare(ctx context.Context, coverID, shareID string) error {
	return c.store.Put(ctx, CollectionAutoShares, AutoShareKey(coverID), []byte(shareID))
}

// DeleteAutoShare removes an auto-share index entry.
func (c *Catalog) DeleteAutoShare(ctx context.Context, coverID string) error {
	return c.store.Delete(ctx, CollectionAutoShares, AutoShareKey(coverID))
}
