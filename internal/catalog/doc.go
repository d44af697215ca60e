// Package catalog defines the persisted record types of the media catalog
// and typed accessors over the flat key-value store.
//
// Collections:
//   - tracks: one record per indexed audio file
//   - albums: aggregations of tracks sharing album identity
//   - artists: named contributors credited on tracks and albums
//   - covers: cover-art files referenced by other records
//   - playlists: user-authored ordered track lists
//   - shares: public references to items, including system-generated
//     cover-art shares
//   - userData: per-user annotations (starred, played, rating)
//   - filePathToId: the path index mapping file paths to track ids
//   - autoShares: secondary index for idempotent cover-art share lookup
//   - accounts: user accounts (auto-shares require an admin account)
//
// The store has no foreign keys; every cross-collection reference here is
// maintained by the catalog writer and repaired by the consistency sweep.
// Records are validated on read. A record that fails validation is
// deleted and logged rather than propagated (see HandleMalformed), so a
// corrupt record can never block future sweeps. Playlists are the one
// exception: they are user-authored, so malformed playlists are logged
// and left intact.
package catalog
