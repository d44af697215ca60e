// Package scanner implements the media library indexing and consistency
// engine.
//
// A scan runs in two phases. The indexing phase walks the configured
// library roots, derives a deterministic track id per file, resolves
// artist and album identity from parsed tags, and upserts the catalog
// records. The reconciliation phase (the sweep) then walks every
// persisted collection and removes or repairs records whose referents no
// longer exist: stale path mappings, orphaned tracks, empty albums,
// unreferenced artists and cover art, stale playlist entries, dangling
// shares, and user annotations for deleted entities.
//
// Per-file work is strictly sequential. Artist and album deduplication
// relies on per-run name caches that are only safe because no two
// lookups for the same name can race; the caches are owned by one scan
// invocation and discarded when it ends. Every write is individually
// idempotent, so an interrupted scan is safely resumable by re-running.
package scanner
