// Package tags is the metadata-extraction boundary of the catalog engine.
//
// The engine itself only consumes the already-parsed Metadata structure;
// TagReader is the default Reader implementation backed by dhowden/tag.
// Audio properties that the tag parser cannot supply (duration, content
// type) default conservatively and may be corrected by richer readers.
package tags
