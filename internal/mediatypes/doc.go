// Package mediatypes defines the supported audio file formats and their
// MIME types.
//
// The extension tables drive file discovery: only paths whose extension
// appears in AudioExtensions are considered candidate tracks. Cover image
// detection for album art uses CoverBasenames and ImageExtensions.
package mediatypes
