package mediatypes

import (
	"path/filepath"
	"strings"
)

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".opus": true,
	".aac":  true,
	".wma":  true,
	".aiff": true,
}

// ImageExtensions maps file extensions to whether they are supported cover image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// CoverBasenames lists the file basenames (without extension) recognized
// as album cover art, in preference order.
var CoverBasenames = []string{"cover", "folder", "front", "album", "albumart"}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Audio
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".opus": "audio/opus",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// DefaultAudioExtensions returns the default supported extension list
// (without leading dots) for configuration display and overrides.
func DefaultAudioExtensions() []string {
	exts := make([]string, 0, len(AudioExtensions))
	for ext := range AudioExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	return exts
}

// IsAudioPath reports whether the path has a supported audio extension.
func IsAudioPath(path string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsCoverPath reports whether the path looks like an album cover image.
func IsCoverPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !ImageExtensions[ext] {
		return false
	}
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, name := range CoverBasenames {
		if base == name {
			return true
		}
	}
	return false
}

// GetMimeType returns the MIME type for a file extension.
// Returns "application/octet-stream" for unknown extensions.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// MimeTypeForPath returns the MIME type for a file path.
func MimeTypeForPath(path string) string {
	return GetMimeType(filepath.Ext(path))
}
