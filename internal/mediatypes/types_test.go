package mediatypes

import "testing"

func TestIsAudioPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"/music/song.flac", true},
		{"/music/song.MP3", true},
		{"song.ogg", true},
		{"/music/cover.jpg", false},
		{"/music/notes.txt", false},
		{"/music/noext", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAudioPath(tt.path); got != tt.want {
			t.Errorf("IsAudioPath(%q): expected %v, got %v", tt.path, tt.want, got)
		}
	}
}

func TestIsCoverPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"/music/album/cover.jpg", true},
		{"/music/album/Folder.PNG", true},
		{"front.webp", true},
		{"albumart.jpeg", true},
		{"/music/album/band-photo.jpg", false},
		{"/music/album/cover.txt", false},
		{"cover", false},
	}

	for _, tt := range tests {
		if got := IsCoverPath(tt.path); got != tt.want {
			t.Errorf("IsCoverPath(%q): expected %v, got %v", tt.path, tt.want, got)
		}
	}
}

func TestGetMimeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".flac", "audio/flac"},
		{".MP3", "audio/mpeg"},
		{".jpg", "image/jpeg"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.ext); got != tt.want {
			t.Errorf("GetMimeType(%q): expected %q, got %q", tt.ext, tt.want, got)
		}
	}
}

func TestMimeTypeForPath(t *testing.T) {
	t.Parallel()

	if got := MimeTypeForPath("/music/a/b.opus"); got != "audio/opus" {
		t.Errorf("Expected audio/opus, got %q", got)
	}
}

func TestDefaultAudioExtensions(t *testing.T) {
	t.Parallel()

	exts := DefaultAudioExtensions()
	if len(exts) != len(AudioExtensions) {
		t.Errorf("Expected %d extensions, got %d", len(AudioExtensions), len(exts))
	}
	for _, ext := range exts {
		if ext == "" || ext[0] == '.' {
			t.Errorf("Expected extension without leading dot, got %q", ext)
		}
	}
}
