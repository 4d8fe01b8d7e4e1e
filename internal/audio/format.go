// Package audio knows which uploaded container formats the transcription
// provider accepts.
package audio

import (
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// SupportedExtensions lists accepted upload extensions in a stable order,
// for error messages.
func SupportedExtensions() []string {
	return []string{".wav", ".mp3", ".webm", ".m4a", ".ogg"}
}

// Supported reports whether the filename carries an accepted extension.
func Supported(filename string) bool {
	_, ok := contentTypes[normalize(filename)]
	return ok
}

// ContentTypeFor returns the MIME type for a filename, or an empty string
// for unsupported formats.
func ContentTypeFor(filename string) string {
	return contentTypes[normalize(filename)]
}

func normalize(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
