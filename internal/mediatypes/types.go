package mediatypes

import (
	"path/filepath"
	"strings"
)

// imageExts is the allow-list of file extensions the scanner indexes.
// Matches the set the thumbnail pipeline can decode.
var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, ok := imageExts[normalizeExt(path)]
	return ok
}

// MimeType returns the MIME type for a supported image path, or
// "application/octet-stream" for anything unrecognized.
func MimeType(path string) string {
	if mt, ok := imageExts[normalizeExt(path)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Ext returns the lowercased extension of path without the dot,
// e.g. "jpg". Empty for files without an extension.
func Ext(path string) string {
	return strings.TrimPrefix(normalizeExt(path), ".")
}

func normalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
