package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind represents the kind of a media file.
type Kind string

const (
	// KindPhoto represents a still image file.
	KindPhoto Kind = "photo"
	// KindVideo represents a video file.
	KindVideo Kind = "video"
	// KindOther represents an unknown or unsupported file type.
	KindOther Kind = "other"
)

// PhotoExtensions maps file extensions to whether they are accepted photo formats.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
}

// VideoExtensions maps file extensions to whether they are accepted video formats.
var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".heic": "image/heic",

	".mp4": "video/mp4",
	".mov": "video/quicktime",
}

// KindForExt returns the Kind for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns KindOther if the extension is not recognized.
func KindForExt(ext string) Kind {
	if PhotoExtensions[ext] {
		return KindPhoto
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return KindOther
}

// KindForPath returns the Kind for a file path, based on its extension.
func KindForPath(path string) Kind {
	return KindForExt(strings.ToLower(filepath.Ext(path)))
}

// MimeTypeForExt returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func MimeTypeForExt(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaPath returns true if the path has an accepted photo or video extension.
func IsMediaPath(path string) bool {
	return KindForPath(path) != KindOther
}
