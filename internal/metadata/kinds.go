// Package metadata extracts technical metadata from media files at import
// time: container/tag data, image dimensions, content hashes, and ffprobe
// technical info where an ffprobe binary is available.
package metadata

import (
	"path/filepath"
	"strings"
)

// Kind classifies a source by its media type
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// AudioExtensions defines supported audio file formats
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".wma":  true,
	".ape":  true,
	".opus": true,
	".aiff": true,
}

// VideoExtensions defines supported video file formats
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".3gp":  true,
	".ogv":  true,
	".mts":  true,
	".dv":   true,
}

// ImageExtensions defines supported still-image formats
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
}

// KindOf classifies a file path by extension
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case AudioExtensions[ext]:
		return KindAudio
	case VideoExtensions[ext]:
		return KindVideo
	case ImageExtensions[ext]:
		return KindImage
	default:
		return KindOther
	}
}

// IsMediaFile checks if a file is usable as a project source
func IsMediaFile(path string) bool {
	return KindOf(path) != KindOther
}

// MimeTypeOf returns a best-effort MIME type from the file extension
func MimeTypeOf(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return ""
	}
	switch KindOf(path) {
	case KindAudio:
		return "audio/" + ext
	case KindVideo:
		return "video/" + ext
	case KindImage:
		if ext == "jpg" {
			ext = "jpeg"
		}
		return "image/" + ext
	default:
		return "application/octet-stream"
	}
}
