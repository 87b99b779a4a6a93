package database

import (
	"time"
)

// Project represents an editing project owning a source list
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Bins      []Bin     `gorm:"foreignKey:ProjectID" json:"bins,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bin represents a named grouping of imported media sources within a project
type Bin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index;uniqueIndex:idx_bin_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_bin_name" json:"name"`
	Position  int       `gorm:"not null;index" json:"position"`
	WatchPath string    `json:"watch_path,omitempty"`
	Sources   []Source  `gorm:"foreignKey:BinID" json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source represents an imported media file registered into a bin
type Source struct {
	ID       string `gorm:"primaryKey" json:"id"` // UUID
	BinID    uint   `gorm:"not null;index;uniqueIndex:idx_source_path" json:"bin_id"`
	Position int    `gorm:"not null;index" json:"position"`
	Path     string `gorm:"not null;uniqueIndex:idx_source_path" json:"path"`

	// File facts
	Size     int64  `json:"size"`
	Hash     string `gorm:"index" json:"hash,omitempty"` // SHA-256 of contents
	MimeType string `json:"mime_type,omitempty"`
	Kind     string `gorm:"index" json:"kind"` // audio, video, image, other

	// Probed metadata (zero values mean unknown)
	Duration   float64 `json:"duration,omitempty"` // Seconds
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	Codec      string  `json:"codec,omitempty"`
	Bitrate    int     `json:"bitrate,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Album      string  `json:"album,omitempty"`
	Year       int     `json:"year,omitempty"`
	HasArtwork bool    `json:"has_artwork"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the source's file name without its directory
func (s *Source) DisplayName() string {
	for i := len(s.Path) - 1; i >= 0; i-- {
		if s.Path[i] == '/' {
			return s.Path[i+1:]
		}
	}
	return s.Path
}
