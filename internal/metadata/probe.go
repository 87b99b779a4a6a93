package metadata

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/dhowden/tag"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/logger"
)

// ErrNotRegularFile rejects directories, sockets and other paths that
// cannot be imported as media sources.
var ErrNotRegularFile = errors.New("not a regular file")

// Info holds everything the prober could learn about a file
type Info struct {
	Kind     Kind
	MimeType string
	Size     int64
	Hash     string

	Duration   float64
	Width      int
	Height     int
	FrameRate  float64
	Codec      string
	Bitrate    int
	SampleRate int
	Channels   int

	Title      string
	Artist     string
	Album      string
	Year       int
	HasArtwork bool
}

// Extract probes a file for metadata. Probing is best-effort: a failed tag
// read or missing ffprobe leaves the corresponding fields at their zero
// values rather than failing the import.
func Extract(ctx context.Context, path string, cfg *config.ProbeConfig) (*Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	info := &Info{
		Kind:     KindOf(path),
		MimeType: MimeTypeOf(path),
		Size:     stat.Size(),
	}

	if cfg.HashFiles && stat.Size() <= cfg.MaxHashSize {
		hash, err := hashFile(path)
		if err != nil {
			logger.Warn("Failed to hash %s: %v", path, err)
		} else {
			info.Hash = hash
		}
	}

	switch info.Kind {
	case KindAudio:
		extractAudioTags(path, info)
	case KindImage:
		extractImageDimensions(path, info)
	}

	if cfg.EnableFFProbe && info.Kind != KindImage && IsFFProbeAvailable(cfg.FFProbePath) {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()

		tech, err := ExtractTechnicalInfo(probeCtx, cfg.FFProbePath, path)
		if err != nil {
			logger.Warn("ffprobe failed for %s: %v", path, err)
		} else {
			info.Duration = tech.Duration
			info.Bitrate = tech.Bitrate
			info.Codec = tech.Codec
			info.SampleRate = tech.SampleRate
			info.Channels = tech.Channels
			if tech.Width > 0 {
				info.Width = tech.Width
				info.Height = tech.Height
				info.FrameRate = tech.FrameRate
			}
		}
	}

	return info, nil
}

// extractAudioTags reads container tags from an audio file
func extractAudioTags(path string, info *Info) {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("Failed to open %s for tag reading: %v", path, err)
		return
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// Untagged files are common, not an error worth surfacing
		logger.Debug("No readable tags in %s: %v", path, err)
		return
	}

	info.Title = meta.Title()
	info.Artist = meta.Artist()
	info.Album = meta.Album()
	info.Year = meta.Year()

	if pic := meta.Picture(); pic != nil && len(pic.Data) > 0 {
		info.HasArtwork = true
	}
}

// extractImageDimensions decodes just enough of an image to learn its size
func extractImageDimensions(path string, info *Info) {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("Failed to open image %s: %v", path, err)
		return
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		cfg, err := webp.DecodeConfig(file)
		if err != nil {
			logger.Debug("Failed to decode webp config for %s: %v", path, err)
			return
		}
		info.Width = cfg.Width
		info.Height = cfg.Height
		return
	}

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		logger.Debug("Failed to decode image config for %s: %v", path, err)
		return
	}
	info.Width = cfg.Width
	info.Height = cfg.Height
}

// hashFile calculates the SHA-256 hash of a file's contents
func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file for hashing: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// HashData calculates the SHA-256 hash of a byte slice
func HashData(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
