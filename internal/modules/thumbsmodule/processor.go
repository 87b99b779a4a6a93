// Package thumbsmodule generates and serves preview thumbnails for project
// sources.
package thumbsmodule

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/reelkit/reelkit/internal/config"
)

// Processor renders thumbnail images
type Processor struct {
	cfg config.ThumbsConfig
}

// NewProcessor creates a thumbnail processor
func NewProcessor(cfg config.ThumbsConfig) *Processor {
	return &Processor{cfg: cfg}
}

// FromImage renders a thumbnail for a still image file
func (p *Processor) FromImage(path string) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return p.encode(img)
}

// FromVideo renders a thumbnail from a frame of a video file. duration is
// the source duration in seconds; the frame is taken about a third in, where
// there tends to be actual picture content instead of black leader.
func (p *Processor) FromVideo(ctx context.Context, path string, duration float64) ([]byte, error) {
	seek := duration * 0.3
	if seek <= 0 {
		seek = 1
	}

	cmd := exec.CommandContext(ctx, p.cfg.FFMpegPath,
		"-ss", fmt.Sprintf("%.2f", seek),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-")

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffmpeg exited with code %d: %s", exitError.ExitCode(), string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg command failed: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return p.encode(img)
}

// FromAudio renders a waveform preview for an audio file. ffmpeg draws the
// peaks itself via showwavespic, so no PCM ever crosses the pipe.
func (p *Processor) FromAudio(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.cfg.FFMpegPath,
		"-i", path,
		"-filter_complex", p.waveformFilter(),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-")

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffmpeg exited with code %d: %s", exitError.ExitCode(), string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg command failed: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to decode waveform image: %w", err)
	}
	return p.encode(img)
}

// waveformFilter builds the showwavespic filter string, a quarter as tall
// as the thumbnail width
func (p *Processor) waveformFilter() string {
	height := p.cfg.Width / 4
	if height < 16 {
		height = 16
	}
	return fmt.Sprintf("showwavespic=s=%dx%d:colors=white", p.cfg.Width, height)
}

// IsFFMpegAvailable reports whether the ffmpeg binary can be executed
func (p *Processor) IsFFMpegAvailable() bool {
	_, err := exec.LookPath(p.cfg.FFMpegPath)
	return err == nil
}

// encode resizes to the configured width and encodes as webp
func (p *Processor) encode(img image.Image) ([]byte, error) {
	thumb := imaging.Resize(img, p.cfg.Width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	options := &webp.Options{Quality: float32(p.cfg.Quality)}
	if err := webp.Encode(&buf, thumb, options); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
