package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFprobe availability cache
var (
	ffprobeAvailable     *bool
	ffprobeCheckTime     time.Time
	ffprobeCheckMutex    sync.RWMutex
	ffprobeCheckInterval = 5 * time.Minute
)

// FFProbeOutput represents the JSON output from ffprobe
type FFProbeOutput struct {
	Format  FFProbeFormat   `json:"format"`
	Streams []FFProbeStream `json:"streams"`
}

type FFProbeFormat struct {
	Filename       string            `json:"filename"`
	NbStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

type FFProbeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	RFrameRate    string            `json:"r_frame_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	Tags          map[string]string `json:"tags"`
}

// TechnicalInfo represents technical stream information extracted from ffprobe
type TechnicalInfo struct {
	Format     string  // Container format (matroska, mov, flac, ...)
	Duration   float64 // Duration in seconds
	Bitrate    int     // Overall bitrate in bits per second
	Codec      string  // Primary stream codec
	SampleRate int     // Audio sample rate in Hz
	Channels   int     // Audio channel count
	Width      int     // Video frame width
	Height     int     // Video frame height
	FrameRate  float64 // Video frame rate
}

// IsFFProbeAvailable reports whether the ffprobe binary can be executed.
// The result is cached for a few minutes.
func IsFFProbeAvailable(ffprobePath string) bool {
	ffprobeCheckMutex.RLock()
	if ffprobeAvailable != nil && time.Since(ffprobeCheckTime) < ffprobeCheckInterval {
		available := *ffprobeAvailable
		ffprobeCheckMutex.RUnlock()
		return available
	}
	ffprobeCheckMutex.RUnlock()

	ffprobeCheckMutex.Lock()
	defer ffprobeCheckMutex.Unlock()

	_, err := exec.LookPath(ffprobePath)
	available := err == nil
	ffprobeAvailable = &available
	ffprobeCheckTime = time.Now()
	return available
}

// ResetFFProbeCache clears the availability cache. For use in tests only.
func ResetFFProbeCache() {
	ffprobeCheckMutex.Lock()
	defer ffprobeCheckMutex.Unlock()
	ffprobeAvailable = nil
}

// ExtractTechnicalInfo uses ffprobe to extract technical stream information
func ExtractTechnicalInfo(ctx context.Context, ffprobePath, filePath string) (*TechnicalInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath)

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe exited with code %d: %s", exitError.ExitCode(), string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe command failed: %w", err)
	}

	var probeOutput FFProbeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return buildTechnicalInfo(&probeOutput), nil
}

func buildTechnicalInfo(out *FFProbeOutput) *TechnicalInfo {
	info := &TechnicalInfo{}

	if out.Format.FormatName != "" {
		// "mov,mp4,m4a,3gp,3g2,mj2" style lists keep only the first entry
		info.Format = strings.SplitN(out.Format.FormatName, ",", 2)[0]
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.Atoi(out.Format.BitRate); err == nil {
		info.Bitrate = b
	}

	for i := range out.Streams {
		stream := &out.Streams[i]
		switch stream.CodecType {
		case "video":
			// The first video stream wins; attached cover art streams come later
			if info.Width == 0 {
				info.Width = stream.Width
				info.Height = stream.Height
				info.FrameRate = parseFrameRate(stream.AvgFrameRate)
				if info.FrameRate == 0 {
					info.FrameRate = parseFrameRate(stream.RFrameRate)
				}
				if info.Codec == "" {
					info.Codec = stream.CodecName
				}
			}
		case "audio":
			if info.SampleRate == 0 {
				if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
					info.SampleRate = sr
				}
				info.Channels = stream.Channels
				if info.Codec == "" {
					info.Codec = stream.CodecName
				}
			}
		}
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = d
			}
		}
	}

	return info
}

// parseFrameRate converts an ffprobe "num/den" rational to frames per second
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
