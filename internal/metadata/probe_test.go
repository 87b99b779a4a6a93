package metadata

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelkit/reelkit/internal/config"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAudio, KindOf("/media/song.mp3"))
	assert.Equal(t, KindAudio, KindOf("/media/SONG.FLAC"))
	assert.Equal(t, KindVideo, KindOf("/media/clip.mkv"))
	assert.Equal(t, KindImage, KindOf("/media/photo.jpg"))
	assert.Equal(t, KindImage, KindOf("/media/photo.webp"))
	assert.Equal(t, KindOther, KindOf("/media/notes.txt"))
	assert.Equal(t, KindOther, KindOf("/media/noext"))
}

func TestIsMediaFile(t *testing.T) {
	assert.True(t, IsMediaFile("song.ogg"))
	assert.True(t, IsMediaFile("clip.webm"))
	assert.False(t, IsMediaFile("readme.md"))
	assert.False(t, IsMediaFile(".DS_Store"))
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 25.0, parseFrameRate("25/1"), 0.001)
	assert.InDelta(t, 23.976, parseFrameRate("24000/1001"), 0.001)
	assert.Zero(t, parseFrameRate("0/0"))
	assert.Zero(t, parseFrameRate("not-a-rate"))
	assert.Zero(t, parseFrameRate(""))
}

func TestBuildTechnicalInfo(t *testing.T) {
	out := &FFProbeOutput{
		Format: FFProbeFormat{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Duration:   "12.5",
			BitRate:    "128000",
		},
		Streams: []FFProbeStream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "25/1"},
			{CodecType: "audio", CodecName: "aac", SampleRate: "44100", Channels: 2},
			// Attached cover art shows up as a second video stream.
			{CodecType: "video", CodecName: "mjpeg", Width: 500, Height: 500},
		},
	}

	info := buildTechnicalInfo(out)
	assert.Equal(t, "mov", info.Format)
	assert.InDelta(t, 12.5, info.Duration, 0.001)
	assert.Equal(t, 128000, info.Bitrate)
	assert.Equal(t, "h264", info.Codec)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 25.0, info.FrameRate, 0.001)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ProbeConfig{
		EnableFFProbe: false,
		HashFiles:     true,
		MaxHashSize:   1 << 20,
	}

	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("test audio data"), 0644))

	info, err := Extract(context.Background(), path, cfg)
	require.NoError(t, err)
	assert.Equal(t, KindAudio, info.Kind)
	assert.Equal(t, "audio/mp3", info.MimeType)
	assert.Equal(t, int64(15), info.Size)
	assert.Equal(t, HashData([]byte("test audio data")), info.Hash)
}

func TestExtractRejectsMissingFile(t *testing.T) {
	cfg := &config.ProbeConfig{}
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"), cfg)
	assert.Error(t, err)
}

func TestExtractRejectsDirectory(t *testing.T) {
	cfg := &config.ProbeConfig{}
	_, err := Extract(context.Background(), t.TempDir(), cfg)
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestExtractSkipsHashingLargeFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ProbeConfig{
		HashFiles:   true,
		MaxHashSize: 4,
	}

	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("more than four bytes"), 0644))

	info, err := Extract(context.Background(), path, cfg)
	require.NoError(t, err)
	assert.Empty(t, info.Hash)
}

func TestExtractImageDimensions(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	info, err := Extract(context.Background(), path, &config.ProbeConfig{})
	require.NoError(t, err)
	assert.Equal(t, KindImage, info.Kind)
	assert.Equal(t, 32, info.Width)
	assert.Equal(t, 16, info.Height)
}

func TestHashData(t *testing.T) {
	hash := HashData([]byte("test"))
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashData([]byte("test")))
	assert.NotEqual(t, hash, HashData([]byte("other")))
}
