package sourcelistmodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/metadata"
)

// MockEventBus implements events.EventBus for testing
type MockEventBus struct {
	events []events.Event
	mu     sync.RWMutex
}

func (m *MockEventBus) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventBus) PublishAsync(event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, filter events.EventFilter, handler events.EventHandler) (*events.Subscription, error) {
	return nil, nil
}

func (m *MockEventBus) Unsubscribe(subscriptionID string) error { return nil }

func (m *MockEventBus) GetSubscriptions() []*events.Subscription { return nil }

func (m *MockEventBus) GetEvents(filter events.EventFilter, limit, offset int) ([]events.Event, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]events.Event{}, m.events...), int64(len(m.events)), nil
}

func (m *MockEventBus) GetStats() events.EventStats { return events.EventStats{} }

func (m *MockEventBus) ClearEvents(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

func (m *MockEventBus) Start(ctx context.Context) error { return nil }
func (m *MockEventBus) Stop(ctx context.Context) error  { return nil }
func (m *MockEventBus) Health() error                   { return nil }

func (m *MockEventBus) EventsForTest() []events.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]events.Event{}, m.events...)
}

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&database.Project{},
		&database.Bin{},
		&database.Source{},
	)
	require.NoError(t, err)

	return db
}

func testProbeConfig() config.ProbeConfig {
	return config.ProbeConfig{
		EnableFFProbe: false,
		HashFiles:     true,
		MaxHashSize:   1 << 20,
	}
}

// openTestList opens a fresh source list backed by an in-memory database
func openTestList(t *testing.T) (*SourceList, *MockEventBus) {
	db := setupTestDB(t)
	bus := &MockEventBus{}
	sl, err := Open(db, bus, testProbeConfig(), "test-project")
	require.NoError(t, err)
	return sl, bus
}

// writeTestFile creates a file with the given name under a temp directory
func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestOpenCreatesProject(t *testing.T) {
	db := setupTestDB(t)
	sl, err := Open(db, nil, testProbeConfig(), "my-project")
	require.NoError(t, err)
	assert.Equal(t, "my-project", sl.Project().Name)
	assert.NotZero(t, sl.Project().ID)

	// Opening the same project again must not create a second row.
	sl2, err := Open(db, nil, testProbeConfig(), "my-project")
	require.NoError(t, err)
	assert.Equal(t, sl.Project().ID, sl2.Project().ID)
}

func TestOpenRejectsEmptyProjectName(t *testing.T) {
	db := setupTestDB(t)
	_, err := Open(db, nil, testProbeConfig(), "")
	assert.Error(t, err)
}

func TestNewBin(t *testing.T) {
	sl, bus := openTestList(t)

	first, err := sl.NewBin("clips")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)

	second, err := sl.NewBin("audio")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	published := bus.EventsForTest()
	require.Len(t, published, 2)
	assert.Equal(t, events.EventBinCreated, published[0].Type)
}

func TestNewBinTrimsName(t *testing.T) {
	sl, _ := openTestList(t)

	bin, err := sl.NewBin("  clips  ")
	require.NoError(t, err)
	assert.Equal(t, "clips", bin.Name)
}

func TestNewBinRejectsEmptyName(t *testing.T) {
	sl, _ := openTestList(t)

	_, err := sl.NewBin("   ")
	assert.ErrorIs(t, err, ErrEmptyBinName)
}

func TestNewBinRejectsDuplicateName(t *testing.T) {
	sl, _ := openTestList(t)

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	_, err = sl.NewBin("clips")
	assert.ErrorIs(t, err, ErrDuplicateBin)
}

func TestAddFileToBin(t *testing.T) {
	sl, bus := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	clip := writeTestFile(t, dir, "clip.mkv", []byte("test video data"))

	src, err := sl.AddFileToBin(ctx, 0, song)
	require.NoError(t, err)
	assert.Equal(t, 0, src.Position)
	assert.Equal(t, "audio", src.Kind)
	assert.Equal(t, int64(15), src.Size)
	assert.NotEmpty(t, src.Hash)
	assert.NotEmpty(t, src.ID)

	src2, err := sl.AddFileToBin(ctx, 0, clip)
	require.NoError(t, err)
	assert.Equal(t, 1, src2.Position)
	assert.Equal(t, "video", src2.Kind)

	var added int
	for _, ev := range bus.EventsForTest() {
		if ev.Type == events.EventSourceAdded {
			added++
		}
	}
	assert.Equal(t, 2, added)
}

func TestAddFileToBinRejectsDuplicatePath(t *testing.T) {
	sl, _ := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err = sl.AddFileToBin(ctx, 0, song)
	require.NoError(t, err)

	_, err = sl.AddFileToBin(ctx, 0, song)
	assert.ErrorIs(t, err, ErrDuplicateSource)

	// The same file in a different bin is fine.
	_, err = sl.NewBin("more")
	require.NoError(t, err)
	_, err = sl.AddFileToBin(ctx, 1, song)
	assert.NoError(t, err)
}

func TestAddFileToBinRejectsMissingFile(t *testing.T) {
	sl, _ := openTestList(t)

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	_, err = sl.AddFileToBin(context.Background(), 0, filepath.Join(t.TempDir(), "nope.mp3"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAddFileToBinRejectsDirectory(t *testing.T) {
	sl, _ := openTestList(t)

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	_, err = sl.AddFileToBin(context.Background(), 0, t.TempDir())
	assert.ErrorIs(t, err, metadata.ErrNotRegularFile)
}

func TestConcurrentAddsOfSamePath(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()
	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))

	bin, err := sl.NewBin("clips")
	require.NoError(t, err)

	// Probing runs outside the list lock, so both goroutines may probe the
	// same path; only one insert may land.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sl.AddFileToBinID(context.Background(), bin.ID, song)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateSource):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)

	b, err := sl.BinAt(0)
	require.NoError(t, err)
	assert.Len(t, b.Sources, 1)
}

func TestAddFileToMissingBin(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()
	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))

	_, err := sl.AddFileToBin(context.Background(), 3, song)
	assert.ErrorIs(t, err, ErrBinNotFound)

	_, err = sl.AddFileToBin(context.Background(), -1, song)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestAddFileToBinID(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()
	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))

	bin, err := sl.NewBin("clips")
	require.NoError(t, err)

	src, err := sl.AddFileToBinID(context.Background(), bin.ID, song)
	require.NoError(t, err)
	assert.Equal(t, bin.ID, src.BinID)

	_, err = sl.AddFileToBinID(context.Background(), bin.ID+100, song)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestGetFileInfo(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err = sl.AddFileToBin(context.Background(), 0, filepath.Join(dir, "song.mp3"))
	require.NoError(t, err)

	info, err := sl.GetFileInfo(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "song.mp3 (audio, 15 B)", info)

	_, err = sl.GetFileInfo(0, 5)
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = sl.GetFileInfo(2, 0)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestRemoveSourceRepacksPositions(t *testing.T) {
	sl, _ := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		writeTestFile(t, dir, name, []byte("test audio data"))
		_, err = sl.AddFileToBin(ctx, 0, filepath.Join(dir, name))
		require.NoError(t, err)
	}

	require.NoError(t, sl.RemoveSource(0, 1))

	bins, err := sl.Bins()
	require.NoError(t, err)
	require.Len(t, bins[0].Sources, 2)
	assert.Equal(t, "a.mp3", bins[0].Sources[0].DisplayName())
	assert.Equal(t, 0, bins[0].Sources[0].Position)
	assert.Equal(t, "c.mp3", bins[0].Sources[1].DisplayName())
	assert.Equal(t, 1, bins[0].Sources[1].Position)

	err = sl.RemoveSource(0, 5)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRemoveSourceByPath(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err = sl.AddFileToBin(context.Background(), 0, song)
	require.NoError(t, err)

	require.NoError(t, sl.RemoveSourceByPath(song))

	bins, err := sl.Bins()
	require.NoError(t, err)
	assert.Empty(t, bins[0].Sources)

	err = sl.RemoveSourceByPath(song)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRemoveBinRepacksPositions(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()

	for _, name := range []string{"one", "two", "three"} {
		_, err := sl.NewBin(name)
		require.NoError(t, err)
	}

	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err := sl.AddFileToBin(context.Background(), 1, song)
	require.NoError(t, err)

	require.NoError(t, sl.RemoveBin(1))

	bins, err := sl.Bins()
	require.NoError(t, err)
	require.Len(t, bins, 2)
	assert.Equal(t, "one", bins[0].Name)
	assert.Equal(t, 0, bins[0].Position)
	assert.Equal(t, "three", bins[1].Name)
	assert.Equal(t, 1, bins[1].Position)

	// The removed bin's sources must be gone too.
	var count int64
	require.NoError(t, sl.db.Model(&database.Source{}).Count(&count).Error)
	assert.Zero(t, count)

	err = sl.RemoveBin(7)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestRenameBin(t *testing.T) {
	sl, _ := openTestList(t)

	_, err := sl.NewBin("clips")
	require.NoError(t, err)
	_, err = sl.NewBin("audio")
	require.NoError(t, err)

	require.NoError(t, sl.RenameBin(0, "video"))

	bin, err := sl.BinAt(0)
	require.NoError(t, err)
	assert.Equal(t, "video", bin.Name)

	err = sl.RenameBin(0, "audio")
	assert.ErrorIs(t, err, ErrDuplicateBin)

	err = sl.RenameBin(0, "  ")
	assert.ErrorIs(t, err, ErrEmptyBinName)
}

func TestMoveSource(t *testing.T) {
	sl, _ := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("from")
	require.NoError(t, err)
	_, err = sl.NewBin("to")
	require.NoError(t, err)

	for _, name := range []string{"a.mp3", "b.mp3"} {
		writeTestFile(t, dir, name, []byte("test audio data"))
		_, err = sl.AddFileToBin(ctx, 0, filepath.Join(dir, name))
		require.NoError(t, err)
	}

	require.NoError(t, sl.MoveSource(0, 0, 1))

	bins, err := sl.Bins()
	require.NoError(t, err)
	require.Len(t, bins[0].Sources, 1)
	assert.Equal(t, "b.mp3", bins[0].Sources[0].DisplayName())
	assert.Equal(t, 0, bins[0].Sources[0].Position)
	require.Len(t, bins[1].Sources, 1)
	assert.Equal(t, "a.mp3", bins[1].Sources[0].DisplayName())
	assert.Equal(t, 0, bins[1].Sources[0].Position)

	err = sl.MoveSource(0, 0, 5)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestMoveSourceWithinBin(t *testing.T) {
	sl, _ := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		writeTestFile(t, dir, name, []byte("test audio data"))
		_, err = sl.AddFileToBin(ctx, 0, filepath.Join(dir, name))
		require.NoError(t, err)
	}

	// Moving within the same bin sends the source to the end.
	require.NoError(t, sl.MoveSource(0, 0, 0))

	bin, err := sl.BinAt(0)
	require.NoError(t, err)
	require.Len(t, bin.Sources, 3)
	assert.Equal(t, "b.mp3", bin.Sources[0].DisplayName())
	assert.Equal(t, "c.mp3", bin.Sources[1].DisplayName())
	assert.Equal(t, "a.mp3", bin.Sources[2].DisplayName())
	for i := range bin.Sources {
		assert.Equal(t, i, bin.Sources[i].Position)
	}

	// Moving the last source is a no-op but still succeeds.
	require.NoError(t, sl.MoveSource(0, 2, 0))
	info, err := sl.GetFileInfo(0, 2)
	require.NoError(t, err)
	assert.Contains(t, info, "a.mp3")
}

func TestMoveSourceRejectsDuplicateInTarget(t *testing.T) {
	sl, _ := openTestList(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := sl.NewBin("from")
	require.NoError(t, err)
	_, err = sl.NewBin("to")
	require.NoError(t, err)

	song := writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err = sl.AddFileToBin(ctx, 0, song)
	require.NoError(t, err)
	_, err = sl.AddFileToBin(ctx, 1, song)
	require.NoError(t, err)

	err = sl.MoveSource(0, 0, 1)
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestSetWatchPath(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()

	_, err := sl.NewBin("incoming")
	require.NoError(t, err)

	bin, err := sl.SetWatchPath(0, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, bin.WatchPath)

	watched, err := sl.WatchedBins()
	require.NoError(t, err)
	require.Len(t, watched, 1)
	assert.Equal(t, "incoming", watched[0].Name)

	// Clearing the watch path unlinks the bin.
	_, err = sl.SetWatchPath(0, "")
	require.NoError(t, err)

	watched, err = sl.WatchedBins()
	require.NoError(t, err)
	assert.Empty(t, watched)
}

func TestDumpBin(t *testing.T) {
	sl, _ := openTestList(t)
	dir := t.TempDir()

	_, err := sl.NewBin("clips")
	require.NoError(t, err)

	writeTestFile(t, dir, "song.mp3", []byte("test audio data"))
	_, err = sl.AddFileToBin(context.Background(), 0, filepath.Join(dir, "song.mp3"))
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, sl.DumpBin(0, &buf))

	out := buf.String()
	assert.Contains(t, out, `bin 0: "clips" (1 sources)`)
	assert.Contains(t, out, "[0] song.mp3 (audio, 15 B)")

	err = sl.DumpBin(4, &buf)
	assert.ErrorIs(t, err, ErrBinNotFound)
}

func TestDescribeSource(t *testing.T) {
	audio := &database.Source{Path: "/m/track.flac", Kind: "audio", Size: 2048, Duration: 83}
	assert.Equal(t, "track.flac (audio, 2.0 KiB, 1:23)", describeSource(audio))

	image := &database.Source{Path: "/m/photo.jpg", Kind: "image", Size: 500, Width: 1920, Height: 1080}
	assert.Equal(t, "photo.jpg (image, 500 B, 1920x1080)", describeSource(image))

	long := &database.Source{Path: "/m/film.mkv", Kind: "video", Size: 5 << 30, Duration: 3725}
	assert.Equal(t, fmt.Sprintf("film.mkv (video, 5.0 GiB, %s)", "1:02:05"), describeSource(long))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(0))
	assert.Equal(t, "1023 B", formatSize(1023))
	assert.Equal(t, "1.0 KiB", formatSize(1024))
	assert.Equal(t, "1.5 MiB", formatSize(3<<20/2))
}
