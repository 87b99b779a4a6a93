package thumbsmodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/metadata"
)

// Manager maintains the on-disk thumbnail cache, sharded by content hash
// the same way the sources themselves are hashed
type Manager struct {
	cfg       config.ThumbsConfig
	db        *gorm.DB
	processor *Processor
	eventBus  events.EventBus

	subscription *events.Subscription
}

// NewManager creates a thumbnail manager
func NewManager(cfg config.ThumbsConfig, db *gorm.DB, eventBus events.EventBus) *Manager {
	return &Manager{
		cfg:       cfg,
		db:        db,
		processor: NewProcessor(cfg),
		eventBus:  eventBus,
	}
}

// Start subscribes the manager to source additions so thumbnails are
// generated as media comes in
func (m *Manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	if m.eventBus == nil {
		return nil
	}
	sub, err := m.eventBus.Subscribe(ctx, events.EventFilter{
		Types: []events.EventType{events.EventSourceAdded},
	}, m.onSourceAdded)
	if err != nil {
		return fmt.Errorf("failed to subscribe to source events: %w", err)
	}
	m.subscription = sub
	return nil
}

// Stop unsubscribes the manager from the event bus
func (m *Manager) Stop() {
	if m.eventBus != nil && m.subscription != nil {
		m.eventBus.Unsubscribe(m.subscription.ID)
	}
}

func (m *Manager) onSourceAdded(event events.Event) error {
	id, _ := event.Data["source_id"].(string)
	if id == "" {
		return nil
	}

	var source database.Source
	if err := m.db.First(&source, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to load source %s: %w", id, err)
	}

	if _, err := m.EnsureThumb(context.Background(), &source); err != nil {
		logger.Debug("No thumbnail for %s: %v", source.Path, err)
	}
	return nil
}

// EnsureThumb generates the thumbnail for a source if it is missing and
// returns its cache path
func (m *Manager) EnsureThumb(ctx context.Context, source *database.Source) (string, error) {
	if source.Hash == "" {
		return "", fmt.Errorf("source %s has no content hash", source.ID)
	}

	path := m.ThumbPath(source.Hash)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	var data []byte
	var err error
	switch metadata.Kind(source.Kind) {
	case metadata.KindImage:
		data, err = m.processor.FromImage(source.Path)
	case metadata.KindVideo:
		if !m.cfg.EnableVideo || !m.processor.IsFFMpegAvailable() {
			return "", fmt.Errorf("video thumbnails unavailable")
		}
		data, err = m.processor.FromVideo(ctx, source.Path, source.Duration)
	case metadata.KindAudio:
		if !m.cfg.EnableAudio || !m.processor.IsFFMpegAvailable() {
			return "", fmt.Errorf("audio waveforms unavailable")
		}
		data, err = m.processor.FromAudio(ctx, source.Path)
	default:
		return "", fmt.Errorf("no thumbnail for %s sources", source.Kind)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail shard dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}

	if m.eventBus != nil {
		m.eventBus.PublishAsync(events.NewEventWithData(
			events.EventThumbCreated, "thumbs", "Thumbnail created",
			fmt.Sprintf("Thumbnail for %s", source.DisplayName()),
			map[string]interface{}{"source_id": source.ID, "hash": source.Hash}))
	}
	return path, nil
}

// ThumbPath returns the cache path for a content hash
func (m *Manager) ThumbPath(hash string) string {
	shard := "00"
	if len(hash) >= 2 {
		shard = hash[:2]
	}
	return filepath.Join(m.cfg.DataDir, shard, hash+".webp")
}
