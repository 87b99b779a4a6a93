package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SystemEvent represents a persisted event row
type SystemEvent struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"uniqueIndex;not null" json:"event_id"`
	Type      string    `gorm:"not null;index" json:"type"`
	Source    string    `gorm:"not null;index" json:"source"`
	Target    string    `gorm:"index" json:"target"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      string    `gorm:"type:text" json:"data"` // JSON-encoded event data
	Priority  int       `gorm:"not null;index" json:"priority"`
	Tags      string    `gorm:"type:text" json:"tags"` // JSON-encoded tags
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for SystemEvent
func (SystemEvent) TableName() string {
	return "system_events"
}

// ToEvent converts a SystemEvent row to an Event
func (se *SystemEvent) ToEvent() (Event, error) {
	event := Event{
		ID:        se.EventID,
		Type:      EventType(se.Type),
		Source:    se.Source,
		Target:    se.Target,
		Title:     se.Title,
		Message:   se.Message,
		Priority:  EventPriority(se.Priority),
		Timestamp: se.CreatedAt,
	}

	if se.Data != "" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(se.Data), &data); err != nil {
			return event, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		event.Data = data
	} else {
		event.Data = make(map[string]interface{})
	}

	if se.Tags != "" {
		var tags []string
		if err := json.Unmarshal([]byte(se.Tags), &tags); err != nil {
			return event, fmt.Errorf("failed to unmarshal event tags: %w", err)
		}
		event.Tags = tags
	} else {
		event.Tags = []string{}
	}

	return event, nil
}

// FromEvent fills a SystemEvent row from an Event
func (se *SystemEvent) FromEvent(event Event) error {
	se.EventID = event.ID
	se.Type = string(event.Type)
	se.Source = event.Source
	se.Target = event.Target
	se.Title = event.Title
	se.Message = event.Message
	se.Priority = int(event.Priority)
	se.CreatedAt = event.Timestamp

	if len(event.Data) > 0 {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		se.Data = string(data)
	}

	if len(event.Tags) > 0 {
		tags, err := json.Marshal(event.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal event tags: %w", err)
		}
		se.Tags = string(tags)
	}

	return nil
}

// databaseStorage persists events through gorm
type databaseStorage struct {
	db *gorm.DB
}

// NewDatabaseStorage creates gorm-backed event storage
func NewDatabaseStorage(db *gorm.DB) (EventStorage, error) {
	if err := db.AutoMigrate(&SystemEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event storage: %w", err)
	}
	return &databaseStorage{db: db}, nil
}

func (s *databaseStorage) Store(ctx context.Context, event Event) error {
	var row SystemEvent
	if err := row.FromEvent(event); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *databaseStorage) Get(ctx context.Context, filter EventFilter, limit, offset int) ([]Event, int64, error) {
	query := s.db.WithContext(ctx).Model(&SystemEvent{})

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where("type IN ?", types)
	}
	if len(filter.Sources) > 0 {
		query = query.Where("source IN ?", filter.Sources)
	}
	if filter.Priority != nil {
		query = query.Where("priority >= ?", int(*filter.Priority))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []SystemEvent
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	result := make([]Event, 0, len(rows))
	for i := range rows {
		event, err := rows[i].ToEvent()
		if err != nil {
			continue
		}
		result = append(result, event)
	}
	return result, total, nil
}

func (s *databaseStorage) Delete(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&SystemEvent{}).Error
}

func (s *databaseStorage) DeleteAllEvents(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&SystemEvent{}).Error
}

func (s *databaseStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&SystemEvent{}).Count(&count).Error
	return count, err
}

func (s *databaseStorage) Close() error {
	return nil
}
