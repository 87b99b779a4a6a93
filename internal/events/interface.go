package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event to the event bus
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event asynchronously (non-blocking)
	PublishAsync(event Event) error

	// Subscribe subscribes to events matching the filter
	Subscribe(ctx context.Context, filter EventFilter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// GetSubscriptions returns all active subscriptions
	GetSubscriptions() []*Subscription

	// GetEvents returns stored events based on filter and pagination
	GetEvents(filter EventFilter, limit, offset int) ([]Event, int64, error)

	// GetStats returns event bus statistics
	GetStats() EventStats

	// ClearEvents removes all events from storage
	ClearEvents(ctx context.Context) error

	// Start starts the event bus
	Start(ctx context.Context) error

	// Stop stops the event bus gracefully
	Stop(ctx context.Context) error

	// Health returns the health status of the event bus
	Health() error
}

// EventStorage defines the interface for persisting events
type EventStorage interface {
	Store(ctx context.Context, event Event) error
	Get(ctx context.Context, filter EventFilter, limit, offset int) ([]Event, int64, error)
	Delete(ctx context.Context, olderThan time.Duration) error
	DeleteAllEvents(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

var (
	globalBus EventBus
	globalMu  sync.RWMutex
)

// SetGlobalEventBus registers the bus shared by all modules
func SetGlobalEventBus(bus EventBus) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBus = bus
}

// GetGlobalEventBus returns the shared bus, or nil before startup
func GetGlobalEventBus() EventBus {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBus
}

// NewEvent creates a new event with default values
func NewEvent(eventType EventType, source string, title string, message string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Title:     title,
		Message:   message,
		Data:      make(map[string]interface{}),
		Priority:  PriorityNormal,
		Tags:      []string{},
		Timestamp: time.Now(),
	}
}

// NewEventWithData creates a new event with structured data
func NewEventWithData(eventType EventType, source string, title string, message string, data map[string]interface{}) Event {
	event := NewEvent(eventType, source, title, message)
	event.Data = data
	return event
}

// NewSystemEvent creates an event sourced from the system itself
func NewSystemEvent(eventType EventType, title string, message string) Event {
	return NewEvent(eventType, "system", title, message)
}
