// Package events provides the notification bus for source list changes.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Bin events
	EventBinCreated EventType = "bin.created"
	EventBinRemoved EventType = "bin.removed"
	EventBinRenamed EventType = "bin.renamed"

	// Source events
	EventSourceAdded   EventType = "source.added"
	EventSourceRemoved EventType = "source.removed"
	EventSourceMoved   EventType = "source.moved"
	EventSourcePruned  EventType = "source.pruned"

	// Import events
	EventImportStarted   EventType = "import.started"
	EventImportProgress  EventType = "import.progress"
	EventImportCompleted EventType = "import.completed"
	EventImportFailed    EventType = "import.failed"

	// Watch folder events
	EventWatchStarted EventType = "watch.started"
	EventWatchStopped EventType = "watch.stopped"

	// Thumbnail events
	EventThumbCreated EventType = "thumb.created"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"

	// General events
	EventError   EventType = "error"
	EventWarning EventType = "warning"
	EventInfo    EventType = "info"
)

// EventPriority represents the priority level of an event
type EventPriority int

const (
	PriorityLow      EventPriority = 1
	PriorityNormal   EventPriority = 5
	PriorityHigh     EventPriority = 10
	PriorityCritical EventPriority = 20
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // system, watcher, importer, ...
	Target    string                 `json:"target"` // specific target if applicable
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Priority  EventPriority          `json:"priority"`
	Tags      []string               `json:"tags"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter represents filters for event subscriptions
type EventFilter struct {
	Types    []EventType    `json:"types,omitempty"`
	Sources  []string       `json:"sources,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Priority *EventPriority `json:"priority,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID            string       `json:"id"`
	Filter        EventFilter  `json:"filter"`
	Handler       EventHandler `json:"-"`
	Subscriber    string       `json:"subscriber"`
	Created       time.Time    `json:"created"`
	LastTriggered *time.Time   `json:"last_triggered,omitempty"`
	TriggerCount  int64        `json:"trigger_count"`
}

// EventStats represents statistics about events
type EventStats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	EventsBySource      map[string]int64 `json:"events_by_source"`
	RecentEvents        []Event          `json:"recent_events"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}

// EventBusConfig represents configuration for the event bus
type EventBusConfig struct {
	BufferSize        int           `json:"buffer_size"`
	MaxEventAge       time.Duration `json:"max_event_age"`
	EnablePersistence bool          `json:"enable_persistence"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		BufferSize:        1000,
		MaxEventAge:       24 * time.Hour,
		EnablePersistence: true,
	}
}

// MatchesFilter reports whether an event passes a subscription filter
func MatchesFilter(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Sources) > 0 {
		found := false
		for _, s := range filter.Sources {
			if event.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Tags) > 0 {
		found := false
		for _, ft := range filter.Tags {
			for _, et := range event.Tags {
				if ft == et {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}

	if filter.Priority != nil && event.Priority < *filter.Priority {
		return false
	}

	return true
}

// FilterEvents returns the subset of events matching the filter
func FilterEvents(evts []Event, filter EventFilter) []Event {
	filtered := make([]Event, 0, len(evts))
	for _, e := range evts {
		if MatchesFilter(e, filter) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
