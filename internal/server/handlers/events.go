package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/events"
)

// EventsHandler handles system event endpoints
type EventsHandler struct {
	eventBus events.EventBus
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventBus events.EventBus) *EventsHandler {
	return &EventsHandler{
		eventBus: eventBus,
	}
}

// GetEvents returns system events with filtering and pagination
func (h *EventsHandler) GetEvents(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	offsetStr := c.DefaultQuery("offset", "0")
	eventType := c.Query("type")
	source := c.Query("source")
	priority := c.Query("priority")
	tags := c.QueryArray("tags")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		offset = 0
	}

	filter := events.EventFilter{}
	if eventType != "" {
		filter.Types = []events.EventType{events.EventType(eventType)}
	}
	if source != "" {
		filter.Sources = []string{source}
	}
	if priority != "" {
		if p, err := strconv.Atoi(priority); err == nil {
			prio := events.EventPriority(p)
			filter.Priority = &prio
		}
	}
	if len(tags) > 0 {
		filter.Tags = tags
	}

	eventList, total, err := h.eventBus.GetEvents(filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": eventList,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetEventStats returns event bus statistics
func (h *EventsHandler) GetEventStats(c *gin.Context) {
	stats := h.eventBus.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"stats":         stats,
		"subscriptions": len(h.eventBus.GetSubscriptions()),
		"healthy":       h.eventBus.Health() == nil,
	})
}

// ClearEvents removes all stored events
func (h *EventsHandler) ClearEvents(c *gin.Context) {
	if err := h.eventBus.ClearEvents(context.Background()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to clear events",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
