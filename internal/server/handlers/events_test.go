package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelkit/reelkit/internal/events"
)

func startHandlerBus(t *testing.T) events.EventBus {
	bus := events.NewEventBus(events.EventBusConfig{BufferSize: 10}, hclog.NewNullLogger(), nil)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})
	return bus
}

func TestGetEventsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := startHandlerBus(t)

	require.NoError(t, bus.PublishAsync(events.NewSystemEvent(events.EventBinCreated, "Bin created", "clips")))
	require.NoError(t, bus.PublishAsync(events.NewSystemEvent(events.EventSourceAdded, "Source added", "song.mp3")))

	require.Eventually(t, func() bool {
		return bus.GetStats().TotalEvents == 2
	}, time.Second, 10*time.Millisecond)

	h := NewEventsHandler(bus)
	r := gin.New()
	r.GET("/api/events", h.GetEvents)

	req, _ := http.NewRequest(http.MethodGet, "/api/events?type=bin.created", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var responseBody map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody))
	assert.Equal(t, float64(1), responseBody["total"])

	list, ok := responseBody["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestGetEventsHandlerClampsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := startHandlerBus(t)

	h := NewEventsHandler(bus)
	r := gin.New()
	r.GET("/api/events", h.GetEvents)

	req, _ := http.NewRequest(http.MethodGet, "/api/events?limit=9999&offset=-3", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var responseBody map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody))
	assert.Equal(t, float64(1000), responseBody["limit"])
	assert.Equal(t, float64(0), responseBody["offset"])
}

func TestGetEventStatsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := startHandlerBus(t)

	h := NewEventsHandler(bus)
	r := gin.New()
	r.GET("/api/events/stats", h.GetEventStats)

	req, _ := http.NewRequest(http.MethodGet, "/api/events/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var responseBody map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody))
	assert.Equal(t, true, responseBody["healthy"])
	assert.Contains(t, responseBody, "stats")
}
