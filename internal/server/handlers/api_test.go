package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/database"
)

// TestAPIRootHandler checks the /api endpoint response.
func TestAPIRootHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apiroutes.ClearForTesting()

	apiroutes.Register("/api/bins", "GET", "List all bins with their sources.")
	apiroutes.Register("/api/bins", "POST", "Create a new named bin.")
	apiroutes.Register("/api/bins/:pos/sources", "GET", "List the sources of a bin.")
	apiroutes.Register("/api/events", "GET", "Query stored system events.")
	apiroutes.Register("/api/health", "GET", "Service health check.")

	r := gin.New()
	r.GET("/api", ApiRootHandler)

	req, _ := http.NewRequest(http.MethodGet, "/api", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var responseBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &responseBody)
	require.NoError(t, err, "Failed to unmarshal response: %s", w.Body.String())

	assert.Equal(t, "OK", responseBody["status"])

	endpoints, ok := responseBody["endpoints"].(map[string]interface{})
	require.True(t, ok, "Endpoints map should exist")
	assert.Equal(t, "/api/bins", endpoints["bins"])
	assert.Equal(t, "/api/events", endpoints["events"])
	assert.Equal(t, "/api/health", endpoints["health"])

	registered, ok := responseBody["registered_routes"].([]interface{})
	require.True(t, ok, "Registered routes list should exist")
	assert.Len(t, registered, 5)
}

func TestHealthCheckHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/api/health", HandleHealthCheck)

	req, _ := http.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestDBStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	database.SetDB(db)

	r := gin.New()
	r.GET("/api/health/db", HandleDBStatus)

	req, _ := http.NewRequest(http.MethodGet, "/api/health/db", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"connected"`)
}

func TestConnectionPoolStatsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	database.SetDB(db)

	r := gin.New()
	r.GET("/api/health/db/pool", HandleConnectionPoolStats)

	req, _ := http.NewRequest(http.MethodGet, "/api/health/db/pool", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var responseBody map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody))
	assert.Contains(t, responseBody, "connection_pool")
	assert.Contains(t, responseBody, "health_status")
}
