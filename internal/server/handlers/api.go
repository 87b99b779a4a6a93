package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/apiroutes"
)

// ApiRootHandler serves the main /api endpoint, listing available routes.
func ApiRootHandler(c *gin.Context) {
	registeredRoutes := apiroutes.Get()

	// Group routes by their first path segment for a quick overview.
	endpointsMap := make(map[string]string)
	for _, route := range registeredRoutes {
		trimmed := strings.TrimPrefix(route.Path, "/api/")
		segments := strings.Split(trimmed, "/")
		if len(segments) == 0 || segments[0] == "" {
			continue
		}
		key := segments[0]
		if _, exists := endpointsMap[key]; !exists {
			endpointsMap[key] = "/api/" + key
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"endpoints":         endpointsMap,
		"status":            "OK",
		"registered_routes": registeredRoutes,
	})
}
