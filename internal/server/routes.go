package server

import (
	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/server/handlers"
)

// setupRoutes configures the core API routes; feature modules register
// their own routes through the module manager.
func setupRoutes(r *gin.Engine) {
	r.GET("/api", handlers.ApiRootHandler)
	apiroutes.Register("/api", "GET", "List all registered API routes.")

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HandleHealthCheck)
		api.GET("/health/db", handlers.HandleDBStatus)
		api.GET("/health/db/pool", handlers.HandleConnectionPoolStats)
	}
	apiroutes.Register("/api/health", "GET", "Service health check.")
	apiroutes.Register("/api/health/db", "GET", "Database connectivity check.")
	apiroutes.Register("/api/health/db/pool", "GET", "Database connection pool statistics.")

	eventsHandler := handlers.NewEventsHandler(systemEventBus)
	api.GET("/events", eventsHandler.GetEvents)
	api.GET("/events/stats", eventsHandler.GetEventStats)
	api.DELETE("/events", eventsHandler.ClearEvents)
	apiroutes.Register("/api/events", "GET", "Query stored system events.")
	apiroutes.Register("/api/events/stats", "GET", "Event bus statistics.")
	apiroutes.Register("/api/events", "DELETE", "Clear stored system events.")
}
