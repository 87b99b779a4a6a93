// Package handlers contains HTTP request handlers organized by functionality.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/database"
)

// HandleHealthCheck returns the basic health status of the service
func HandleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "reelkit",
	})
}

// HandleDBStatus checks and returns the database connection status
func HandleDBStatus(c *gin.Context) {
	db := database.GetDB()
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "database not initialized",
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Failed to get database instance: " + err.Error(),
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Database ping failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "connected",
		"database": "ready",
	})
}

// HandleConnectionPoolStats returns detailed connection pool statistics
func HandleConnectionPoolStats(c *gin.Context) {
	stats, err := database.GetConnectionStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get connection pool stats: " + err.Error(),
		})
		return
	}

	var openUtilization, idleUtilization float64
	if stats.MaxOpenConnections > 0 {
		openUtilization = float64(stats.OpenConnections) / float64(stats.MaxOpenConnections) * 100
	}
	if stats.OpenConnections > 0 {
		idleUtilization = float64(stats.Idle) / float64(stats.OpenConnections) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_pool": gin.H{
			"open_connections":     stats.OpenConnections,
			"max_open_connections": stats.MaxOpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration":        stats.WaitDuration.String(),
			"max_idle_closed":      stats.MaxIdleClosed,
			"max_idle_time_closed": stats.MaxIdleTimeClosed,
			"max_lifetime_closed":  stats.MaxLifetimeClosed,
		},
		"utilization": gin.H{
			"open_connection_percent": openUtilization,
			"idle_connection_percent": idleUtilization,
		},
		"health_status": func() string {
			if stats.WaitCount > 100 || openUtilization > 90 {
				return "warning"
			}
			return "healthy"
		}(),
	})
}
