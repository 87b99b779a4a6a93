package watchermodule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

// RegisterRoutes registers the watch folder HTTP endpoints
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/bins/:pos/watch", m.handleWatch)
	router.DELETE("/api/bins/:pos/watch", m.handleUnwatch)
	router.GET("/api/watches", m.handleListWatches)

	apiroutes.Register("/api/bins/:pos/watch", "POST", "Link a bin to a watch directory.")
	apiroutes.Register("/api/bins/:pos/watch", "DELETE", "Unlink a bin's watch directory.")
	apiroutes.Register("/api/watches", "GET", "List watched directories.")
}

func (m *Module) handleWatch(c *gin.Context) {
	if m.watcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watcher is disabled"})
		return
	}
	pos, err := strconv.Atoi(c.Param("pos"))
	if err != nil || pos < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pos parameter"})
		return
	}
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	sl := sourcelistmodule.GetSourceList()
	if sl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": sourcelistmodule.ErrNotInitialized.Error()})
		return
	}
	bin, err := sl.SetWatchPath(pos, req.Path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.watcher.WatchBin(bin.ID, bin.WatchPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bin)
}

func (m *Module) handleUnwatch(c *gin.Context) {
	if m.watcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watcher is disabled"})
		return
	}
	pos, err := strconv.Atoi(c.Param("pos"))
	if err != nil || pos < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pos parameter"})
		return
	}

	sl := sourcelistmodule.GetSourceList()
	if sl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": sourcelistmodule.ErrNotInitialized.Error()})
		return
	}
	bin, err := sl.BinAt(pos)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.watcher.UnwatchBin(bin.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if _, err := sl.SetWatchPath(pos, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "watch folder unlinked"})
}

func (m *Module) handleListWatches(c *gin.Context) {
	if m.watcher == nil {
		c.JSON(http.StatusOK, gin.H{"watches": map[uint]string{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watches": m.watcher.WatchedDirs()})
}
