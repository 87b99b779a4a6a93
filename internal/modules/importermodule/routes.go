package importermodule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

// RegisterRoutes registers the bulk import HTTP endpoints
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/bins/:pos/import", m.handleStartImport)
	router.GET("/api/import/jobs", m.handleListJobs)
	router.GET("/api/import/jobs/:id", m.handleGetJob)
	router.POST("/api/import/jobs/:id/cancel", m.handleCancelJob)

	apiroutes.Register("/api/bins/:pos/import", "POST", "Bulk-import a directory tree into a bin.")
	apiroutes.Register("/api/import/jobs", "GET", "List import jobs.")
	apiroutes.Register("/api/import/jobs/:id", "GET", "Get an import job's progress.")
	apiroutes.Register("/api/import/jobs/:id/cancel", "POST", "Cancel a running import job.")
}

func (m *Module) handleStartImport(c *gin.Context) {
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
	bin, err := sl.BinAt(pos)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	job, err := m.importer.StartImport(sl, bin.ID, req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (m *Module) handleListJobs(c *gin.Context) {
	jobs := m.importer.Jobs()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (m *Module) handleGetJob(c *gin.Context) {
	job, ok := m.importer.GetJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "import job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (m *Module) handleCancelJob(c *gin.Context) {
	if err := m.importer.CancelJob(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "import job cancelled"})
}
