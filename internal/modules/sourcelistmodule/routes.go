package sourcelistmodule

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/metadata"
)

// RegisterRoutes registers the source list HTTP endpoints
func (m *Module) RegisterRoutes(router *gin.Engine) {
	bins := router.Group("/api/bins")
	{
		bins.GET("", m.handleListBins)
		bins.POST("", m.handleCreateBin)
		bins.GET("/:pos", m.handleGetBin)
		bins.PUT("/:pos", m.handleRenameBin)
		bins.DELETE("/:pos", m.handleRemoveBin)
		bins.GET("/:pos/dump", m.handleDumpBin)
		bins.GET("/:pos/sources", m.handleListSources)
		bins.POST("/:pos/sources", m.handleAddSource)
		bins.GET("/:pos/sources/:idx/info", m.handleSourceInfo)
		bins.DELETE("/:pos/sources/:idx", m.handleRemoveSource)
		bins.POST("/:pos/sources/:idx/move", m.handleMoveSource)
	}

	apiroutes.Register("/api/bins", "GET", "List all bins with their sources.")
	apiroutes.Register("/api/bins", "POST", "Create a new named bin.")
	apiroutes.Register("/api/bins/:pos", "GET", "Get the bin at a position.")
	apiroutes.Register("/api/bins/:pos", "PUT", "Rename the bin at a position.")
	apiroutes.Register("/api/bins/:pos", "DELETE", "Remove the bin at a position.")
	apiroutes.Register("/api/bins/:pos/dump", "GET", "Debug listing of a bin's sources.")
	apiroutes.Register("/api/bins/:pos/sources", "GET", "List the sources of a bin.")
	apiroutes.Register("/api/bins/:pos/sources", "POST", "Register a media file into a bin.")
	apiroutes.Register("/api/bins/:pos/sources/:idx/info", "GET", "One-line description of a source.")
	apiroutes.Register("/api/bins/:pos/sources/:idx", "DELETE", "Remove a source from a bin.")
	apiroutes.Register("/api/bins/:pos/sources/:idx/move", "POST", "Move a source to another bin.")
}

func (m *Module) handleListBins(c *gin.Context) {
	bins, err := m.sourceList.Bins()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bins": bins, "count": len(bins)})
}

func (m *Module) handleCreateBin(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	bin, err := m.sourceList.NewBin(req.Name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, bin)
}

func (m *Module) handleGetBin(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	bin, err := m.sourceList.BinAt(pos)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bin)
}

func (m *Module) handleRenameBin(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := m.sourceList.RenameBin(pos, req.Name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bin renamed"})
}

func (m *Module) handleRemoveBin(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	if err := m.sourceList.RemoveBin(pos); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bin removed"})
}

func (m *Module) handleDumpBin(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	var sb strings.Builder
	if err := m.sourceList.DumpBin(pos, &sb); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, sb.String())
}

func (m *Module) handleListSources(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	bin, err := m.sourceList.BinAt(pos)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": bin.Sources, "count": len(bin.Sources)})
}

func (m *Module) handleAddSource(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	source, err := m.sourceList.AddFileToBin(c.Request.Context(), pos, req.Path)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, source)
}

func (m *Module) handleSourceInfo(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	idx, ok := paramInt(c, "idx")
	if !ok {
		return
	}
	info, err := m.sourceList.GetFileInfo(pos, idx)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": info})
}

func (m *Module) handleRemoveSource(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	idx, ok := paramInt(c, "idx")
	if !ok {
		return
	}
	if err := m.sourceList.RemoveSource(pos, idx); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "source removed"})
}

func (m *Module) handleMoveSource(c *gin.Context) {
	pos, ok := paramInt(c, "pos")
	if !ok {
		return
	}
	idx, ok := paramInt(c, "idx")
	if !ok {
		return
	}
	var req struct {
		ToBin *int `json:"to_bin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_bin is required"})
		return
	}

	if err := m.sourceList.MoveSource(pos, idx, *req.ToBin); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "source moved"})
}

// paramInt parses a non-negative integer path parameter, replying 400 itself
// when the value is malformed
func paramInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return v, true
}

// statusFor maps source list errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBinNotFound), errors.Is(err, ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateBin), errors.Is(err, ErrDuplicateSource):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyBinName), errors.Is(err, fs.ErrNotExist),
		errors.Is(err, metadata.ErrNotRegularFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
