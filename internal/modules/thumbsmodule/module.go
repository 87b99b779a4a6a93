package thumbsmodule

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/modules/modulemanager"
)

var hashPattern = regexp.MustCompile("^[a-f0-9]{64}$")

// Module represents the thumbnail module
type Module struct {
	id   string
	name string
	core bool

	db      *gorm.DB
	manager *Manager
}

var (
	globalModule *Module
	globalMu     sync.RWMutex
)

// Auto-register the module when imported
func init() {
	Register()
}

// Register registers this module with the module system
func Register() {
	m := &Module{
		id:   "system.thumbs",
		name: "Thumbnails",
		core: false,
	}
	globalMu.Lock()
	globalModule = m
	globalMu.Unlock()
	modulemanager.Register(m)
}

// GetManager returns the thumbnail manager of the loaded module
func GetManager() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalModule == nil {
		return nil
	}
	return globalModule.manager
}

// ID returns the module ID
func (m *Module) ID() string {
	return m.id
}

// Name returns the module name
func (m *Module) Name() string {
	return m.name
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return m.core
}

// Migrate is a no-op; thumbnails live on disk keyed by content hash
func (m *Module) Migrate(db *gorm.DB) error {
	m.db = db
	return nil
}

// Init builds and starts the thumbnail manager when enabled
func (m *Module) Init() error {
	cfg := config.Get()
	if !cfg.Thumbs.Enabled {
		return nil
	}

	manager := NewManager(cfg.Thumbs, m.db, events.GetGlobalEventBus())
	if err := manager.Start(context.Background()); err != nil {
		return err
	}
	m.manager = manager
	return nil
}

// RegisterRoutes registers the thumbnail HTTP endpoints
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/thumbs/:hash", m.handleGetThumb)

	apiroutes.Register("/api/thumbs/:hash", "GET", "Serve the thumbnail for a content hash.")
}

func (m *Module) handleGetThumb(c *gin.Context) {
	if m.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "thumbnails are disabled"})
		return
	}
	hash := c.Param("hash")
	if !hashPattern.MatchString(hash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
		return
	}

	path := m.manager.ThumbPath(hash)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}
	c.Header("Content-Type", "image/webp")
	c.File(path)
}
