package sourcelistmodule

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/modules/modulemanager"
)

// Module represents the source list module
type Module struct {
	id   string
	name string
	core bool

	db         *gorm.DB
	sourceList *SourceList
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
		id:   "system.sourcelist",
		name: "Source List",
		core: true,
	}
	globalMu.Lock()
	globalModule = m
	globalMu.Unlock()
	modulemanager.Register(m)
}

// GetSourceList returns the source list managed by the loaded module
func GetSourceList() *SourceList {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalModule == nil {
		return nil
	}
	return globalModule.sourceList
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

// Migrate ensures the source list schema exists
func (m *Module) Migrate(db *gorm.DB) error {
	m.db = db
	if err := db.AutoMigrate(&database.Project{}, &database.Bin{}, &database.Source{}); err != nil {
		return fmt.Errorf("failed to migrate source list schema: %w", err)
	}
	return nil
}

// Init opens the configured project's source list
func (m *Module) Init() error {
	cfg := config.Get()

	sl, err := Open(m.db, events.GetGlobalEventBus(), cfg.Probe, cfg.Project.Name)
	if err != nil {
		return err
	}
	m.sourceList = sl
	return nil
}
