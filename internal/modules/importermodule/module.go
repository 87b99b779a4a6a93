package importermodule

import (
	"sync"

	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/modules/modulemanager"
)

// Module represents the bulk importer module
type Module struct {
	id   string
	name string
	core bool

	importer *Importer
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
		id:   "system.importer",
		name: "Bulk Importer",
		core: false,
	}
	globalMu.Lock()
	globalModule = m
	globalMu.Unlock()
	modulemanager.Register(m)
}

// GetImporter returns the importer managed by the loaded module
func GetImporter() *Importer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalModule == nil {
		return nil
	}
	return globalModule.importer
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

// Migrate is a no-op; the importer owns no tables
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// Init builds the importer and starts its load sampler
func (m *Module) Init() error {
	cfg := config.Get()
	m.importer = NewImporter(cfg.Importer, events.GetGlobalEventBus())
	m.importer.Start()
	return nil
}
