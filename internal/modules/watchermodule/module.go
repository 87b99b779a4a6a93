package watchermodule

import (
	"sync"

	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/modules/modulemanager"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

// Module represents the watch folder module
type Module struct {
	id   string
	name string
	core bool

	watcher *Watcher
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
		id:   "system.watcher",
		name: "Watch Folders",
		core: false,
	}
	globalMu.Lock()
	globalModule = m
	globalMu.Unlock()
	modulemanager.Register(m)
}

// GetWatcher returns the watcher managed by the loaded module
func GetWatcher() *Watcher {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalModule == nil {
		return nil
	}
	return globalModule.watcher
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

// Migrate is a no-op; the watcher stores its links on the bins themselves
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// Init builds and starts the watcher when enabled
func (m *Module) Init() error {
	cfg := config.Get()
	if !cfg.Watcher.Enabled {
		return nil
	}

	sl := sourcelistmodule.GetSourceList()
	if sl == nil {
		return nil
	}

	watcher, err := NewWatcher(cfg.Watcher, sl, events.GetGlobalEventBus())
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	m.watcher = watcher
	return nil
}
