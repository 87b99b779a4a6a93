package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/modules/modulemanager"

	// Import all modules to trigger their registration
	_ "github.com/reelkit/reelkit/internal/modules/importermodule"
	_ "github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
	_ "github.com/reelkit/reelkit/internal/modules/thumbsmodule"
	_ "github.com/reelkit/reelkit/internal/modules/watchermodule"
)

var systemEventBus events.EventBus
var moduleInitialized bool

// SetupRouter configures and returns the main router
func SetupRouter(cfg Config) (*gin.Engine, error) {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	if len(cfg.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, err
		}
	}

	if cfg.EnableCORS {
		r.Use(corsMiddleware())
	}

	if err := initializeEventBus(); err != nil {
		return nil, err
	}

	if err := initializeModules(); err != nil {
		return nil, err
	}

	setupRoutes(r)
	modulemanager.RegisterRoutes(r)

	return r, nil
}

// Config carries the router-level options
type Config struct {
	EnableCORS     bool
	TrustedProxies []string
	ReleaseMode    bool
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// initializeEventBus sets up the system-wide event bus
func initializeEventBus() error {
	if systemEventBus != nil {
		return nil
	}

	config := events.DefaultEventBusConfig()
	storage, err := events.NewDatabaseStorage(database.GetDB())
	if err != nil {
		return err
	}

	systemEventBus = events.NewEventBus(config, logger.Named("events"), storage)

	if err := systemEventBus.Start(context.Background()); err != nil {
		return err
	}
	events.SetGlobalEventBus(systemEventBus)

	logger.Info("Event bus initialized and started")

	startupEvent := events.NewSystemEvent(
		events.EventSystemStarted,
		"System Started",
		"reelkit backend has started",
	)
	if err := systemEventBus.PublishAsync(startupEvent); err != nil {
		logger.Warn("Failed to publish startup event: %v", err)
	}

	return nil
}

// initializeModules sets up the module system and loads all modules
func initializeModules() error {
	if moduleInitialized {
		return nil
	}

	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		return err
	}

	moduleInitialized = true
	for _, m := range modulemanager.ListModules() {
		logger.Info("Module loaded: %s (%s, core=%v)", m.Name(), m.ID(), m.Core())
	}

	return nil
}

// GetEventBus returns the global event bus instance
func GetEventBus() events.EventBus {
	return systemEventBus
}

// Shutdown stops the event bus and announces shutdown
func Shutdown(ctx context.Context) error {
	if systemEventBus == nil {
		return nil
	}

	shutdownEvent := events.NewSystemEvent(
		events.EventSystemStopped,
		"System Stopped",
		"reelkit backend is shutting down",
	)
	// Best effort; the bus may already be draining.
	_ = systemEventBus.PublishAsync(shutdownEvent)

	return systemEventBus.Stop(ctx)
}

// ResetForTesting clears the server globals between tests
func ResetForTesting() {
	systemEventBus = nil
	moduleInitialized = false
	events.SetGlobalEventBus(nil)
	modulemanager.ResetForTesting()
}
