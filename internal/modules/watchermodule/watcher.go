// Package watchermodule keeps watch folders in sync with their bins: files
// dropped into a watched directory are imported automatically, deleted files
// are pruned.
package watchermodule

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/metadata"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

// fileEvent is a debounced filesystem notification awaiting processing
type fileEvent struct {
	op    fsnotify.Op
	path  string
	binID uint
}

// Watcher mirrors watched directories into bins
type Watcher struct {
	cfg        config.WatcherConfig
	sourceList *sourcelistmodule.SourceList
	eventBus   events.EventBus

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	// Directory being watched -> bin it feeds
	watchedDirs map[string]uint

	// Debounce state for rapidly changing files
	pending map[string]*time.Timer

	queue chan fileEvent

	subscription *events.Subscription
}

// NewWatcher creates a watch folder service
func NewWatcher(cfg config.WatcherConfig, sl *sourcelistmodule.SourceList, eventBus events.EventBus) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cfg:         cfg,
		sourceList:  sl,
		eventBus:    eventBus,
		watcher:     fsw,
		ctx:         ctx,
		cancel:      cancel,
		watchedDirs: make(map[string]uint),
		pending:     make(map[string]*time.Timer),
		queue:       make(chan fileEvent, cfg.QueueSize),
	}, nil
}

// Start begins watching every bin that has a linked directory
func (w *Watcher) Start() error {
	bins, err := w.sourceList.WatchedBins()
	if err != nil {
		return fmt.Errorf("failed to load watched bins: %w", err)
	}
	for i := range bins {
		if err := w.watchDir(bins[i].WatchPath, bins[i].ID); err != nil {
			logger.Warn("Failed to watch %s: %v", bins[i].WatchPath, err)
		}
	}

	// A deleted bin must not keep feeding a watch, so unlink on removal.
	if w.eventBus != nil {
		sub, err := w.eventBus.Subscribe(w.ctx, events.EventFilter{
			Types: []events.EventType{events.EventBinRemoved},
		}, w.onBinRemoved)
		if err != nil {
			return fmt.Errorf("failed to subscribe to bin events: %w", err)
		}
		w.subscription = sub
	}

	w.wg.Add(1)
	go w.watchEvents()

	w.wg.Add(1)
	go w.processQueue()

	logger.Info("Watch folder service started (%d directories)", len(bins))
	return nil
}

func (w *Watcher) onBinRemoved(event events.Event) error {
	var binID uint
	switch v := event.Data["bin_id"].(type) {
	case uint:
		binID = v
	case float64:
		binID = uint(v)
	default:
		return nil
	}

	if err := w.UnwatchBin(binID); err == nil {
		logger.Info("Unlinked watch folder of removed bin %d", binID)
	}
	return nil
}

// Stop halts the watcher and waits for in-flight work
func (w *Watcher) Stop() error {
	if w.eventBus != nil && w.subscription != nil {
		w.eventBus.Unsubscribe(w.subscription.ID)
	}

	w.cancel()
	err := w.watcher.Close()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	logger.Info("Watch folder service stopped")
	return err
}

// WatchBin links a directory to a bin and starts mirroring it
func (w *Watcher) WatchBin(binID uint, dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve watch directory: %w", err)
	}
	if err := w.watchDir(dir, binID); err != nil {
		return err
	}

	if w.eventBus != nil {
		w.eventBus.PublishAsync(events.NewEventWithData(
			events.EventWatchStarted, "watcher", "Watch folder linked",
			fmt.Sprintf("Watching %s", dir),
			map[string]interface{}{"bin_id": binID, "path": dir}))
	}
	return nil
}

// UnwatchBin stops mirroring the directory linked to a bin
func (w *Watcher) UnwatchBin(binID uint) error {
	w.mu.Lock()
	var dir string
	for path, id := range w.watchedDirs {
		if id == binID {
			dir = path
			break
		}
	}
	if dir != "" {
		delete(w.watchedDirs, dir)
	}
	w.mu.Unlock()

	if dir == "" {
		return fmt.Errorf("bin %d has no watched directory", binID)
	}
	if err := w.watcher.Remove(dir); err != nil {
		return fmt.Errorf("failed to stop watching %s: %w", dir, err)
	}

	if w.eventBus != nil {
		w.eventBus.PublishAsync(events.NewEventWithData(
			events.EventWatchStopped, "watcher", "Watch folder unlinked",
			fmt.Sprintf("Stopped watching %s", dir),
			map[string]interface{}{"bin_id": binID, "path": dir}))
	}
	return nil
}

// WatchedDirs returns the currently watched directories keyed by bin ID
func (w *Watcher) WatchedDirs() map[uint]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dirs := make(map[uint]string, len(w.watchedDirs))
	for path, id := range w.watchedDirs {
		dirs[id] = path
	}
	return dirs
}

func (w *Watcher) watchDir(dir string, binID uint) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.watchedDirs[dir] = binID
	w.mu.Unlock()
	return nil
}

// watchEvents translates raw fsnotify events into debounced file events
func (w *Watcher) watchEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	dir := filepath.Dir(event.Name)

	w.mu.RLock()
	binID, watched := w.watchedDirs[dir]
	w.mu.RUnlock()
	if !watched {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if !metadata.IsMediaFile(event.Name) {
			return
		}
		// Writers often emit bursts of events while a file is being
		// copied in; wait for them to settle before importing.
		w.debounce(fileEvent{op: fsnotify.Create, path: event.Name, binID: binID})
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.enqueue(fileEvent{op: fsnotify.Remove, path: event.Name, binID: binID})
	}
}

func (w *Watcher) debounce(ev fileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.pending[ev.path]; exists {
		timer.Stop()
	}
	w.pending[ev.path] = time.AfterFunc(w.cfg.DebounceInterval, func() {
		w.mu.Lock()
		delete(w.pending, ev.path)
		w.mu.Unlock()
		w.enqueue(ev)
	})
}

func (w *Watcher) enqueue(ev fileEvent) {
	select {
	case w.queue <- ev:
	default:
		logger.Warn("Watcher queue full, dropping event for %s", ev.path)
	}
}

// processQueue applies debounced file events to the source list
func (w *Watcher) processQueue() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.queue:
			w.apply(ev)
		}
	}
}

func (w *Watcher) apply(ev fileEvent) {
	switch ev.op {
	case fsnotify.Create:
		_, err := w.sourceList.AddFileToBinID(w.ctx, ev.binID, ev.path)
		if err != nil && !errors.Is(err, sourcelistmodule.ErrDuplicateSource) {
			logger.Warn("Auto-import of %s failed: %v", ev.path, err)
		}
	case fsnotify.Remove:
		err := w.sourceList.RemoveSourceByPath(ev.path)
		if err != nil && !errors.Is(err, sourcelistmodule.ErrSourceNotFound) {
			logger.Warn("Prune of %s failed: %v", ev.path, err)
		}
	}
}
