// Package sourcelistmodule owns the project source list: the bins a project
// groups its imported media into, and the sources registered in each bin.
package sourcelistmodule

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/metadata"
)

// SourceList manages the bins and sources of one project
type SourceList struct {
	db       *gorm.DB
	eventBus events.EventBus
	probeCfg config.ProbeConfig

	mu      sync.RWMutex
	project *database.Project
}

// Open loads (or creates) the source list for the named project
func Open(db *gorm.DB, eventBus events.EventBus, probeCfg config.ProbeConfig, projectName string) (*SourceList, error) {
	if projectName == "" {
		return nil, fmt.Errorf("project name must not be empty")
	}

	var project database.Project
	err := db.Where(database.Project{Name: projectName}).FirstOrCreate(&project).Error
	if err != nil {
		return nil, fmt.Errorf("failed to open project %q: %w", projectName, err)
	}

	sl := &SourceList{
		db:       db,
		eventBus: eventBus,
		probeCfg: probeCfg,
		project:  &project,
	}

	logger.Info("Opened source list for project %q (ID: %d)", projectName, project.ID)
	return sl, nil
}

// Project returns the project this list belongs to
func (sl *SourceList) Project() database.Project {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return *sl.project
}

// NewBin appends a new, empty bin with the given name
func (sl *SourceList) NewBin(name string) (*database.Bin, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyBinName
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var count int64
	if err := sl.db.Model(&database.Bin{}).
		Where("project_id = ? AND name = ?", sl.project.ID, name).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check bin name: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBin, name)
	}

	var position int64
	if err := sl.db.Model(&database.Bin{}).
		Where("project_id = ?", sl.project.ID).
		Count(&position).Error; err != nil {
		return nil, fmt.Errorf("failed to count bins: %w", err)
	}

	bin := &database.Bin{
		ProjectID: sl.project.ID,
		Name:      name,
		Position:  int(position),
	}
	if err := sl.db.Create(bin).Error; err != nil {
		return nil, fmt.Errorf("failed to create bin: %w", err)
	}

	sl.publish(events.EventBinCreated, "Bin created",
		fmt.Sprintf("Bin %q created at position %d", name, bin.Position),
		map[string]interface{}{"bin_id": bin.ID, "name": name, "position": bin.Position})

	logger.Info("Created bin %q at position %d", name, bin.Position)
	return bin, nil
}

// AddFileToBin probes a file and appends it as a source to the bin at binPos
func (sl *SourceList) AddFileToBin(ctx context.Context, binPos int, path string) (*database.Source, error) {
	absPath, info, err := sl.probeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	bin, err := sl.binAt(binPos)
	if err != nil {
		return nil, err
	}
	return sl.insertSource(bin, absPath, info)
}

// AddFileToBinID is AddFileToBin keyed by bin ID instead of position, for
// callers that hold a stable bin reference across position changes (the
// watcher and the bulk importer).
func (sl *SourceList) AddFileToBinID(ctx context.Context, binID uint, path string) (*database.Source, error) {
	absPath, info, err := sl.probeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var bin database.Bin
	if err := sl.db.Where("project_id = ?", sl.project.ID).First(&bin, binID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: id %d", ErrBinNotFound, binID)
		}
		return nil, fmt.Errorf("failed to look up bin: %w", err)
	}
	return sl.insertSource(&bin, absPath, info)
}

// probeFile resolves and probes a file without holding the list lock, so a
// slow external probe cannot stall readers or other writers.
func (sl *SourceList) probeFile(ctx context.Context, path string) (string, *metadata.Info, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	// Probe failures inside Extract are soft; only a missing or irregular
	// file rejects the import.
	info, err := metadata.Extract(ctx, absPath, &sl.probeCfg)
	if err != nil {
		return "", nil, fmt.Errorf("failed to probe %s: %w", absPath, err)
	}
	return absPath, info, nil
}

// insertSource registers a probed file into a bin. The duplicate check runs
// here, under sl.mu, so concurrent adds of the same path cannot both land.
func (sl *SourceList) insertSource(bin *database.Bin, absPath string, info *metadata.Info) (*database.Source, error) {
	var count int64
	if err := sl.db.Model(&database.Source{}).
		Where("bin_id = ? AND path = ?", bin.ID, absPath).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check for duplicate source: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, absPath)
	}

	var position int64
	if err := sl.db.Model(&database.Source{}).
		Where("bin_id = ?", bin.ID).
		Count(&position).Error; err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}

	source := &database.Source{
		ID:         uuid.New().String(),
		BinID:      bin.ID,
		Position:   int(position),
		Path:       absPath,
		Size:       info.Size,
		Hash:       info.Hash,
		MimeType:   info.MimeType,
		Kind:       string(info.Kind),
		Duration:   info.Duration,
		Width:      info.Width,
		Height:     info.Height,
		FrameRate:  info.FrameRate,
		Codec:      info.Codec,
		Bitrate:    info.Bitrate,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Title:      info.Title,
		Artist:     info.Artist,
		Album:      info.Album,
		Year:       info.Year,
		HasArtwork: info.HasArtwork,
	}
	if err := sl.db.Create(source).Error; err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	sl.publish(events.EventSourceAdded, "Source added",
		fmt.Sprintf("%s added to bin %q", source.DisplayName(), bin.Name),
		map[string]interface{}{
			"source_id": source.ID,
			"bin_id":    bin.ID,
			"path":      absPath,
			"kind":      source.Kind,
		})

	logger.Info("Added %s to bin %q (position %d)", absPath, bin.Name, source.Position)
	return source, nil
}

// GetFileInfo returns a one-line description of the Nth source of a bin
func (sl *SourceList) GetFileInfo(binPos, index int) (string, error) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	source, _, err := sl.sourceAt(binPos, index)
	if err != nil {
		return "", err
	}
	return describeSource(source), nil
}

// SourceAt returns the Nth source of the bin at binPos
func (sl *SourceList) SourceAt(binPos, index int) (*database.Source, error) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	source, _, err := sl.sourceAt(binPos, index)
	return source, err
}

// Bins returns all bins in position order, sources preloaded
func (sl *SourceList) Bins() ([]database.Bin, error) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	var bins []database.Bin
	err := sl.db.
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("project_id = ?", sl.project.ID).
		Order("position").
		Find(&bins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load bins: %w", err)
	}
	return bins, nil
}

// BinAt returns the bin at the given position, sources preloaded
func (sl *SourceList) BinAt(binPos int) (*database.Bin, error) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	bin, err := sl.binAt(binPos)
	if err != nil {
		return nil, err
	}
	if err := sl.db.
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(bin, bin.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load bin sources: %w", err)
	}
	return bin, nil
}

// RenameBin changes the name of the bin at binPos
func (sl *SourceList) RenameBin(binPos int, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyBinName
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	bin, err := sl.binAt(binPos)
	if err != nil {
		return err
	}
	if bin.Name == newName {
		return nil
	}

	var count int64
	if err := sl.db.Model(&database.Bin{}).
		Where("project_id = ? AND name = ?", sl.project.ID, newName).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check bin name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateBin, newName)
	}

	oldName := bin.Name
	if err := sl.db.Model(bin).Update("name", newName).Error; err != nil {
		return fmt.Errorf("failed to rename bin: %w", err)
	}

	sl.publish(events.EventBinRenamed, "Bin renamed",
		fmt.Sprintf("Bin %q renamed to %q", oldName, newName),
		map[string]interface{}{"bin_id": bin.ID, "old_name": oldName, "new_name": newName})
	return nil
}

// RemoveBin deletes the bin at binPos with all its sources and repacks
// the positions of the bins after it
func (sl *SourceList) RemoveBin(binPos int) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	bin, err := sl.binAt(binPos)
	if err != nil {
		return err
	}

	err = sl.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bin_id = ?", bin.ID).Delete(&database.Source{}).Error; err != nil {
			return fmt.Errorf("failed to delete bin sources: %w", err)
		}
		if err := tx.Delete(bin).Error; err != nil {
			return fmt.Errorf("failed to delete bin: %w", err)
		}
		if err := tx.Model(&database.Bin{}).
			Where("project_id = ? AND position > ?", sl.project.ID, binPos).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return fmt.Errorf("failed to repack bin positions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sl.publish(events.EventBinRemoved, "Bin removed",
		fmt.Sprintf("Bin %q removed", bin.Name),
		map[string]interface{}{"bin_id": bin.ID, "name": bin.Name})

	logger.Info("Removed bin %q (position %d)", bin.Name, binPos)
	return nil
}

// RemoveSource deletes the Nth source of a bin and repacks positions
func (sl *SourceList) RemoveSource(binPos, index int) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	source, bin, err := sl.sourceAt(binPos, index)
	if err != nil {
		return err
	}
	if err := sl.deleteAndRepack(source); err != nil {
		return err
	}

	sl.publish(events.EventSourceRemoved, "Source removed",
		fmt.Sprintf("%s removed from bin %q", source.DisplayName(), bin.Name),
		map[string]interface{}{"source_id": source.ID, "bin_id": bin.ID, "path": source.Path})
	return nil
}

// RemoveSourceByPath deletes a source identified by its absolute path,
// searching every bin of the project. Used by the watcher when a watched
// file disappears.
func (sl *SourceList) RemoveSourceByPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var source database.Source
	err = sl.db.
		Joins("JOIN bins ON bins.id = sources.bin_id").
		Where("bins.project_id = ? AND sources.path = ?", sl.project.ID, absPath).
		First(&source).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, absPath)
		}
		return fmt.Errorf("failed to look up source: %w", err)
	}

	if err := sl.deleteAndRepack(&source); err != nil {
		return err
	}

	sl.publish(events.EventSourcePruned, "Source pruned",
		fmt.Sprintf("%s no longer exists and was removed", absPath),
		map[string]interface{}{"source_id": source.ID, "path": absPath})
	return nil
}

// MoveSource moves the Nth source of one bin to the end of another bin
func (sl *SourceList) MoveSource(fromBin, index, toBin int) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	source, from, err := sl.sourceAt(fromBin, index)
	if err != nil {
		return err
	}
	to, err := sl.binAt(toBin)
	if err != nil {
		return err
	}
	if from.ID == to.ID {
		return sl.moveToEnd(source, from, index)
	}

	var count int64
	if err := sl.db.Model(&database.Source{}).
		Where("bin_id = ? AND path = ?", to.ID, source.Path).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for duplicate source: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, source.Path)
	}

	err = sl.db.Transaction(func(tx *gorm.DB) error {
		var newPos int64
		if err := tx.Model(&database.Source{}).
			Where("bin_id = ?", to.ID).
			Count(&newPos).Error; err != nil {
			return fmt.Errorf("failed to count target sources: %w", err)
		}
		if err := tx.Model(source).Updates(map[string]interface{}{
			"bin_id":   to.ID,
			"position": int(newPos),
		}).Error; err != nil {
			return fmt.Errorf("failed to move source: %w", err)
		}
		if err := tx.Model(&database.Source{}).
			Where("bin_id = ? AND position > ?", from.ID, index).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return fmt.Errorf("failed to repack source positions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sl.publish(events.EventSourceMoved, "Source moved",
		fmt.Sprintf("%s moved from bin %q to bin %q", source.DisplayName(), from.Name, to.Name),
		map[string]interface{}{"source_id": source.ID, "from_bin": from.ID, "to_bin": to.ID})
	return nil
}

// moveToEnd reorders a source to the last position of its own bin, closing
// the gap it leaves behind. Callers must hold sl.mu.
func (sl *SourceList) moveToEnd(source *database.Source, bin *database.Bin, index int) error {
	err := sl.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Source{}).
			Where("bin_id = ?", bin.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count sources: %w", err)
		}
		if err := tx.Model(&database.Source{}).
			Where("bin_id = ? AND position > ?", bin.ID, index).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return fmt.Errorf("failed to repack source positions: %w", err)
		}
		if err := tx.Model(source).
			UpdateColumn("position", int(count)-1).Error; err != nil {
			return fmt.Errorf("failed to move source: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sl.publish(events.EventSourceMoved, "Source moved",
		fmt.Sprintf("%s moved to the end of bin %q", source.DisplayName(), bin.Name),
		map[string]interface{}{"source_id": source.ID, "from_bin": bin.ID, "to_bin": bin.ID})
	return nil
}

// WatchedBins returns every bin linked to a watch directory
func (sl *SourceList) WatchedBins() ([]database.Bin, error) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	var bins []database.Bin
	err := sl.db.
		Where("project_id = ? AND watch_path <> ''", sl.project.ID).
		Order("position").
		Find(&bins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load watched bins: %w", err)
	}
	return bins, nil
}

// SetWatchPath links a bin to a watched directory (empty path unlinks)
func (sl *SourceList) SetWatchPath(binPos int, watchPath string) (*database.Bin, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	bin, err := sl.binAt(binPos)
	if err != nil {
		return nil, err
	}

	if watchPath != "" {
		if watchPath, err = filepath.Abs(watchPath); err != nil {
			return nil, fmt.Errorf("failed to resolve watch path: %w", err)
		}
	}
	if err := sl.db.Model(bin).Update("watch_path", watchPath).Error; err != nil {
		return nil, fmt.Errorf("failed to set watch path: %w", err)
	}
	bin.WatchPath = watchPath
	return bin, nil
}

// DumpBin writes a debug listing of the bin at binPos to w
func (sl *SourceList) DumpBin(binPos int, w io.Writer) error {
	bin, err := sl.BinAt(binPos)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "bin %d: %q (%d sources)\n", bin.Position, bin.Name, len(bin.Sources))
	for i := range bin.Sources {
		fmt.Fprintf(w, "  [%d] %s\n", i, describeSource(&bin.Sources[i]))
	}
	return nil
}

// binAt returns the bin at the given position without its sources.
// Callers must hold sl.mu.
func (sl *SourceList) binAt(binPos int) (*database.Bin, error) {
	if binPos < 0 {
		return nil, fmt.Errorf("%w: position %d", ErrBinNotFound, binPos)
	}
	var bin database.Bin
	err := sl.db.
		Where("project_id = ? AND position = ?", sl.project.ID, binPos).
		First(&bin).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: position %d", ErrBinNotFound, binPos)
		}
		return nil, fmt.Errorf("failed to look up bin: %w", err)
	}
	return &bin, nil
}

// sourceAt returns the Nth source of the bin at binPos. Callers must hold sl.mu.
func (sl *SourceList) sourceAt(binPos, index int) (*database.Source, *database.Bin, error) {
	bin, err := sl.binAt(binPos)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 {
		return nil, nil, fmt.Errorf("%w: index %d", ErrSourceNotFound, index)
	}

	var source database.Source
	err = sl.db.
		Where("bin_id = ? AND position = ?", bin.ID, index).
		First(&source).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("%w: bin %q index %d", ErrSourceNotFound, bin.Name, index)
		}
		return nil, nil, fmt.Errorf("failed to look up source: %w", err)
	}
	return &source, bin, nil
}

// deleteAndRepack removes a source row and closes the position gap it leaves.
// Callers must hold sl.mu.
func (sl *SourceList) deleteAndRepack(source *database.Source) error {
	return sl.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(source).Error; err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
		if err := tx.Model(&database.Source{}).
			Where("bin_id = ? AND position > ?", source.BinID, source.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return fmt.Errorf("failed to repack source positions: %w", err)
		}
		return nil
	})
}

func (sl *SourceList) publish(eventType events.EventType, title, message string, data map[string]interface{}) {
	if sl.eventBus == nil {
		return
	}
	event := events.NewEventWithData(eventType, "sourcelist", title, message, data)
	sl.eventBus.PublishAsync(event)
}

// describeSource formats the one-line info string for a source
func describeSource(s *database.Source) string {
	var b strings.Builder
	b.WriteString(s.DisplayName())
	b.WriteString(" (")
	b.WriteString(s.Kind)
	b.WriteString(", ")
	b.WriteString(formatSize(s.Size))

	switch {
	case s.Duration > 0:
		b.WriteString(", ")
		b.WriteString(formatDuration(s.Duration))
	case s.Width > 0 && s.Height > 0:
		fmt.Fprintf(&b, ", %dx%d", s.Width, s.Height)
	}
	b.WriteString(")")
	return b.String()
}

// formatSize renders a byte count with a binary unit suffix
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// formatDuration renders seconds as h:mm:ss or m:ss
func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
