// Package importermodule bulk-imports directory trees into bins with a
// bounded worker pool.
package importermodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/events"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/metadata"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

// JobStatus describes the lifecycle state of an import job
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks one bulk import run
type Job struct {
	ID        string     `json:"id"`
	BinID     uint       `json:"bin_id"`
	Path      string     `json:"path"`
	Status    JobStatus  `json:"status"`
	Found     int64      `json:"found"`
	Imported  int64      `json:"imported"`
	Skipped   int64      `json:"skipped"`
	Failed    int64      `json:"failed"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	cancel context.CancelFunc
}

// Importer runs bulk imports and keeps their job records
type Importer struct {
	cfg       config.ImporterConfig
	eventBus  events.EventBus
	throttler *loadThrottler

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewImporter creates a bulk importer
func NewImporter(cfg config.ImporterConfig, eventBus events.EventBus) *Importer {
	return &Importer{
		cfg:       cfg,
		eventBus:  eventBus,
		throttler: newLoadThrottler(cfg),
		jobs:      make(map[string]*Job),
	}
}

// Start launches the importer's load sampler
func (im *Importer) Start() {
	im.throttler.Start()
}

// Stop cancels running jobs and halts the load sampler
func (im *Importer) Stop() {
	im.mu.Lock()
	for _, job := range im.jobs {
		if job.Status == JobRunning && job.cancel != nil {
			job.cancel()
		}
	}
	im.mu.Unlock()
	im.throttler.Stop()
}

// StartImport begins importing every media file under root into the bin.
// It returns immediately with the job record; progress is reported through
// events and the job endpoint.
func (im *Importer) StartImport(sl *sourcelistmodule.SourceList, binID uint, root string) (*Job, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve import root: %w", err)
	}
	stat, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat import root: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("import root is not a directory: %s", root)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		BinID:     binID,
		Path:      root,
		Status:    JobRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	im.mu.Lock()
	im.jobs[job.ID] = job
	im.mu.Unlock()

	im.publish(events.EventImportStarted, job, "Import started",
		fmt.Sprintf("Importing %s into bin %d", root, binID))

	go im.run(ctx, sl, job)
	return job, nil
}

// GetJob returns a copy of the job record with the given ID
func (im *Importer) GetJob(id string) (*Job, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	job, ok := im.jobs[id]
	if !ok {
		return nil, false
	}
	jobCopy := *job
	return &jobCopy, true
}

// Jobs returns copies of all job records
func (im *Importer) Jobs() []*Job {
	im.mu.RLock()
	defer im.mu.RUnlock()
	jobs := make([]*Job, 0, len(im.jobs))
	for _, job := range im.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	return jobs
}

// CancelJob cancels a running job
func (im *Importer) CancelJob(id string) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	job, ok := im.jobs[id]
	if !ok {
		return fmt.Errorf("import job not found: %s", id)
	}
	if job.Status != JobRunning {
		return fmt.Errorf("import job %s is not running", id)
	}
	job.cancel()
	return nil
}

func (im *Importer) run(ctx context.Context, sl *sourcelistmodule.SourceList, job *Job) {
	workerCount := im.cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	files := make(chan string, im.cfg.ChannelBufferSize)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range files {
				if ctx.Err() != nil {
					continue
				}
				im.waitForHeadroom(ctx)

				_, err := sl.AddFileToBinID(ctx, job.BinID, path)
				im.mu.Lock()
				switch {
				case err == nil:
					job.Imported++
				case errors.Is(err, sourcelistmodule.ErrDuplicateSource):
					job.Skipped++
				default:
					job.Failed++
					logger.Warn("Import of %s failed: %v", path, err)
				}
				done := job.Imported + job.Skipped + job.Failed
				im.mu.Unlock()

				if done%50 == 0 {
					im.publish(events.EventImportProgress, job, "Import progress",
						fmt.Sprintf("%d files processed", done))
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(job.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Walk error at %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if path != job.Path && im.ignored(name) {
				return fs.SkipDir
			}
			return nil
		}
		if im.ignored(name) || !metadata.IsMediaFile(path) {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > im.cfg.MaxFileSize {
			logger.Warn("Skipping %s: larger than import limit", path)
			return nil
		}

		im.mu.Lock()
		job.Found++
		im.mu.Unlock()

		select {
		case files <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	close(files)
	wg.Wait()

	now := time.Now()
	im.mu.Lock()
	job.EndedAt = &now
	switch {
	case errors.Is(walkErr, context.Canceled):
		job.Status = JobCancelled
	case walkErr != nil:
		job.Status = JobFailed
		job.Error = walkErr.Error()
	default:
		job.Status = JobCompleted
	}
	status := job.Status
	imported := job.Imported
	im.mu.Unlock()

	switch status {
	case JobCompleted:
		im.publish(events.EventImportCompleted, job, "Import completed",
			fmt.Sprintf("Imported %d files from %s", imported, job.Path))
	case JobFailed:
		im.publish(events.EventImportFailed, job, "Import failed", job.Error)
	default:
		im.publish(events.EventImportFailed, job, "Import cancelled", "")
	}

	logger.Info("Import job %s finished with status %s (%d imported)", job.ID, status, imported)
}

// waitForHeadroom blocks briefly while the host is over the load thresholds
func (im *Importer) waitForHeadroom(ctx context.Context) {
	for im.throttler.ShouldThrottle() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (im *Importer) ignored(name string) bool {
	for _, pattern := range im.cfg.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (im *Importer) publish(eventType events.EventType, job *Job, title, message string) {
	if im.eventBus == nil {
		return
	}
	im.mu.RLock()
	data := map[string]interface{}{
		"job_id":   job.ID,
		"bin_id":   job.BinID,
		"path":     job.Path,
		"found":    job.Found,
		"imported": job.Imported,
		"skipped":  job.Skipped,
		"failed":   job.Failed,
	}
	im.mu.RUnlock()

	if eventType == events.EventImportProgress {
		cpuUsage, memUsage := im.throttler.Metrics()
		data["cpu_usage"] = cpuUsage
		data["memory_usage"] = memUsage
	}
	im.eventBus.PublishAsync(events.NewEventWithData(eventType, "importer", title, message, data))
}
