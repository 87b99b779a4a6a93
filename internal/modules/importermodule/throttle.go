package importermodule

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/logger"
)

// loadThrottler samples host CPU and memory pressure and tells import
// workers when to back off
type loadThrottler struct {
	cfg config.ImporterConfig

	mu          sync.RWMutex
	cpuUsage    float64
	memoryUsage float64
	sampledAt   time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newLoadThrottler(cfg config.ImporterConfig) *loadThrottler {
	return &loadThrottler{cfg: cfg}
}

// Start launches the background sampler
func (t *loadThrottler) Start() {
	if !t.cfg.ThrottleEnabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.cfg.ThrottleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sample(ctx)
			}
		}
	}()
}

// Stop halts the sampler
func (t *loadThrottler) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.wg.Wait()
	}
}

func (t *loadThrottler) sample(ctx context.Context) {
	var cpuUsage, memUsage float64

	cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil || len(cpuPercents) == 0 {
		logger.Debug("CPU sampling failed: %v", err)
	} else {
		cpuUsage = cpuPercents[0]
	}

	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logger.Debug("Memory sampling failed: %v", err)
	} else {
		memUsage = memStats.UsedPercent
	}

	t.mu.Lock()
	t.cpuUsage = cpuUsage
	t.memoryUsage = memUsage
	t.sampledAt = time.Now()
	t.mu.Unlock()
}

// ShouldThrottle reports whether workers should pause before the next file
func (t *loadThrottler) ShouldThrottle() bool {
	if !t.cfg.ThrottleEnabled {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	// No sample yet means no reason to hold anyone back
	if t.sampledAt.IsZero() {
		return false
	}
	return t.cpuUsage > t.cfg.CPUThreshold || t.memoryUsage > t.cfg.MemoryThreshold
}

// Metrics returns the last sampled CPU and memory usage percentages
func (t *loadThrottler) Metrics() (cpuUsage, memoryUsage float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cpuUsage, t.memoryUsage
}
