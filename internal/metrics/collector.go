package metrics

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// StoreStats is a snapshot of the store consumed by the collector
type StoreStats struct {
	Recipients    int
	WithBounces   int
	OverThreshold int
	Suppressions  int
}

// StatsProvider supplies store statistics for gauge updates
type StatsProvider interface {
	MetricsStats(ctx context.Context) (*StoreStats, error)
}

// Collector periodically refreshes gauges from the store and runtime
type Collector struct {
	metrics     *Metrics
	stats       StatsProvider
	storagePath string
	interval    time.Duration
	startTime   time.Time
	logger      *slog.Logger

	wg   sync.WaitGroup
	done chan struct{}
}

// NewCollector creates a new gauge collector
func NewCollector(m *Metrics, stats StatsProvider, storagePath string, interval time.Duration, logger *slog.Logger) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		metrics:     m,
		stats:       stats,
		storagePath: storagePath,
		interval:    interval,
		startTime:   time.Now(),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start begins periodic gauge updates
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop stops the collector and waits for the goroutine to finish
func (c *Collector) Stop() {
	close(c.done)
	c.wg.Wait()
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Update(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}

// Update refreshes all gauges once
func (c *Collector) Update(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if info, err := os.Stat(c.storagePath); err == nil {
		c.metrics.StorageUsedBytes.Set(float64(info.Size()))
	}

	stats, err := c.stats.MetricsStats(ctx)
	if err != nil {
		c.logger.Error("failed to collect store stats", "error", err)
		return
	}

	c.metrics.RecipientsTracked.Set(float64(stats.Recipients))
	c.metrics.RecipientsWithBounces.Set(float64(stats.WithBounces))
	c.metrics.RecipientsOverThreshold.Set(float64(stats.OverThreshold))
	c.metrics.SuppressionListSize.Set(float64(stats.Suppressions))
}
