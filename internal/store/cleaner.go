package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CleanerConfig contains retention settings for the notification log
type CleanerConfig struct {
	LogMaxAge       time.Duration
	CleanupInterval time.Duration
}

// Cleaner handles automatic cleanup of old notification log entries
type Cleaner struct {
	store  *Store
	cfg    CleanerConfig
	logger *slog.Logger
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewCleaner creates a new cleaner service
func NewCleaner(store *Store, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		store:  store,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start starts the cleanup goroutine
func (c *Cleaner) Start(ctx context.Context) {
	if c.cfg.LogMaxAge <= 0 || c.cfg.CleanupInterval <= 0 {
		return
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("log cleaner started",
		"log_max_age", c.cfg.LogMaxAge,
		"cleanup_interval", c.cfg.CleanupInterval,
	)
}

// Stop stops the cleaner and waits for the goroutine to finish
func (c *Cleaner) Stop() {
	close(c.done)
	c.wg.Wait()
}

func (c *Cleaner) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	// Run cleanup immediately on start
	c.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

func (c *Cleaner) run(ctx context.Context) {
	deleted, err := c.store.CleanupLog(ctx, c.cfg.LogMaxAge)
	if err != nil {
		c.logger.Error("failed to cleanup notification log", "error", err)
		return
	}
	if deleted > 0 {
		c.logger.Info("cleaned up notification log", "deleted", deleted)
	}
}
