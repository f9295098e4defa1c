package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner deletes expired rows and reports how many it removed
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Janitor periodically runs every registered Cleaner
type Janitor struct {
	cleaners map[string]Cleaner
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a cleanup worker; interval defaults to five minutes
func NewJanitor(logger *slog.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Janitor{
		cleaners: make(map[string]Cleaner),
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Register adds a cleaner under name. Call before Start.
func (j *Janitor) Register(name string, c Cleaner) {
	j.cleaners[name] = c
}

// Start blocks until ctx is cancelled or Stop is called
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("cleanup worker started", "interval", j.interval, "jobs", len(j.cleaners))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-j.done:
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// Stop gracefully shuts down the worker
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
}

// RunOnce runs every cleaner once; failures are logged and do not stop the others
func (j *Janitor) RunOnce(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(j.cleaners))

	for name, c := range j.cleaners {
		n, err := c.CleanupExpired(ctx)
		if err != nil {
			j.logger.Error("cleanup failed", "job", name, "error", err)
			continue
		}
		removed[name] = n
		if n > 0 {
			j.logger.Info("expired rows removed", "job", name, "count", n)
		}
	}

	return removed
}
