package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const purgeTimeout = 2 * time.Minute

// Janitor keeps the dead-letter queue bounded by age
type Janitor struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

func NewJanitor(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run sweeps once immediately and then every interval until ctx ends.
// Sweep failures are logged and do not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	if j.purger == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("dlq_sweep_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep removes dead letters older than the retention window
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.purger == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := j.purger.PurgeOlderThan(ctx, j.retention)
	if err != nil {
		return n, fmt.Errorf("dlq purge: %w", err)
	}
	if n > 0 {
		j.logger.Info("dlq_sweep_purged",
			zap.Int("count", n),
			zap.Duration("retention", j.retention),
		)
	}
	return n, nil
}
