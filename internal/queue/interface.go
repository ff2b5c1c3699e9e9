package queue

import (
	"context"
	"time"
)

// JobQueue publishes and consumes notification jobs
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) error

	// Consume streams decoded jobs until ctx is cancelled. Each message must
	// be settled by the caller. prefetchCount bounds unacknowledged messages.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger drops dead-lettered messages older than retention and reports
// how many were removed.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
