// Package notify delivers operator notifications about new users, bookings and
// contact messages. Callers never wait on delivery.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/queue"
	"go.uber.org/zap"
)

const (
	// DefaultEnqueueTimeout bounds a single background enqueue
	DefaultEnqueueTimeout = 5 * time.Second
	// DefaultJobTTL is how long a notification stays deliverable
	DefaultJobTTL = 24 * time.Hour
)

// Notifier sends a notification without blocking or failing the caller
type Notifier interface {
	Notify(ctx context.Context, kind, subject, body string)
}

// Enqueuer is the part of queue.JobQueue the notifier needs
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Nop discards notifications
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, string, string, string) {}

// QueueNotifier turns notifications into queue jobs from a background goroutine
type QueueNotifier struct {
	queue   Enqueuer
	timeout time.Duration
	ttl     time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

var (
	_ Notifier = (*QueueNotifier)(nil)
	_ Notifier = Nop{}
)

// NewQueueNotifier creates a notifier that enqueues onto q
func NewQueueNotifier(q Enqueuer, log *zap.Logger) *QueueNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueNotifier{
		queue:   q,
		timeout: DefaultEnqueueTimeout,
		ttl:     DefaultJobTTL,
		logger:  log,
	}
}

// Notify enqueues the notification in the background. The request context's
// cancellation is ignored so a finished request does not abort the enqueue.
func (n *QueueNotifier) Notify(ctx context.Context, kind, subject, body string) {
	job := queue.NewNotificationJob(queue.Notification{Kind: kind, Subject: subject, Body: body}, n.ttl)
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		if err := n.queue.Enqueue(ctx, job); err != nil {
			n.logger.Error("notification_enqueue_failed",
				zap.String("kind", kind),
				zap.String("job_id", job.ID.String()),
				zap.String("error", logger.SanitizeError(err)),
			)
			return
		}
		n.logger.Debug("notification_enqueued",
			zap.String("kind", kind),
			zap.String("job_id", job.ID.String()),
		)
	}()
}

// Wait blocks until in-flight enqueues finish. Used during shutdown.
func (n *QueueNotifier) Wait() {
	n.wg.Wait()
}
