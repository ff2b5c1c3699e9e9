package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/drivenova/internal/logger"
	"github.com/benvon/drivenova/internal/queue"
	"go.uber.org/zap"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 10 * time.Minute
)

// Mailer delivers a notification email
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, subject, body string) error
}

// NotificationSender processes notification jobs
type NotificationSender struct {
	mailer   Mailer
	jobQueue queue.JobQueue // For re-enqueueing failed sends with a delay
	logger   *zap.Logger
}

// NewNotificationSender creates a new notification sender
func NewNotificationSender(mailer Mailer, jobQueue queue.JobQueue, log *zap.Logger) *NotificationSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationSender{
		mailer:   mailer,
		jobQueue: jobQueue,
		logger:   log,
	}
}

// ProcessJob processes a job based on its type and settles the message
func (s *NotificationSender) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.Payload()

	switch job.Type {
	case queue.JobTypeNotification:
		if job.Notification == nil {
			if nackErr := msg.Nack(false); nackErr != nil {
				s.logger.Warn("Failed to nack job", zap.Error(nackErr))
			}
			return fmt.Errorf("notification job %s has no payload", job.ID)
		}

		if !s.mailer.Enabled() {
			s.logger.Warn("notification_skipped",
				zap.String("reason", "smtp not configured"),
				zap.String("kind", job.Notification.Kind),
			)
			return ackOrError(msg)
		}

		if err := s.mailer.Send(ctx, job.Notification.Subject, job.Notification.Body); err != nil {
			return s.handleJobError(ctx, msg, job, err)
		}
		return ackOrError(msg)

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			s.logger.Warn("Failed to nack unknown job type", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError schedules a delayed retry while attempts remain, otherwise
// dead-letters the message.
func (s *NotificationSender) handleJobError(ctx context.Context, msg queue.Delivery, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Notification.Kind),
		zap.Int("retry_count", job.RetryCount),
		zap.String("error", logger.SanitizeError(err)),
	}

	if job.CanRetry() && s.jobQueue != nil {
		delay := RetryDelay(job.RetryCount)
		enqueueErr := s.jobQueue.Enqueue(ctx, job.RetryAfter(delay))
		if enqueueErr == nil {
			s.logger.Warn("notification_send_failed", append(fields, zap.Duration("retry_in", delay))...)
			return ackOrError(msg)
		}
		s.logger.Error("Failed to re-enqueue notification", zap.Error(enqueueErr))
	}

	s.logger.Error("notification_dead_lettered", fields...)
	if nackErr := msg.Nack(false); nackErr != nil {
		s.logger.Warn("Failed to nack job", zap.Error(nackErr))
	}
	return fmt.Errorf("notification %s failed: %w", job.ID, err)
}

// RetryDelay is the exponential backoff before attempt retryCount+1
func RetryDelay(retryCount int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// Run consumes the queue until ctx is cancelled or the delivery channel closes
func (s *NotificationSender) Run(ctx context.Context, prefetch int) error {
	msgChan, errChan, err := s.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			s.logger.Error("Queue error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				s.logger.Info("Message channel closed")
				return nil
			}
			if err := s.ProcessJob(ctx, msg); err != nil {
				s.logger.Error("Failed to process job",
					zap.Error(err),
					zap.String("job_id", msg.Payload().ID.String()),
					zap.String("job_type", string(msg.Payload().Type)),
				)
			}
		}
	}
}

func ackOrError(msg queue.Delivery) error {
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}
