package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultConnectAttempts bounds ConnectWithRetry
	DefaultConnectAttempts = 10

	connectInitialDelay = 2 * time.Second
	connectMaxDelay     = 30 * time.Second
)

// dialer opens a queue; swapped in tests
type dialer func(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error)

// ConnectWithRetry dials RabbitMQ with exponential backoff so that services
// started alongside the broker survive its startup delay.
func ConnectWithRetry(ctx context.Context, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	return connectWithRetry(ctx, NewRabbitMQQueue, amqpURL, attempts, logger)
}

func connectWithRetry(ctx context.Context, dial dialer, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := dial(amqpURL, logger)
		if err == nil {
			return q, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := backoff(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func backoff(attempt int) time.Duration {
	delay := connectInitialDelay
	for i := 0; i < attempt && delay < connectMaxDelay; i++ {
		delay *= 2
	}
	return min(delay, connectMaxDelay)
}
