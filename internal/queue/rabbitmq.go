package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "drivenova_notifications"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "drivenova_notifications_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "drivenova_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "drivenova_jobs_delayed"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"
)

// ErrQueueClosed is returned by HealthCheck when the broker connection is gone
var ErrQueueClosed = errors.New("rabbitmq connection closed")

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
	delayed             bool
	logger              *zap.Logger
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue creates a new RabbitMQ queue
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		logger:              logger,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// binding attaches a queue to an exchange under a routing key
type binding struct {
	queue, key, exchange string
}

// setup declares the topology: a direct jobs exchange, an optional delayed
// exchange for retries, the work queue and its dead-letter queue.
func (q *RabbitMQQueue) setup() error {
	// Requires the rabbitmq_delayed_message_exchange plugin
	err := q.channel.ExchangeDeclare(q.delayedExchangeName, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"})
	switch {
	case err == nil:
		q.delayed = true
	case q.channel.IsClosed():
		// A failed declare closes the channel
		ch, openErr := q.conn.Channel()
		if openErr != nil {
			return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
		}
		q.channel = ch
		fallthrough
	default:
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", q.exchangeName, err)
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{q.dlqName, nil},
		{q.queueName, amqp.Table{
			"x-dead-letter-exchange":    q.exchangeName,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}},
	}
	for _, spec := range queues {
		if _, err := q.channel.QueueDeclare(spec.name, true, false, false, false, spec.args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", spec.name, err)
		}
	}

	bindings := []binding{
		{q.dlqName, dlqRoutingKey, q.exchangeName},
		{q.queueName, jobsRoutingKey, q.exchangeName},
	}
	if q.delayed {
		bindings = append(bindings, binding{q.queueName, jobsRoutingKey, q.delayedExchangeName})
	}
	for _, b := range bindings {
		if err := q.channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// publishing builds the AMQP message for job and picks the exchange to send it to
func (q *RabbitMQQueue) publishing(job *Job, now time.Time) (string, amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}

	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			pub.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	exchange := q.exchangeName
	if job.NotBefore != nil && q.delayed {
		if delay := job.NotBefore.Sub(now); delay > 0 {
			exchange = q.delayedExchangeName
			pub.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
		}
	}
	return exchange, pub, nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	exchange, pub, err := q.publishing(job, time.Now())
	if err != nil {
		return err
	}

	if err := q.channel.PublishWithContext(ctx, exchange, jobsRoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Consumers get their own channel so publishing is never blocked by QoS
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				job, ok := q.admit(delivery)
				if !ok {
					continue
				}
				msg := newMessage(job, delivery)

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// admit decodes a delivery and settles the ones a consumer must not see:
// undecodable and expired jobs are dead-lettered, early ones requeued.
func (q *RabbitMQQueue) admit(d amqp.Delivery) (*Job, bool) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.logger.Warn("job_decode_failed", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return nil, false
	}
	switch {
	case job.IsExpired():
		q.logger.Info("job_expired", zap.String("job_id", job.ID.String()))
		_ = d.Nack(false, false)
		return nil, false
	case !job.ShouldProcess():
		_ = d.Nack(false, true)
		return nil, false
	}
	return &job, true
}

// PurgeOlderThan drains dead-lettered messages published before now-retention.
// The DLQ is FIFO, so the first younger message is returned to the queue and
// the purge stops.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	cutoff := time.Now().Add(-retention)
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		delivery, ok, err := ch.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if !deadLetteredBefore(delivery, cutoff) {
			if err := delivery.Nack(false, true); err != nil {
				return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
			}
			return purged, nil
		}
		if err := delivery.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
		}
		purged++
	}
}

// deadLetteredBefore reports whether the delivery was dead-lettered (or, failing
// that, published) before cutoff. Messages with no usable timestamp count as old.
func deadLetteredBefore(d amqp.Delivery, cutoff time.Time) bool {
	if deaths, ok := d.Headers["x-death"].([]any); ok && len(deaths) > 0 {
		if death, ok := deaths[0].(amqp.Table); ok {
			if ts, ok := death["time"].(time.Time); ok {
				return ts.Before(cutoff)
			}
		}
	}
	if d.Timestamp.IsZero() {
		return true
	}
	return d.Timestamp.Before(cutoff)
}

// HealthCheck verifies the queue connection is healthy
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return ErrQueueClosed
	}
	if q.channel == nil || q.channel.IsClosed() {
		return fmt.Errorf("rabbitmq publish channel closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
