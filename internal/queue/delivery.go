package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is a decoded job awaiting settlement by a consumer
type Delivery interface {
	Ack() error
	Nack(requeue bool) error
	Payload() *Job
}

// Message is a Delivery backed by a RabbitMQ delivery
type Message struct {
	Job *Job
	raw amqp.Delivery
}

var _ Delivery = (*Message)(nil)

func newMessage(job *Job, raw amqp.Delivery) *Message {
	return &Message{Job: job, raw: raw}
}

func (m *Message) Ack() error {
	return m.raw.Ack(false)
}

// Nack without requeue routes the message to the DLQ
func (m *Message) Nack(requeue bool) error {
	return m.raw.Nack(false, requeue)
}

func (m *Message) Payload() *Job {
	return m.Job
}

// Redelivered reports whether the broker has handed this message out before
func (m *Message) Redelivered() bool {
	return m.raw.Redelivered
}
