package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeNotification delivers an operator notification email
	JobTypeNotification JobType = "notification"
)

// DefaultMaxRetries bounds redelivery attempts before a job goes to the DLQ
const DefaultMaxRetries = 3

// Notification is the payload of a notification job
type Notification struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Job represents a job in the queue
type Job struct {
	ID           uuid.UUID      `json:"id"`
	Type         JobType        `json:"type"`
	Notification *Notification  `json:"notification,omitempty"`
	NotBefore    *time.Time     `json:"not_before,omitempty"` // nil = immediate
	NotAfter     *time.Time     `json:"not_after,omitempty"`  // nil = no expiration
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewNotificationJob creates a notification job that expires after ttl.
// A zero ttl never expires.
func NewNotificationJob(n Notification, ttl time.Duration) *Job {
	job := NewJob(JobTypeNotification)
	job.Notification = &n
	if ttl > 0 {
		notAfter := job.CreatedAt.Add(ttl)
		job.NotAfter = &notAfter
	}
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryAfter returns a copy of the job scheduled delay from now with the
// retry count incremented. The original job is left untouched.
func (j *Job) RetryAfter(delay time.Duration) *Job {
	next := *j
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	next.IncrementRetry()
	return &next
}
