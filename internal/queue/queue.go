package queue

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// JobType defines the type of job
type JobType string

const (
	// Storefront events delivered at least once; the loyalty engine
	// absorbs redeliveries as idempotent no-ops.
	JobTypeOrderPlaced     JobType = "loyalty_order_placed"
	JobTypeCustomerCreated JobType = "loyalty_customer_created"
	JobTypeReferralSweep   JobType = "loyalty_referral_sweep"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
	Error      string          `json:"error,omitempty"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) error

// Queue is the interface job producers depend on.
type Queue interface {
	RegisterHandler(jobType JobType, handler JobHandler)
	Enqueue(jobType JobType, payload interface{}, opts ...EnqueueOption) (string, error)
	EnqueueIn(jobType JobType, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error)
}

// EnqueueOption modifies a job before it is queued
type EnqueueOption func(*Job)

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(j *Job) {
		j.MaxRetries = maxRetries
	}
}

// WithJobID sets a specific job ID
func WithJobID(id string) EnqueueOption {
	return func(j *Job) {
		j.ID = id
	}
}

// newJob builds a pending job with defaults applied
func newJob(jobType JobType, payload json.RawMessage, opts ...EnqueueOption) *Job {
	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    payload,
		Status:     JobStatusPending,
		MaxRetries: defaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      now,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// calculateBackoff calculates the backoff duration for a retry.
// Exponential from 5s up to an hour, with ±20% jitter.
func calculateBackoff(retry int) time.Duration {
	base := 5.0
	max := 3600.0

	seconds := math.Min(max, base*math.Pow(2, float64(retry)))

	jitter := seconds * 0.2
	seconds = seconds - jitter + (rand.Float64() * jitter * 2)

	return time.Duration(seconds) * time.Second
}
