package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRetryCount = 3
	defaultJobTTL     = 24 * time.Hour

	queueKeyPrefix   = "loyalty:queue:"
	delayedKeyPrefix = "loyalty:delayed:"
	failedKeyPrefix  = "loyalty:failed:"
	jobKeyPrefix     = "loyalty:jobs:"
)

// RedisQueue implements Queue on redis lists, with a sorted set for
// delayed retries and a list of dead jobs per type.
type RedisQueue struct {
	client   *redis.Client
	ctx      context.Context
	mu       sync.RWMutex
	handlers map[JobType]JobHandler
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:   client,
		ctx:      context.Background(),
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *RedisQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// handler returns the registered handler for a job type
func (q *RedisQueue) handler(jobType JobType) (JobHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// jobTypes returns all job types with a registered handler
func (q *RedisQueue) jobTypes() []JobType {
	q.mu.RLock()
	defer q.mu.RUnlock()
	types := make([]JobType, 0, len(q.handlers))
	for t := range q.handlers {
		types = append(types, t)
	}
	return types
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(jobType JobType, payload interface{}, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := newJob(jobType, payloadBytes, opts...)

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(q.ctx, queueKeyPrefix+string(jobType), jobBytes).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	q.storeJob(job, jobBytes)
	return job.ID, nil
}

// EnqueueIn adds a job to the queue with a delay
func (q *RedisQueue) EnqueueIn(jobType JobType, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := newJob(jobType, payloadBytes, opts...)
	job.RunAt = time.Now().Add(delay)

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(q.ctx, delayedKeyPrefix+string(jobType), &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: jobBytes,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to add job to delayed queue: %w", err)
	}

	q.storeJob(job, jobBytes)
	return job.ID, nil
}

// storeJob keeps job details in a hash for inspection, with a TTL
func (q *RedisQueue) storeJob(job *Job, jobBytes []byte) {
	key := jobKeyPrefix + job.ID
	if err := q.client.HSet(q.ctx, key, "data", jobBytes).Err(); err != nil {
		log.Printf("Warning: failed to store job details for %s: %v", job.ID, err)
		return
	}
	if err := q.client.Expire(q.ctx, key, defaultJobTTL).Err(); err != nil {
		log.Printf("Warning: failed to set TTL on job %s: %v", job.ID, err)
	}
}

// Dequeue pops the next ready job for a type, promoting due delayed
// jobs first. Returns nil when nothing is ready.
func (q *RedisQueue) Dequeue(jobType JobType) (*Job, error) {
	q.moveReadyDelayedJobs(jobType)

	result := q.client.BRPop(q.ctx, 1*time.Second, queueKeyPrefix+string(jobType))
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", result.Err())
	}

	vals := result.Val()
	if len(vals) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	var job Job
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = time.Now()
	return &job, nil
}

// Complete marks a job as done
func (q *RedisQueue) Complete(job *Job) {
	job.Status = JobStatusCompleted
	job.UpdatedAt = time.Now()
	if jobBytes, err := json.Marshal(job); err == nil {
		q.storeJob(job, jobBytes)
	}
}

// Fail either re-enqueues the job with backoff or, when retries are
// exhausted, parks it on the failed list.
func (q *RedisQueue) Fail(job *Job, jobErr error) {
	job.Error = jobErr.Error()
	job.UpdatedAt = time.Now()

	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = JobStatusPending
		job.RunAt = time.Now().Add(calculateBackoff(job.RetryCount))

		jobBytes, err := json.Marshal(job)
		if err != nil {
			log.Printf("Error marshaling job %s for retry: %v", job.ID, err)
			return
		}
		err = q.client.ZAdd(q.ctx, delayedKeyPrefix+string(job.Type), &redis.Z{
			Score:  float64(job.RunAt.Unix()),
			Member: jobBytes,
		}).Err()
		if err != nil {
			log.Printf("Error scheduling retry for job %s: %v", job.ID, err)
		}
		return
	}

	job.Status = JobStatusFailed
	jobBytes, err := json.Marshal(job)
	if err != nil {
		log.Printf("Error marshaling failed job %s: %v", job.ID, err)
		return
	}
	if err := q.client.LPush(q.ctx, failedKeyPrefix+string(job.Type), jobBytes).Err(); err != nil {
		log.Printf("Error parking failed job %s: %v", job.ID, err)
	}
	q.storeJob(job, jobBytes)
}

// moveReadyDelayedJobs promotes due delayed jobs onto the main list
func (q *RedisQueue) moveReadyDelayedJobs(jobType JobType) {
	now := time.Now().Unix()
	delayedKey := delayedKeyPrefix + string(jobType)

	jobs, err := q.client.ZRangeByScore(q.ctx, delayedKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		log.Printf("Error getting ready delayed jobs: %v", err)
		return
	}

	for _, jobStr := range jobs {
		if err := q.client.LPush(q.ctx, queueKeyPrefix+string(jobType), jobStr).Err(); err != nil {
			log.Printf("Error moving delayed job to main queue: %v", err)
			continue
		}
		q.client.ZRem(q.ctx, delayedKey, jobStr)
	}
}
