package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueDisabled is returned when Redis is not enabled in config.
var ErrQueueDisabled = errors.New("redis queue disabled")

// ErrDuplicateJob is returned when a job with the same dedupe ID was already
// enqueued within the dedupe window.
var ErrDuplicateJob = errors.New("duplicate job")

// Job is one queued batch job. Payload is job-specific JSON.
type Job struct {
	Name       string          `json:"name"`
	DedupeID   string          `json:"dedupe_id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// JobQueue is a Redis-list backed FIFO job queue with enqueue-side
// deduplication (SETNX key per dedupe ID)
// ⭐ SSOT: 배치 잡 큐는 여기서만
type JobQueue struct {
	client       *Client
	key          string
	dedupeWindow time.Duration
}

// NewJobQueue creates a job queue on the given list key
func NewJobQueue(client *Client, key string) *JobQueue {
	return &JobQueue{
		client:       client,
		key:          key,
		dedupeWindow: 24 * time.Hour,
	}
}

// Enqueue pushes a job; a second enqueue with the same dedupe ID inside the
// dedupe window returns ErrDuplicateJob without pushing.
func (q *JobQueue) Enqueue(ctx context.Context, job Job) error {
	if !q.client.Enabled() {
		return ErrQueueDisabled
	}

	if job.DedupeID != "" {
		dedupeKey := fmt.Sprintf("%s:dedupe:%s", q.key, job.DedupeID)
		ok, err := q.client.Redis().SetNX(ctx, dedupeKey, 1, q.dedupeWindow).Result()
		if err != nil {
			return fmt.Errorf("dedupe check: %w", err)
		}
		if !ok {
			return ErrDuplicateJob
		}
	}

	job.EnqueuedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.client.Redis().LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	return nil
}

// Dequeue blocks until a job is available or the timeout elapses.
// Returns (nil, nil) on timeout.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if !q.client.Enabled() {
		return nil, ErrQueueDisabled
	}

	res, err := q.client.Redis().BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	return &job, nil
}

// Len returns the number of pending jobs
func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	if !q.client.Enabled() {
		return 0, ErrQueueDisabled
	}
	return q.client.Redis().LLen(ctx, q.key).Result()
}
