package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// QueueKey is the Redis list the batch jobs flow through
const QueueKey = "oracle:jobs:analysis"

// JobName identifies the analysis batch job type on the queue
const JobName = "analysis.create"

// JobPayload is the queued unit of work: one analysis creation request
type JobPayload struct {
	Kind    contracts.AnalysisKind `json:"kind"`
	Date    string                 `json:"date"` // YYYY-MM-DD
	Tickers []string               `json:"tickers,omitempty"`
	Window  string                 `json:"window,omitempty"`
	Policy  contracts.LLMPolicy    `json:"policy,omitempty"`
}

// Trigger enqueues analysis jobs. Deduplication keys make a same-day re-run
// a no-op instead of a double spend on provider calls.
// ⭐ SSOT: 배치 잡 발행은 여기서만
type Trigger struct {
	queue     *redis.JobQueue
	tickers   []string
	chunkSize int
	logger    *logger.Logger
}

// NewTrigger creates a batch trigger. tickers and chunkSize shape the
// per-ticker kinds (signals); the market-wide kinds ignore them.
func NewTrigger(queue *redis.JobQueue, tickers []string, chunkSize int, log *logger.Logger) *Trigger {
	if chunkSize <= 0 {
		chunkSize = 5
	}
	return &Trigger{queue: queue, tickers: tickers, chunkSize: chunkSize, logger: log}
}

// EnqueueDaily enqueues the full daily analysis set for one date. Returns
// the number of newly enqueued jobs; duplicates are counted separately.
func (t *Trigger) EnqueueDaily(ctx context.Context, date time.Time) (enqueued, duplicates int, err error) {
	day := contracts.DateOnly(date).Format("2006-01-02")

	for _, kind := range contracts.AllKinds() {
		if kind == contracts.KindSignals {
			// Per-ticker kind: chunk the configured universe
			for i, chunk := range chunkTickers(t.tickers, t.chunkSize) {
				payload := JobPayload{Kind: kind, Date: day, Tickers: chunk}
				dedupeID := fmt.Sprintf("%s-%s-chunk%d", kind, day, i)
				ok, err := t.enqueue(ctx, payload, dedupeID)
				if err != nil {
					return enqueued, duplicates, err
				}
				if ok {
					enqueued++
				} else {
					duplicates++
				}
			}
			continue
		}

		payload := JobPayload{Kind: kind, Date: day}
		if kind == contracts.KindETFFlowsWeekly {
			payload.Window = "weekly"
		}

		ok, err := t.enqueue(ctx, payload, fmt.Sprintf("%s-%s", kind, day))
		if err != nil {
			return enqueued, duplicates, err
		}
		if ok {
			enqueued++
		} else {
			duplicates++
		}
	}

	t.logger.WithFields(map[string]interface{}{
		"date":       day,
		"enqueued":   enqueued,
		"duplicates": duplicates,
	}).Info("Daily batch enqueued")

	return enqueued, duplicates, nil
}

// EnqueueOne enqueues a single analysis job
func (t *Trigger) EnqueueOne(ctx context.Context, payload JobPayload) (bool, error) {
	dedupeID := fmt.Sprintf("%s-%s", payload.Kind, payload.Date)
	if len(payload.Tickers) > 0 {
		dedupeID = fmt.Sprintf("%s-%s", dedupeID, payload.Tickers[0])
	}
	return t.enqueue(ctx, payload, dedupeID)
}

func (t *Trigger) enqueue(ctx context.Context, payload JobPayload, dedupeID string) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	err = t.queue.Enqueue(ctx, redis.Job{
		Name:     JobName,
		DedupeID: dedupeID,
		Payload:  data,
	})
	if errors.Is(err, redis.ErrDuplicateJob) {
		t.logger.WithField("dedupe_id", dedupeID).Debug("Skipped duplicate job")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// chunkTickers splits the universe into fixed-size chunks, order preserved
func chunkTickers(tickers []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		chunks = append(chunks, tickers[start:end])
	}
	return chunks
}
