package batch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wonny/oracle/internal/analysis"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

const dequeueTimeout = 5 * time.Second

// Worker drains the job queue and runs the analysis pipeline for each job.
// One worker processes jobs sequentially; run several workers for
// parallelism.
// ⭐ SSOT: 배치 잡 소비는 여기서만
type Worker struct {
	queue   *redis.JobQueue
	service *analysis.Service
	logger  *logger.Logger
}

// NewWorker creates a batch worker
func NewWorker(queue *redis.JobQueue, svc *analysis.Service, log *logger.Logger) *Worker {
	return &Worker{queue: queue, service: svc, logger: log}
}

// Run blocks, consuming jobs until the context is cancelled. A failed job is
// logged and dropped; the dedupe window prevents hot requeue loops.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Batch worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Batch worker stopped")
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.WithError(err).Error("Dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue // timeout, poll again
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *redis.Job) {
	if job.Name != JobName {
		w.logger.WithField("name", job.Name).Warn("Skipping unknown job type")
		return
	}

	var payload JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.WithError(err).Error("Malformed job payload")
		return
	}

	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		w.logger.WithError(err).WithFields(map[string]interface{}{
			"date": payload.Date,
		}).Error("Malformed job date")
		return
	}

	log := w.logger.WithFields(map[string]interface{}{
		"kind": string(payload.Kind),
		"date": payload.Date,
	})

	start := time.Now()
	records, err := w.service.Create(ctx, analysis.CreateRequest{
		Kind:    payload.Kind,
		Date:    date,
		Tickers: payload.Tickers,
		Window:  payload.Window,
		Policy:  resolvePolicy(payload.Policy),
	})
	if err != nil {
		log.WithError(err).Error("Batch job failed")
		return
	}

	log.WithFields(map[string]interface{}{
		"records":  len(records),
		"duration": time.Since(start),
	}).Info("Batch job completed")
}

func resolvePolicy(p contracts.LLMPolicy) contracts.LLMPolicy {
	if p == "" {
		return contracts.PolicyAuto
	}
	return p
}
