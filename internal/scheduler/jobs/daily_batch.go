package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/pkg/logger"
)

// DailyBatchJob enqueues the full analysis set every trading morning.
// The queue's dedupe window makes a scheduler restart harmless.
// ⭐ SSOT: 일일 분석 배치 스케줄은 이 Job에서만
type DailyBatchJob struct {
	trigger *batch.Trigger
	logger  *logger.Logger
}

// NewDailyBatchJob creates a new daily batch job
func NewDailyBatchJob(trigger *batch.Trigger, log *logger.Logger) *DailyBatchJob {
	return &DailyBatchJob{trigger: trigger, logger: log}
}

// Name returns the job name
func (j *DailyBatchJob) Name() string {
	return "daily_analysis_batch"
}

// Schedule returns the cron schedule (7 AM ET pre-market, expressed in UTC)
func (j *DailyBatchJob) Schedule() string {
	return "0 0 12 * * 1-5"
}

// Run enqueues today's analysis jobs
func (j *DailyBatchJob) Run(ctx context.Context) error {
	enqueued, duplicates, err := j.trigger.EnqueueDaily(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue daily batch: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"enqueued":   enqueued,
		"duplicates": duplicates,
	}).Info("Daily analysis batch scheduled")
	return nil
}
