package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/oracle/internal/marketdata"
	"github.com/wonny/oracle/pkg/logger"
)

// PriceCollectionJob refreshes daily bars for the configured universe after
// the US close.
// ⭐ SSOT: 시세 수집 스케줄은 이 Job에서만
type PriceCollectionJob struct {
	client  *marketdata.Client
	repo    *marketdata.PriceRepository
	tickers []string
	logger  *logger.Logger
}

// NewPriceCollectionJob creates a new price collection job
func NewPriceCollectionJob(client *marketdata.Client, repo *marketdata.PriceRepository, tickers []string, log *logger.Logger) *PriceCollectionJob {
	return &PriceCollectionJob{
		client:  client,
		repo:    repo,
		tickers: tickers,
		logger:  log,
	}
}

// Name returns the job name
func (j *PriceCollectionJob) Name() string {
	return "price_collection"
}

// Schedule returns the cron schedule (5 PM ET post-close, expressed in UTC)
func (j *PriceCollectionJob) Schedule() string {
	return "0 0 22 * * 1-5"
}

// Run collects the last 5 trading days for every ticker in the universe
func (j *PriceCollectionJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -5)

	var failed int
	for _, ticker := range j.tickers {
		prices, err := j.client.FetchDailyPrices(ctx, ticker, from, to)
		if err != nil {
			j.logger.WithError(err).WithFields(map[string]interface{}{
				"ticker": ticker,
			}).Warn("Price fetch failed")
			failed++
			continue
		}

		if _, err := j.repo.UpsertDailyPrices(ctx, prices); err != nil {
			j.logger.WithError(err).WithFields(map[string]interface{}{
				"ticker": ticker,
			}).Warn("Price upsert failed")
			failed++
		}
	}

	if failed == len(j.tickers) && len(j.tickers) > 0 {
		return fmt.Errorf("price collection failed for all %d tickers", failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"tickers": len(j.tickers),
		"failed":  failed,
	}).Info("Price collection completed")
	return nil
}
