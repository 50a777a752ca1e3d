package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
)

// PriceRepository persists daily prices in marketdata.daily_prices
// ⭐ SSOT: 시세 영속화는 여기서만
type PriceRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPriceRepository creates the price repository
func NewPriceRepository(db *database.DB, log *logger.Logger) *PriceRepository {
	return &PriceRepository{db: db, logger: log}
}

// UpsertDailyPrices writes bars, replacing existing (ticker, date) rows.
// Price corrections from the source overwrite silently.
func (r *PriceRepository) UpsertDailyPrices(ctx context.Context, prices []DailyPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	batch := 0
	for _, p := range prices {
		_, err := r.db.Pool.Exec(ctx,
			`INSERT INTO marketdata.daily_prices (ticker, date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (ticker, date) DO UPDATE SET
			   open = EXCLUDED.open,
			   high = EXCLUDED.high,
			   low = EXCLUDED.low,
			   close = EXCLUDED.close,
			   volume = EXCLUDED.volume`,
			p.Ticker, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume)
		if err != nil {
			return batch, fmt.Errorf("failed to upsert price %s/%s: %w",
				p.Ticker, p.Date.Format("2006-01-02"), err)
		}
		batch++
	}

	r.logger.WithFields(map[string]interface{}{
		"count": batch,
	}).Debug("Upserted daily prices")

	return batch, nil
}

// GetDailyPrices reads bars for a ticker between from and to, oldest first
func (r *PriceRepository) GetDailyPrices(ctx context.Context, ticker string, from, to time.Time) ([]DailyPrice, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT ticker, date, open, high, low, close, volume
		 FROM marketdata.daily_prices
		 WHERE ticker = $1 AND date BETWEEN $2 AND $3
		 ORDER BY date`,
		ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// LatestDate returns the most recent bar date stored for a ticker, or zero
// time when none exists.
func (r *PriceRepository) LatestDate(ctx context.Context, ticker string) (time.Time, error) {
	var latest *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT MAX(date) FROM marketdata.daily_prices WHERE ticker = $1`,
		ticker).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
