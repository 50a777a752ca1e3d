package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/httputil"
	"github.com/wonny/oracle/pkg/logger"
)

// Client fetches daily prices from the Stooq CSV endpoint
// ⭐ SSOT: Stooq 시세 호출은 여기서만
type Client struct {
	baseURL    string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewClient creates a market data client from config
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.MarketData.StooqBaseURL, "/"),
		httpClient: httputil.NewWithTimeout(cfg, log, cfg.MarketData.RequestTimeout),
		logger:     log,
	}
}

// FetchDailyPrices fetches daily OHLCV bars for a US ticker between from and
// to (inclusive). Stooq serves US symbols under the ".us" suffix.
func (c *Client) FetchDailyPrices(ctx context.Context, ticker string, from, to time.Time) ([]DailyPrice, error) {
	symbol := strings.ToLower(ticker) + ".us"
	url := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL, symbol, from.Format("20060102"), to.Format("20060102"))

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("stooq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("stooq returned status %d for %s", resp.StatusCode, ticker)
	}

	prices, err := parseDailyCSV(resp.Body, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stooq CSV for %s: %w", ticker, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(prices),
	}).Debug("Fetched daily prices")

	return prices, nil
}

// parseDailyCSV decodes the Stooq daily CSV format:
// Date,Open,High,Low,Close,Volume
func parseDailyCSV(r io.Reader, ticker string) ([]DailyPrice, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	// "No data" comes back as a one-line plain-text body
	if !strings.EqualFold(strings.TrimSpace(rows[0][0]), "date") {
		return nil, fmt.Errorf("unexpected header %q", rows[0][0])
	}

	prices := make([]DailyPrice, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}

		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		cls, err4 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}

		volume, _ := strconv.ParseInt(strings.TrimSpace(row[5]), 10, 64)

		prices = append(prices, DailyPrice{
			Ticker: ticker,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: volume,
		})
	}

	return prices, nil
}

// RecentCloses returns up to n most recent closing prices, oldest first.
// Used to ground analysis prompts with real price context.
func RecentCloses(prices []DailyPrice, n int) []float64 {
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	return closes
}
