package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/httputil"
	"github.com/wonny/oracle/pkg/logger"
)

// FundamentalsClient scrapes the finviz quote page for fundamental snapshot
// data
// ⭐ SSOT: finviz 호출은 여기서만
type FundamentalsClient struct {
	baseURL    string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewFundamentalsClient creates the finviz client from config
func NewFundamentalsClient(cfg *config.Config, log *logger.Logger) *FundamentalsClient {
	return &FundamentalsClient{
		baseURL:    strings.TrimRight(cfg.MarketData.FinvizBaseURL, "/"),
		httpClient: httputil.NewWithTimeout(cfg, log, cfg.MarketData.RequestTimeout),
		logger:     log,
	}
}

// FetchFundamentals scrapes the snapshot table of the finviz quote page
func (c *FundamentalsClient) FetchFundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	url := fmt.Sprintf("%s/quote.ashx?t=%s", c.baseURL, strings.ToUpper(ticker))

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("finviz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("finviz returned status %d for %s", resp.StatusCode, ticker)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse finviz HTML: %w", err)
	}

	f := &Fundamentals{Ticker: strings.ToUpper(ticker)}

	// Header block: company name, sector | industry
	f.Company = strings.TrimSpace(doc.Find(".quote-header_ticker-wrapper h2").First().Text())
	doc.Find(".quote-links a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		switch i {
		case 0:
			f.Sector = strings.TrimSpace(sel.Text())
		case 1:
			f.Industry = strings.TrimSpace(sel.Text())
			return false
		}
		return true
	})

	// Snapshot table: alternating label/value cells
	snapshot := map[string]string{}
	cells := doc.Find("table.snapshot-table2 td")
	for i := 0; i+1 < cells.Length(); i += 2 {
		label := strings.TrimSpace(cells.Eq(i).Text())
		value := strings.TrimSpace(cells.Eq(i + 1).Text())
		if label != "" {
			snapshot[label] = value
		}
	}

	if len(snapshot) == 0 {
		return nil, fmt.Errorf("no snapshot table for %s", ticker)
	}

	f.MarketCap = snapshot["Market Cap"]
	f.PE = parseSnapshotFloat(snapshot["P/E"])
	f.EPS = parseSnapshotFloat(snapshot["EPS (ttm)"])
	f.DividendYield = snapshot["Dividend %"]
	f.Beta = parseSnapshotFloat(snapshot["Beta"])
	f.AvgVolume = snapshot["Avg Volume"]
	f.Recommendation = parseSnapshotFloat(snapshot["Recom"])

	c.logger.WithField("ticker", ticker).Debug("Fetched fundamentals")
	return f, nil
}

// parseSnapshotFloat parses a finviz numeric cell; "-" means no data
func parseSnapshotFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
