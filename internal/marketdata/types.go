package marketdata

import "time"

// DailyPrice is one OHLCV bar for a ticker
type DailyPrice struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Fundamentals is the snapshot scraped from the finviz quote page
type Fundamentals struct {
	Ticker         string  `json:"ticker"`
	Company        string  `json:"company"`
	Sector         string  `json:"sector"`
	Industry       string  `json:"industry"`
	MarketCap      string  `json:"market_cap"`
	PE             float64 `json:"pe"`
	EPS            float64 `json:"eps"`
	DividendYield  string  `json:"dividend_yield"`
	Beta           float64 `json:"beta"`
	AvgVolume      string  `json:"avg_volume"`
	Recommendation float64 `json:"recommendation"`
}
