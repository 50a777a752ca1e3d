package marketdata

import (
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2025-01-13,515.21,518.40,513.02,517.33,41234567
2025-01-14,517.50,521.10,516.80,520.04,38765432
2025-01-15,520.50,524.00,519.90,523.11,42345678
`

func TestParseDailyCSV(t *testing.T) {
	prices, err := parseDailyCSV(strings.NewReader(sampleCSV), "QQQ")
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(prices))
	}

	first := prices[0]
	if first.Ticker != "QQQ" {
		t.Errorf("Expected ticker QQQ, got %s", first.Ticker)
	}
	if !first.Date.Equal(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date %s", first.Date)
	}
	if first.Close != 517.33 {
		t.Errorf("Expected close 517.33, got %f", first.Close)
	}
	if first.Volume != 41234567 {
		t.Errorf("Expected volume 41234567, got %d", first.Volume)
	}
}

func TestParseDailyCSVNoData(t *testing.T) {
	_, err := parseDailyCSV(strings.NewReader("No data"), "ZZZZ")
	if err == nil {
		t.Fatal("Expected error for no-data body")
	}
}

func TestParseDailyCSVSkipsMalformedRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2025-01-13,515.21,518.40,513.02,517.33,41234567\n" +
		"not-a-date,1,2,3,4,5\n" +
		"2025-01-14,bad,521.10,516.80,520.04,38765432\n"

	prices, err := parseDailyCSV(strings.NewReader(csv), "QQQ")
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 1 {
		t.Fatalf("Malformed rows must be skipped, got %d bars", len(prices))
	}
}

func TestRecentCloses(t *testing.T) {
	prices, _ := parseDailyCSV(strings.NewReader(sampleCSV), "QQQ")

	closes := RecentCloses(prices, 2)
	if len(closes) != 2 {
		t.Fatalf("Expected 2 closes, got %d", len(closes))
	}
	if closes[0] != 520.04 || closes[1] != 523.11 {
		t.Errorf("Expected the two newest closes oldest-first, got %v", closes)
	}

	all := RecentCloses(prices, 10)
	if len(all) != 3 {
		t.Errorf("Short history returns everything, got %d", len(all))
	}
}

func TestParseSnapshotFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"34.12", 34.12},
		{"-", 0},
		{"", 0},
		{"1.25%", 1.25},
	}
	for _, tt := range tests {
		if got := parseSnapshotFloat(tt.in); got != tt.want {
			t.Errorf("parseSnapshotFloat(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
