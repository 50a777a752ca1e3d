package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wonny/oracle/internal/contracts"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStoreWriteRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	date := day(2025, 1, 15)

	id, err := s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{"ticker": "QQQ"})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("Expected non-zero record id")
	}

	records, err := s.Read(ctx, contracts.KindSignals, date, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Date != contracts.DateOnly(date) {
		t.Error("Date must be stored as UTC date only")
	}
}

func TestMemoryStoreInsertOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	date := day(2025, 1, 15)

	s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{"v": "first"})
	s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{"v": "second"})

	records, err := s.Read(ctx, contracts.KindSignals, date, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("Re-write must insert a sibling, got %d records", len(records))
	}
	if records[0].Value["v"] != "first" {
		t.Error("Read must order by created_at")
	}
}

func TestMemoryStoreTickerFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	date := day(2025, 1, 15)

	s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{"ticker": "QQQ"})
	s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{"ticker": "SPY"})

	records, err := s.Read(ctx, contracts.KindSignals, date, "QQQ")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Ticker() != "QQQ" {
		t.Errorf("Expected only QQQ record, got %d records", len(records))
	}
}

func TestMemoryStoreReadEmptyIsNotError(t *testing.T) {
	s := NewMemoryStore()

	records, err := s.Read(context.Background(), contracts.KindLiquidity, day(2025, 1, 1), "")
	if err != nil {
		t.Fatalf("Empty read must not error: %v", err)
	}
	if len(records) != 0 {
		t.Error("Expected empty result")
	}
}

func TestMemoryStoreKindIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	date := day(2025, 1, 15)

	s.Write(ctx, contracts.KindSignals, date, map[string]interface{}{})

	records, err := s.Read(ctx, contracts.KindLiquidity, date, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Error("Records must not leak across kinds")
	}
}

func TestReadNearestBackwardScan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Write(ctx, contracts.KindLiquidity, day(2024, 1, 10), map[string]interface{}{"v": "old"})
	s.Write(ctx, contracts.KindLiquidity, day(2024, 1, 12), map[string]interface{}{"v": "newer"})

	records, actual, exact, err := s.ReadNearest(ctx, contracts.KindLiquidity, day(2024, 1, 15))
	if err != nil {
		t.Fatal(err)
	}
	if exact {
		t.Error("2024-01-15 has no record, exact must be false")
	}
	if !actual.Equal(day(2024, 1, 12)) {
		t.Errorf("Expected actual date 2024-01-12, got %s", actual)
	}
	if len(records) != 1 || records[0].Value["v"] != "newer" {
		t.Error("Expected the 2024-01-12 record")
	}
}

func TestReadNearestExactHit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Write(ctx, contracts.KindLiquidity, day(2024, 1, 10), map[string]interface{}{})

	_, actual, exact, err := s.ReadNearest(ctx, contracts.KindLiquidity, day(2024, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if !exact {
		t.Error("Expected exact match")
	}
	if !actual.Equal(day(2024, 1, 10)) {
		t.Errorf("Expected 2024-01-10, got %s", actual)
	}
}

func TestReadNearestScanBound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Record just outside the 30-day window
	s.Write(ctx, contracts.KindLiquidity, day(2024, 1, 1), map[string]interface{}{})

	_, _, _, err := s.ReadNearest(ctx, contracts.KindLiquidity, day(2024, 2, 15))
	if !errors.Is(err, contracts.ErrNoData) {
		t.Errorf("Expected ErrNoData past the scan bound, got %v", err)
	}

	// And just inside
	_, actual, _, err := s.ReadNearest(ctx, contracts.KindLiquidity, day(2024, 1, 25))
	if err != nil {
		t.Fatal(err)
	}
	if !actual.Equal(day(2024, 1, 1)) {
		t.Errorf("Expected hit within the bound, got %s", actual)
	}
}

func TestReadNearestIgnoresFutureDates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Write(ctx, contracts.KindLiquidity, day(2024, 1, 20), map[string]interface{}{})

	_, _, _, err := s.ReadNearest(ctx, contracts.KindLiquidity, day(2024, 1, 15))
	if !errors.Is(err, contracts.ErrNoData) {
		t.Error("Records after the requested date must be invisible")
	}
}

func TestIsTransient(t *testing.T) {
	if isTransient(contracts.ErrNoData) {
		t.Error("ErrNoData is not transient")
	}
	if isTransient(errors.New("syntax error")) {
		t.Error("Plain errors are not transient")
	}
}
