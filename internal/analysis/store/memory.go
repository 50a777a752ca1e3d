package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/oracle/internal/contracts"
)

// MemoryStore is an in-memory AnalysisStore for tests and local development.
// Behavior mirrors PostgresStore: insert-only, exact reads sorted by
// created_at, nearest reads bounded by NearestScanDays.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []*contracts.AnalysisRecord

	// now is swappable so tests can pin created_at ordering
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

func (s *MemoryStore) Write(ctx context.Context, name contracts.AnalysisKind, date time.Time, value map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &contracts.AnalysisRecord{
		ID:        s.nextID,
		Name:      name,
		Date:      contracts.DateOnly(date),
		Value:     value,
		CreatedAt: s.now(),
	}
	s.nextID++
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *MemoryStore) Read(ctx context.Context, name contracts.AnalysisKind, date time.Time, ticker string) ([]*contracts.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := contracts.DateOnly(date)
	var out []*contracts.AnalysisRecord
	for _, rec := range s.records {
		if rec.Name != name || !rec.Date.Equal(target) {
			continue
		}
		if ticker != "" && rec.Ticker() != ticker {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ReadNearest(ctx context.Context, name contracts.AnalysisKind, onOrBefore time.Time) ([]*contracts.AnalysisRecord, time.Time, bool, error) {
	target := contracts.DateOnly(onOrBefore)
	floor := target.AddDate(0, 0, -contracts.NearestScanDays)

	s.mu.RLock()
	var best time.Time
	for _, rec := range s.records {
		if rec.Name != name {
			continue
		}
		if rec.Date.After(target) || !rec.Date.After(floor) {
			continue
		}
		if rec.Date.After(best) {
			best = rec.Date
		}
	}
	s.mu.RUnlock()

	if best.IsZero() {
		return nil, time.Time{}, false, contracts.ErrNoData
	}

	records, err := s.Read(ctx, name, best, "")
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return records, best, best.Equal(target), nil
}
