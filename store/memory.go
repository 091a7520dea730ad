package store

import (
	"context"
	"sync"
	"time"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// MemoryWriter keeps listings in process memory with the same upsert
// semantics as the Postgres writer: identity lookup with URL drift
// fallback, forward-only status, hour-bucketed price history. Used by
// tests and dry-run verification.
type MemoryWriter struct {
	mu      sync.Mutex
	rows    map[string]*model.CanonicalListing
	byURL   map[string]string
	history map[string]map[time.Time]float64
}

// NewMemoryWriter returns an empty in-memory sink.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{
		rows:    make(map[string]*model.CanonicalListing),
		byURL:   make(map[string]string),
		history: make(map[string]map[time.Time]float64),
	}
}

func idKey(source model.Source, sourceID string) string {
	return string(source) + "|" + sourceID
}

func urlKey(source model.Source, sourceURL string) string {
	return string(source) + "|" + sourceURL
}

// Upsert mirrors the Postgres write path, including the dry-run contract:
// dry-run mutates nothing and returns zeroed counts.
func (w *MemoryWriter) Upsert(ctx context.Context, l *model.CanonicalListing, dryRun bool) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}
	if dryRun {
		return UpsertResult{}, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	key := idKey(l.Source, l.SourceID)
	existing, found := w.rows[key]
	if !found {
		// Identifier drift: the same URL re-listed under a new source id.
		if prevKey, ok := w.byURL[urlKey(l.Source, l.SourceURL)]; ok {
			key = prevKey
			existing, found = w.rows[key]
		}
	}

	var result UpsertResult
	stored := *l
	if found {
		stored.Status = effectiveStatus(existing.Status, l.Status)
		if stored.SaleDate == nil {
			stored.SaleDate = existing.SaleDate
		}
		if stored.Currency == "" {
			stored.Currency = existing.Currency
		}
		delete(w.rows, key)
		key = idKey(l.Source, l.SourceID)
		result.Updated = 1
	} else {
		result.Inserted = 1
	}
	w.rows[key] = &stored
	w.byURL[urlKey(l.Source, l.SourceURL)] = key

	if price, ok := observedPrice(l); ok {
		if w.history[key] == nil {
			w.history[key] = make(map[time.Time]float64)
		}
		w.history[key][historyBucket(l)] = price
	}
	return result, nil
}

// Close is a no-op.
func (w *MemoryWriter) Close() {}

// Get returns the stored listing for an identity, if any.
func (w *MemoryWriter) Get(source model.Source, sourceID string) (*model.CanonicalListing, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.rows[idKey(source, sourceID)]
	if !ok {
		return nil, false
	}
	cp := *l
	return &cp, true
}

// Len reports the number of stored listings.
func (w *MemoryWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// History returns the recorded price points for an identity.
func (w *MemoryWriter) History(source model.Source, sourceID string) map[time.Time]float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	points := make(map[time.Time]float64, len(w.history[idKey(source, sourceID)]))
	for at, price := range w.history[idKey(source, sourceID)] {
		points[at] = price
	}
	return points
}

var _ ListingWriter = (*MemoryWriter)(nil)
