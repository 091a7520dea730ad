package source

import (
	"context"
	"fmt"
	"time"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// MockAdapter produces deterministic synthetic records without network
// calls. Used by tests and credential-free smoke runs.
type MockAdapter struct {
	// PerSource overrides the generated batch for specific sources.
	PerSource map[model.Source][]model.RawRecord

	// Err, when set, is returned for every fetch. ErrFor fails only the
	// named sources.
	Err    error
	ErrFor map[model.Source]error
}

// Fetch returns the configured records, or a deterministic synthetic batch.
func (m *MockAdapter) Fetch(ctx context.Context, source model.Source, params Params) ([]model.RawRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.ErrFor[source]; ok {
		return nil, err
	}
	if records, ok := m.PerSource[source]; ok {
		if params.Limit > 0 && len(records) > params.Limit {
			return records[:params.Limit], nil
		}
		return records, nil
	}

	n := 3
	if params.Limit > 0 && params.Limit < n {
		n = params.Limit
	}
	records := make([]model.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, model.RawRecord{
			Source: source,
			Fields: map[string]any{
				"id":         fmt.Sprintf("mock-%s-%d", source, i+1),
				"title":      fmt.Sprintf("200%d Porsche 911 Carrera", i+1),
				"url":        fmt.Sprintf("https://%s.invalid/listing/mock-%d", source, i+1),
				"make":       model.TrackedMake,
				"status":     "sold",
				"sale_date":  time.Now().UTC().AddDate(0, -1, 0).Format(time.RFC3339),
				"scraped_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}
	return records, nil
}
