package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

func newActorServer(t *testing.T, pollsUntilDone int32, items []map[string]any) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/acts/actor-bat/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "run-1", "status": "RUNNING", "defaultDatasetId": "ds-1",
		}})
	})
	mux.HandleFunc("GET /v2/actor-runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if atomic.AddInt32(&polls, 1) >= pollsUntilDone {
			status = "SUCCEEDED"
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "run-1", "status": status, "defaultDatasetId": "ds-1",
		}})
	})
	mux.HandleFunc("GET /v2/datasets/ds-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(items)
	})
	return httptest.NewServer(mux)
}

func newDelegated(t *testing.T, baseURL string) *DelegatedAdapter {
	t.Helper()
	a, err := NewDelegatedAdapter(DelegatedOptions{
		BaseURL:      baseURL,
		Token:        "test-token",
		ActorIDs:     map[model.Source]string{model.SourceBaT: "actor-bat"},
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return a
}

func TestDelegatedFetchSubmitPollRead(t *testing.T) {
	items := []map[string]any{
		{"id": float64(123), "title": "2004 Porsche 911 GT3"},
		{"id": float64(124), "title": "1987 Porsche 944 Turbo"},
	}
	srv := newActorServer(t, 2, items)
	defer srv.Close()

	a := newDelegated(t, srv.URL)
	records, err := a.Fetch(context.Background(), model.SourceBaT, Params{Mode: ModeIncremental, Limit: 10})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, model.SourceBaT, records[0].Source)
	assert.Equal(t, "2004 Porsche 911 GT3", records[0].Fields["title"])
}

func TestDelegatedFetchCapsAtLimit(t *testing.T) {
	items := []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}}
	srv := newActorServer(t, 1, items)
	defer srv.Close()

	a := newDelegated(t, srv.URL)
	records, err := a.Fetch(context.Background(), model.SourceBaT, Params{Mode: ModeSample, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDelegatedFetchEmptyDatasetIsNotAnError(t *testing.T) {
	srv := newActorServer(t, 1, []map[string]any{})
	defer srv.Close()

	a := newDelegated(t, srv.URL)
	records, err := a.Fetch(context.Background(), model.SourceBaT, Params{Mode: ModeSample})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDelegatedFetchFailedRunSurfacesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/acts/actor-bat/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "run-1", "status": "FAILED", "defaultDatasetId": "ds-1",
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newDelegated(t, srv.URL)
	_, err := a.Fetch(context.Background(), model.SourceBaT, Params{Mode: ModeSample})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
}

func TestDelegatedFetchRetriesSubmission(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/acts/actor-bat/runs", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "run-1", "status": "SUCCEEDED", "defaultDatasetId": "ds-1",
		}})
	})
	mux.HandleFunc("GET /v2/datasets/ds-1/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": "1"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newDelegated(t, srv.URL)
	a.retry = Retry{MaxAttempts: 3, BaseDelay: time.Millisecond}

	records, err := a.Fetch(context.Background(), model.SourceBaT, Params{Mode: ModeSample})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDelegatedFetchUnknownSource(t *testing.T) {
	a := newDelegated(t, "http://scraper.invalid")
	_, err := a.Fetch(context.Background(), model.SourcePCarMarket, Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no actor configured")
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), "always-fails", func() error {
		calls++
		return fmt.Errorf("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetrySucceedsMidway(t *testing.T) {
	calls := 0
	err := Retry{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDomainLimiterPacesPerHost(t *testing.T) {
	lim := NewDomainLimiter(20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, lim.Wait(context.Background(), "https://slow.test/page"))
	}
	elapsed := time.Since(start)
	// 3 requests at 20 rps: ~100ms of pacing after the initial burst token.
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)

	// A different host has its own bucket and is not delayed.
	start = time.Now()
	require.NoError(t, lim.Wait(context.Background(), "https://other.test/page"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
