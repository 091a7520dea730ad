package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// DelegatedAdapter fetches raw records by submitting a job to a managed
// scraping actor, waiting for completion, and reading its output dataset.
type DelegatedAdapter struct {
	baseURL      string
	token        string
	actorIDs     map[model.Source]string
	client       *http.Client
	retry        Retry
	pollInterval time.Duration
}

// DelegatedOptions configures a DelegatedAdapter.
type DelegatedOptions struct {
	BaseURL      string
	Token        string
	ActorIDs     map[model.Source]string
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewDelegatedAdapter builds the delegated-fetch strategy. Submission and
// dataset reads are retried 3 times with exponential backoff and jitter.
func NewDelegatedAdapter(opts DelegatedOptions) (*DelegatedAdapter, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("delegated adapter: base URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("delegated adapter: scrape token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &DelegatedAdapter{
		baseURL:      opts.BaseURL,
		token:        opts.Token,
		actorIDs:     opts.ActorIDs,
		client:       &http.Client{Timeout: timeout},
		retry:        Retry{MaxAttempts: 3, BaseDelay: 2 * time.Second},
		pollInterval: poll,
	}, nil
}

type actorRun struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DatasetID string `json:"defaultDatasetId"`
}

// Fetch submits a run for the source's actor, waits for it to finish and
// reads the dataset items, capped at params.Limit.
func (a *DelegatedAdapter) Fetch(ctx context.Context, source model.Source, params Params) ([]model.RawRecord, error) {
	actorID, ok := a.actorIDs[source]
	if !ok || actorID == "" {
		return nil, fmt.Errorf("delegated adapter: no actor configured for source %s", source)
	}

	var run actorRun
	err := a.retry.Do(ctx, fmt.Sprintf("submit %s job", source), func() error {
		var submitErr error
		run, submitErr = a.submit(ctx, actorID, params)
		return submitErr
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", string(source)).
		Str("run_id", run.ID).
		Msgf("Submitted scraping job for %s", source)

	run, err = a.waitForCompletion(ctx, run)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	err = a.retry.Do(ctx, fmt.Sprintf("read %s dataset", source), func() error {
		var readErr error
		items, readErr = a.readDataset(ctx, run.DatasetID, params.Limit)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, model.RawRecord{Source: source, Fields: item})
	}
	log.Info().Str("source", string(source)).Int("records", len(records)).Msg("Dataset read complete")
	return records, nil
}

// submit starts one actor run. Mode maps to actor input: sample keeps the
// crawl shallow, incremental bounds by date, backfill walks the full depth.
func (a *DelegatedAdapter) submit(ctx context.Context, actorID string, params Params) (actorRun, error) {
	input := map[string]any{
		"maxItems": params.Limit,
	}
	switch params.Mode {
	case ModeSample:
		input["maxPages"] = 1
	case ModeIncremental:
		input["maxPages"] = 10
		if !params.Since.IsZero() {
			input["since"] = params.Since.Format(time.RFC3339)
		}
	case ModeBackfill:
		input["maxPages"] = 0 // unbounded
		if !params.From.IsZero() {
			input["from"] = params.From.Format(time.RFC3339)
		}
	}

	body, err := json.Marshal(input)
	if err != nil {
		return actorRun{}, fmt.Errorf("marshal actor input: %w", err)
	}

	url := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", a.baseURL, actorID, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return actorRun{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		Data actorRun `json:"data"`
	}
	if err := a.doJSON(req, &payload); err != nil {
		return actorRun{}, fmt.Errorf("submit actor run: %w", err)
	}
	if payload.Data.ID == "" {
		return actorRun{}, fmt.Errorf("submit actor run: empty run id in response")
	}
	return payload.Data, nil
}

// waitForCompletion polls the run until it reaches a terminal status.
func (a *DelegatedAdapter) waitForCompletion(ctx context.Context, run actorRun) (actorRun, error) {
	for {
		switch run.Status {
		case "SUCCEEDED":
			return run, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return run, fmt.Errorf("actor run %s finished with status %s", run.ID, run.Status)
		}

		select {
		case <-ctx.Done():
			return run, fmt.Errorf("waiting for actor run %s: %w", run.ID, ctx.Err())
		case <-time.After(a.pollInterval):
		}

		url := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", a.baseURL, run.ID, a.token)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return run, err
		}
		var payload struct {
			Data actorRun `json:"data"`
		}
		if err := a.doJSON(req, &payload); err != nil {
			return run, fmt.Errorf("poll actor run %s: %w", run.ID, err)
		}
		run = payload.Data
	}
}

// readDataset pulls the run's output as an array of JSON objects.
func (a *DelegatedAdapter) readDataset(ctx context.Context, datasetID string, limit int) ([]map[string]any, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("actor run has no dataset")
	}
	url := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s&format=json", a.baseURL, datasetID, a.token)
	if limit > 0 {
		url += fmt.Sprintf("&limit=%d", limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := a.doJSON(req, &items); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", datasetID, err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (a *DelegatedAdapter) doJSON(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
