package model

import "time"

// RunTotals accumulates per-run record counts across all sources.
type RunTotals struct {
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Deduped    int `json:"deduped"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Rejected   int `json:"rejected"`
	Errors     int `json:"errors"`
}

// RunReport is the immutable summary artifact written once per run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"`
	Sources    []Source  `json:"sources"`
	DryRun     bool      `json:"dry_run"`

	Totals           RunTotals            `json:"totals"`
	RejectionReasons map[RejectReason]int `json:"rejection_reasons"`
	Warnings         []string             `json:"warnings,omitempty"`
	Errors           []string             `json:"errors,omitempty"`
}

// NewRunReport returns a report with counters initialized for accumulation.
func NewRunReport(runID, mode string, sources []Source, dryRun bool) RunReport {
	return RunReport{
		RunID:            runID,
		StartedAt:        time.Now().UTC(),
		Mode:             mode,
		Sources:          sources,
		DryRun:           dryRun,
		RejectionReasons: make(map[RejectReason]int),
	}
}

// CountReject increments the totals and the per-reason histogram.
func (r *RunReport) CountReject(reason RejectReason) {
	r.Totals.Rejected++
	r.RejectionReasons[reason]++
}
