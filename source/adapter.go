// Package source fetches raw listing records from external marketplaces.
// Two interchangeable strategies sit behind one Adapter interface: delegated
// fetch through a managed scraping actor, and direct HTML fetch with
// per-domain rate limiting.
package source

import (
	"context"
	"time"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// Mode selects pagination depth and date range for a fetch. It never changes
// the record shape.
type Mode string

const (
	ModeSample      Mode = "sample"
	ModeIncremental Mode = "incremental"
	ModeBackfill    Mode = "backfill"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSample, ModeIncremental, ModeBackfill:
		return Mode(s), true
	}
	return "", false
}

// Params carries per-run fetch parameters.
type Params struct {
	Mode  Mode
	Limit int
	Since time.Time
	From  time.Time
}

// Adapter returns raw, untyped records for one source. Empty results are not
// an error; an error is returned only on unrecoverable transport failure.
type Adapter interface {
	Fetch(ctx context.Context, source model.Source, params Params) ([]model.RawRecord, error)
}
