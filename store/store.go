// Package store persists canonical listings. Writers are idempotent:
// re-upserting an identical listing updates the existing row instead of
// creating a duplicate, and lifecycle status only moves forward.
package store

import (
	"context"
	"time"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// UpsertResult reports what a single Upsert did. Warnings carry
// best-effort child-record failures that did not abort the write.
type UpsertResult struct {
	Inserted int
	Updated  int
	Warnings []string
}

// ListingWriter is the persistence boundary of the pipeline.
type ListingWriter interface {
	// Upsert writes one canonical listing. With dryRun set, no state is
	// mutated; implementations either short-circuit or report the
	// would-be outcome.
	Upsert(ctx context.Context, listing *model.CanonicalListing, dryRun bool) (UpsertResult, error)

	Close()
}

// effectiveStatus enforces the forward-only transition: a row at a
// terminal status never moves back to active or draft.
func effectiveStatus(existing, incoming model.ListingStatus) model.ListingStatus {
	if model.StatusRank(incoming) >= model.StatusRank(existing) {
		return incoming
	}
	return existing
}

// observedPrice picks the price recorded in the hourly history, most
// final first.
func observedPrice(l *model.CanonicalListing) (float64, bool) {
	for _, p := range []*float64{l.FinalPrice, l.HammerPrice, l.CurrentBid} {
		if p != nil {
			return *p, true
		}
	}
	return 0, false
}

// historyBucket truncates the observation time to the hour so repeated
// runs within the same hour overwrite one history point instead of
// appending duplicates.
func historyBucket(l *model.CanonicalListing) time.Time {
	at := l.ScrapedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return at.UTC().Truncate(time.Hour)
}
