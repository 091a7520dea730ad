// Package orchestrator drives one ingestion run: fetch, normalize, dedup,
// filter, persist, checkpoint and report, source by source.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/checkpoint"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/config"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/ingest"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/normalize"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/report"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/source"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/store"
)

// Orchestrator executes runs sequentially: one source at a time, one
// record at a time. Marketplaces rate-limit aggressively enough that
// parallelism buys nothing here.
type Orchestrator struct {
	cfg         *config.Config
	adapter     source.Adapter
	normalizer  *normalize.Normalizer
	checkpoints *checkpoint.Store
	writer      store.ListingWriter
	reporter    *report.Reporter
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, adapter source.Adapter, normalizer *normalize.Normalizer,
	checkpoints *checkpoint.Store, writer store.ListingWriter, reporter *report.Reporter) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		adapter:     adapter,
		normalizer:  normalizer,
		checkpoints: checkpoints,
		writer:      writer,
		reporter:    reporter,
	}
}

// GenerateRunID returns a sortable timestamp-based run ID with a short
// random suffix to disambiguate runs started within the same second.
func GenerateRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}

// Run executes one full ingestion run and writes its artifacts. The
// returned path points at the run report. A non-nil error means the run
// aborted under --fail-fast; artifacts are still written first.
func (o *Orchestrator) Run(ctx context.Context) (model.RunReport, string, error) {
	runID := o.cfg.ResumeRunID
	if runID == "" {
		runID = GenerateRunID()
	} else {
		log.Info().Str("run_id", runID).Msg("Resuming previous run ID")
	}

	rep := model.NewRunReport(runID, string(o.cfg.Mode), o.cfg.Sources, o.cfg.DryRun)
	var rejects []model.NormalizeReject

	log.Info().
		Str("run_id", runID).
		Str("mode", string(o.cfg.Mode)).
		Bool("dry_run", o.cfg.DryRun).
		Int("sources", len(o.cfg.Sources)).
		Msg("Ingestion run started")

	var abort error
	for _, src := range o.cfg.Sources {
		if err := o.runSource(ctx, src, runID, &rep, &rejects); err != nil {
			abort = err
			break
		}
	}

	rep.FinishedAt = time.Now().UTC()
	reportPath, _, err := o.reporter.Write(runID, rep, rejects)
	if err != nil {
		if abort != nil {
			return rep, "", fmt.Errorf("%w (also failed to write report: %v)", abort, err)
		}
		return rep, "", err
	}

	log.Info().
		Str("run_id", runID).
		Int("fetched", rep.Totals.Fetched).
		Int("inserted", rep.Totals.Inserted).
		Int("updated", rep.Totals.Updated).
		Int("rejected", rep.Totals.Rejected).
		Int("errors", rep.Totals.Errors).
		Msgf("Ingestion run finished in %s", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	return rep, reportPath, abort
}

// runSource processes one marketplace. A returned error aborts the whole
// run; under the default policy failures are recorded and the run moves on.
func (o *Orchestrator) runSource(ctx context.Context, src model.Source, runID string,
	rep *model.RunReport, rejects *[]model.NormalizeReject) error {

	params := source.Params{
		Mode:  o.cfg.Mode,
		Limit: o.cfg.Limit,
		Since: o.cfg.Since,
		From:  o.cfg.From,
	}
	records, err := o.adapter.Fetch(ctx, src, params)
	if err != nil {
		rep.Totals.Errors++
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s: fetch: %v", src, err))
		if o.cfg.FailFast {
			return fmt.Errorf("fetch %s: %w", src, err)
		}
		log.Error().Err(err).Str("source", string(src)).Msg("Fetch failed, continuing with next source")
		return nil
	}
	rep.Totals.Fetched += len(records)

	canonical := make([]model.CanonicalListing, 0, len(records))
	for _, record := range records {
		listing, reject := o.normalizer.Normalize(src, record)
		if reject != nil {
			rep.CountReject(reject.Reason)
			*rejects = append(*rejects, *reject)
			continue
		}
		canonical = append(canonical, *listing)
	}
	rep.Totals.Normalized += len(canonical)

	deduped := ingest.Dedupe(canonical)
	rep.Totals.Deduped += len(deduped)

	window := ingest.SoldWindow{SoldOnly: o.cfg.SoldOnly, SoldWithinMonths: o.cfg.SoldWithinMonths}
	for i := range deduped {
		listing := &deduped[i]

		if o.cfg.ActiveOnly {
			if v := ingest.ActiveOnly(listing); !v.Keep {
				o.countFilterReject(rep, rejects, listing, v.Reason)
				continue
			}
		}
		if v := window.Evaluate(listing); !v.Keep {
			o.countFilterReject(rep, rejects, listing, v.Reason)
			continue
		}

		result, err := o.writer.Upsert(ctx, listing, o.cfg.DryRun)
		if err != nil {
			rep.Totals.Errors++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s/%s: upsert: %v", src, listing.SourceID, err))
			if o.cfg.FailFast {
				return fmt.Errorf("upsert %s/%s: %w", src, listing.SourceID, err)
			}
			continue
		}
		rep.Totals.Inserted += result.Inserted
		rep.Totals.Updated += result.Updated
		rep.Warnings = append(rep.Warnings, result.Warnings...)

		// The cursor is advisory: losing an update only means refetching
		// already-upserted records next run.
		if !o.cfg.DryRun {
			if _, err := o.checkpoints.Update(src, runID, listing.SourceID, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Str("source", string(src)).Msg("Checkpoint update failed")
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: checkpoint: %v", src, err))
			}
		}
	}

	log.Info().
		Str("source", string(src)).
		Int("fetched", len(records)).
		Int("canonical", len(canonical)).
		Int("deduped", len(deduped)).
		Msg("Source processed")
	return nil
}

func (o *Orchestrator) countFilterReject(rep *model.RunReport, rejects *[]model.NormalizeReject,
	listing *model.CanonicalListing, reason model.RejectReason) {
	rep.CountReject(reason)
	*rejects = append(*rejects, model.NormalizeReject{
		Source: listing.Source,
		Reason: reason,
		Raw:    listing.Raw,
		Details: map[string]any{
			"source_id": listing.SourceID,
			"status":    string(listing.Status),
		},
	})
}
