package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/checkpoint"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/config"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/normalize"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/report"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/source"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/store"
)

type fixture struct {
	cfg     *config.Config
	adapter *source.MockAdapter
	writer  *store.MemoryWriter
	ckpt    *checkpoint.Store
	orch    *Orchestrator
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = filepath.Join(dir, "checkpoints.json")
	}
	if cfg.ReportRoot == "" {
		cfg.ReportRoot = filepath.Join(dir, "reports")
	}
	f := &fixture{
		cfg:     cfg,
		adapter: &source.MockAdapter{},
		writer:  store.NewMemoryWriter(),
		ckpt:    checkpoint.NewStore(cfg.CheckpointPath),
	}
	f.orch = New(cfg, f.adapter, normalize.New(model.TrackedMake, nil), f.ckpt, f.writer, report.NewReporter(cfg.ReportRoot))
	return f
}

func batRecord() model.RawRecord {
	return model.RawRecord{
		Source: model.SourceBaT,
		Fields: map[string]any{
			"id":            "123",
			"title":         "2004 Porsche 911 GT3",
			"url":           "https://bringatrailer.com/listing/2004-porsche-911-gt3/",
			"brand":         "Porsche",
			"auctionStatus": "sold",
			"currentBid":    float64(156000),
			"sale_date":     time.Now().UTC().AddDate(0, -2, 0).Format(time.RFC3339),
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources: []model.Source{model.SourceBaT},
		Mode:    source.ModeIncremental,
	})
	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceBaT: {batRecord(), batRecord()}, // duplicate collapses in dedup
	}

	rep, reportPath, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Totals.Fetched)
	assert.Equal(t, 2, rep.Totals.Normalized)
	assert.Equal(t, 1, rep.Totals.Deduped)
	assert.Equal(t, 1, rep.Totals.Inserted)
	assert.Equal(t, 0, rep.Totals.Updated)
	assert.Equal(t, 0, rep.Totals.Rejected)

	stored, ok := f.writer.Get(model.SourceBaT, "123")
	require.True(t, ok)
	assert.Equal(t, "911", stored.Model)
	assert.Equal(t, 2004, stored.Year)
	assert.Equal(t, model.StatusSold, stored.Status)

	_, err = os.Stat(reportPath)
	assert.NoError(t, err)

	env := f.ckpt.Load()
	require.Contains(t, env.Sources, model.SourceBaT)
	assert.Equal(t, "123", env.Sources[model.SourceBaT].LastCursor)
	assert.Equal(t, rep.RunID, env.Sources[model.SourceBaT].RunID)

	// Second run over the same data updates instead of inserting.
	rep2, _, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep2.Totals.Inserted)
	assert.Equal(t, 1, rep2.Totals.Updated)
	assert.Equal(t, 1, f.writer.Len())
}

func TestRunCountsNormalizationRejects(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources: []model.Source{model.SourceBaT},
		Mode:    source.ModeSample,
	})
	ferrari := batRecord()
	ferrari.Fields["brand"] = "Ferrari"
	ferrari.Fields["title"] = "1985 Ferrari 308 GTS"
	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceBaT: {batRecord(), ferrari},
	}

	rep, _, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Totals.Inserted)
	assert.Equal(t, 1, rep.Totals.Rejected)
	assert.Equal(t, 1, rep.RejectionReasons[model.RejectNonDomainMatch])

	rejectsPath := filepath.Join(f.cfg.ReportRoot, "rejects", rep.RunID+".jsonl")
	data, err := os.ReadFile(rejectsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "non_domain_match")
}

func TestRunSoldWindowFilter(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources:          []model.Source{model.SourceBaT},
		Mode:             source.ModeIncremental,
		SoldOnly:         true,
		SoldWithinMonths: 12,
	})
	stale := batRecord()
	stale.Fields["id"] = "999"
	stale.Fields["url"] = "https://bringatrailer.com/listing/1999-porsche-996/"
	stale.Fields["title"] = "1999 Porsche 911 Carrera"
	stale.Fields["sale_date"] = "2020-06-15"

	live := batRecord()
	live.Fields["id"] = "1000"
	live.Fields["url"] = "https://bringatrailer.com/listing/2015-porsche-cayman/"
	live.Fields["title"] = "2015 Porsche Cayman GT4"
	live.Fields["auctionStatus"] = "live"

	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceBaT: {batRecord(), stale, live},
	}

	rep, _, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Totals.Inserted)
	assert.Equal(t, 1, rep.RejectionReasons[model.RejectOutsideSoldWindow])
	assert.Equal(t, 1, rep.RejectionReasons[model.RejectNotSold])
	assert.Equal(t, 1, f.writer.Len())
}

func TestRunFetchErrorContinuesByDefault(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources: []model.Source{model.SourceBaT, model.SourceCarsAndBids},
		Mode:    source.ModeSample,
	})
	// Only carsandbids is configured; bat errors out.
	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceCarsAndBids: {{
			Source: model.SourceCarsAndBids,
			Fields: map[string]any{
				"id":     "cb-1",
				"title":  "1989 Porsche 944 Turbo",
				"url":    "https://carsandbids.com/auctions/porsche-944/",
				"status": "sold",
			},
		}},
	}
	f.adapter.ErrFor = map[model.Source]error{model.SourceBaT: fmt.Errorf("actor quota exhausted")}

	rep, _, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Totals.Errors)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "bat: fetch")
	assert.Equal(t, 1, rep.Totals.Inserted)
}

func TestRunFetchErrorAbortsUnderFailFast(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources:  []model.Source{model.SourceBaT, model.SourceCarsAndBids},
		Mode:     source.ModeSample,
		FailFast: true,
	})
	f.adapter.ErrFor = map[model.Source]error{model.SourceBaT: fmt.Errorf("actor quota exhausted")}

	rep, reportPath, err := f.orch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch bat")

	// Artifacts are written even for an aborted run.
	_, statErr := os.Stat(reportPath)
	assert.NoError(t, statErr)
	assert.Equal(t, 1, rep.Totals.Errors)
}

func TestRunDryRunLeavesNoState(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources: []model.Source{model.SourceBaT},
		Mode:    source.ModeSample,
		DryRun:  true,
	})
	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceBaT: {batRecord()},
	}

	rep, reportPath, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	// Dry-run performs no writes and counts none; only the run artifacts
	// come out.
	assert.Equal(t, 1, rep.Totals.Fetched)
	assert.Equal(t, 1, rep.Totals.Deduped)
	assert.Equal(t, 0, rep.Totals.Inserted)
	assert.Equal(t, 0, rep.Totals.Updated)
	assert.Equal(t, 0, f.writer.Len())
	_, statErr := os.Stat(reportPath)
	assert.NoError(t, statErr)
	_, statErr = os.Stat(f.cfg.CheckpointPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunResumeReusesRunID(t *testing.T) {
	f := newFixture(t, &config.Config{
		Sources:     []model.Source{model.SourceBaT},
		Mode:        source.ModeSample,
		ResumeRunID: "20260801120000-resume1",
	})
	f.adapter.PerSource = map[model.Source][]model.RawRecord{
		model.SourceBaT: {batRecord()},
	}

	rep, reportPath, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20260801120000-resume1", rep.RunID)
	assert.Contains(t, reportPath, "20260801120000-resume1.json")
}

func TestGenerateRunIDShape(t *testing.T) {
	id := GenerateRunID()
	require.Len(t, id, len("20060102150405")+1+8)
	_, err := time.Parse("20060102150405", id[:14])
	assert.NoError(t, err)
}
