package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/source"
)

func TestLoadDefaultsToAllSources(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/monza")
	t.Setenv("SCRAPE_TOKEN", "")
	t.Setenv("FETCH_STRATEGY", "")

	cfg, err := Load(Flags{Mode: "incremental"})
	require.NoError(t, err)

	assert.Equal(t, model.AllSources, cfg.Sources)
	assert.Equal(t, source.ModeIncremental, cfg.Mode)
	assert.Equal(t, StrategyDirect, cfg.FetchStrategy)
	assert.Equal(t, "state/checkpoints.json", cfg.CheckpointPath)
	assert.Equal(t, "reports", cfg.ReportRoot)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestLoadTokenImpliesDelegated(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/monza")
	t.Setenv("SCRAPE_TOKEN", "apify_abc")
	t.Setenv("FETCH_STRATEGY", "")
	t.Setenv("ACTOR_ID_BAT", "actor-bat")

	cfg, err := Load(Flags{Mode: "sample"})
	require.NoError(t, err)

	assert.Equal(t, StrategyDelegated, cfg.FetchStrategy)
	assert.Equal(t, "actor-bat", cfg.ActorIDs[model.SourceBaT])
}

func TestLoadRejectsDelegatedWithoutToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/monza")
	t.Setenv("SCRAPE_TOKEN", "")
	t.Setenv("FETCH_STRATEGY", "delegated")

	_, err := Load(Flags{Mode: "sample"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCRAPE_TOKEN")
}

func TestLoadRequiresDatabaseUnlessDryRun(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCRAPE_TOKEN", "")
	t.Setenv("FETCH_STRATEGY", "mock")

	_, err := Load(Flags{Mode: "sample"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg, err := Load(Flags{Mode: "sample", DryRun: true})
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
}

func TestLoadParsesSourcesAndDates(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/monza")
	t.Setenv("FETCH_STRATEGY", "mock")

	cfg, err := Load(Flags{
		Mode:    "backfill",
		Sources: []string{"bat", "pcarmarket", "bat"},
		From:    "2024-01-01",
		Since:   "2026-08-01T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, []model.Source{model.SourceBaT, model.SourcePCarMarket}, cfg.Sources)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.From)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), cfg.Since)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/monza")
	t.Setenv("FETCH_STRATEGY", "mock")

	_, err := Load(Flags{Mode: "hourly"})
	assert.ErrorContains(t, err, "unknown mode")

	_, err = Load(Flags{Mode: "sample", Sources: []string{"ebay"}})
	assert.ErrorContains(t, err, "unknown source")

	_, err = Load(Flags{Mode: "sample", Since: "yesterday"})
	assert.ErrorContains(t, err, "cannot parse")

	_, err = Load(Flags{Mode: "sample", SoldOnly: true, ActiveOnly: true})
	assert.ErrorContains(t, err, "mutually exclusive")
}
