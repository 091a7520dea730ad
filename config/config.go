// Package config builds the immutable run configuration from environment
// variables and CLI flags. Components never read the environment directly;
// everything they need arrives through Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/source"
)

// Fetch strategies.
const (
	StrategyDelegated = "delegated"
	StrategyDirect    = "direct"
	StrategyMock      = "mock"
)

// Flags carries the raw CLI flag values into Load.
type Flags struct {
	Sources          []string
	Mode             string
	Limit            int
	DryRun           bool
	FailFast         bool
	SoldOnly         bool
	SoldWithinMonths int
	ActiveOnly       bool
	Since            string
	From             string
	Resume           string
}

// Config is the resolved, immutable run configuration.
type Config struct {
	Sources          []model.Source
	Mode             source.Mode
	Limit            int
	DryRun           bool
	FailFast         bool
	SoldOnly         bool
	SoldWithinMonths int
	ActiveOnly       bool
	Since            time.Time
	From             time.Time
	ResumeRunID      string

	FetchStrategy     string
	ScrapeBaseURL     string
	ScrapeToken       string
	ActorIDs          map[model.Source]string
	DatabaseURL       string
	CheckpointPath    string
	ReportRoot        string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Load merges .env, process environment and CLI flags into a Config.
func Load(flags Flags) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("FETCH_STRATEGY", "")
	v.SetDefault("SCRAPE_BASE_URL", "https://api.apify.com")
	v.SetDefault("CHECKPOINT_PATH", "state/checkpoints.json")
	v.SetDefault("REPORT_ROOT", "reports")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("SCRAPE_RPS", 0.5)
	v.SetDefault("USER_AGENT", "Mozilla/5.0 monza-ingest/1.0")

	cfg := &Config{
		Limit:            flags.Limit,
		DryRun:           flags.DryRun,
		FailFast:         flags.FailFast,
		SoldOnly:         flags.SoldOnly,
		SoldWithinMonths: flags.SoldWithinMonths,
		ActiveOnly:       flags.ActiveOnly,
		ResumeRunID:      flags.Resume,

		FetchStrategy:     v.GetString("FETCH_STRATEGY"),
		ScrapeBaseURL:     v.GetString("SCRAPE_BASE_URL"),
		ScrapeToken:       v.GetString("SCRAPE_TOKEN"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		CheckpointPath:    v.GetString("CHECKPOINT_PATH"),
		ReportRoot:        v.GetString("REPORT_ROOT"),
		HTTPTimeout:       time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		RequestsPerSecond: v.GetFloat64("SCRAPE_RPS"),
		UserAgent:         v.GetString("USER_AGENT"),
	}

	mode, ok := source.ParseMode(flags.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q (want sample, incremental or backfill)", flags.Mode)
	}
	cfg.Mode = mode

	var err error
	cfg.Sources, err = parseSources(flags.Sources)
	if err != nil {
		return nil, err
	}

	if cfg.Since, err = parseDate("since", flags.Since); err != nil {
		return nil, err
	}
	if cfg.From, err = parseDate("from", flags.From); err != nil {
		return nil, err
	}

	cfg.ActorIDs = make(map[model.Source]string, len(model.AllSources))
	for _, src := range model.AllSources {
		key := "ACTOR_ID_" + strings.ToUpper(string(src))
		if id := v.GetString(key); id != "" {
			cfg.ActorIDs[src] = id
		}
	}

	if cfg.FetchStrategy == "" {
		if cfg.ScrapeToken != "" {
			cfg.FetchStrategy = StrategyDelegated
		} else {
			cfg.FetchStrategy = StrategyDirect
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup invariants.
func (c *Config) Validate() error {
	switch c.FetchStrategy {
	case StrategyDelegated:
		if c.ScrapeToken == "" {
			return fmt.Errorf("SCRAPE_TOKEN is required for delegated fetch")
		}
	case StrategyDirect, StrategyMock:
	default:
		return fmt.Errorf("unknown fetch strategy %q", c.FetchStrategy)
	}

	if !c.DryRun && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required unless --dry-run is set")
	}
	if c.SoldWithinMonths < 0 {
		return fmt.Errorf("--sold-within-months must not be negative")
	}
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	if c.SoldOnly && c.ActiveOnly {
		return fmt.Errorf("--sold-only and --active-only are mutually exclusive")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	return nil
}

func parseSources(names []string) ([]model.Source, error) {
	if len(names) == 0 {
		return append([]model.Source(nil), model.AllSources...), nil
	}
	seen := make(map[model.Source]struct{}, len(names))
	sources := make([]model.Source, 0, len(names))
	for _, name := range names {
		src, err := model.ParseSource(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return sources, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--%s: cannot parse %q (want YYYY-MM-DD or RFC3339)", name, value)
}
