package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/checkpoint"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/config"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/normalize"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/orchestrator"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/report"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/source"
	"github.com/monza-lab/monza-Cars-marketplace-sub001/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Stack().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Porsche auction-listing ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one ingestion run across the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags)
			if err != nil {
				return err
			}
			return runIngestion(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringSliceVar(&flags.Sources, "source", nil, "sources to ingest (default: all)")
	cmd.Flags().StringVar(&flags.Mode, "mode", "incremental", "fetch mode: sample, incremental or backfill")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "cap records per source (0 = no cap)")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "run the pipeline without writing to the database")
	cmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "abort the run on the first source or write error")
	cmd.Flags().BoolVar(&flags.SoldOnly, "sold-only", false, "keep sold listings only")
	cmd.Flags().IntVar(&flags.SoldWithinMonths, "sold-within-months", 0, "keep listings sold within the last N months (0 = no window)")
	cmd.Flags().BoolVar(&flags.ActiveOnly, "active-only", false, "keep active listings only")
	cmd.Flags().StringVar(&flags.Since, "since", "", "incremental lower bound (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&flags.From, "from", "", "backfill starting point (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&flags.Resume, "resume", "", "reuse a previous run ID")

	return cmd
}

func runIngestion(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return err
	}

	writer, err := buildWriter(ctx, cfg)
	if err != nil {
		return err
	}
	defer writer.Close()

	orch := orchestrator.New(
		cfg,
		adapter,
		normalize.New(model.TrackedMake, nil),
		checkpoint.NewStore(cfg.CheckpointPath),
		writer,
		report.NewReporter(cfg.ReportRoot),
	)

	_, reportPath, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(reportPath)
	return nil
}

func buildAdapter(cfg *config.Config) (source.Adapter, error) {
	switch cfg.FetchStrategy {
	case config.StrategyDelegated:
		return source.NewDelegatedAdapter(source.DelegatedOptions{
			BaseURL:  cfg.ScrapeBaseURL,
			Token:    cfg.ScrapeToken,
			ActorIDs: cfg.ActorIDs,
			Timeout:  cfg.HTTPTimeout,
		})
	case config.StrategyDirect:
		return source.NewDirectAdapter(source.DirectOptions{
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			UserAgent:         cfg.UserAgent,
		}), nil
	case config.StrategyMock:
		return &source.MockAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown fetch strategy %q", cfg.FetchStrategy)
	}
}

// buildWriter picks the sink: dry runs stay in memory so a missing
// DATABASE_URL never blocks verification.
func buildWriter(ctx context.Context, cfg *config.Config) (store.ListingWriter, error) {
	if cfg.DryRun {
		log.Info().Msg("Dry run: using in-memory sink")
		return store.NewMemoryWriter(), nil
	}
	return store.NewPostgresWriter(ctx, cfg.DatabaseURL)
}
