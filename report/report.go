// Package report writes the per-run summary artifact and the reject log.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// Reporter writes run artifacts under Root:
//
//	<root>/<run_id>.json          pretty-printed run report
//	<root>/rejects/<run_id>.jsonl one JSON object per rejected record
type Reporter struct {
	Root string
}

// NewReporter returns a reporter rooted at dir.
func NewReporter(dir string) *Reporter {
	return &Reporter{Root: dir}
}

// Write persists the report and reject log, creating directories as
// needed, and returns both paths. The reject log is written even when
// empty so a run always leaves both artifacts.
func (r *Reporter) Write(runID string, rep model.RunReport, rejects []model.NormalizeReject) (string, string, error) {
	if err := os.MkdirAll(filepath.Join(r.Root, "rejects"), 0o755); err != nil {
		return "", "", fmt.Errorf("create report directory: %w", err)
	}

	reportPath := filepath.Join(r.Root, runID+".json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write run report: %w", err)
	}

	rejectsPath := filepath.Join(r.Root, "rejects", runID+".jsonl")
	f, err := os.Create(rejectsPath)
	if err != nil {
		return "", "", fmt.Errorf("create reject log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range rejects {
		if err := enc.Encode(rejects[i]); err != nil {
			return "", "", fmt.Errorf("write reject log line: %w", err)
		}
	}

	log.Info().
		Str("run_id", runID).
		Int("rejects", len(rejects)).
		Str("report", reportPath).
		Msg("Run artifacts written")
	return reportPath, rejectsPath, nil
}
