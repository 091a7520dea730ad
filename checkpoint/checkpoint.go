// Package checkpoint persists per-source cursor state between runs as a
// versioned JSON envelope on disk. The cursor is advisory telemetry: it is
// written after every successful listing write and surfaced in run reports,
// but adapters do not bound their fetches by it.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// EnvelopeVersion guards the on-disk schema. A mismatched version is treated
// as no checkpoint at all, never as an error.
const EnvelopeVersion = 1

// SourceCheckpoint is the durable state for one source.
type SourceCheckpoint struct {
	LastCursor string    `json:"last_cursor"`
	LastSeenAt time.Time `json:"last_seen_at"`
	RunID      string    `json:"run_id"`
}

// Envelope wraps all per-source checkpoints with a schema version and a
// global update timestamp.
type Envelope struct {
	Version   int                               `json:"version"`
	UpdatedAt time.Time                         `json:"updated_at"`
	Sources   map[model.Source]SourceCheckpoint `json:"sources"`
}

func newEnvelope() Envelope {
	return Envelope{Version: EnvelopeVersion, Sources: make(map[model.Source]SourceCheckpoint)}
}

// Store reads and writes one checkpoint file. Not safe for concurrent
// writers against the same path; the orchestrator calls it sequentially
// within one process.
type Store struct {
	path string
}

// NewStore returns a Store bound to the given checkpoint file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the envelope best-effort: a missing file or a schema-version
// mismatch yields a fresh default envelope rather than an error.
func (s *Store) Load() Envelope {
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Debug().Str("path", s.path).Msg("No checkpoint file, starting fresh")
		return newEnvelope()
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Checkpoint file unreadable, starting fresh")
		return newEnvelope()
	}
	if env.Version != EnvelopeVersion {
		log.Warn().
			Int("found", env.Version).
			Int("expected", EnvelopeVersion).
			Msg("Checkpoint schema version mismatch, starting fresh")
		return newEnvelope()
	}
	if env.Sources == nil {
		env.Sources = make(map[model.Source]SourceCheckpoint)
	}
	return env
}

// Update performs a read-modify-write of the whole envelope, creating parent
// directories as needed, and returns the new envelope.
func (s *Store) Update(source model.Source, runID, cursor string, seenAt time.Time) (Envelope, error) {
	env := s.Load()
	env.Sources[source] = SourceCheckpoint{
		LastCursor: cursor,
		LastSeenAt: seenAt,
		RunID:      runID,
	}
	env.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return env, fmt.Errorf("checkpoint: create directory: %w", err)
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return env, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return env, fmt.Errorf("checkpoint: write %s: %w", s.path, err)
	}
	return env, nil
}
