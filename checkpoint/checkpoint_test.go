package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

func TestLoadMissingFileReturnsFreshEnvelope(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope", "checkpoint.json"))

	env := s.Load()
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Empty(t, env.Sources)
}

func TestUpdateThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	s := NewStore(path)

	seenAt := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	_, err := s.Update(model.SourceBaT, "20260801103000", "123", seenAt)
	require.NoError(t, err)

	env := s.Load()
	cp, ok := env.Sources[model.SourceBaT]
	require.True(t, ok)
	assert.Equal(t, "123", cp.LastCursor)
	assert.Equal(t, "20260801103000", cp.RunID)
	assert.True(t, cp.LastSeenAt.Equal(seenAt))
	assert.False(t, env.UpdatedAt.IsZero())
}

func TestUpdatePreservesOtherSources(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	_, err := s.Update(model.SourceBaT, "run1", "a", time.Now())
	require.NoError(t, err)
	_, err = s.Update(model.SourceCarsAndBids, "run1", "b", time.Now())
	require.NoError(t, err)

	env := s.Load()
	assert.Equal(t, "a", env.Sources[model.SourceBaT].LastCursor)
	assert.Equal(t, "b", env.Sources[model.SourceCarsAndBids].LastCursor)
}

func TestVersionMismatchYieldsFreshEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"sources":{"bat":{"last_cursor":"x"}}}`), 0o644))

	env := NewStore(path).Load()
	assert.Empty(t, env.Sources)
}

func TestCorruptFileYieldsFreshEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	env := NewStore(path).Load()
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Empty(t, env.Sources)
}
