package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchYAML = `
name: smoke
description: two short runs
runs:
  - scenario: chain
    preset: soft
    overrides:
      frames: 30
  - scenario: spring
    seed: 5
    repeat: 2
    overrides:
      frames: 20
      iterations: 3
`

func writeBatch(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadBatch(t *testing.T) {
	b, err := LoadBatch(writeBatch(t, batchYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", b.Name)
	require.Len(t, b.Runs, 2)
	assert.Equal(t, 20.0, b.Runs[1].Overrides["frames"])

	_, err = LoadBatch(writeBatch(t, "name: empty\n"))
	assert.Error(t, err)
}

func TestRunConfig(t *testing.T) {
	base := config.DefaultConfig()
	r := Run{Scenario: "sheet", Seed: 10, Overrides: map[string]float64{"iterations": 2}}
	cfg, err := r.Config(base, 3)
	require.NoError(t, err)
	assert.Equal(t, "sheet", cfg.Run.Scenario)
	assert.Equal(t, int64(13), cfg.Run.Seed)
	assert.Equal(t, 2, cfg.Solver.Iterations)
	assert.Equal(t, config.DefaultIterations, base.Solver.Iterations, "base must not change")

	_, err = Run{Overrides: map[string]float64{"bogus": 1}}.Config(base, 0)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunBatch(t *testing.T) {
	b, err := LoadBatch(writeBatch(t, batchYAML))
	require.NoError(t, err)
	store := storage.New(t.TempDir())

	out, err := RunBatch(context.Background(), b, config.DefaultConfig(), store)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "soft", out[0].Preset)
	assert.Equal(t, int64(5), out[1].Seed)
	assert.Equal(t, int64(6), out[2].Seed)
	for _, o := range out {
		assert.Zero(t, o.Errors)
		assert.Contains(t, o.Metrics, "energy")
	}

	runs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunBatchUnknownScenario(t *testing.T) {
	b := &Batch{Name: "bad", Runs: []Run{{Scenario: "velvet"}}}
	_, err := RunBatch(context.Background(), b, config.DefaultConfig(), storage.New(t.TempDir()))
	assert.Error(t, err)
}
