// Package automation runs batches of scenarios described in a yaml file and
// stores every result.
package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/scenario"
	"github.com/san-kum/clothsim/internal/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Batch is a scripted sequence of runs.
type Batch struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Runs        []Run  `yaml:"runs"`
}

// Run is one entry of a batch. Zero fields keep the base configuration.
type Run struct {
	Scenario  string             `yaml:"scenario"`
	Preset    string             `yaml:"preset"`
	Seed      int64              `yaml:"seed"`
	Repeat    int                `yaml:"repeat"`
	Overrides map[string]float64 `yaml:"overrides"`
}

// Outcome is the stored result of one run.
type Outcome struct {
	Scenario string
	Preset   string
	Seed     int64
	RunID    string
	Errors   int
	Metrics  map[string]float64
}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if len(b.Runs) == 0 {
		return nil, fmt.Errorf("batch %q has no runs", path)
	}
	return &b, nil
}

// Config resolves the run against base. Repeat k adds k to the seed.
func (r Run) Config(base *config.Config, repeat int) (*config.Config, error) {
	cfg := *base
	if r.Scenario != "" {
		cfg.Run.Scenario = r.Scenario
	}
	if r.Preset != "" {
		cfg.Preset = r.Preset
	}
	if r.Seed != 0 {
		cfg.Run.Seed = r.Seed
	}
	cfg.Run.Seed += int64(repeat)
	if err := cfg.Apply(r.Overrides); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RunBatch executes every run in order and saves each result to store. It
// stops at the first run that cannot be set up.
func RunBatch(ctx context.Context, b *Batch, base *config.Config, store *storage.Store) ([]Outcome, error) {
	if err := store.Init(); err != nil {
		return nil, err
	}
	registry := scenario.NewRegistry()
	var out []Outcome

	for i, r := range b.Runs {
		for k := 0; k < max(1, r.Repeat); k++ {
			cfg, err := r.Config(base, k)
			if err != nil {
				return out, fmt.Errorf("run %d: %w", i+1, err)
			}
			o, err := runOne(ctx, cfg, registry, store)
			if err != nil {
				return out, fmt.Errorf("run %d: %w", i+1, err)
			}
			logger.Info("batch run stored",
				zap.String("batch", b.Name),
				zap.Int("run", i+1),
				zap.String("id", o.RunID),
				zap.Int("errors", o.Errors))
			out = append(out, o)
		}
	}
	return out, nil
}

func runOne(ctx context.Context, cfg *config.Config, registry *scenario.Registry, store *storage.Store) (Outcome, error) {
	exp := scenario.New(cfg, registry)
	if err := exp.Setup(); err != nil {
		return Outcome{}, err
	}
	defer exp.Close()

	result, err := exp.Run(ctx)
	if err != nil {
		return Outcome{}, err
	}
	id, err := store.Save(cfg, result)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Scenario: cfg.Run.Scenario,
		Preset:   cfg.Preset,
		Seed:     cfg.Run.Seed,
		RunID:    id,
		Errors:   len(result.Errors),
		Metrics:  result.Metrics,
	}, nil
}
