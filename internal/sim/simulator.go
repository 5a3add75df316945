package sim

import (
	"context"
	"fmt"
)

type Simulator struct {
	world     *World
	metrics   []Metric
	observers []Observer
}

func New(w *World) *Simulator {
	return &Simulator{
		world:     w,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) World() *World          { return s.world }
func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Times:   make([]float64, 0, cfg.Frames),
		Energy:  make([]float64, 0, cfg.Frames),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	w := s.world
	var scratch Snapshot
	for i := 0; i < cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := w.Step(cfg.Dt); err != nil {
			result.Errors = append(result.Errors, SimError{Frame: w.Frame(), Time: w.Time(), Message: err.Error()})
		}

		if cfg.ValidateState {
			scratch = w.Snapshot(scratch)
			if !scratch.IsValid() {
				result.Errors = append(result.Errors, SimError{Frame: w.Frame(), Time: w.Time(), Message: "invalid state (NaN/Inf)"})
				break
			}
		}

		for _, m := range s.metrics {
			m.Observe(w.Particles, w.Teams, w.Time())
		}
		for _, obs := range s.observers {
			obs.OnStep(w, w.Frame(), w.Time())
		}

		result.StepsTaken++
		result.Times = append(result.Times, w.Time())
		result.Energy = append(result.Energy, w.KineticEnergy())
		if cfg.RecordEvery > 0 && i%cfg.RecordEvery == 0 {
			result.Snapshots = append(result.Snapshots, w.Snapshot(nil))
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg RunConfig) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", cfg.Frames)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("record interval must not be negative")
	}
	return nil
}

// RunWithCallback steps until the callback returns false, the context ends
// or cfg.Frames have run.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg RunConfig, callback func(w *World, frame int) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}

	w := s.world
	for i := 0; i < cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.Step(cfg.Dt); err != nil && cfg.ValidateState {
			return err
		}
		if !callback(w, w.Frame()) {
			return nil
		}
	}

	return nil
}
