package scenario

import (
	"context"
	"testing"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/metrics"
)

func TestListScenarios(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	want := []string{"bones", "capsule", "chain", "sheet", "spring"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, names[i])
		}
		if r.Description(names[i]) == "" {
			t.Errorf("%s has no description", names[i])
		}
	}
}

func TestUnknownScenario(t *testing.T) {
	if _, err := NewRegistry().Build("tablecloth", config.DefaultConfig()); err == nil {
		t.Error("expected error for unknown scenario")
	}
}

func TestHangingChainSettles(t *testing.T) {
	cfg := config.DefaultConfig()
	sc, err := NewRegistry().Build("chain", cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sc.World.Close()

	w := sc.World
	tail := metrics.NewEnergyTail(60)
	for f := 0; f < 900; f++ {
		if err := w.Step(cfg.Solver.Dt); err != nil {
			t.Fatalf("step %d: %v", f, err)
		}
		tail.Observe(w.Particles, w.Teams, w.Time())
	}

	c := sc.Cloths[0]
	pos := w.Particles.Pos
	start, end := c.Particles().Start, c.Particles().End()
	if end-start != 10 {
		t.Fatalf("expected 10 particles, got %d", end-start)
	}
	for i := start + 1; i < end; i++ {
		if pos[i].Y() > pos[i-1].Y()+1e-3 {
			t.Errorf("particle %d at %v is above its parent at %v", i-start, pos[i], pos[i-1])
		}
	}
	if tip := pos[end-1].Y(); tip > 0.5 {
		t.Errorf("chain should hang below its root, tip at y=%f", tip)
	}
	if e := tail.Value(); e > 0.5 {
		t.Errorf("kinetic energy should stay bounded once settled, peak %f", e)
	}
}

func TestScenariosRun(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.List() {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Run.Scenario = name
			cfg.Run.Frames = 120

			exp := New(cfg, r)
			if err := exp.Setup(); err != nil {
				t.Fatalf("setup: %v", err)
			}
			defer exp.Close()

			result, err := exp.Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if result.StepsTaken != 120 {
				t.Errorf("expected 120 steps, got %d", result.StepsTaken)
			}
			if len(result.Errors) != 0 {
				t.Errorf("unexpected errors: %v", result.Errors)
			}
			if s := result.Metrics["stability"]; s != 1 {
				t.Errorf("expected stable run, got %f", s)
			}
			if d := result.Metrics["fixed_drift"]; d > 1e-4 {
				t.Errorf("fixed particles drifted by %f", d)
			}
			if p := result.Metrics["max_penetration"]; p > 0.05 {
				t.Errorf("penetration %f too deep", p)
			}
			for _, c := range exp.Scene().Cloths {
				if c.Err() != nil {
					t.Errorf("cloth %s failed: %v", c.Name(), c.Err())
				}
			}
		})
	}
}

func TestSceneDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Run.Seed = 7

	run := func() []float32 {
		sc, err := NewRegistry().Build("capsule", cfg)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		defer sc.World.Close()
		for f := 0; f < 30; f++ {
			if sc.Animate != nil {
				sc.Animate(f, sc.World.Time())
			}
			_ = sc.World.Step(cfg.Solver.Dt)
		}
		var ys []float32
		for _, p := range sc.World.Snapshot(nil) {
			ys = append(ys, p.X(), p.Y(), p.Z())
		}
		return ys
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestExperimentNotSetup(t *testing.T) {
	exp := New(config.DefaultConfig(), nil)
	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("expected error before Setup")
	}
}
