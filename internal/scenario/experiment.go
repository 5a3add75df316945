package scenario

import (
	"context"
	"fmt"

	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/sim"
)

// Experiment runs one scenario under a config.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	scene     *Scene
	simulator *sim.Simulator
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry}
}

// animator drives Scene.Animate from the simulator's observer hook.
type animator struct {
	fn func(frame int, t float64)
}

func (a animator) OnStep(w *sim.World, frame int, t float64) { a.fn(frame, t) }

func (e *Experiment) Setup() error {
	sc, err := e.registry.Build(e.cfg.Run.Scenario, e.cfg)
	if err != nil {
		return err
	}
	e.scene = sc
	e.simulator = sim.New(sc.World)
	for _, m := range e.registry.DefaultMetrics(sc) {
		e.simulator.AddMetric(m)
	}
	if sc.Animate != nil {
		e.simulator.AddObserver(animator{fn: sc.Animate})
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, sim.RunConfig{
		Dt:            e.cfg.Solver.Dt,
		Frames:        e.cfg.Run.Frames,
		RecordEvery:   e.cfg.Run.RecordEvery,
		ValidateState: true,
	})
}

// Close releases the scene's world.
func (e *Experiment) Close() {
	if e.scene != nil {
		e.scene.World.Close()
	}
}

func (e *Experiment) Scene() *Scene {
	return e.scene
}

func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
