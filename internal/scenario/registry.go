package scenario

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/sim"
)

// Scene is a populated world plus what the runner needs to drive it.
type Scene struct {
	World  *sim.World
	Cloths []*cloth.Cloth
	// Edges are the structural rest lengths in absolute particle indices.
	Edges []metrics.Edge
	// Animate moves transforms before the next frame. It may be nil.
	Animate func(frame int, t float64)
}

// Builder populates a fresh world from cfg. rng is seeded from the run
// config.
type Builder func(cfg *config.Config, rng *rand.Rand) (*Scene, error)

type entry struct {
	description string
	build       Builder
}

type Registry struct {
	scenarios map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]entry)}

	r.Register("chain", "ten-link bone chain swinging down from a fixed root", buildChain)
	r.Register("capsule", "hanging strand pushed by a sweeping capsule", buildCapsule)
	r.Register("sheet", "mesh cloth pinned on one edge draping over a sphere", buildSheet)
	r.Register("spring", "bone springs wobbling behind a shaking root", buildSpring)
	r.Register("bones", "four skirt strands around a turning body", buildBones)

	return r
}

func (r *Registry) Register(name, description string, b Builder) {
	r.scenarios[name] = entry{description: description, build: b}
}

// Build creates the named scenario. The world is closed again if building
// fails.
func (r *Registry) Build(name string, cfg *config.Config) (*Scene, error) {
	e, ok := r.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s", name)
	}
	sc, err := e.build(cfg, rand.New(rand.NewSource(cfg.Run.Seed)))
	if err != nil {
		if sc != nil && sc.World != nil {
			sc.World.Close()
		}
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return sc, nil
}

func (r *Registry) Description(name string) string {
	return r.scenarios[name].description
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(sc *Scene) []sim.Metric {
	return []sim.Metric{
		metrics.NewEnergy(),
		metrics.NewEnergyTail(60),
		metrics.NewStability(50.0),
		metrics.NewFixedDrift(),
		metrics.NewPenetration(sc.World.Colliders),
		metrics.NewStretch(sc.Edges),
	}
}

// track records c in the scene together with its structural edges.
func (sc *Scene) track(c *cloth.Cloth, d *cloth.Data) {
	sc.Cloths = append(sc.Cloths, c)
	start := c.Particles().Start
	for _, p := range d.Distances[constraint.Structural] {
		sc.Edges = append(sc.Edges, metrics.Edge{A: start + p.A, B: start + p.B, Length: p.Length})
	}
}
