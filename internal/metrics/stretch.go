package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// Edge is a rest length between two absolute particle indices.
type Edge struct {
	A, B   int
	Length float32
}

// Stretch is the largest relative length error |l/rest - 1| seen on any
// edge.
type Stretch struct {
	name  string
	edges []Edge
	max   float64
}

func NewStretch(edges []Edge) *Stretch {
	return &Stretch{name: "max_stretch", edges: edges}
}

func (m *Stretch) Name() string { return m.name }

func (m *Stretch) Observe(s *particle.Store, teams *team.Manager, t float64) {
	flags := s.Flags()
	for _, e := range m.edges {
		if e.Length <= 0 || e.A >= s.Len() || e.B >= s.Len() {
			continue
		}
		if !flags[e.A].Has(particle.FlagEnable) || !flags[e.B].Has(particle.FlagEnable) {
			continue
		}
		l := s.Pos[e.A].Sub(s.Pos[e.B]).Len()
		m.max = math.Max(m.max, math.Abs(float64(l/e.Length)-1))
	}
}

func (m *Stretch) Value() float64 { return m.max }

func (m *Stretch) Reset() { m.max = 0 }
