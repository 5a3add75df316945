package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// Stability is the fraction of frames in which every particle stayed finite
// and below the speed threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(ps *particle.Store, teams *team.Manager, t float64) {
	s.samples++
	flags := ps.Flags()
	for i := 0; i < ps.Len(); i++ {
		if !flags[i].Has(particle.FlagEnable) || flags[i].Has(particle.FlagCollider) {
			continue
		}
		speed := float64(ps.Velocity[i].Len())
		if !finite(ps.Pos[i][0]) || !finite(ps.Pos[i][1]) || !finite(ps.Pos[i][2]) || speed > s.threshold || math.IsNaN(speed) {
			s.violations++
			break
		}
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
