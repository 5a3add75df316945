package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// FixedDrift is the largest distance any kinematic particle strayed from its
// base position.
type FixedDrift struct {
	name string
	max  float64
}

func NewFixedDrift() *FixedDrift {
	return &FixedDrift{name: "fixed_drift"}
}

func (d *FixedDrift) Name() string {
	return d.name
}

func (d *FixedDrift) Observe(s *particle.Store, teams *team.Manager, t float64) {
	flags := s.Flags()
	for i := 0; i < s.Len(); i++ {
		f := flags[i]
		if !f.Has(particle.FlagEnable) || !f.Has(particle.FlagKinematic) || f.Has(particle.FlagCollider) {
			continue
		}
		if !teams.ActiveParticle(s.Team[i]) {
			continue
		}
		d.max = math.Max(d.max, float64(s.Pos[i].Sub(s.BasePos[i]).Len()))
	}
}

func (d *FixedDrift) Value() float64 {
	return d.max
}

func (d *FixedDrift) Reset() {
	d.max = 0
}
