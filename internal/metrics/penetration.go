package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// Penetration is the deepest overlap of any colliding particle with a global
// collider or one of its team's colliders.
type Penetration struct {
	name      string
	colliders *collision.Manager
	max       float64
}

func NewPenetration(colliders *collision.Manager) *Penetration {
	return &Penetration{name: "max_penetration", colliders: colliders}
}

func (p *Penetration) Name() string { return p.name }

func (p *Penetration) Observe(s *particle.Store, teams *team.Manager, t float64) {
	flags := s.Flags()
	global := p.colliders.Colliders(team.GlobalID)
	for i := 0; i < s.Len(); i++ {
		if !flags[i].Simulated() || !flags[i].Has(particle.FlagCollision) {
			continue
		}
		tm := teams.Lookup(s.Team[i])
		if tm == nil || !tm.Active() || !tm.Flags.Has(team.FlagCollision) {
			continue
		}
		p.observe(s, i, global)
		p.observe(s, i, p.colliders.Colliders(tm.ID))
	}
}

func (p *Penetration) observe(s *particle.Store, i int, list []int32) {
	for _, c := range list {
		d := collision.Distance(s, int(c), s.Pos[i], s.Radius[i])
		p.max = math.Max(p.max, float64(-d))
	}
}

func (p *Penetration) Value() float64 { return p.max }

func (p *Penetration) Reset() { p.max = 0 }
