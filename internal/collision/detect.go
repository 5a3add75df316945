package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// eligible reports whether particle i takes part in collision this step.
func (m *Manager) eligible(i int, f particle.Flag) (*team.Team, bool) {
	if !f.Simulated() || !f.Has(particle.FlagCollision) || !f.Has(particle.FlagStep) {
		return nil, false
	}
	t := m.teams.Lookup(m.particles.Team[i])
	if t == nil || !t.Active() || !t.Flags.Has(team.FlagCollision) {
		return nil, false
	}
	return t, true
}

// Detect clips every eligible particle's next position against the global
// colliders and then its own team's colliders. It records the nearest
// contact within ContactRange for Extrude and raises proximity friction.
func (m *Manager) Detect(batch int, dep *dynamo.Handle) *dynamo.Handle {
	s := m.particles
	return dynamo.ScheduleFor(s.Len(), batch, func(start, end int) {
		flags := s.Flags()
		next := s.Next.Front()
		var global []int32
		if g := m.teams.Lookup(team.GlobalID); g != nil {
			global = m.lists.Slice(g.Colliders)
		}
		for i := start; i < end; i++ {
			s.ContactID[i] = particle.NoIndex
			s.ContactDist[i] = 0
			s.Friction[i] = 0

			t, ok := m.eligible(i, flags[i])
			if !ok {
				continue
			}
			c := contact{id: particle.NoIndex, dist: float32(math.MaxFloat32)}
			pos := next[i]
			pos = m.clip(i, t, global, pos, &c)
			if t.ID != team.GlobalID {
				pos = m.clip(i, t, m.lists.Slice(t.Colliders), pos, &c)
			}
			if c.id != particle.NoIndex {
				s.ContactID[i] = int32(c.id)
				s.ContactDist[i] = c.dist
				s.ContactNormal[i] = c.normal
			}
			if c.friction > 0 {
				s.Friction[i] = c.friction * t.Params.Friction
			}
			if mathx.Valid(pos) {
				next[i] = pos
			}
		}
	}, dep)
}

type contact struct {
	id       int
	dist     float32
	normal   mgl32.Vec3
	friction float32
}

func (m *Manager) clip(i int, t *team.Team, list []int32, pos mgl32.Vec3, out *contact) mgl32.Vec3 {
	s := m.particles
	flags := s.Flags()
	r := s.Radius[i]
	keep := t.Flags.Has(team.FlagKeepShape)

	for _, ci := range list {
		c := int(ci)
		if !flags[c].Has(particle.FlagEnable) || !flags[c].Has(particle.FlagCollider) {
			continue
		}
		now := pose{pos: s.Pos[c], rot: s.Rot[c]}
		refPose := pose{pos: s.OldPos[c], rot: s.OldRot[c]}
		ref := s.OldPos[i]
		if keep {
			refPose = now
			ref = s.BasePos[i]
		}
		pl, ok := contactPlane(s.Shape[c], s.ShapeParam[c], now, refPose, ref, pos)
		if !ok {
			continue
		}
		d := pl.distance(pos, r)
		if d < 0 {
			pos = pos.Sub(pl.normal.Mul(d))
		}
		if d <= m.Params.ContactRange && d < out.dist {
			out.id, out.dist, out.normal = c, d, pl.normal
		}
		if m.Params.FrictionFalloff > 0 {
			fr := mathx.Exp(-max(d, 0) / m.Params.FrictionFalloff)
			out.friction = max(out.friction, fr)
		}
	}
	return pos
}
