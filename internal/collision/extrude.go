package collision

import (
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
)

// Extrude carries particles that registered a contact along with the motion
// of their collider since the previous step. Motion pointing into the
// particle's side of the contact plane passes through fully; tangential and
// receding motion fades out, as does contact farther than ContactRange.
func (m *Manager) Extrude(batch int, dep *dynamo.Handle) *dynamo.Handle {
	s := m.particles
	p := m.Params
	return dynamo.ScheduleFor(s.Len(), batch, func(start, end int) {
		next := s.Next.Front()
		for i := start; i < end; i++ {
			c := int(s.ContactID[i])
			if c == particle.NoIndex || p.Extrusion <= 0 {
				continue
			}
			n := s.ContactNormal[i]
			surface := next[i].Sub(n.Mul(s.Radius[i]))

			// collider motion at the contact point, rotation included
			local := s.OldRot[c].Inverse().Rotate(surface.Sub(s.OldPos[c]))
			moved := s.Pos[c].Add(s.Rot[c].Rotate(local))
			move, l := mathx.Normalize(moved.Sub(surface))
			if l == 0 {
				continue
			}
			angle := mathx.Saturate(n.Dot(move))
			depth := float32(1)
			if p.ContactRange > 0 {
				depth = mathx.Saturate(1 - max(s.ContactDist[i], 0)/p.ContactRange)
			}
			out := next[i].Add(move.Mul(l * angle * depth * p.Extrusion))
			if mathx.Valid(out) {
				next[i] = out
			}
		}
	}, dep)
}
