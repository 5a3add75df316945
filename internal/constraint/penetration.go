package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

type PenetrationMode int

const (
	// PenetrationPlane keeps particles above the base surface plane.
	PenetrationPlane PenetrationMode = iota
	// PenetrationSphere keeps particles outside a sphere buried under the
	// base surface.
	PenetrationSphere
)

// PenetrationParams describes the body surface relative to each particle's
// base pose. Axis is the outward normal in the base rotation frame.
type PenetrationParams struct {
	Mode     PenetrationMode
	Axis     mgl32.Vec3
	Distance curve.Param
	Radius   curve.Param
}

func DefaultPenetrationParams() PenetrationParams {
	return PenetrationParams{
		Mode:     PenetrationPlane,
		Axis:     mathx.Up,
		Distance: curve.Constant(0.02),
		Radius:   curve.Constant(0.3),
	}
}

// Penetration stops particles from sinking through the animated body the
// cloth is draped over.
type Penetration struct {
	groups groups[PenetrationParams]
}

func NewPenetration(teams *team.Manager) *Penetration {
	return &Penetration{groups: newGroups[PenetrationParams](team.WorkerPenetration, teams)}
}

func (w *Penetration) Kind() team.Worker { return team.WorkerPenetration }
func (w *Penetration) Name() string      { return "penetration" }

func (w *Penetration) AddGroup(teamID int, p PenetrationParams) (int, error) {
	return w.groups.add(teamID, p)
}

func (w *Penetration) RemoveGroup(teamID int) { w.groups.remove(teamID) }

func (w *Penetration) ChangeParam(teamID int, p PenetrationParams) error {
	return w.groups.update(teamID, func(g *PenetrationParams) { *g = p })
}

func (w *Penetration) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		n, l := mathx.Normalize(s.BaseRot[i].Rotate(g.Axis))
		if l == 0 {
			return mgl32.Vec3{}, false
		}
		depth := s.Depth[i]
		dist := g.Distance.Evaluate(depth)
		p := front[i]

		switch g.Mode {
		case PenetrationSphere:
			r := g.Radius.Evaluate(depth)
			center := s.BasePos[i].Sub(n.Mul(r))
			dir, dl := mathx.Normalize(p.Sub(center))
			minDist := r - dist
			if dl >= minDist {
				return mgl32.Vec3{}, false
			}
			if dl == 0 {
				dir = n
			}
			return center.Add(dir.Mul(minDist)), true
		default:
			origin := s.BasePos[i].Sub(n.Mul(dist))
			d := p.Sub(origin).Dot(n)
			if d >= 0 {
				return mgl32.Vec3{}, false
			}
			return p.Sub(n.Mul(d)), true
		}
	})
}
