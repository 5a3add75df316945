package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

// ClampPositionParams bounds displacement from the base pose. AxisRatio
// stretches the bound per axis of the team center frame; a zero component
// pins that axis.
type ClampPositionParams struct {
	Length    curve.Param
	AxisRatio mgl32.Vec3
}

func DefaultClampPositionParams() ClampPositionParams {
	return ClampPositionParams{Length: curve.Linear(0, 0.3), AxisRatio: mgl32.Vec3{1, 1, 1}}
}

// ClampPosition keeps every particle inside an ellipsoid around its base
// position.
type ClampPosition struct {
	groups groups[ClampPositionParams]
}

func NewClampPosition(teams *team.Manager) *ClampPosition {
	return &ClampPosition{groups: newGroups[ClampPositionParams](team.WorkerClampPosition, teams)}
}

func (w *ClampPosition) Kind() team.Worker { return team.WorkerClampPosition }
func (w *ClampPosition) Name() string      { return "clamp_position" }

func (w *ClampPosition) AddGroup(teamID int, p ClampPositionParams) (int, error) {
	return w.groups.add(teamID, p)
}

func (w *ClampPosition) RemoveGroup(teamID int) { w.groups.remove(teamID) }

func (w *ClampPosition) ChangeParam(teamID int, p ClampPositionParams) error {
	return w.groups.update(teamID, func(g *ClampPositionParams) { *g = p })
}

func (w *ClampPosition) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		limit := g.Length.Evaluate(s.Depth[i])
		d := front[i].Sub(s.BasePos[i])
		if d.Len() <= limit*minAxis(g.AxisRatio) {
			return mgl32.Vec3{}, false
		}
		inv := t.CenterRot.Inverse()
		local := inv.Rotate(d)
		scaled := divAxis(local, g.AxisRatio)
		l := scaled.Len()
		if l <= limit {
			return mgl32.Vec3{}, false
		}
		scaled = scaled.Mul(limit / l)
		local = mulAxis(scaled, g.AxisRatio)
		return s.BasePos[i].Add(t.CenterRot.Rotate(local)), true
	})
}

func minAxis(v mgl32.Vec3) float32 {
	m := v.X()
	if v.Y() < m {
		m = v.Y()
	}
	if v.Z() < m {
		m = v.Z()
	}
	return m
}

// divAxis divides per component; pinned axes map to a huge distance so the
// clamp collapses them.
func divAxis(v, r mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for k := 0; k < 3; k++ {
		switch {
		case r[k] > mathx.Epsilon:
			out[k] = v[k] / r[k]
		case v[k] != 0:
			out[k] = v[k] * 1e6
		}
	}
	return out
}

func mulAxis(v, r mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v[0] * r[0], v[1] * r[1], v[2] * r[2]}
}

// ClampDistanceParams bounds the distance to the reference particle to
// [MinRatio, MaxRatio] times its rest length.
type ClampDistanceParams struct {
	MinRatio float32
	MaxRatio float32
}

func DefaultClampDistanceParams() ClampDistanceParams {
	return ClampDistanceParams{MinRatio: 0.7, MaxRatio: 1.05}
}

// Target is a particle's reference particle and rest length, team-local.
type Target struct {
	Particle, Target int
	Length           float32
}

type clampDistanceGroup struct {
	params  ClampDistanceParams
	targets refGroup
}

// ClampDistance prevents runaway stretch or collapse relative to a reference
// particle, usually the parent toward the fixed root.
type ClampDistance struct {
	groups groups[clampDistanceGroup]
	table  refTable[distanceRef]
}

func NewClampDistance(teams *team.Manager) *ClampDistance {
	return &ClampDistance{
		groups: newGroups[clampDistanceGroup](team.WorkerClampDistance, teams),
		table:  newRefTable[distanceRef](),
	}
}

func (w *ClampDistance) Kind() team.Worker { return team.WorkerClampDistance }
func (w *ClampDistance) Name() string      { return "clamp_distance" }

func (w *ClampDistance) AddGroup(teamID, count int, targets []Target, p ClampDistanceParams) (int, error) {
	lists := make([][]distanceRef, count)
	for k, tg := range targets {
		if tg.Particle < 0 || tg.Target < 0 || tg.Particle >= count || tg.Target >= count || tg.Particle == tg.Target {
			return team.NoGroup, dynamo.VerifyAt("clamp distance", k, dynamo.ErrIndexOutOfRange)
		}
		lists[tg.Particle] = append(lists[tg.Particle], distanceRef{target: int32(tg.Target), length: tg.Length})
	}
	return w.groups.add(teamID, clampDistanceGroup{params: p, targets: w.table.add(lists)})
}

func (w *ClampDistance) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.table.remove(g.targets)
	}
}

func (w *ClampDistance) ChangeParam(teamID int, p ClampDistanceParams) error {
	return w.groups.update(teamID, func(g *clampDistanceGroup) { g.params = p })
}

func (w *ClampDistance) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		refs := w.table.refs(g.targets, i-t.Particles.Start)
		if len(refs) == 0 {
			return mgl32.Vec3{}, false
		}
		r := refs[0]
		j := t.Particles.Start + int(r.target)
		d := front[i].Sub(front[j])
		dir, l := mathx.Normalize(d)
		if l == 0 {
			return mgl32.Vec3{}, false
		}
		cl := mgl32.Clamp(l, r.length*g.params.MinRatio, r.length*g.params.MaxRatio)
		if cl == l {
			return mgl32.Vec3{}, false
		}
		return front[j].Add(dir.Mul(cl)), true
	})
}
