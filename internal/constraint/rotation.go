package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

// Link ties a child to its parent with the rest direction expressed in the
// parent's base rotation frame. Indices are team-local.
type Link struct {
	Parent, Child int
	RestDir       mgl32.Vec3
}

type linkRef struct {
	parent int32
	dir    mgl32.Vec3
}

func linkLists(count int, links []Link) ([][]linkRef, error) {
	lists := make([][]linkRef, count)
	for k, l := range links {
		if l.Parent < 0 || l.Child < 0 || l.Parent >= count || l.Child >= count || l.Parent == l.Child {
			return nil, dynamo.VerifyAt("rotation link", k, dynamo.ErrIndexOutOfRange)
		}
		lists[l.Child] = append(lists[l.Child], linkRef{parent: int32(l.Parent), dir: l.RestDir})
	}
	return lists, nil
}

// RestoreRotationParams is the pull power toward the rest direction over depth.
type RestoreRotationParams struct {
	Power curve.Param
}

type restoreRotationGroup struct {
	params RestoreRotationParams
	links  refGroup
}

// RestoreRotation pulls each child toward parent + baseRot(parent)*restDir.
type RestoreRotation struct {
	groups groups[restoreRotationGroup]
	table  refTable[linkRef]
}

func NewRestoreRotation(teams *team.Manager) *RestoreRotation {
	return &RestoreRotation{
		groups: newGroups[restoreRotationGroup](team.WorkerRestoreRotation, teams),
		table:  newRefTable[linkRef](),
	}
}

func (w *RestoreRotation) Kind() team.Worker { return team.WorkerRestoreRotation }
func (w *RestoreRotation) Name() string      { return "restore_rotation" }

func (w *RestoreRotation) AddGroup(teamID, count int, links []Link, p RestoreRotationParams) (int, error) {
	lists, err := linkLists(count, links)
	if err != nil {
		return team.NoGroup, err
	}
	return w.groups.add(teamID, restoreRotationGroup{params: p, links: w.table.add(lists)})
}

func (w *RestoreRotation) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.table.remove(g.links)
	}
}

func (w *RestoreRotation) ChangeParam(teamID int, p RestoreRotationParams) error {
	return w.groups.update(teamID, func(g *restoreRotationGroup) { g.params = p })
}

func (w *RestoreRotation) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		refs := w.table.refs(g.links, i-t.Particles.Start)
		if len(refs) == 0 {
			return mgl32.Vec3{}, false
		}
		power := mathx.Saturate(g.params.Power.Evaluate(s.Depth[i]) * f.power())
		var target mgl32.Vec3
		for _, r := range refs {
			p := t.Particles.Start + int(r.parent)
			target = target.Add(front[p].Add(s.BaseRot[p].Rotate(r.dir)))
		}
		target = target.Mul(1 / float32(len(refs)))
		return mathx.LerpVec(front[i], target, power), true
	})
}

// ClampRotationParams limits the deviation from the rest direction, in
// degrees over depth.
type ClampRotationParams struct {
	MaxAngle curve.Param
}

type clampRotationGroup struct {
	params ClampRotationParams
	links  refGroup
}

// ClampRotation keeps the parent-to-child direction within MaxAngle of the
// animated rest direction. Segment length is preserved.
type ClampRotation struct {
	groups groups[clampRotationGroup]
	table  refTable[linkRef]
}

func NewClampRotation(teams *team.Manager) *ClampRotation {
	return &ClampRotation{
		groups: newGroups[clampRotationGroup](team.WorkerClampRotation, teams),
		table:  newRefTable[linkRef](),
	}
}

func (w *ClampRotation) Kind() team.Worker { return team.WorkerClampRotation }
func (w *ClampRotation) Name() string      { return "clamp_rotation" }

func (w *ClampRotation) AddGroup(teamID, count int, links []Link, p ClampRotationParams) (int, error) {
	lists, err := linkLists(count, links)
	if err != nil {
		return team.NoGroup, err
	}
	return w.groups.add(teamID, clampRotationGroup{params: p, links: w.table.add(lists)})
}

func (w *ClampRotation) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.table.remove(g.links)
	}
}

func (w *ClampRotation) ChangeParam(teamID int, p ClampRotationParams) error {
	return w.groups.update(teamID, func(g *clampRotationGroup) { g.params = p })
}

func (w *ClampRotation) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		refs := w.table.refs(g.links, i-t.Particles.Start)
		if len(refs) == 0 {
			return mgl32.Vec3{}, false
		}
		r := refs[0]
		p := t.Particles.Start + int(r.parent)
		maxAngle := mgl32.DegToRad(g.params.MaxAngle.Evaluate(s.Depth[i]))
		dir := front[i].Sub(front[p])
		rest := s.BaseRot[p].Rotate(r.dir)
		return front[p].Add(mathx.ClampAngle(dir, rest, maxAngle)), true
	})
}
