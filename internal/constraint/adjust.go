package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// AdjustRotationParams tilts spring particles toward their displacement.
// Axis is the rest pointing direction in the base rotation frame.
type AdjustRotationParams struct {
	Power float32
	Axis  mgl32.Vec3
}

func DefaultAdjustRotationParams() AdjustRotationParams {
	return AdjustRotationParams{Power: 5, Axis: mathx.Up}
}

// AdjustRotation derives a rotation for spring particles, which have no
// neighbours to derive one from.
type AdjustRotation struct {
	groups groups[AdjustRotationParams]
}

func NewAdjustRotation(teams *team.Manager) *AdjustRotation {
	return &AdjustRotation{groups: newGroups[AdjustRotationParams](team.WorkerAdjustRotation, teams)}
}

func (w *AdjustRotation) Kind() team.Worker { return team.WorkerAdjustRotation }
func (w *AdjustRotation) Name() string      { return "adjust_rotation" }

func (w *AdjustRotation) AddGroup(teamID int, p AdjustRotationParams) (int, error) {
	return w.groups.add(teamID, p)
}

func (w *AdjustRotation) RemoveGroup(teamID int) { w.groups.remove(teamID) }

func (w *AdjustRotation) ChangeParam(teamID int, p AdjustRotationParams) error {
	return w.groups.update(teamID, func(g *AdjustRotationParams) { *g = p })
}

func (w *AdjustRotation) PostUpdate(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return post(f, w.Kind(), dep, func(i int, t *team.Team, gi int) {
		g := w.groups.get(gi)
		if g == nil {
			return
		}
		base := s.BaseRot[i]
		if !s.Flags()[i].Simulated() {
			s.Rot[i] = base
			return
		}
		dir0 := base.Rotate(g.Axis)
		offset := s.Pos[i].Sub(s.BasePos[i])
		dir1 := dir0.Add(offset.Mul(g.Power))
		s.Rot[i] = mathx.FromTo(dir0, dir1).Mul(base).Normalize()
	})
}

// lineRef measures the turn of the segment from -> to against its rest
// direction in from's base frame.
type lineRef struct {
	from, to int32
	dir      mgl32.Vec3
}

// lineLists gives each particle its child segments, or its parent segment
// when it is a leaf.
func lineLists(count int, links []Link) ([][]lineRef, error) {
	lists := make([][]lineRef, count)
	parent := make([]int, count)
	for i := range parent {
		parent[i] = -1
	}
	for k, l := range links {
		if l.Parent < 0 || l.Child < 0 || l.Parent >= count || l.Child >= count || l.Parent == l.Child {
			return nil, dynamo.VerifyAt("line link", k, dynamo.ErrIndexOutOfRange)
		}
		lists[l.Parent] = append(lists[l.Parent], lineRef{from: int32(l.Parent), to: int32(l.Child), dir: l.RestDir})
		parent[l.Child] = k
	}
	for i := range lists {
		if len(lists[i]) == 0 && parent[i] >= 0 {
			l := links[parent[i]]
			lists[i] = []lineRef{{from: int32(l.Parent), to: int32(l.Child), dir: l.RestDir}}
		}
	}
	return lists, nil
}

type lineGroup struct {
	lines refGroup
}

// LineRotation rotates line particles so their segments follow the
// simulated positions.
type LineRotation struct {
	groups groups[lineGroup]
	table  refTable[lineRef]
}

func NewLineRotation(teams *team.Manager) *LineRotation {
	return &LineRotation{
		groups: newGroups[lineGroup](team.WorkerLineRotation, teams),
		table:  newRefTable[lineRef](),
	}
}

func (w *LineRotation) Kind() team.Worker { return team.WorkerLineRotation }
func (w *LineRotation) Name() string      { return "line_rotation" }

func (w *LineRotation) AddGroup(teamID, count int, links []Link) (int, error) {
	lists, err := lineLists(count, links)
	if err != nil {
		return team.NoGroup, err
	}
	return w.groups.add(teamID, lineGroup{lines: w.table.add(lists)})
}

func (w *LineRotation) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.table.remove(g.lines)
	}
}

func (w *LineRotation) PostUpdate(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return post(f, w.Kind(), dep, func(i int, t *team.Team, gi int) {
		g := w.groups.get(gi)
		if g == nil {
			return
		}
		flag := s.Flags()[i]
		if flag.Has(particle.FlagKinematic) && t.Flags.Has(team.FlagFixedRotation) {
			s.Rot[i] = s.BaseRot[i]
			return
		}
		refs := w.table.refs(g.lines, i-t.Particles.Start)
		if len(refs) == 0 {
			return
		}
		var acc mathx.QuatAccum
		for _, r := range refs {
			from := t.Particles.Start + int(r.from)
			to := t.Particles.Start + int(r.to)
			rest := s.BaseRot[from].Rotate(r.dir)
			cur := s.Pos[to].Sub(s.Pos[from])
			if cur.Len() < mathx.Epsilon {
				continue
			}
			acc.Add(mathx.FromTo(rest, cur), 1)
		}
		q := acc.Result(mgl32.QuatIdent())
		s.Rot[i] = q.Mul(s.BaseRot[i]).Normalize()
	})
}

// Triangle is a team-local face.
type Triangle struct {
	A, B, C int
}

type triangleRef struct {
	a, b, c int32
}

type triangleGroup struct {
	tris refGroup
}

// TriangleRotation rotates mesh particles by the turn of the faces around
// them.
type TriangleRotation struct {
	groups groups[triangleGroup]
	table  refTable[triangleRef]
}

func NewTriangleRotation(teams *team.Manager) *TriangleRotation {
	return &TriangleRotation{
		groups: newGroups[triangleGroup](team.WorkerTriangleRotation, teams),
		table:  newRefTable[triangleRef](),
	}
}

func (w *TriangleRotation) Kind() team.Worker { return team.WorkerTriangleRotation }
func (w *TriangleRotation) Name() string      { return "triangle_rotation" }

func (w *TriangleRotation) AddGroup(teamID, count int, tris []Triangle) (int, error) {
	lists := make([][]triangleRef, count)
	for k, tr := range tris {
		if tr.A < 0 || tr.B < 0 || tr.C < 0 || tr.A >= count || tr.B >= count || tr.C >= count {
			return team.NoGroup, dynamo.VerifyAt("triangle", k, dynamo.ErrIndexOutOfRange)
		}
		ref := triangleRef{a: int32(tr.A), b: int32(tr.B), c: int32(tr.C)}
		lists[tr.A] = append(lists[tr.A], ref)
		lists[tr.B] = append(lists[tr.B], ref)
		lists[tr.C] = append(lists[tr.C], ref)
	}
	return w.groups.add(teamID, triangleGroup{tris: w.table.add(lists)})
}

func (w *TriangleRotation) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.table.remove(g.tris)
	}
}

func normal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n, _ := mathx.Normalize(b.Sub(a).Cross(c.Sub(a)))
	return n
}

func (w *TriangleRotation) PostUpdate(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return post(f, w.Kind(), dep, func(i int, t *team.Team, gi int) {
		g := w.groups.get(gi)
		if g == nil || !s.Flags()[i].Has(particle.FlagTriangleRotation) {
			return
		}
		refs := w.table.refs(g.tris, i-t.Particles.Start)
		if len(refs) == 0 {
			return
		}
		off := t.Particles.Start
		var acc mathx.QuatAccum
		for _, r := range refs {
			a, b, c := off+int(r.a), off+int(r.b), off+int(r.c)
			n0 := normal(s.BasePos[a], s.BasePos[b], s.BasePos[c])
			n1 := normal(s.Pos[a], s.Pos[b], s.Pos[c])
			if n0.Len() == 0 || n1.Len() == 0 {
				continue
			}
			acc.Add(mathx.FromTo(n0, n1), 1)
		}
		q := acc.Result(mgl32.QuatIdent())
		s.Rot[i] = q.Mul(s.BaseRot[i]).Normalize()
	})
}
