package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

// Quad is two triangles sharing edge A-B with opposite vertices C and D,
// team-local.
type Quad struct {
	A, B, C, D int
}

// BendParams holds the bend stiffness over depth.
type BendParams struct {
	Stiffness curve.Param
}

type bendQuad struct {
	a, b, c, d int32
	rest       float32
}

type bendRef struct {
	quad int32
	role uint8
}

const (
	roleC uint8 = iota
	roleD
)

type bendGroup struct {
	params BendParams
	quads  chunk.Chunk
	refs   refGroup
}

// TriangleBend restores the signed dihedral angle across every shared edge by
// rotating the two opposite vertices about the edge.
type TriangleBend struct {
	groups groups[bendGroup]
	quads  *chunk.Array[bendQuad]
	table  refTable[bendRef]
}

func NewTriangleBend(teams *team.Manager) *TriangleBend {
	return &TriangleBend{
		groups: newGroups[bendGroup](team.WorkerTriangleBend, teams),
		quads:  chunk.NewArray[bendQuad](0),
		table:  newRefTable[bendRef](),
	}
}

func (w *TriangleBend) Kind() team.Worker { return team.WorkerTriangleBend }
func (w *TriangleBend) Name() string      { return "triangle_bend" }

// DihedralAngle is the signed angle from the C side to the D side about the
// edge A->B.
func DihedralAngle(a, b, c, d mgl32.Vec3) float32 {
	e, l := mathx.Normalize(b.Sub(a))
	if l == 0 {
		return 0
	}
	tc := perpTo(c.Sub(a), e)
	td := perpTo(d.Sub(a), e)
	return mathx.Atan2(tc.Cross(td).Dot(e), tc.Dot(td))
}

func perpTo(v, axis mgl32.Vec3) mgl32.Vec3 {
	return v.Sub(axis.Mul(v.Dot(axis)))
}

// AddGroup registers quads with rest angles measured on restPos.
func (w *TriangleBend) AddGroup(teamID, count int, quads []Quad, restPos []mgl32.Vec3, p BendParams) (int, error) {
	data := make([]bendQuad, len(quads))
	lists := make([][]bendRef, count)
	for k, q := range quads {
		for _, v := range [4]int{q.A, q.B, q.C, q.D} {
			if v < 0 || v >= count || v >= len(restPos) {
				return team.NoGroup, dynamo.VerifyAt("bend quad", k, dynamo.ErrIndexOutOfRange)
			}
		}
		data[k] = bendQuad{
			a: int32(q.A), b: int32(q.B), c: int32(q.C), d: int32(q.D),
			rest: DihedralAngle(restPos[q.A], restPos[q.B], restPos[q.C], restPos[q.D]),
		}
		lists[q.C] = append(lists[q.C], bendRef{quad: int32(k), role: roleC})
		lists[q.D] = append(lists[q.D], bendRef{quad: int32(k), role: roleD})
	}
	g := bendGroup{params: p, quads: chunk.Empty, refs: w.table.add(lists)}
	if len(data) > 0 {
		g.quads = w.quads.AddSlice(data)
	}
	return w.groups.add(teamID, g)
}

func (w *TriangleBend) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.quads.Remove(g.quads)
		w.table.remove(g.refs)
	}
}

func (w *TriangleBend) ChangeParam(teamID int, p BendParams) error {
	return w.groups.update(teamID, func(g *bendGroup) { g.params = p })
}

func (w *TriangleBend) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		refs := w.table.refs(g.refs, i-t.Particles.Start)
		if len(refs) == 0 {
			return mgl32.Vec3{}, false
		}
		flags := s.Flags()
		quads := w.quads.Slice(g.quads)
		stiff := mathx.Saturate(g.params.Stiffness.Evaluate(s.Depth[i]) * f.power())
		base := t.Particles.Start

		var sum mgl32.Vec3
		for _, r := range refs {
			q := quads[r.quad]
			a, b := front[base+int(q.a)], front[base+int(q.b)]
			c, d := front[base+int(q.c)], front[base+int(q.d)]
			e, l := mathx.Normalize(b.Sub(a))
			if l == 0 {
				continue
			}
			delta := mathx.WrapAngle(q.rest-DihedralAngle(a, b, c, d)) * stiff

			other := base + int(q.d)
			angle := -delta
			if r.role == roleD {
				other = base + int(q.c)
				angle = delta
			}
			// a pinned opposite vertex leaves the whole rotation to this one
			if flags[other].Simulated() {
				angle *= 0.5
			}
			rel := front[i].Sub(a)
			sum = sum.Add(a.Add(mathx.RotateAround(rel, e, angle)).Sub(front[i]))
		}
		return front[i].Add(sum.Mul(1 / float32(len(refs)))), true
	})
}
