package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

// DistanceType selects one of the three distance-restore lists.
type DistanceType int

const (
	Structural DistanceType = iota
	Bend
	Near
	DistanceTypeCount
)

func (t DistanceType) String() string {
	switch t {
	case Structural:
		return "structural"
	case Bend:
		return "bend"
	case Near:
		return "near"
	}
	return "unknown"
}

// Pair is an undirected constraint between two team-local particle indices.
type Pair struct {
	A, B   int
	Length float32
}

// DistanceParams holds stiffness over depth for each distance type.
type DistanceParams struct {
	Stiffness [DistanceTypeCount]curve.Param
}

func DefaultDistanceParams() DistanceParams {
	return DistanceParams{Stiffness: [DistanceTypeCount]curve.Param{
		curve.Constant(1),
		curve.Constant(0.5),
		curve.Constant(0.3),
	}}
}

type distanceRef struct {
	target int32
	length float32
}

type distanceGroup struct {
	params DistanceParams
	lists  [DistanceTypeCount]refGroup
}

// RestoreDistance pulls particles toward the rest length of every pair they
// take part in. Each side moves by its inverse-mass share, so a kinematic
// neighbour leaves the whole correction to the free particle.
type RestoreDistance struct {
	groups groups[distanceGroup]
	table  refTable[distanceRef]
}

func NewRestoreDistance(teams *team.Manager) *RestoreDistance {
	return &RestoreDistance{
		groups: newGroups[distanceGroup](team.WorkerRestoreDistance, teams),
		table:  newRefTable[distanceRef](),
	}
}

func (w *RestoreDistance) Kind() team.Worker { return team.WorkerRestoreDistance }
func (w *RestoreDistance) Name() string      { return "restore_distance" }

// AddGroup registers the pair lists of a team with count particles.
func (w *RestoreDistance) AddGroup(teamID, count int, pairs [DistanceTypeCount][]Pair, p DistanceParams) (int, error) {
	var g distanceGroup
	g.params = p
	for typ := range pairs {
		lists, err := pairLists(count, pairs[typ])
		if err != nil {
			w.release(g)
			return team.NoGroup, err
		}
		g.lists[typ] = w.table.add(lists)
	}
	return w.groups.add(teamID, g)
}

func pairLists(count int, pairs []Pair) ([][]distanceRef, error) {
	lists := make([][]distanceRef, count)
	for k, p := range pairs {
		if p.A < 0 || p.B < 0 || p.A >= count || p.B >= count || p.A == p.B {
			return nil, dynamo.VerifyAt("distance pair", k, dynamo.ErrIndexOutOfRange)
		}
		lists[p.A] = append(lists[p.A], distanceRef{target: int32(p.B), length: p.Length})
		lists[p.B] = append(lists[p.B], distanceRef{target: int32(p.A), length: p.Length})
	}
	return lists, nil
}

func (w *RestoreDistance) release(g distanceGroup) {
	for _, l := range g.lists {
		w.table.remove(l)
	}
}

func (w *RestoreDistance) RemoveGroup(teamID int) {
	if g, ok := w.groups.remove(teamID); ok {
		w.release(g)
	}
}

func (w *RestoreDistance) ChangeParam(teamID int, p DistanceParams) error {
	return w.groups.update(teamID, func(g *distanceGroup) { g.params = p })
}

// Solve runs one pass per distance type in structural, bend, near order.
func (w *RestoreDistance) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	h := dep
	for typ := Structural; typ < DistanceTypeCount; typ++ {
		typ := typ
		h = pass(f, w.Kind(), h, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
			g := w.groups.get(gi)
			if g == nil {
				return mgl32.Vec3{}, false
			}
			return w.solveParticle(f, i, t, g, typ, front)
		})
	}
	return h
}

func (w *RestoreDistance) solveParticle(f *Frame, i int, t *team.Team, g *distanceGroup, typ DistanceType, front []mgl32.Vec3) (mgl32.Vec3, bool) {
	s := f.Particles
	refs := w.table.refs(g.lists[typ], i-t.Particles.Start)
	if len(refs) == 0 {
		return mgl32.Vec3{}, false
	}
	flags := s.Flags()
	stiff := mathx.Saturate(g.params.Stiffness[typ].Evaluate(s.Depth[i]) * f.power())
	invI := s.InvMass(i, flags[i])
	pi := front[i]

	var sum mgl32.Vec3
	n := 0
	for _, r := range refs {
		j := t.Particles.Start + int(r.target)
		invJ := s.InvMass(j, flags[j])
		d := pi.Sub(front[j])
		l := d.Len()
		if l < mathx.Epsilon || invI+invJ <= 0 {
			continue
		}
		share := invI / (invI + invJ)
		sum = sum.Add(d.Mul((r.length - l) / l * share))
		n++
	}
	if n == 0 {
		return mgl32.Vec3{}, false
	}
	return pi.Add(sum.Mul(stiff / float32(n))), true
}
