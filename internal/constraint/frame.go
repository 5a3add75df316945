package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// DefaultBatch is the minimum number of particles per parallel batch.
const DefaultBatch = 64

// Frame carries the stores and step settings shared by every pass.
type Frame struct {
	Particles *particle.Store
	Teams     *team.Manager
	Batch     int
	// Power scales per-iteration stiffness; it is a quality knob, not a
	// semantic one.
	Power      float32
	Iterations int
}

func (f *Frame) batch() int {
	if f.Batch > 0 {
		return f.Batch
	}
	return DefaultBatch
}

func (f *Frame) power() float32 {
	if f.Power <= 0 {
		return 1
	}
	return f.Power
}

// Worker is a position constraint solved inside the iteration loop.
type Worker interface {
	Kind() team.Worker
	Name() string
	RemoveGroup(teamID int)
	Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle
}

// PostWorker runs once after the position solve has been committed.
type PostWorker interface {
	Kind() team.Worker
	Name() string
	RemoveGroup(teamID int)
	PostUpdate(f *Frame, dep *dynamo.Handle) *dynamo.Handle
}

// solveFunc returns the new next position of particle i or false to keep it.
type solveFunc func(i int, t *team.Team, group int, front []mgl32.Vec3) (mgl32.Vec3, bool)

// pass schedules one ping-pong pass for worker w.
func pass(f *Frame, w team.Worker, dep *dynamo.Handle, fn solveFunc) *dynamo.Handle {
	s := f.Particles
	teams := f.Teams
	return dynamo.Schedule(func() {
		flags := s.Flags()
		front, back := s.Next.Front(), s.Next.Back()
		dynamo.ParallelFor(s.Len(), f.batch(), func(start, end int) {
			for i := start; i < end; i++ {
				back[i] = front[i]
				if !flags[i].Simulated() {
					continue
				}
				t := teams.Lookup(s.Team[i])
				if t == nil || !t.Active() {
					continue
				}
				g := t.Group(w)
				if g == team.NoGroup {
					continue
				}
				if p, ok := fn(i, t, g, front); ok && mathx.Valid(p) {
					back[i] = p
				}
			}
		})
		s.Next.Swap()
	}, dep)
}

// postFunc visits every enabled particle of a team holding a group in w.
type postFunc func(i int, t *team.Team, group int)

func post(f *Frame, w team.Worker, dep *dynamo.Handle, fn postFunc) *dynamo.Handle {
	s := f.Particles
	teams := f.Teams
	return dynamo.ScheduleFor(s.Len(), f.batch(), func(start, end int) {
		flags := s.Flags()
		for i := start; i < end; i++ {
			if !flags[i].Has(particle.FlagEnable) || flags[i].Has(particle.FlagCollider) {
				continue
			}
			t := teams.Lookup(s.Team[i])
			if t == nil || !t.Active() {
				continue
			}
			g := t.Group(w)
			if g == team.NoGroup {
				continue
			}
			fn(i, t, g)
		}
	}, dep)
}

// groups stores one parameter block per team for a worker.
type groups[G any] struct {
	kind  team.Worker
	teams *team.Manager
	list  *chunk.FreeList[G]
}

func newGroups[G any](kind team.Worker, teams *team.Manager) groups[G] {
	return groups[G]{kind: kind, teams: teams, list: chunk.NewFreeList[G]()}
}

func (g *groups[G]) add(teamID int, v G) (int, error) {
	if !g.teams.Exists(teamID) {
		return team.NoGroup, dynamo.ErrUnknownTeam
	}
	g.remove(teamID)
	idx := g.list.Add(v)
	err := g.teams.Update(teamID, func(t *team.Team) { t.Groups[g.kind] = idx })
	return idx, err
}

// remove detaches the team's group and returns it for resource cleanup.
func (g *groups[G]) remove(teamID int) (G, bool) {
	var out G
	idx := team.NoGroup
	_ = g.teams.Update(teamID, func(t *team.Team) {
		idx = t.Groups[g.kind]
		t.Groups[g.kind] = team.NoGroup
	})
	v, ok := g.list.Get(idx)
	if !ok {
		return out, false
	}
	g.list.Remove(idx)
	return v, true
}

func (g *groups[G]) update(teamID int, fn func(*G)) error {
	t, err := g.teams.Get(teamID)
	if err != nil {
		return err
	}
	p := g.list.Ptr(t.Group(g.kind))
	if p == nil {
		return dynamo.ErrInvalidChunk
	}
	fn(p)
	return nil
}

func (g *groups[G]) get(idx int) *G {
	return g.list.Ptr(idx)
}

func (g *groups[G]) count() int {
	return g.list.Count()
}

// refTable keeps variable-length per-particle reference lists in two flat
// arrays: the references themselves and one index chunk per particle.
type refTable[R any] struct {
	data  *chunk.Array[R]
	index *chunk.Array[chunk.Chunk]
}

type refGroup struct {
	data  chunk.Chunk
	index chunk.Chunk
}

func newRefTable[R any]() refTable[R] {
	return refTable[R]{data: chunk.NewArray[R](0), index: chunk.NewArray[chunk.Chunk](0)}
}

// add stores lists[local] for every particle of a team.
func (t *refTable[R]) add(lists [][]R) refGroup {
	idx := make([]chunk.Chunk, len(lists))
	var flat []R
	for l, refs := range lists {
		idx[l] = chunk.Chunk{Start: len(flat), Length: len(refs), UseLength: len(refs)}
		flat = append(flat, refs...)
	}
	g := refGroup{data: chunk.Empty, index: t.index.AddSlice(idx)}
	if len(flat) > 0 {
		g.data = t.data.AddSlice(flat)
	}
	return g
}

func (t *refTable[R]) remove(g refGroup) {
	t.data.Remove(g.data)
	t.index.Remove(g.index)
}

func (t *refTable[R]) refs(g refGroup, local int) []R {
	if !g.data.IsValid() || local < 0 || local >= g.index.Length {
		return nil
	}
	c := t.index.Data()[g.index.Start+local]
	if c.Length == 0 {
		return nil
	}
	start := g.data.Start + c.Start
	return t.data.Data()[start : start+c.Length]
}

func (t *refTable[R]) empty(g refGroup) bool {
	return !g.data.IsValid()
}
