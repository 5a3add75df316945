package constraint

import (
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/team"
)

// Solver owns one instance of every worker.
type Solver struct {
	Spring          *Spring
	ClampDistance   *ClampDistance
	RestoreDistance *RestoreDistance
	RestoreRotation *RestoreRotation
	TriangleBend    *TriangleBend
	ClampRotation   *ClampRotation
	ClampPosition   *ClampPosition
	Penetration     *Penetration

	AdjustRotation   *AdjustRotation
	LineRotation     *LineRotation
	TriangleRotation *TriangleRotation

	teams *team.Manager
}

func NewSolver(teams *team.Manager) *Solver {
	return &Solver{
		Spring:           NewSpring(teams),
		ClampDistance:    NewClampDistance(teams),
		RestoreDistance:  NewRestoreDistance(teams),
		RestoreRotation:  NewRestoreRotation(teams),
		TriangleBend:     NewTriangleBend(teams),
		ClampRotation:    NewClampRotation(teams),
		ClampPosition:    NewClampPosition(teams),
		Penetration:      NewPenetration(teams),
		AdjustRotation:   NewAdjustRotation(teams),
		LineRotation:     NewLineRotation(teams),
		TriangleRotation: NewTriangleRotation(teams),
		teams:            teams,
	}
}

// Workers returns the position workers in solve order.
func (s *Solver) Workers() []Worker {
	return []Worker{
		s.Spring,
		s.ClampDistance,
		s.RestoreDistance,
		s.RestoreRotation,
		s.TriangleBend,
		s.ClampRotation,
		s.ClampPosition,
		s.Penetration,
	}
}

func (s *Solver) PostWorkers() []PostWorker {
	return []PostWorker{s.AdjustRotation, s.LineRotation, s.TriangleRotation}
}

// used reports which workers have at least one active team.
func (s *Solver) used() [team.WorkerCount]bool {
	var out [team.WorkerCount]bool
	s.teams.Each(func(t *team.Team) {
		if !t.Active() {
			return
		}
		for w := team.Worker(0); w < team.WorkerCount; w++ {
			if t.Group(w) != team.NoGroup {
				out[w] = true
			}
		}
	})
	return out
}

// Solve chains f.Iterations passes of every used worker after dep.
func (s *Solver) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	used := s.used()
	n := max(f.Iterations, 1)
	h := dep
	for it := 0; it < n; it++ {
		for _, w := range s.Workers() {
			if used[w.Kind()] {
				h = w.Solve(f, h)
			}
		}
	}
	return h
}

// Post chains the rotation workers after dep.
func (s *Solver) Post(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	used := s.used()
	h := dep
	for _, w := range s.PostWorkers() {
		if used[w.Kind()] {
			h = w.PostUpdate(f, h)
		}
	}
	return h
}

// RemoveTeam drops the team's group from every worker.
func (s *Solver) RemoveTeam(teamID int) {
	for _, w := range s.Workers() {
		w.RemoveGroup(teamID)
	}
	for _, w := range s.PostWorkers() {
		w.RemoveGroup(teamID)
	}
}
