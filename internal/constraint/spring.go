package constraint

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/team"
)

// SpringParams is the pull toward the base pose per iteration.
type SpringParams struct {
	Power curve.Param
}

// Spring pulls particles of spring teams back to their undeformed pose.
type Spring struct {
	groups groups[SpringParams]
}

func NewSpring(teams *team.Manager) *Spring {
	return &Spring{groups: newGroups[SpringParams](team.WorkerSpring, teams)}
}

func (w *Spring) Kind() team.Worker { return team.WorkerSpring }
func (w *Spring) Name() string      { return "spring" }

func (w *Spring) AddGroup(teamID int, p SpringParams) (int, error) {
	return w.groups.add(teamID, p)
}

func (w *Spring) RemoveGroup(teamID int) { w.groups.remove(teamID) }

func (w *Spring) ChangeParam(teamID int, p SpringParams) error {
	return w.groups.update(teamID, func(g *SpringParams) { *g = p })
}

func (w *Spring) Solve(f *Frame, dep *dynamo.Handle) *dynamo.Handle {
	s := f.Particles
	return pass(f, w.Kind(), dep, func(i int, t *team.Team, gi int, front []mgl32.Vec3) (mgl32.Vec3, bool) {
		g := w.groups.get(gi)
		if g == nil {
			return mgl32.Vec3{}, false
		}
		power := mathx.Saturate(g.Power.Evaluate(s.Depth[i]) * f.power())
		return mathx.LerpVec(front[i], s.BasePos[i], power), true
	})
}
