package integrators

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

const (
	free  = particle.FlagEnable | particle.FlagMove
	fixed = particle.FlagEnable | particle.FlagKinematic
)

type rig struct {
	v      *Verlet
	s      *particle.Store
	teams  *team.Manager
	bones  *bone.Store
	team   int
	center int
	c      chunk.Chunk
}

func newRig(tb testing.TB, flags []particle.Flag, base []mgl32.Vec3) *rig {
	tb.Helper()
	s := particle.NewStore(0)
	teams := team.NewManager()
	bones := bone.NewStore()
	center := bones.Add(bone.NewID(), bone.Identity())

	id := teams.Create("test", team.KindBoneCloth)
	c, err := s.Create(id, len(flags), particle.Generators{
		Flag: func(i int) particle.Flag { return flags[i] },
	})
	if err != nil {
		tb.Fatalf("create particles: %v", err)
	}
	for li := range base {
		s.BasePos[c.Start+li] = base[li]
	}
	_ = teams.Update(id, func(t *team.Team) {
		t.Particles = c
		t.Center = center
		t.Flags |= team.FlagActive
		t.Params.Drag = curve.Constant(0)
		t.Params.Gravity = mgl32.Vec3{0, -10, 0}
		t.Params.MaxVelocity = 100
	})
	return &rig{v: NewVerlet(s, teams, bones), s: s, teams: teams, bones: bones, team: id, center: center, c: c}
}

func (r *rig) step(dt float32) {
	r.v.Prepare(dt)
	r.v.Finish(r.v.Integrate(nil)).Complete()
}

func (r *rig) edit(fn func(t *team.Team)) {
	_ = r.teams.Update(r.team, fn)
}

func near(a, b mgl32.Vec3) bool {
	return a.Sub(b).Len() < 1e-4
}

func TestFreeFall(t *testing.T) {
	r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{0, 1, 0}})
	r.step(0.1)

	i := r.c.Start
	if !near(r.s.Velocity[i], mgl32.Vec3{0, -1, 0}) {
		t.Errorf("velocity = %v, want (0,-1,0)", r.s.Velocity[i])
	}
	if !near(r.s.Pos[i], mgl32.Vec3{0, 0.9, 0}) {
		t.Errorf("pos = %v, want (0,0.9,0)", r.s.Pos[i])
	}
	if !near(r.s.OldPos[i], mgl32.Vec3{0, 1, 0}) {
		t.Errorf("old pos = %v, want (0,1,0)", r.s.OldPos[i])
	}
	if !r.s.Flags()[i].Has(particle.FlagStep) {
		t.Error("particle should be marked as stepped")
	}
}

func TestKinematicSnapsToBase(t *testing.T) {
	r := newRig(t, []particle.Flag{fixed}, []mgl32.Vec3{{0, 1, 0}})
	for k := 0; k < 10; k++ {
		r.step(0.02)
	}
	i := r.c.Start
	if r.s.Pos[i] != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("fixed particle moved to %v", r.s.Pos[i])
	}
	r.s.BasePos[i] = mgl32.Vec3{1, 1, 0}
	r.step(0.02)
	if r.s.Pos[i] != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("fixed particle should follow its base, got %v", r.s.Pos[i])
	}
}

func TestForceModes(t *testing.T) {
	tests := []struct {
		mode team.ForceMode
		want float32
	}{
		{team.ForceContinuous, 0.05},
		{team.ForceAcceleration, 0.1},
		{team.ForceImpulse, 0.5},
		{team.ForceVelocityChange, 1},
	}
	for _, tt := range tests {
		r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{}})
		r.edit(func(tm *team.Team) { tm.Params.Gravity = mgl32.Vec3{} })
		r.s.Mass[r.c.Start] = 2
		r.step(0.1)

		r.edit(func(tm *team.Team) {
			tm.Force = mgl32.Vec3{1, 0, 0}
			tm.ForceMode = tt.mode
		})
		r.step(0.1)
		got := r.s.Velocity[r.c.Start].X()
		if math.Abs(float64(got-tt.want)) > 1e-5 {
			t.Errorf("mode %d: velocity x = %f, want %f", tt.mode, got, tt.want)
		}
		tm, _ := r.teams.Get(r.team)
		if tm.Force != (mgl32.Vec3{}) {
			t.Errorf("mode %d: force not consumed", tt.mode)
		}
	}
}

func TestWorldInfluence(t *testing.T) {
	tests := []struct {
		name      string
		influence float32
		want      float32
	}{
		{"carried", 0, 0.1},
		{"inertia", 1, 0},
		{"half", 0.5, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{}})
			r.edit(func(tm *team.Team) {
				tm.Params.Gravity = mgl32.Vec3{}
				tm.Params.MoveInfluence = tt.influence
				tm.Params.MaxMoveSpeed = 0
			})
			r.step(0.1)

			p := bone.Identity()
			p.Pos = mgl32.Vec3{0.1, 0, 0}
			r.bones.Set(r.center, p)
			r.v.Prepare(0.1)
			if got := r.s.Pos[r.c.Start].X(); math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("x = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTeleportReset(t *testing.T) {
	r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{0, 1, 0}})
	r.edit(func(tm *team.Team) { tm.Params.TeleportReset = true })
	for k := 0; k < 5; k++ {
		r.step(0.02)
	}
	i := r.c.Start
	if r.s.Pos[i].Y() >= 1 {
		t.Fatalf("particle should have fallen, got %v", r.s.Pos[i])
	}

	p := bone.Identity()
	p.Pos = mgl32.Vec3{10, 0, 0}
	r.bones.Set(r.center, p)
	r.s.BasePos[i] = mgl32.Vec3{10, 1, 0}
	r.v.Prepare(0.02)
	if r.s.Pos[i] != (mgl32.Vec3{10, 1, 0}) || r.s.Velocity[i] != (mgl32.Vec3{}) {
		t.Errorf("teleport should reset onto the base pose, got pos %v vel %v", r.s.Pos[i], r.s.Velocity[i])
	}
}

func TestTeleportCarriesWithoutReset(t *testing.T) {
	r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{0, 1, 0}})
	r.edit(func(tm *team.Team) { tm.Params.Gravity = mgl32.Vec3{} })
	r.step(0.02)

	p := bone.Identity()
	p.Pos = mgl32.Vec3{5, 0, 0}
	r.bones.Set(r.center, p)
	r.v.Prepare(0.02)
	if got := r.s.Pos[r.c.Start]; !near(got, mgl32.Vec3{5, 1, 0}) {
		t.Errorf("teleport should carry the particle rigidly, got %v", got)
	}
}

func TestPausedTeamDoesNotMove(t *testing.T) {
	r := newRig(t, []particle.Flag{free}, []mgl32.Vec3{{0, 1, 0}})
	r.step(0.02)
	before := r.s.Pos[r.c.Start]
	r.edit(func(tm *team.Team) { tm.TimeScale = 0 })
	for k := 0; k < 5; k++ {
		r.step(0.02)
	}
	if r.s.Pos[r.c.Start] != before {
		t.Errorf("paused team moved from %v to %v", before, r.s.Pos[r.c.Start])
	}
}
