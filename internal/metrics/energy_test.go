package metrics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

type rig struct {
	s     *particle.Store
	teams *team.Manager
	id    int
	first int
}

func newRig(t *testing.T, n int, gen particle.Generators) *rig {
	t.Helper()
	s := particle.NewStore(n)
	teams := team.NewManager()
	id := teams.Create("test", team.KindBoneCloth)
	c, err := s.Create(id, n, gen)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := teams.Update(id, func(tm *team.Team) {
		tm.Particles = c
		tm.Flags |= team.FlagActive | team.FlagCollision
	}); err != nil {
		t.Fatal(err)
	}
	return &rig{s: s, teams: teams, id: id, first: c.Start}
}

func TestEnergy(t *testing.T) {
	r := newRig(t, 2, particle.Generators{})
	r.s.Velocity[r.first] = mgl32.Vec3{1, 0, 0}
	r.s.Velocity[r.first+1] = mgl32.Vec3{0, 2, 0}

	m := NewEnergy()
	m.Observe(r.s, r.teams, 0)
	if math.Abs(m.Value()-2.5) > 1e-6 {
		t.Errorf("expected energy 2.5, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyIgnoresKinematic(t *testing.T) {
	r := newRig(t, 1, particle.Generators{
		Flag: func(int) particle.Flag { return particle.FlagEnable | particle.FlagKinematic },
	})
	r.s.Velocity[r.first] = mgl32.Vec3{5, 0, 0}

	m := NewEnergy()
	m.Observe(r.s, r.teams, 0)
	if m.Value() != 0 {
		t.Errorf("kinematic particles carry no energy, got %f", m.Value())
	}
}

func TestEnergyTailWindow(t *testing.T) {
	r := newRig(t, 1, particle.Generators{})
	m := NewEnergyTail(2)

	for _, v := range []float32{10, 1, 0} {
		r.s.Velocity[r.first] = mgl32.Vec3{v, 0, 0}
		m.Observe(r.s, r.teams, 0)
	}
	if math.Abs(m.Value()-0.5) > 1e-6 {
		t.Errorf("expected peak 0.5 over the last two frames, got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	r := newRig(t, 1, particle.Generators{})
	m := NewStability(10)

	m.Observe(r.s, r.teams, 0)
	r.s.Pos[r.first] = mgl32.Vec3{float32(math.NaN()), 0, 0}
	m.Observe(r.s, r.teams, 0)

	if m.Value() != 0.5 {
		t.Errorf("expected stability 0.5, got %f", m.Value())
	}
}

func TestFixedDrift(t *testing.T) {
	r := newRig(t, 2, particle.Generators{
		Flag: func(i int) particle.Flag {
			if i == 0 {
				return particle.FlagEnable | particle.FlagKinematic
			}
			return particle.FlagEnable | particle.FlagMove
		},
	})
	r.s.Pos[r.first] = mgl32.Vec3{0, 0.25, 0}
	r.s.Pos[r.first+1] = mgl32.Vec3{0, 5, 0}

	m := NewFixedDrift()
	m.Observe(r.s, r.teams, 0)
	if math.Abs(m.Value()-0.25) > 1e-6 {
		t.Errorf("expected drift 0.25, got %f", m.Value())
	}
}

func TestStretch(t *testing.T) {
	r := newRig(t, 2, particle.Generators{})
	r.s.Pos[r.first+1] = mgl32.Vec3{1.2, 0, 0}

	m := NewStretch([]Edge{{A: r.first, B: r.first + 1, Length: 1}})
	m.Observe(r.s, r.teams, 0)
	if math.Abs(m.Value()-0.2) > 1e-5 {
		t.Errorf("expected stretch 0.2, got %f", m.Value())
	}
}

func TestPenetration(t *testing.T) {
	r := newRig(t, 1, particle.Generators{
		Flag:   func(int) particle.Flag { return particle.FlagEnable | particle.FlagMove | particle.FlagCollision },
		Radius: func(int) float32 { return 0.1 },
	})
	cm := collision.NewManager(r.s, r.teams, collision.DefaultParams())
	c, err := cm.CreateCollider(team.GlobalID, particle.ShapeSphere, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.5})
	if err != nil {
		t.Fatalf("collider: %v", err)
	}
	if err := cm.AddCollider(r.id, c); err != nil {
		t.Fatalf("add collider: %v", err)
	}
	r.s.Pos[r.first] = mgl32.Vec3{0.5, 0, 0}

	m := NewPenetration(cm)
	m.Observe(r.s, r.teams, 0)
	if math.Abs(m.Value()-0.1) > 1e-4 {
		t.Errorf("expected penetration 0.1, got %f", m.Value())
	}
}
