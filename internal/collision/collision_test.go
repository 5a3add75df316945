package collision

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const colliding = particle.FlagEnable | particle.FlagMove | particle.FlagCollision | particle.FlagStep

type world struct {
	s     *particle.Store
	teams *team.Manager
	m     *Manager
	team  int
	first int
}

func newWorld(t *testing.T, pos []mgl32.Vec3) *world {
	t.Helper()
	s := particle.NewStore(0)
	teams := team.NewManager()
	id := teams.Create("cloth", team.KindBoneCloth)
	c, err := s.Create(id, len(pos), particle.Generators{
		Flag:   func(int) particle.Flag { return colliding },
		Radius: func(int) float32 { return 0.02 },
	})
	require.NoError(t, err)
	for k, p := range pos {
		s.BasePos[c.Start+k] = p
		s.ResetPose(c.Start + k)
	}
	require.NoError(t, teams.Update(id, func(tm *team.Team) {
		tm.Particles = c
		tm.Flags |= team.FlagActive | team.FlagCollision
	}))
	return &world{s: s, teams: teams, m: NewManager(s, teams, DefaultParams()), team: id, first: c.Start}
}

func (w *world) step() {
	w.m.Extrude(0, w.m.Detect(0, nil)).Complete()
}

func TestSphereNeverPenetrated(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for k := 0; k < 200; k++ {
		start := randomDir(rng).Mul(0.6 + rng.Float32())
		w := newWorld(t, []mgl32.Vec3{start})
		c, err := w.m.CreateCollider(team.GlobalID, particle.ShapeSphere, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.5, 0.5, 0, 0})
		require.NoError(t, err)

		w.s.Next.Set(w.first, randomDir(rng).Mul(rng.Float32()*0.5))
		w.step()

		d := Distance(w.s, c, w.s.Next.Front()[w.first], w.s.Radius[w.first])
		require.GreaterOrEqual(t, d, float32(-1e-4), "sample %d", k)
	}
}

func randomDir(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		if l := v.Len(); l > 0.1 && l <= 1 {
			return v.Normalize()
		}
	}
}

func TestMovingCapsuleExtrudes(t *testing.T) {
	var pos []mgl32.Vec3
	for x := -0.5; x <= 0.5; x += 0.25 {
		pos = append(pos, mgl32.Vec3{float32(x), 0.25, 0})
	}
	w := newWorld(t, pos)
	c, err := w.m.CreateCollider(w.team, particle.ShapeCapsule, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.2, 0.2, 2, 0})
	require.NoError(t, err)

	w.m.Move(c, mgl32.Vec3{0, 0.1, 0}, mgl32.QuatIdent())
	w.step()

	for k := range pos {
		i := w.first + k
		assert.Equal(t, int32(c), w.s.ContactID[i])
		assert.Less(t, w.s.ContactDist[i], float32(0))
		d := Distance(w.s, c, w.s.Next.Front()[i], w.s.Radius[i])
		assert.GreaterOrEqual(t, d, float32(-1e-5))
	}

	// the collider stopped, so the next step leaves particles in place
	w.m.Commit()
	before := w.s.Next.Front()[w.first]
	w.s.OldPos[w.first] = before
	w.step()
	assert.InDelta(t, 0, w.s.Next.Front()[w.first].Sub(before).Len(), 1e-5)
}

func TestPlaneClip(t *testing.T) {
	w := newWorld(t, []mgl32.Vec3{{0, 1, 0}})
	_, err := w.m.CreateCollider(team.GlobalID, particle.ShapePlane, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{})
	require.NoError(t, err)

	w.s.Next.Set(w.first, mgl32.Vec3{0.3, -0.3, 0})
	w.step()
	got := w.s.Next.Front()[w.first]
	assert.InDelta(t, 0.02, got.Y(), 1e-5)
	assert.InDelta(t, 0.3, got.X(), 1e-5)
	assert.Greater(t, w.s.Friction[w.first], float32(0))
	assert.LessOrEqual(t, w.s.Friction[w.first], team.DefaultParams().Friction+1e-6)
}

func TestContactClearedEachStep(t *testing.T) {
	w := newWorld(t, []mgl32.Vec3{{0, 0.6, 0}})
	c, err := w.m.CreateCollider(team.GlobalID, particle.ShapeSphere, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.5, 0.5, 0, 0})
	require.NoError(t, err)

	w.s.Next.Set(w.first, mgl32.Vec3{0, 0.4, 0})
	w.step()
	assert.Equal(t, int32(c), w.s.ContactID[w.first])

	w.s.Next.Set(w.first, mgl32.Vec3{0, 3, 0})
	w.step()
	assert.Equal(t, int32(particle.NoIndex), w.s.ContactID[w.first])
	assert.Zero(t, w.s.ContactDist[w.first])
}

func TestIneligibleParticlesUntouched(t *testing.T) {
	tests := []struct {
		name  string
		apply func(w *world)
	}{
		{"no step flag", func(w *world) { w.s.Flags()[w.first] &^= particle.FlagStep }},
		{"kinematic", func(w *world) { w.s.Flags()[w.first] |= particle.FlagKinematic }},
		{"team collision off", func(w *world) {
			_ = w.teams.Update(w.team, func(tm *team.Team) { tm.Flags &^= team.FlagCollision })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t, []mgl32.Vec3{{0, 1, 0}})
			_, err := w.m.CreateCollider(team.GlobalID, particle.ShapePlane, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{})
			require.NoError(t, err)
			tt.apply(w)

			w.s.Next.Set(w.first, mgl32.Vec3{0, -0.3, 0})
			w.step()
			assert.Equal(t, mgl32.Vec3{0, -0.3, 0}, w.s.Next.Front()[w.first])
		})
	}
}

func TestColliderLists(t *testing.T) {
	w := newWorld(t, []mgl32.Vec3{{0, 1, 0}})
	a, err := w.m.CreateCollider(w.team, particle.ShapeSphere, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{0.1, 0.1, 0, 0})
	require.NoError(t, err)
	b, err := w.m.CreateCollider(w.team, particle.ShapeSphere, mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent(), mgl32.Vec4{0.1, 0.1, 0, 0})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{int32(a), int32(b)}, w.m.Colliders(w.team))

	require.NoError(t, w.m.AddCollider(w.team, a))
	assert.Len(t, w.m.Colliders(w.team), 2)

	for k := 0; k < 6; k++ {
		_, err := w.m.CreateCollider(w.team, particle.ShapePlane, mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec4{})
		require.NoError(t, err)
	}
	assert.Len(t, w.m.Colliders(w.team), 8)

	w.m.RemoveCollider(w.team, a)
	assert.NotContains(t, w.m.Colliders(w.team), int32(a))
	assert.Len(t, w.m.Colliders(w.team), 7)

	require.NoError(t, w.m.AddCollider(team.GlobalID, b))
	w.m.RemoveColliderParticle(b)
	assert.NotContains(t, w.m.Colliders(w.team), int32(b))
	assert.Empty(t, w.m.Colliders(team.GlobalID))
	assert.False(t, w.s.Flags()[b].Has(particle.FlagCollider))

	assert.ErrorIs(t, w.m.AddCollider(w.team, w.first), dynamo.ErrUnknownCollider)

	w.m.ReleaseTeam(w.team)
	assert.Empty(t, w.m.Colliders(w.team))
}

func TestSegment(t *testing.T) {
	w := newWorld(t, []mgl32.Vec3{{}})
	c, err := w.m.CreateCollider(w.team, particle.ShapeCapsule, mgl32.Vec3{0, 1, 0}, mgl32.QuatIdent(), mgl32.Vec4{0.1, 0.2, 2, 0})
	require.NoError(t, err)
	a, b, ra, rb := Segment(w.s, c)
	assert.InDelta(t, -1, a.X(), 1e-6)
	assert.InDelta(t, 1, b.X(), 1e-6)
	assert.InDelta(t, 1, a.Y(), 1e-6)
	assert.Equal(t, float32(0.1), ra)
	assert.Equal(t, float32(0.2), rb)

	s, err := w.m.CreateCollider(w.team, particle.ShapeSphere, mgl32.Vec3{2, 0, 0}, mgl32.QuatIdent(), mgl32.Vec4{0.3, 0.3, 0, 0})
	require.NoError(t, err)
	a, b, ra, _ = Segment(w.s, s)
	assert.Equal(t, a, b)
	assert.Equal(t, float32(0.3), ra)
}
