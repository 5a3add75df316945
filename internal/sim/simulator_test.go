package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
)

// buildChain hangs n particles from a fixed root, laid out along dir.
func buildChain(w *World, n int, root, dir mgl32.Vec3) (*cloth.Cloth, error) {
	pos := make([]mgl32.Vec3, n)
	fixed := make([]bool, n)
	ids := make([]bone.TransformID, n)
	for i := range pos {
		pos[i] = root.Add(dir.Mul(float32(i)))
		ids[i] = bone.NewID()
		p := bone.Identity()
		p.Pos = pos[i]
		w.Bones.Add(ids[i], p)
	}
	fixed[0] = true

	bp := cloth.DefaultBuildParams()
	bp.Workers.RestoreRotation.Power = curve.Constant(0)
	bp.Workers.ClampRotation.MaxAngle = curve.Constant(180)
	return w.AddCloth(cloth.Config{Name: "chain", Kind: team.KindBoneCloth, Data: cloth.FromLine(pos, fixed, bp), Bones: ids})
}

func chain(t testing.TB, w *World, n int, root, dir mgl32.Vec3) *cloth.Cloth {
	t.Helper()
	c, err := buildChain(w, n, root, dir)
	if err != nil {
		t.Fatalf("add cloth: %v", err)
	}
	return c
}

// sheet is one square cell split along the 1-2 diagonal.
func sheet(t testing.TB) *vmesh.SharedMesh {
	t.Helper()
	pos := []mgl32.Vec3{{0, 0, 0}, {0.1, 0, 0}, {0, 0, 0.1}, {0.1, 0, 0.1}}
	weights := make([]vmesh.BoneWeight, len(pos))
	for i := range weights {
		weights[i] = vmesh.Rigid(0)
	}
	sh, err := vmesh.NewSharedMesh(pos, nil, nil, weights, []mgl32.Mat4{mgl32.Ident4()}, [][3]int32{{0, 2, 1}, {1, 2, 3}})
	if err != nil {
		t.Fatalf("shared mesh: %v", err)
	}
	return sh
}

type countMetric struct {
	count int
}

func (m *countMetric) Name() string { return "count" }
func (m *countMetric) Observe(s *particle.Store, teams *team.Manager, t float64) {
	m.count++
}
func (m *countMetric) Value() float64 { return float64(m.count) }
func (m *countMetric) Reset()         { m.count = 0 }

func TestSimulatorRun(t *testing.T) {
	w := NewWorld(DefaultConfig())
	defer w.Close()
	chain(t, w, 4, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})

	sim := New(w)
	metric := &countMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), RunConfig{Dt: 1.0 / 60, Frames: 20, RecordEvery: 5, ValidateState: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StepsTaken != 20 {
		t.Errorf("expected 20 steps, got %d", result.StepsTaken)
	}
	if len(result.Times) != 20 || len(result.Energy) != 20 {
		t.Errorf("expected 20 samples, got %d times and %d energies", len(result.Times), len(result.Energy))
	}
	if len(result.Snapshots) != 4 {
		t.Errorf("expected 4 snapshots, got %d", len(result.Snapshots))
	}
	if metric.count != 20 || result.Metrics["count"] != 20 {
		t.Errorf("expected 20 observations, got %d", metric.count)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(NewWorld(DefaultConfig()))

	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{"zero dt", RunConfig{Dt: 0, Frames: 10}},
		{"negative dt", RunConfig{Dt: -0.1, Frames: 10}},
		{"zero frames", RunConfig{Dt: 0.1, Frames: 0}},
		{"negative record", RunConfig{Dt: 0.1, Frames: 10, RecordEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sim.Run(context.Background(), tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	w := NewWorld(DefaultConfig())
	chain(t, w, 3, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(w).Run(ctx, RunConfig{Dt: 0.01, Frames: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("no frame should run after cancel, got %d", result.StepsTaken)
	}
}

func TestRunWithCallbackStops(t *testing.T) {
	w := NewWorld(DefaultConfig())
	chain(t, w, 3, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})

	frames := 0
	err := New(w).RunWithCallback(context.Background(), RunConfig{Dt: 0.01, Frames: 100}, func(w *World, frame int) bool {
		frames = frame
		return frame < 7
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if frames != 7 || w.Frame() != 7 {
		t.Errorf("expected to stop at frame 7, got %d", frames)
	}
}

func TestFixedParticleNeverMoves(t *testing.T) {
	w := NewWorld(DefaultConfig())
	c := chain(t, w, 6, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.1, 0, 0})
	root := c.Particles().Start

	for i := 0; i < 120; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := w.Particles.Pos[root]; got != (mgl32.Vec3{0, 1, 0}) {
			t.Fatalf("frame %d: fixed particle moved to %v", i, got)
		}
	}
	tip := c.Particles().End() - 1
	if w.Particles.Pos[tip].Y() >= 1 {
		t.Errorf("free end should fall, got %v", w.Particles.Pos[tip])
	}
}

func TestBoneWriteBack(t *testing.T) {
	w := NewWorld(DefaultConfig())
	c := chain(t, w, 3, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})
	for i := 0; i < 10; i++ {
		_ = w.Step(1.0 / 60)
	}
	tip := c.Particles().End() - 1
	slot := int(w.Particles.BindIndex[tip])
	p, ok := w.Bones.Written(slot)
	if !ok {
		t.Fatal("tip bone should have a written pose")
	}
	if p.Pos != w.Particles.Pos[tip] {
		t.Errorf("written pose %v != particle %v", p.Pos, w.Particles.Pos[tip])
	}
	if _, ok := w.Bones.Written(int(w.Particles.BindIndex[c.Particles().Start])); ok {
		t.Error("fixed root must not write its bone")
	}
}

func TestSphereNonPenetration(t *testing.T) {
	w := NewWorld(DefaultConfig())
	c := chain(t, w, 6, mgl32.Vec3{-0.25, 1, 0}, mgl32.Vec3{0.1, 0, 0})

	id := bone.NewID()
	p := bone.Identity()
	p.Pos = mgl32.Vec3{0.1, 0.6, 0}
	w.Bones.Add(id, p)
	sphere, err := w.CreateCollider(particle.ShapeSphere, id, mgl32.Vec4{0.3, 0.3})
	if err != nil {
		t.Fatalf("create collider: %v", err)
	}

	s := w.Particles
	touched := false
	for f := 0; f < 180; f++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("step %d: %v", f, err)
		}
		for i := c.Particles().Start + 1; i < c.Particles().End(); i++ {
			d := collision.Distance(s, sphere, s.Pos[i], s.Radius[i])
			if d < -1e-3 {
				t.Fatalf("frame %d: particle %d penetrates by %f", f, i, -d)
			}
			if s.ContactID[i] == int32(sphere) {
				touched = true
			}
		}
	}
	if !touched {
		t.Error("chain never reached the sphere")
	}
}

func TestCapsuleExtrusion(t *testing.T) {
	w := NewWorld(DefaultConfig())
	c := chain(t, w, 5, mgl32.Vec3{}, mgl32.Vec3{0, -0.1, 0})

	id := bone.NewID()
	p := bone.Identity()
	p.Pos = mgl32.Vec3{-0.3, -0.3, 0}
	w.Bones.Add(id, p)
	// axis Z, length 0.4, radius 0.1
	capsule, err := w.CreateCollider(particle.ShapeCapsule, id, mgl32.Vec4{0.1, 0.1, 0.4, 2})
	if err != nil {
		t.Fatalf("create collider: %v", err)
	}

	s := w.Particles
	for f := 0; f < 60; f++ {
		if f < 30 {
			p.Pos = p.Pos.Add(mgl32.Vec3{0.01, 0, 0})
			w.Bones.SetByID(id, p)
		}
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("step %d: %v", f, err)
		}
		for i := c.Particles().Start + 1; i < c.Particles().End(); i++ {
			if d := collision.Distance(s, capsule, s.Pos[i], s.Radius[i]); d < -5e-3 {
				t.Fatalf("frame %d: particle %d penetrates capsule by %f", f, i, -d)
			}
		}
	}
	tip := c.Particles().End() - 1
	if s.Pos[tip].X() <= 0 {
		t.Errorf("capsule should have pushed the chain toward +X, tip at %v", s.Pos[tip])
	}
}

func TestSetEnableIdempotent(t *testing.T) {
	w := NewWorld(DefaultConfig())
	c := chain(t, w, 4, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})
	for i := 0; i < 5; i++ {
		_ = w.Step(1.0 / 60)
	}
	snap := w.Snapshot(nil)

	w.SetEnable(c.Particles(), false)
	w.SetEnable(c.Particles(), false)
	for i := 0; i < 5; i++ {
		_ = w.Step(1.0 / 60)
	}
	after := w.Snapshot(nil)
	for i := c.Particles().Start; i < c.Particles().End(); i++ {
		if after[i] != snap[i] {
			t.Fatalf("disabled particle %d moved from %v to %v", i, snap[i], after[i])
		}
	}

	w.SetEnable(c.Particles(), true)
	w.SetEnable(c.Particles(), true)
	_ = w.Step(1.0 / 60)
	if w.Particles.Pos[c.Particles().End()-1] == snap[c.Particles().End()-1] {
		t.Error("re-enabled particles should simulate again")
	}
}

func TestRuntimeErrorSkipsTeam(t *testing.T) {
	w := NewWorld(DefaultConfig())
	sh := sheet(t)
	root := bone.NewID()
	w.Bones.Add(root, bone.Identity())
	c, err := w.AddCloth(cloth.Config{
		Name:      "sheet",
		Kind:      team.KindMeshCloth,
		Data:      cloth.FromMesh(sh, []bool{true, true, false, false}, cloth.DefaultBuildParams()),
		Mesh:      sh,
		MeshBones: []bone.TransformID{root},
	})
	if err != nil {
		t.Fatalf("add cloth: %v", err)
	}
	_ = w.Step(1.0 / 60)

	for !sh.Release() {
	}
	err = w.Step(1.0 / 60)
	if !errors.Is(err, dynamo.ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", err)
	}
	before := w.Snapshot(nil)
	_ = w.Step(1.0 / 60)
	tip := c.Particles().End() - 1
	if w.Particles.Pos[tip] != before[tip] {
		t.Error("team with a runtime error must not be simulated")
	}
}

func TestCloseCollectsDeformers(t *testing.T) {
	w := NewWorld(DefaultConfig())
	sh := sheet(t)
	root := bone.NewID()
	w.Bones.Add(root, bone.Identity())
	c, err := w.AddCloth(cloth.Config{
		Name:      "sheet",
		Kind:      team.KindMeshCloth,
		Data:      cloth.FromMesh(sh, []bool{true, true, false, false}, cloth.DefaultBuildParams()),
		Mesh:      sh,
		MeshBones: []bone.TransformID{root},
	})
	if err != nil {
		t.Fatalf("add cloth: %v", err)
	}
	inst := c.Instance()
	w.Close()
	if _, err := w.Meshes.Instance(inst); !errors.Is(err, dynamo.ErrDestroyed) {
		t.Errorf("instance should be destroyed, got %v", err)
	}
	if w.Graph.Len() != 0 {
		t.Errorf("expected empty status graph, got %d nodes", w.Graph.Len())
	}
}

func TestCloseCollectsRenderDeformer(t *testing.T) {
	w := NewWorld(DefaultConfig())
	sh := sheet(t)
	root := bone.NewID()
	w.Bones.Add(root, bone.Identity())
	c, err := w.AddCloth(cloth.Config{
		Name:      "sheet",
		Kind:      team.KindMeshCloth,
		Data:      cloth.FromMesh(sh, []bool{true, true, false, false}, cloth.DefaultBuildParams()),
		Mesh:      sh,
		MeshBones: []bone.TransformID{root},
		Render:    vmesh.LinkRigid(sh),
	})
	if err != nil {
		t.Fatalf("add cloth: %v", err)
	}
	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("step: %v", err)
	}
	inst, rid := c.Instance(), c.Render()
	w.Close()

	if _, err := w.Meshes.Instance(inst); !errors.Is(err, dynamo.ErrDestroyed) {
		t.Errorf("instance should be destroyed, got %v", err)
	}
	if _, err := w.Meshes.Render(rid); !errors.Is(err, dynamo.ErrDestroyed) {
		t.Errorf("render instance should be destroyed, got %v", err)
	}
	if w.Graph.Len() != 0 {
		t.Errorf("expected empty status graph, got %d nodes", w.Graph.Len())
	}
	if sh.Refs() != 0 {
		t.Errorf("shared mesh still has %d references", sh.Refs())
	}
}

func TestRemoveParticleDetachesTeam(t *testing.T) {
	w := NewWorld(DefaultConfig())
	a := w.CreateTeam("a", team.KindBoneCloth)
	b := w.CreateTeam("b", team.KindBoneCloth)

	ca, err := w.CreateParticle(a, 2, particle.Generators{})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	w.RemoveParticle(ca)
	cb, err := w.CreateParticle(b, 2, particle.Generators{})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if cb.Start != ca.Start {
		t.Fatalf("expected freed range to be reused, got %v after %v", cb, ca)
	}

	ta, _ := w.Teams.Get(a)
	tb, _ := w.Teams.Get(b)
	if ta.Particles.IsValid() {
		t.Errorf("team a still owns %v", ta.Particles)
	}
	if tb.Particles != cb {
		t.Errorf("team b chunk %v, want %v", tb.Particles, cb)
	}
	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("step: %v", err)
	}
}

func TestEnsemble(t *testing.T) {
	factory := func(seed int64) (*World, error) {
		w := NewWorld(DefaultConfig())
		_, err := buildChain(w, 3+int(seed), mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})
		return w, err
	}
	results, err := NewEnsemble(factory, 3, 0).
		WithMetrics(func() []Metric { return []Metric{&countMetric{}} }).
		Run(context.Background(), RunConfig{Dt: 0.01, Frames: 10})
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Metrics["count"] != 10 {
			t.Errorf("run %d: expected 10 observations, got %v", i, r.Metrics["count"])
		}
	}
}

func TestSnapshotPool(t *testing.T) {
	w := NewWorld(DefaultConfig())
	chain(t, w, 3, mgl32.Vec3{}, mgl32.Vec3{0.1, 0, 0})
	pool := NewSnapshotPool()

	s := pool.Capture(w)
	if len(s) != w.Particles.Len() {
		t.Fatalf("snapshot length %d, want %d", len(s), w.Particles.Len())
	}
	pool.Put(s)
	if got := pool.Capture(w); len(got) != w.Particles.Len() {
		t.Errorf("recycled snapshot length %d, want %d", len(got), w.Particles.Len())
	}
}
