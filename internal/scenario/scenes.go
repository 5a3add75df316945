package scenario

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/sim"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
)

// rig is a set of transforms animated together around pivot.
type rig struct {
	ids   []bone.TransformID
	rest  []bone.Pose
	pivot mgl32.Vec3
}

func (r *rig) add(w *sim.World, pos mgl32.Vec3) bone.TransformID {
	id := bone.NewID()
	p := bone.Identity()
	p.Pos = pos
	w.Bones.Add(id, p)
	r.ids = append(r.ids, id)
	r.rest = append(r.rest, p)
	return id
}

// move applies a rigid offset and yaw about the pivot to every rest pose.
func (r *rig) move(w *sim.World, offset mgl32.Vec3, yaw float32) {
	q := mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
	for k, id := range r.ids {
		p := r.rest[k]
		p.Pos = r.pivot.Add(q.Rotate(p.Pos.Sub(r.pivot))).Add(offset)
		p.Rot = q.Mul(p.Rot)
		w.Bones.SetByID(id, p)
	}
}

// strand adds a bone cloth of n vertices from root along dir with the root
// fixed.
func (sc *Scene) strand(name string, kind team.Kind, n int, root, dir mgl32.Vec3, bp cloth.BuildParams, r *rig, center bone.TransformID) error {
	pos := make([]mgl32.Vec3, n)
	fixed := make([]bool, n)
	ids := make([]bone.TransformID, n)
	for i := range pos {
		pos[i] = root.Add(dir.Mul(float32(i)))
		ids[i] = r.add(sc.World, pos[i])
	}
	fixed[0] = true

	d := cloth.FromLine(pos, fixed, bp)
	c, err := sc.World.AddCloth(cloth.Config{Name: name, Kind: kind, Data: d, Bones: ids, Center: center})
	if err != nil {
		return err
	}
	sc.track(c, d)
	return nil
}

func buildChain(cfg *config.Config, rng *rand.Rand) (*Scene, error) {
	sc := &Scene{World: sim.NewWorld(cfg.World())}

	bp := cfg.Build()
	bp.Params.Radius = curve.Constant(0.05)
	bp.Params.Collision = false
	bp.Workers.RestoreRotation.Power = curve.Constant(0)
	bp.Workers.ClampRotation.MaxAngle = curve.Constant(180)

	r := &rig{}
	err := sc.strand("chain", team.KindBoneCloth, 10, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.1, 0, 0}, bp, r, uuid.Nil)
	return sc, err
}

func buildCapsule(cfg *config.Config, rng *rand.Rand) (*Scene, error) {
	w := sim.NewWorld(cfg.World())
	sc := &Scene{World: w}

	bp := cfg.Build()
	bp.Workers.RestoreRotation.Power = curve.Constant(0.05)
	if err := sc.strand("strand", team.KindBoneCloth, 8, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, -0.1, 0}, bp, &rig{}, uuid.Nil); err != nil {
		return sc, err
	}

	body := &rig{}
	id := body.add(w, mgl32.Vec3{-0.4, 0.6, 0})
	// axis Z, length 0.4, radius 0.08
	if _, err := w.CreateCollider(particle.ShapeCapsule, id, mgl32.Vec4{0.08, 0.08, 0.4, 2}); err != nil {
		return sc, err
	}
	phase := rng.Float64() * math.Pi
	sc.Animate = func(frame int, t float64) {
		x := float32(0.4 * (math.Sin(1.5*t+phase) - math.Sin(phase)))
		body.move(w, mgl32.Vec3{x, 0, 0}, 0)
	}
	return sc, nil
}

// grid lays out nx*nz vertices in the XZ plane centered on the origin.
func grid(nx, nz int, spacing float32) ([]mgl32.Vec3, [][3]int32) {
	pos := make([]mgl32.Vec3, 0, nx*nz)
	ox := spacing * float32(nx-1) / 2
	oz := spacing * float32(nz-1) / 2
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			pos = append(pos, mgl32.Vec3{float32(x)*spacing - ox, 0, float32(z)*spacing - oz})
		}
	}
	var tris [][3]int32
	for z := 0; z < nz-1; z++ {
		for x := 0; x < nx-1; x++ {
			v0 := int32(z*nx + x)
			v1 := v0 + 1
			v2 := v0 + int32(nx)
			v3 := v2 + 1
			tris = append(tris, [3]int32{v0, v2, v1}, [3]int32{v1, v2, v3})
		}
	}
	return pos, tris
}

func buildSheet(cfg *config.Config, rng *rand.Rand) (*Scene, error) {
	const n = 8
	w := sim.NewWorld(cfg.World())
	sc := &Scene{World: w}

	pos, tris := grid(n, n, 0.1)
	normals := make([]mgl32.Vec3, len(pos))
	tangents := make([]mgl32.Vec3, len(pos))
	weights := make([]vmesh.BoneWeight, len(pos))
	fixed := make([]bool, len(pos))
	for i := range pos {
		normals[i] = mgl32.Vec3{0, 1, 0}
		tangents[i] = mgl32.Vec3{1, 0, 0}
		weights[i] = vmesh.Rigid(0)
		fixed[i] = i < n
	}
	sh, err := vmesh.NewSharedMesh(pos, normals, tangents, weights, []mgl32.Mat4{mgl32.Ident4()}, tris)
	if err != nil {
		return sc, err
	}

	r := &rig{}
	root := r.add(w, mgl32.Vec3{0, 1, 0})
	d := cloth.FromMesh(sh, fixed, cfg.Build())
	c, err := w.AddCloth(cloth.Config{
		Name:            "sheet",
		Kind:            team.KindMeshCloth,
		Data:            d,
		Mesh:            sh,
		MeshBones:       []bone.TransformID{root},
		Render:          vmesh.LinkRigid(sh),
		RenderTransform: root,
	})
	if err != nil {
		return sc, err
	}
	sc.track(c, d)

	ball := &rig{}
	jitter := float32(rng.Float64()*0.1 - 0.05)
	id := ball.add(w, mgl32.Vec3{jitter, 0.75, -0.05})
	if _, err := w.CreateCollider(particle.ShapeSphere, id, mgl32.Vec4{0.2, 0.2}); err != nil {
		return sc, err
	}
	return sc, nil
}

func buildSpring(cfg *config.Config, rng *rand.Rand) (*Scene, error) {
	w := sim.NewWorld(cfg.World())
	sc := &Scene{World: w}

	r := &rig{}
	bp := cfg.BuildPreset("spring")
	if err := sc.strand("spring", team.KindBoneSpring, 5, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.15, 0, 0}, bp, r, uuid.Nil); err != nil {
		return sc, err
	}
	phase := rng.Float64() * math.Pi
	sc.Animate = func(frame int, t float64) {
		y := float32(0.1 * math.Sin(8*t+phase))
		r.move(w, mgl32.Vec3{0, y, 0}, 0)
	}
	return sc, nil
}

func buildBones(cfg *config.Config, rng *rand.Rand) (*Scene, error) {
	const strands = 4
	w := sim.NewWorld(cfg.World())
	sc := &Scene{World: w}

	center := mgl32.Vec3{0, 1, 0}
	r := &rig{pivot: center}
	body := r.add(w, center)
	if _, err := w.CreateCollider(particle.ShapeSphere, body, mgl32.Vec4{0.25, 0.25}); err != nil {
		return sc, err
	}

	bp := cfg.Build()
	for k := 0; k < strands; k++ {
		a := float64(k) * 2 * math.Pi / strands
		out := mgl32.Vec3{float32(math.Cos(a)), 0, float32(math.Sin(a))}
		root := center.Add(out.Mul(0.3))
		dir := out.Mul(0.05).Add(mgl32.Vec3{0, -0.08, 0})
		if err := sc.strand(fmt.Sprintf("skirt%d", k), team.KindBoneCloth, 6, root, dir, bp, r, body); err != nil {
			return sc, err
		}
	}
	phase := rng.Float64() * math.Pi
	sc.Animate = func(frame int, t float64) {
		r.move(w, mgl32.Vec3{}, float32(0.8*(math.Sin(t+phase)-math.Sin(phase))))
	}
	return sc, nil
}
