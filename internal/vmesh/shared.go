// Package vmesh binds skinned meshes to the particle simulation.
//
// A [SharedMesh] holds the immutable bind data of one source mesh and is read
// concurrently by every instance. The [Manager] gives each instance a chunk
// of a global vertex store that is skinned every frame, fed to particles and
// read back from them. Render instances project the result into
// renderer-local buffers through weighted links.
package vmesh

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/dynamo"
)

// MaxInfluence is the number of bone weights per vertex.
const MaxInfluence = 4

// BoneWeight lists up to four bone slots with their skinning weights.
type BoneWeight struct {
	Bone   [MaxInfluence]int32
	Weight [MaxInfluence]float32
}

// Rigid returns a weight binding a vertex fully to one bone.
func Rigid(bone int) BoneWeight {
	return BoneWeight{Bone: [MaxInfluence]int32{int32(bone)}, Weight: [MaxInfluence]float32{1}}
}

type SharedMesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec3
	Weights   []BoneWeight
	// BindPoses are inverse bind matrices, one per bone slot.
	BindPoses []mgl32.Mat4
	Triangles [][3]int32

	refs atomic.Int32
	dead atomic.Bool
	hash uint64
}

// NewSharedMesh validates the bind data. Missing normals and tangents are
// filled with +Z and +X.
func NewSharedMesh(pos, normals, tangents []mgl32.Vec3, weights []BoneWeight, bindPoses []mgl32.Mat4, tris [][3]int32) (*SharedMesh, error) {
	m := &SharedMesh{
		Positions: pos,
		Normals:   normals,
		Tangents:  tangents,
		Weights:   weights,
		BindPoses: bindPoses,
		Triangles: tris,
	}
	if m.Normals == nil {
		m.Normals = fill(len(pos), mgl32.Vec3{0, 0, 1})
	}
	if m.Tangents == nil {
		m.Tangents = fill(len(pos), mgl32.Vec3{1, 0, 0})
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	m.hash = m.computeHash()
	return m, nil
}

func fill(n int, v mgl32.Vec3) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Verify checks the mesh is alive and internally consistent.
func (m *SharedMesh) Verify() error {
	if m == nil || m.dead.Load() {
		return dynamo.Verify("shared mesh", dynamo.ErrDestroyed)
	}
	n := len(m.Positions)
	if n == 0 {
		return dynamo.Verify("shared mesh", dynamo.ErrEmptyData)
	}
	if len(m.Normals) != n || len(m.Tangents) != n || len(m.Weights) != n {
		return dynamo.Verify("shared mesh attributes", dynamo.ErrIndexOutOfRange)
	}
	for v, w := range m.Weights {
		for k := 0; k < MaxInfluence; k++ {
			if w.Weight[k] > 0 && (w.Bone[k] < 0 || int(w.Bone[k]) >= len(m.BindPoses)) {
				return dynamo.VerifyAt("shared mesh weight", v, dynamo.ErrIndexOutOfRange)
			}
		}
	}
	for k, t := range m.Triangles {
		for _, v := range t {
			if v < 0 || int(v) >= n {
				return dynamo.VerifyAt("shared mesh triangle", k, dynamo.ErrIndexOutOfRange)
			}
		}
	}
	return nil
}

func (m *SharedMesh) VertexCount() int { return len(m.Positions) }

// Hash identifies the bind geometry and topology. Cloth data records it so a
// changed mesh is detected at init.
func (m *SharedMesh) Hash() uint64 { return m.hash }

func (m *SharedMesh) computeHash() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	put := func(f float32) {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		h.Write(buf[:])
	}
	for _, p := range m.Positions {
		put(p.X())
		put(p.Y())
		put(p.Z())
	}
	for _, t := range m.Triangles {
		for _, v := range t {
			binary.LittleEndian.PutUint32(buf[:], uint32(v))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Retain adds an instance reference.
func (m *SharedMesh) Retain() { m.refs.Add(1) }

// Release drops an instance reference and reports whether it was the last.
// The mesh fails Verify afterwards.
func (m *SharedMesh) Release() bool {
	if m.refs.Add(-1) > 0 {
		return false
	}
	m.dead.Store(true)
	return true
}

func (m *SharedMesh) Refs() int { return int(m.refs.Load()) }
