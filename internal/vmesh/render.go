package vmesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/mathx"
)

// Link ties a render vertex to one virtual vertex. Offset and Normal are in
// the virtual vertex's local frame.
type Link struct {
	// Source selects the virtual instance when render meshes are merged.
	Source int
	Vertex int
	Weight float32
	Offset mgl32.Vec3
	Normal mgl32.Vec3
}

// RenderMesh is the shared definition of a renderer vertex buffer.
type RenderMesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Links     [][]Link
	Sources   int
}

// NewRenderMesh checks that every vertex has links into one of sources
// virtual instances.
func NewRenderMesh(pos, normals []mgl32.Vec3, links [][]Link, sources int) (*RenderMesh, error) {
	if len(pos) == 0 {
		return nil, dynamo.Verify("render mesh", dynamo.ErrEmptyData)
	}
	if len(normals) != len(pos) || len(links) != len(pos) {
		return nil, dynamo.Verify("render mesh attributes", dynamo.ErrIndexOutOfRange)
	}
	for v, ls := range links {
		for _, l := range ls {
			if l.Source < 0 || l.Source >= sources || l.Vertex < 0 {
				return nil, dynamo.VerifyAt("render link", v, dynamo.ErrIndexOutOfRange)
			}
		}
	}
	return &RenderMesh{Positions: pos, Normals: normals, Links: links, Sources: sources}, nil
}

// LinkRigid builds a render mesh that mirrors a shared mesh one to one. The
// render space is the bind space.
func LinkRigid(sh *SharedMesh) *RenderMesh {
	n := sh.VertexCount()
	links := make([][]Link, n)
	for v := range links {
		links[v] = []Link{{Vertex: v, Weight: 1, Normal: mgl32.Vec3{0, 0, 1}}}
	}
	return &RenderMesh{Positions: sh.Positions, Normals: sh.Normals, Links: links, Sources: 1}
}

// RenderInstance holds the renderer-local output of one render mesh.
type RenderInstance struct {
	ID      int
	Mesh    *RenderMesh
	Sources []int
	// Transform is the bone slot of the renderer; outputs are local to it.
	Transform int

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	InUse     []bool
	inactive  bool
}

// AddRender binds mesh to the given virtual instances.
func (m *Manager) AddRender(mesh *RenderMesh, sources []int, transform int) (int, error) {
	if len(sources) != mesh.Sources {
		return -1, dynamo.Verify("render sources", dynamo.ErrIndexOutOfRange)
	}
	for _, id := range sources {
		inst, err := m.Instance(id)
		if err != nil {
			return -1, err
		}
		for v, ls := range mesh.Links {
			for _, l := range ls {
				if sources[l.Source] == id && l.Vertex >= inst.Vertices.Length {
					return -1, dynamo.VerifyAt("render link", v, dynamo.ErrIndexOutOfRange)
				}
			}
		}
	}
	n := len(mesh.Positions)
	r := RenderInstance{
		Mesh:      mesh,
		Sources:   sources,
		Transform: transform,
		Positions: append([]mgl32.Vec3(nil), mesh.Positions...),
		Normals:   append([]mgl32.Vec3(nil), mesh.Normals...),
		InUse:     make([]bool, n),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.renders.Add(r)
	m.renders.Ptr(id).ID = id
	return id, nil
}

func (m *Manager) RemoveRender(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders.Remove(id)
}

// SetRenderActive pauses or resumes write back of a render instance. A
// paused instance keeps its last output.
func (m *Manager) SetRenderActive(id int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.renders.Ptr(id); r != nil {
		r.inactive = !on
	}
}

func (m *Manager) Render(id int) (*RenderInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.renders.Ptr(id)
	if r == nil {
		return nil, dynamo.ErrDestroyed
	}
	return r, nil
}

// WriteRender projects the virtual vertices into every render instance. A
// vertex blends only links whose virtual vertex is in use; it falls back to
// the static pose when none is, or when fixed vertices carry more than
// FixedFraction of the blended weight.
func (m *Manager) WriteRender(dep *dynamo.Handle) *dynamo.Handle {
	return dynamo.Schedule(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		m.renders.Each(func(_ int, r *RenderInstance) bool {
			if !r.inactive {
				m.writeRender(r)
			}
			return true
		})
	}, dep)
}

func (m *Manager) writeRender(r *RenderInstance) {
	starts := make([]int, len(r.Sources))
	for k, id := range r.Sources {
		inst := m.instances.Ptr(id)
		if inst == nil {
			starts[k] = -1
			continue
		}
		starts[k] = inst.Vertices.Start
	}
	tp := m.bones.Pose(r.Transform)
	if tp.Scale == (mgl32.Vec3{}) {
		tp = bone.Identity()
	}
	inv := tp.Rot.Inverse()
	use := m.alloc.Data()
	limit := m.FixedFraction

	dynamo.ParallelFor(len(r.Positions), m.Batch, func(start, end int) {
		for v := start; v < end; v++ {
			var pos, nrm mgl32.Vec3
			var total, fixed float32
			for _, l := range r.Mesh.Links[v] {
				base := starts[l.Source]
				if base < 0 || l.Weight <= 0 {
					continue
				}
				i := base + l.Vertex
				if use[i] <= 0 {
					continue
				}
				pos = pos.Add(m.Pos[i].Add(m.Rot[i].Rotate(l.Offset)).Mul(l.Weight))
				nrm = nrm.Add(m.Rot[i].Rotate(l.Normal).Mul(l.Weight))
				total += l.Weight
				if m.Fixed[i] {
					fixed += l.Weight
				}
			}
			if total <= 0 || fixed/total > limit {
				r.InUse[v] = false
				r.Positions[v] = r.Mesh.Positions[v]
				r.Normals[v] = r.Mesh.Normals[v]
				continue
			}
			r.InUse[v] = true
			r.Positions[v] = mathx.InverseTransformPoint(tp.Pos, tp.Rot, tp.Scale, pos.Mul(1/total))
			n, _ := mathx.Normalize(inv.Rotate(nrm))
			r.Normals[v] = n
		}
	})
}
