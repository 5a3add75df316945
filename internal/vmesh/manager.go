package vmesh

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/bone"
	"github.com/san-kum/clothsim/internal/chunk"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/mathx"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

// DefaultFixedFraction is the share of fixed weight above which a render
// vertex keeps its static pose.
const DefaultFixedFraction = 0.75

// Instance is one skinned copy of a shared mesh.
type Instance struct {
	ID     int
	Shared *SharedMesh
	// Vertices is the instance's chunk of the global vertex store.
	Vertices chunk.Chunk
	// Bones maps the shared mesh's bone slots to bone store slots.
	Bones []int
	binds [][]int32
	// parents holds each vertex's parent vertex, -1 for roots.
	parents  []int32
	inactive bool
}

// Manager owns the global virtual vertex store.
type Manager struct {
	mu        sync.RWMutex
	bones     *bone.Store
	instances *chunk.FreeList[Instance]
	renders   *chunk.FreeList[RenderInstance]
	alloc     *chunk.Array[int32]

	Pos   []mgl32.Vec3
	Rot   []mgl32.Quat
	Fixed []bool

	// FixedFraction is the render fallback threshold.
	FixedFraction float32
	Batch         int
}

func NewManager(bones *bone.Store) *Manager {
	return &Manager{
		bones:         bones,
		instances:     chunk.NewFreeList[Instance](),
		renders:       chunk.NewFreeList[RenderInstance](),
		alloc:         chunk.NewArray[int32](0),
		FixedFraction: DefaultFixedFraction,
		Batch:         256,
	}
}

// Use returns the use counts; a vertex is skinned only while its count is
// positive.
func (m *Manager) Use() []int32 { return m.alloc.Data() }

func (m *Manager) grow(n int) {
	for len(m.Pos) < n {
		m.Pos = append(m.Pos, mgl32.Vec3{})
		m.Rot = append(m.Rot, mgl32.QuatIdent())
		m.Fixed = append(m.Fixed, false)
	}
}

// AddInstance allocates vertices for shared skinned against bones.
func (m *Manager) AddInstance(shared *SharedMesh, bones []int) (int, error) {
	if err := shared.Verify(); err != nil {
		return -1, err
	}
	if len(bones) < len(shared.BindPoses) {
		return -1, dynamo.Verify("instance bones", dynamo.ErrIndexOutOfRange)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := shared.VertexCount()
	c := m.alloc.Add(n)
	m.grow(m.alloc.Len())
	for v := 0; v < n; v++ {
		i := c.Start + v
		m.Pos[i] = shared.Positions[v]
		m.Rot[i] = Frame(shared.Normals[v], shared.Tangents[v])
		m.Fixed[i] = false
	}
	shared.Retain()
	parents := make([]int32, n)
	for v := range parents {
		parents[v] = -1
	}
	id := m.instances.Add(Instance{Shared: shared, Vertices: c, Bones: bones, binds: make([][]int32, n), parents: parents})
	m.instances.Ptr(id).ID = id
	logger.Debug("vmesh instance added", zap.Int("instance", id), zap.Int("vertices", n), zap.Stringer("chunk", c))
	return id, nil
}

// RemoveInstance frees the instance's vertices and releases its shared mesh.
func (m *Manager) RemoveInstance(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances.Ptr(id)
	if inst == nil {
		return
	}
	m.alloc.Remove(inst.Vertices)
	if inst.Shared.Release() {
		logger.Debug("shared mesh released", zap.Int("instance", id))
	}
	m.instances.Remove(id)
}

// SetActive pauses or resumes skinning of an instance.
func (m *Manager) SetActive(id int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst := m.instances.Ptr(id); inst != nil {
		inst.inactive = !on
	}
}

func (m *Manager) Instance(id int) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances.Ptr(id)
	if inst == nil {
		return nil, dynamo.ErrDestroyed
	}
	return inst, nil
}

// Verify re-checks an instance's shared mesh after init.
func (m *Manager) Verify(id int) error {
	inst, err := m.Instance(id)
	if err != nil {
		return err
	}
	return inst.Shared.Verify()
}

// Index maps an instance-local vertex to the global vertex store.
func (m *Manager) Index(id, v int) (int, error) {
	inst, err := m.Instance(id)
	if err != nil {
		return -1, err
	}
	if v < 0 || v >= inst.Vertices.Length {
		return -1, dynamo.ErrIndexOutOfRange
	}
	return inst.Vertices.Start + v, nil
}

func (m *Manager) AddUse(id, v int) error {
	i, err := m.Index(id, v)
	if err != nil {
		return err
	}
	m.alloc.Data()[i]++
	return nil
}

func (m *Manager) RemoveUse(id, v int) error {
	i, err := m.Index(id, v)
	if err != nil {
		return err
	}
	if u := m.alloc.Data(); u[i] > 0 {
		u[i]--
	}
	return nil
}

func (m *Manager) InUse(id, v int) bool {
	i, err := m.Index(id, v)
	return err == nil && m.alloc.Data()[i] > 0
}

// SetParent records the vertex v hangs from. A vertex is only skinned while
// every vertex up its parent chain is in use.
func (m *Manager) SetParent(id, v, parent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances.Ptr(id)
	if inst == nil {
		return dynamo.ErrDestroyed
	}
	if v < 0 || v >= len(inst.parents) || parent >= len(inst.parents) || parent == v {
		return dynamo.ErrIndexOutOfRange
	}
	if parent < 0 {
		parent = -1
	}
	inst.parents[v] = int32(parent)
	return nil
}

// Eligible reports whether v and its whole parent chain are in use.
func (m *Manager) Eligible(id, v int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances.Ptr(id)
	if inst == nil || v < 0 || v >= len(inst.parents) {
		return false
	}
	return eligible(inst, m.alloc.Data(), v)
}

func eligible(inst *Instance, use []int32, v int) bool {
	// a chain longer than the vertex count has a cycle
	for steps := 0; v >= 0 && steps <= len(inst.parents); steps++ {
		if use[inst.Vertices.Start+v] <= 0 {
			return false
		}
		v = int(inst.parents[v])
	}
	return v < 0
}

// SetFixed marks a vertex as pinned to its skinned pose.
func (m *Manager) SetFixed(id, v int, fixed bool) error {
	i, err := m.Index(id, v)
	if err != nil {
		return err
	}
	m.Fixed[i] = fixed
	return nil
}

// BindParticle makes particle p contribute to vertex v on read back.
func (m *Manager) BindParticle(id, v, p int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances.Ptr(id)
	if inst == nil {
		return dynamo.ErrDestroyed
	}
	if v < 0 || v >= len(inst.binds) {
		return dynamo.ErrIndexOutOfRange
	}
	inst.binds[v] = append(inst.binds[v], int32(p))
	return nil
}

// UnbindParticles drops every particle binding of the instance.
func (m *Manager) UnbindParticles(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst := m.instances.Ptr(id); inst != nil {
		for v := range inst.binds {
			inst.binds[v] = nil
		}
	}
}

// VertexPose returns the current world pose of vertex v.
func (m *Manager) VertexPose(id, v int) (mgl32.Vec3, mgl32.Quat, error) {
	i, err := m.Index(id, v)
	if err != nil {
		return mgl32.Vec3{}, mgl32.QuatIdent(), err
	}
	return m.Pos[i], m.Rot[i], nil
}

// Frame builds the vertex rotation whose +Z is the normal and +X follows the
// tangent.
func Frame(normal, tangent mgl32.Vec3) mgl32.Quat {
	z, l := mathx.Normalize(normal)
	if l == 0 {
		return mgl32.QuatIdent()
	}
	x, l := mathx.Normalize(tangent.Sub(z.Mul(tangent.Dot(z))))
	if l == 0 {
		x, _ = mathx.Normalize(mathx.Perpendicular(z))
	}
	y := z.Cross(x)
	return mgl32.Mat4ToQuat(mgl32.Mat3FromCols(x, y, z).Mat4()).Normalize()
}

// Skin computes the world pose of every in-use vertex from the live bone
// poses.
func (m *Manager) Skin(dep *dynamo.Handle) *dynamo.Handle {
	return dynamo.Schedule(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		m.instances.Each(func(_ int, inst *Instance) bool {
			if !inst.inactive {
				m.skinInstance(inst)
			}
			return true
		})
	}, dep)
}

func (m *Manager) skinInstance(inst *Instance) {
	sh := inst.Shared
	if sh.Verify() != nil {
		return
	}
	mats := make([]mgl32.Mat4, len(sh.BindPoses))
	for k := range mats {
		mats[k] = m.bones.Pose(inst.Bones[k]).Matrix().Mul4(sh.BindPoses[k])
	}
	use := m.alloc.Data()
	dynamo.ParallelFor(inst.Vertices.Length, m.Batch, func(start, end int) {
		for v := start; v < end; v++ {
			i := inst.Vertices.Start + v
			if !eligible(inst, use, v) {
				continue
			}
			var pos, nrm, tan mgl32.Vec3
			var total float32
			w := sh.Weights[v]
			for k := 0; k < MaxInfluence; k++ {
				wk := w.Weight[k]
				if wk <= 0 {
					continue
				}
				mat := mats[w.Bone[k]]
				pos = pos.Add(mat.Mul4x1(sh.Positions[v].Vec4(1)).Vec3().Mul(wk))
				nrm = nrm.Add(mat.Mul4x1(sh.Normals[v].Vec4(0)).Vec3().Mul(wk))
				tan = tan.Add(mat.Mul4x1(sh.Tangents[v].Vec4(0)).Vec3().Mul(wk))
				total += wk
			}
			if total <= 0 {
				continue
			}
			m.Pos[i] = pos.Mul(1 / total)
			m.Rot[i] = Frame(nrm, tan)
		}
	})
}

// ReadBase copies vertex poses into the base pose of every mesh team
// particle bound to a vertex.
func (m *Manager) ReadBase(s *particle.Store, teams *team.Manager, dep *dynamo.Handle) *dynamo.Handle {
	return dynamo.ScheduleFor(s.Len(), m.Batch, func(start, end int) {
		flags := s.Flags()
		for i := start; i < end; i++ {
			if !flags[i].Has(particle.FlagEnable) || flags[i].Has(particle.FlagCollider) {
				continue
			}
			t := teams.Lookup(s.Team[i])
			if t == nil || !t.Kind.IsMesh() {
				continue
			}
			v := int(s.BindIndex[i])
			if v < 0 || v >= len(m.Pos) {
				continue
			}
			s.BasePos[i] = m.Pos[v]
			s.BaseRot[i] = m.Rot[v]
		}
	}, dep)
}

// ReadParticles writes bound particle poses back to their vertices. Kinematic
// particles of teams without fixed rotation are left out of the rotation
// average so fixed points keep the skinned orientation from dominating.
func (m *Manager) ReadParticles(s *particle.Store, teams *team.Manager, dep *dynamo.Handle) *dynamo.Handle {
	return dynamo.Schedule(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		flags := s.Flags()
		m.instances.Each(func(_ int, inst *Instance) bool {
			dynamo.ParallelFor(len(inst.binds), m.Batch, func(start, end int) {
				for v := start; v < end; v++ {
					m.readVertex(s, teams, flags, inst.Vertices.Start+v, inst.binds[v])
				}
			})
			return true
		})
	}, dep)
}

func (m *Manager) readVertex(s *particle.Store, teams *team.Manager, flags []particle.Flag, i int, binds []int32) {
	var pos mgl32.Vec3
	var rot mathx.QuatAccum
	n := 0
	for _, pi := range binds {
		p := int(pi)
		if p >= len(flags) || !flags[p].Has(particle.FlagEnable) {
			continue
		}
		t := teams.Lookup(s.Team[p])
		if t == nil || !t.Active() {
			continue
		}
		pos = pos.Add(s.Pos[p])
		n++
		if flags[p].Has(particle.FlagKinematic) && !t.Flags.Has(team.FlagFixedRotation) {
			continue
		}
		rot.Add(s.Rot[p], 1)
	}
	if n == 0 {
		return
	}
	m.Pos[i] = pos.Mul(1 / float32(n))
	m.Rot[i] = rot.Result(m.Rot[i])
}
