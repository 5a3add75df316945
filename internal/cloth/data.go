package cloth

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/team"
)

const (
	// DataVersion is the current authored data format.
	DataVersion = 3
	// MinDataVersion is the oldest format still accepted with a warning.
	MinDataVersion = 2
)

// VertexFlag is the authored role of a vertex.
type VertexFlag uint8

const (
	VertexInvalid VertexFlag = iota
	VertexFixed
	VertexMove
)

func (f VertexFlag) String() string {
	switch f {
	case VertexFixed:
		return "fixed"
	case VertexMove:
		return "move"
	}
	return "invalid"
}

// WorkerParams are the constraint settings authored with the data.
type WorkerParams struct {
	Distance         constraint.DistanceParams        `yaml:"distance"`
	RestoreRotation  constraint.RestoreRotationParams `yaml:"restore_rotation"`
	ClampRotation    constraint.ClampRotationParams   `yaml:"clamp_rotation"`
	ClampDistance    constraint.ClampDistanceParams   `yaml:"clamp_distance"`
	ClampPosition    constraint.ClampPositionParams   `yaml:"clamp_position"`
	UseClampPosition bool                             `yaml:"use_clamp_position"`
	Bend             constraint.BendParams            `yaml:"bend"`
	Spring           constraint.SpringParams          `yaml:"spring"`
	Adjust           constraint.AdjustRotationParams  `yaml:"adjust_rotation"`
	Penetration      constraint.PenetrationParams     `yaml:"penetration"`
}

func DefaultWorkerParams() WorkerParams {
	return WorkerParams{
		Distance:        constraint.DefaultDistanceParams(),
		RestoreRotation: constraint.RestoreRotationParams{Power: curve.Linear(0.3, 0.1)},
		ClampRotation:   constraint.ClampRotationParams{MaxAngle: curve.Linear(60, 80)},
		ClampDistance:   constraint.DefaultClampDistanceParams(),
		ClampPosition:   constraint.DefaultClampPositionParams(),
		Bend:            constraint.BendParams{Stiffness: curve.Constant(0.5)},
		Spring:          constraint.SpringParams{Power: curve.Constant(0.05)},
		Adjust:          constraint.DefaultAdjustRotationParams(),
		Penetration:     constraint.DefaultPenetrationParams(),
	}
}

// Data is the serialized cloth record produced by authoring tools. Indices
// are vertex indices; vertex i becomes the team's i-th particle.
type Data struct {
	Version  int    `yaml:"version"`
	Hash     uint64 `yaml:"hash"`
	MeshHash uint64 `yaml:"mesh_hash"`

	Flags   []VertexFlag `yaml:"flags"`
	Depth   []float32    `yaml:"depth"`
	RestPos []mgl32.Vec3 `yaml:"rest_pos"`
	RestRot []mgl32.Quat `yaml:"rest_rot"`
	Parents []int        `yaml:"parents"`

	Distances    [constraint.DistanceTypeCount][]constraint.Pair `yaml:"distances"`
	RestoreLinks []constraint.Link                               `yaml:"restore_links"`
	ClampLinks   []constraint.Link                               `yaml:"clamp_links"`
	Targets      []constraint.Target                             `yaml:"targets"`
	Triangles    []constraint.Triangle                           `yaml:"triangles"`
	Quads        []constraint.Quad                               `yaml:"quads"`

	Params  team.Params  `yaml:"params"`
	Workers WorkerParams `yaml:"workers"`
}

func (d *Data) Count() int { return len(d.Flags) }

// Verify checks the record for integrity. An out of date but readable format
// returns an error matching dynamo.ErrOldVersion, which callers treat as a
// warning.
func (d *Data) Verify() error {
	if d == nil || len(d.Flags) == 0 {
		return dynamo.Verify("cloth data", dynamo.ErrEmptyData)
	}
	if d.Version > DataVersion || d.Version < MinDataVersion {
		return dynamo.Verify("cloth data version", dynamo.ErrVersionMismatch)
	}
	n := len(d.Flags)
	if len(d.Depth) != n || len(d.RestPos) != n || len(d.Parents) != n {
		return dynamo.Verify("cloth data attributes", dynamo.ErrIndexOutOfRange)
	}
	if d.RestRot != nil && len(d.RestRot) != n {
		return dynamo.Verify("cloth data rotations", dynamo.ErrIndexOutOfRange)
	}
	if d.Hash != 0 && d.Hash != d.ComputeHash() {
		return dynamo.Verify("cloth data", dynamo.ErrHashMismatch)
	}
	in := func(i int) bool { return i >= 0 && i < n }
	for i, p := range d.Parents {
		if p != -1 && (!in(p) || p == i) {
			return dynamo.VerifyAt("cloth parent", i, dynamo.ErrIndexOutOfRange)
		}
	}
	for typ := range d.Distances {
		for k, p := range d.Distances[typ] {
			if !in(p.A) || !in(p.B) {
				return dynamo.VerifyAt(constraint.DistanceType(typ).String()+" pair", k, dynamo.ErrIndexOutOfRange)
			}
		}
	}
	for k, q := range d.Quads {
		if !in(q.A) || !in(q.B) || !in(q.C) || !in(q.D) {
			return dynamo.VerifyAt("bend quad", k, dynamo.ErrIndexOutOfRange)
		}
	}
	for k, t := range d.Triangles {
		if !in(t.A) || !in(t.B) || !in(t.C) {
			return dynamo.VerifyAt("triangle", k, dynamo.ErrIndexOutOfRange)
		}
	}
	if d.Version < DataVersion {
		return dynamo.Verify("cloth data version", dynamo.ErrOldVersion)
	}
	return nil
}

// Seal stamps the current version and content hash.
func (d *Data) Seal() *Data {
	d.Version = DataVersion
	d.Hash = d.ComputeHash()
	return d
}

// ComputeHash covers topology and rest geometry. Parameters are excluded so
// tuning does not invalidate authored data.
func (d *Data) ComputeHash() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	u32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	f32 := func(v float32) { u32(math.Float32bits(v)) }
	i32 := func(v int) { u32(uint32(int32(v))) }

	u32(uint32(len(d.Flags)))
	for _, f := range d.Flags {
		u32(uint32(f))
	}
	for _, p := range d.Parents {
		i32(p)
	}
	for _, p := range d.RestPos {
		f32(p.X())
		f32(p.Y())
		f32(p.Z())
	}
	for typ := range d.Distances {
		u32(uint32(len(d.Distances[typ])))
		for _, p := range d.Distances[typ] {
			i32(p.A)
			i32(p.B)
			f32(p.Length)
		}
	}
	u32(uint32(len(d.Quads)))
	for _, q := range d.Quads {
		i32(q.A)
		i32(q.B)
		i32(q.C)
		i32(q.D)
	}
	u32(uint32(len(d.Triangles)))
	for _, t := range d.Triangles {
		i32(t.A)
		i32(t.B)
		i32(t.C)
	}
	return h.Sum64()
}
