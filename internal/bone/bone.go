// Package bone stores the external transforms the engine reads from and
// writes back to. Entries are keyed by a stable [TransformID] and reference
// counted, so several teams and meshes can share one transform.
package bone

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/chunk"
)

// TransformID identifies an external transform.
type TransformID = uuid.UUID

// NewID returns a fresh random transform id.
func NewID() TransformID { return uuid.New() }

// Pose is a world-space transform.
type Pose struct {
	Pos   mgl32.Vec3
	Rot   mgl32.Quat
	Scale mgl32.Vec3
}

// Identity is the pose at the origin with unit scale.
func Identity() Pose {
	return Pose{Rot: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns the local-to-world matrix.
func (p Pose) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(p.Pos.X(), p.Pos.Y(), p.Pos.Z()).
		Mul4(p.Rot.Mat4()).
		Mul4(mgl32.Scale3D(p.Scale.X(), p.Scale.Y(), p.Scale.Z()))
}

type entry struct {
	id       TransformID
	refs     int
	pose     Pose
	old      Pose
	written  Pose
	hasWrite bool
}

type Store struct {
	mu      sync.RWMutex
	entries *chunk.FreeList[entry]
	index   map[TransformID]int
}

func NewStore() *Store {
	return &Store{
		entries: chunk.NewFreeList[entry](),
		index:   make(map[TransformID]int),
	}
}

// Add registers a reference to id and returns its slot index.
func (s *Store) Add(id TransformID, pose Pose) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[id]; ok {
		s.entries.Ptr(i).refs++
		return i
	}
	i := s.entries.Add(entry{id: id, refs: 1, pose: pose, old: pose})
	s.index[id] = i
	return i
}

// Release drops one reference. The slot is freed when no references remain.
func (s *Store) Release(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries.Ptr(i)
	if e == nil {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(s.index, e.id)
		s.entries.Remove(i)
	}
}

func (s *Store) Index(id TransformID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	return i, ok
}

func (s *Store) ID(i int) (TransformID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entries.Ptr(i)
	if e == nil {
		return uuid.Nil, false
	}
	return e.id, true
}

func (s *Store) Refs(i int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.entries.Ptr(i); e != nil {
		return e.refs
	}
	return 0
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Count()
}

// Set updates the live pose of slot i.
func (s *Store) Set(i int, p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries.Ptr(i); e != nil {
		e.pose = p
	}
}

// SetByID updates the live pose of the transform identified by id.
func (s *Store) SetByID(id TransformID, p Pose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.entries.Ptr(i).pose = p
	return true
}

// Pose returns the live pose, or the identity for unknown slots.
func (s *Store) Pose(i int) Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.entries.Ptr(i); e != nil {
		return e.pose
	}
	return Identity()
}

// Old returns the pose recorded by the previous CommitOld.
func (s *Store) Old(i int) Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.entries.Ptr(i); e != nil {
		return e.old
	}
	return Identity()
}

// CommitOld snapshots every live pose as the previous-frame pose.
func (s *Store) CommitOld() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Each(func(_ int, e *entry) bool {
		e.old = e.pose
		return true
	})
}

// Write records a simulated pose for slot i. The live pose is left alone
// until the host applies the write.
func (s *Store) Write(i int, pos mgl32.Vec3, rot mgl32.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries.Ptr(i); e != nil {
		e.written = Pose{Pos: pos, Rot: rot, Scale: e.pose.Scale}
		e.hasWrite = true
	}
}

// Written returns the last simulated pose written to slot i.
func (s *Store) Written(i int) (Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.entries.Ptr(i); e != nil && e.hasWrite {
		return e.written, true
	}
	return Pose{}, false
}

// Replace re-points transform ids without touching slot indices, so every
// stored index keeps resolving to the same slot. Ids missing from the store
// are ignored. It returns the number of slots re-pointed.
func (s *Store) Replace(m map[TransformID]TransformID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	moved := make(map[TransformID]int, len(m))
	for from, to := range m {
		i, ok := s.index[from]
		if !ok || from == to {
			continue
		}
		delete(s.index, from)
		s.entries.Ptr(i).id = to
		moved[to] = i
		n++
	}
	for id, i := range moved {
		s.index[id] = i
	}
	return n
}
