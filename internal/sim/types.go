package sim

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
	"github.com/san-kum/clothsim/internal/vmesh"
)

// Config holds the solver settings of one world.
type Config struct {
	Iterations    int              `yaml:"iterations"`
	Power         float32          `yaml:"power"`
	Batch         int              `yaml:"batch"`
	FixedFraction float32          `yaml:"fixed_fraction"`
	Collision     collision.Params `yaml:"collision"`
}

func DefaultConfig() Config {
	return Config{
		Iterations:    5,
		Power:         1,
		Batch:         constraint.DefaultBatch,
		FixedFraction: vmesh.DefaultFixedFraction,
		Collision:     collision.DefaultParams(),
	}
}

// Snapshot is a copy of every particle position at one frame.
type Snapshot []mgl32.Vec3

func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	copy(c, s)
	return c
}

func (s Snapshot) IsValid() bool {
	for _, p := range s {
		for _, v := range p {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}

type Metric interface {
	Name() string
	Observe(s *particle.Store, teams *team.Manager, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(w *World, frame int, t float64)
}

// RunConfig drives Simulator.Run.
type RunConfig struct {
	Dt     float32
	Frames int
	// RecordEvery keeps a snapshot every n frames; zero records none.
	RecordEvery   int
	ValidateState bool
}

type Result struct {
	StepsTaken int
	Times      []float64
	Energy     []float64
	Snapshots  []Snapshot
	Metrics    map[string]float64
	Errors     []error
}

// SimError reports a frame the world could not advance.
type SimError struct {
	Frame   int
	Time    float64
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("frame %d (t=%.4f): %s", e.Frame, e.Time, e.Message)
}
