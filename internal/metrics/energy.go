package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/team"
)

// kinetic sums 0.5*m*v^2 over the simulated particles of active teams.
func kinetic(s *particle.Store, teams *team.Manager) float64 {
	flags := s.Flags()
	var e float64
	for i := 0; i < s.Len(); i++ {
		if !flags[i].Simulated() || !teams.ActiveParticle(s.Team[i]) {
			continue
		}
		v := s.Velocity[i]
		e += 0.5 * float64(s.Mass[i]) * float64(v.Dot(v))
	}
	return e
}

// Energy is the mean kinetic energy over all observed frames.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s *particle.Store, teams *team.Manager, t float64) {
	e.totalEnergy += kinetic(s, teams)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyTail is the peak kinetic energy over the trailing window of frames.
// A settled cloth keeps it near zero.
type EnergyTail struct {
	name   string
	window int
	ring   []float64
	next   int
}

func NewEnergyTail(window int) *EnergyTail {
	if window < 1 {
		window = 1
	}
	return &EnergyTail{name: "energy_tail", window: window}
}

func (e *EnergyTail) Name() string { return e.name }

func (e *EnergyTail) Observe(s *particle.Store, teams *team.Manager, t float64) {
	k := kinetic(s, teams)
	if len(e.ring) < e.window {
		e.ring = append(e.ring, k)
		return
	}
	e.ring[e.next] = k
	e.next = (e.next + 1) % e.window
}

func (e *EnergyTail) Value() float64 {
	peak := 0.0
	for _, k := range e.ring {
		peak = math.Max(peak, k)
	}
	return peak
}

func (e *EnergyTail) Reset() {
	e.ring = e.ring[:0]
	e.next = 0
}
