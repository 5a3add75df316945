package config

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/curve"
	"github.com/san-kum/clothsim/internal/team"
)

// Preset is a named bundle of team and worker parameters.
type Preset struct {
	Description string
	Params      team.Params
	Workers     cloth.WorkerParams
}

var Presets = map[string]Preset{
	"soft": {
		Description: "loose fabric, low bend, heavy drag",
		Params: with(team.DefaultParams(), func(p *team.Params) {
			p.Drag = curve.Constant(0.05)
			p.MaxVelocity = 2
			p.Friction = 0.4
		}),
		Workers: withWorkers(func(w *cloth.WorkerParams) {
			w.Distance.Stiffness = [constraint.DistanceTypeCount]curve.Param{
				curve.Constant(0.8), curve.Constant(0.2), curve.Constant(0.1),
			}
			w.RestoreRotation.Power = curve.Linear(0.1, 0.02)
			w.ClampRotation.MaxAngle = curve.Linear(80, 120)
			w.Bend.Stiffness = curve.Constant(0.1)
		}),
	},
	"standard": {
		Description: "balanced defaults",
		Params:      team.DefaultParams(),
		Workers:     cloth.DefaultWorkerParams(),
	},
	"stiff": {
		Description: "leather and hair strands",
		Params: with(team.DefaultParams(), func(p *team.Params) {
			p.Drag = curve.Constant(0.005)
			p.MaxVelocity = 5
			p.KeepShape = true
		}),
		Workers: withWorkers(func(w *cloth.WorkerParams) {
			w.RestoreRotation.Power = curve.Linear(0.6, 0.3)
			w.ClampRotation.MaxAngle = curve.Linear(30, 45)
			w.ClampDistance.MaxRatio = 1.02
			w.Bend.Stiffness = curve.Constant(0.9)
		}),
	},
	"spring": {
		Description: "bouncy bone springs without gravity",
		Params: with(team.DefaultParams(), func(p *team.Params) {
			p.Gravity = mgl32.Vec3{}
			p.Drag = curve.Constant(0.02)
			p.Collision = false
		}),
		Workers: withWorkers(func(w *cloth.WorkerParams) {
			w.Spring.Power = curve.Constant(0.1)
			w.ClampPosition.Length = curve.Constant(0.1)
		}),
	},
}

func with(p team.Params, fn func(p *team.Params)) team.Params {
	fn(&p)
	return p
}

func withWorkers(fn func(w *cloth.WorkerParams)) cloth.WorkerParams {
	w := cloth.DefaultWorkerParams()
	fn(&w)
	return w
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
