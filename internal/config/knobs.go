package config

import (
	"fmt"
	"sort"
)

// knobs are the numeric settings that sweeps and batch files may override by
// name.
var knobs = map[string]func(c *Config, v float64){
	"dt":                func(c *Config, v float64) { c.Solver.Dt = float32(v) },
	"iterations":        func(c *Config, v float64) { c.Solver.Iterations = int(v) },
	"power":             func(c *Config, v float64) { c.Solver.Power = float32(v) },
	"fixed_fraction":    func(c *Config, v float64) { c.Tunables.FixedFraction = float32(v) },
	"near_distance":     func(c *Config, v float64) { c.Tunables.NearDistance = float32(v) },
	"contact_range":     func(c *Config, v float64) { c.Tunables.ContactRange = float32(v) },
	"friction_falloff":  func(c *Config, v float64) { c.Tunables.FrictionFalloff = float32(v) },
	"extrusion":         func(c *Config, v float64) { c.Tunables.Extrusion = float32(v) },
	"teleport_distance": func(c *Config, v float64) { c.Tunables.TeleportDistance = float32(v) },
	"teleport_angle":    func(c *Config, v float64) { c.Tunables.TeleportAngle = float32(v) },
	"frames":            func(c *Config, v float64) { c.Run.Frames = int(v) },
}

// Set assigns the named numeric setting. The result is not validated.
func (c *Config) Set(name string, v float64) error {
	fn, ok := knobs[name]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", ErrInvalid, name)
	}
	fn(c, v)
	return nil
}

// Apply sets every override in name order and validates the result.
func (c *Config) Apply(overrides map[string]float64) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.Set(name, overrides[name]); err != nil {
			return err
		}
	}
	return c.Validate()
}

// Knobs lists the names Set accepts.
func Knobs() []string {
	names := make([]string, 0, len(knobs))
	for name := range knobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
