package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/constraint"
	"github.com/san-kum/clothsim/internal/sim"
	"github.com/san-kum/clothsim/internal/vmesh"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt            = 1.0 / 60.0
	DefaultIterations    = 5
	DefaultPower         = 1.0
	DefaultFrames        = 300
	DefaultScenario      = "chain"
	DefaultPreset        = "standard"
	DefaultTeleportDist  = 0.5
	DefaultTeleportAngle = 90.0
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Preset   string         `yaml:"preset"`
	Solver   SolverConfig   `yaml:"solver"`
	Tunables TunablesConfig `yaml:"tunables"`
	Logging  LoggingConfig  `yaml:"logging"`
	Run      RunConfig      `yaml:"run"`
}

type SolverConfig struct {
	Dt         float32 `yaml:"dt"`
	Iterations int     `yaml:"iterations"`
	Power      float32 `yaml:"power"`
	Batch      int     `yaml:"batch"`
}

// TunablesConfig collects the engine constants that have no single right
// value.
type TunablesConfig struct {
	FixedFraction    float32 `yaml:"fixed_fraction"`
	NearDistance     float32 `yaml:"near_distance"`
	ContactRange     float32 `yaml:"contact_range"`
	FrictionFalloff  float32 `yaml:"friction_falloff"`
	Extrusion        float32 `yaml:"extrusion"`
	TeleportDistance float32 `yaml:"teleport_distance"`
	TeleportAngle    float32 `yaml:"teleport_angle"`
	TeleportReset    bool    `yaml:"teleport_reset"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RunConfig struct {
	Scenario    string `yaml:"scenario"`
	Frames      int    `yaml:"frames"`
	Seed        int64  `yaml:"seed"`
	RecordEvery int    `yaml:"record_every"`
}

func DefaultConfig() *Config {
	col := collision.DefaultParams()
	return &Config{
		Preset: DefaultPreset,
		Solver: SolverConfig{
			Dt:         DefaultDt,
			Iterations: DefaultIterations,
			Power:      DefaultPower,
			Batch:      constraint.DefaultBatch,
		},
		Tunables: TunablesConfig{
			FixedFraction:    vmesh.DefaultFixedFraction,
			ContactRange:     col.ContactRange,
			FrictionFalloff:  col.FrictionFalloff,
			Extrusion:        col.Extrusion,
			TeleportDistance: DefaultTeleportDist,
			TeleportAngle:    DefaultTeleportAngle,
		},
		Logging: LoggingConfig{Level: "info"},
		Run: RunConfig{
			Scenario:    DefaultScenario,
			Frames:      DefaultFrames,
			RecordEvery: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.Solver.Dt <= 0:
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalid, c.Solver.Dt)
	case c.Solver.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalid, c.Solver.Iterations)
	case c.Solver.Power <= 0 || c.Solver.Power > 1:
		return fmt.Errorf("%w: power must be in (0,1], got %v", ErrInvalid, c.Solver.Power)
	case c.Solver.Batch < 0:
		return fmt.Errorf("%w: batch must not be negative", ErrInvalid)
	case c.Tunables.FixedFraction < 0 || c.Tunables.FixedFraction > 1:
		return fmt.Errorf("%w: fixed_fraction must be in [0,1], got %v", ErrInvalid, c.Tunables.FixedFraction)
	case c.Tunables.NearDistance < 0 || c.Tunables.ContactRange < 0 || c.Tunables.FrictionFalloff < 0:
		return fmt.Errorf("%w: distances must not be negative", ErrInvalid)
	case c.Tunables.Extrusion < 0 || c.Tunables.Extrusion > 1:
		return fmt.Errorf("%w: extrusion must be in [0,1], got %v", ErrInvalid, c.Tunables.Extrusion)
	case c.Run.Frames < 0:
		return fmt.Errorf("%w: frames must not be negative", ErrInvalid)
	}
	if c.Preset != "" && GetPreset(c.Preset) == nil {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalid, c.Preset)
	}
	return nil
}

// World converts the solver and collision settings into a world config.
func (c *Config) World() sim.Config {
	w := sim.DefaultConfig()
	w.Iterations = c.Solver.Iterations
	w.Power = c.Solver.Power
	if c.Solver.Batch > 0 {
		w.Batch = c.Solver.Batch
	}
	w.FixedFraction = c.Tunables.FixedFraction
	w.Collision = collision.Params{
		ContactRange:    c.Tunables.ContactRange,
		FrictionFalloff: c.Tunables.FrictionFalloff,
		Extrusion:       c.Tunables.Extrusion,
	}
	return w
}

// Build returns the authoring parameters of the configured preset with the
// teleport and near-distance tunables applied.
func (c *Config) Build() cloth.BuildParams {
	return c.BuildPreset(c.Preset)
}

// BuildPreset is Build with another preset. Unknown names keep the defaults.
func (c *Config) BuildPreset(name string) cloth.BuildParams {
	bp := cloth.DefaultBuildParams()
	if p := GetPreset(name); p != nil {
		bp.Params = p.Params
		bp.Workers = p.Workers
	}
	bp.NearDistance = c.Tunables.NearDistance
	bp.Params.TeleportDist = c.Tunables.TeleportDistance
	bp.Params.TeleportAngle = c.Tunables.TeleportAngle
	bp.Params.TeleportReset = c.Tunables.TeleportReset
	return bp
}
