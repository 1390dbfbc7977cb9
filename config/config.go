// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// waterStabilityLimit bounds wave_speed*max_dt² for the explicit wave step.
const waterStabilityLimit = 2.0

// Config holds all simulation configuration parameters.
type Config struct {
	Tank      TankConfig      `yaml:"tank"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Flock     FlockConfig     `yaml:"flock"`
	Water     WaterConfig     `yaml:"water"`
	Kelp      KelpConfig      `yaml:"kelp"`
	Sand      SandConfig      `yaml:"sand"`
	Creature  CreatureConfig  `yaml:"creature"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// TankConfig holds the tank dimensions. The tank is centred on the origin;
// the water surface is its top face and the sand its bottom face.
type TankConfig struct {
	Width  float64 `yaml:"width"`  // X extent
	Height float64 `yaml:"height"` // Y extent
	Depth  float64 `yaml:"depth"`  // Z extent
	Margin float64 `yaml:"margin"` // Gap between the walls and the fish motion bounds
}

// PhysicsConfig holds simulation timing.
type PhysicsConfig struct {
	DT    float64 `yaml:"dt"`     // Fixed step used by the headless runner
	MaxDT float64 `yaml:"max_dt"` // Larger steps are clamped to this
}

// FlockConfig holds fish population and steering parameters.
type FlockConfig struct {
	Count    int `yaml:"count"`
	MinCount int `yaml:"min_count"`
	MaxCount int `yaml:"max_count"`

	Speed              float64 `yaml:"speed"`      // Cruise speed, units per second
	TurnSpeed          float64 `yaml:"turn_speed"` // Heading blend per second, clamped to 1 per tick
	SeparationDist     float64 `yaml:"separation_dist"`
	SeparationStrength float64 `yaml:"separation_strength"`

	Flocking          bool    `yaml:"flocking"`
	AlignmentStrength float64 `yaml:"alignment_strength"`
	CohesionStrength  float64 `yaml:"cohesion_strength"`
	FlockRadius       float64 `yaml:"flock_radius"`

	ArrivalDistSq    float64 `yaml:"arrival_dist_sq"`
	OrientationBlend float64 `yaml:"orientation_blend"`
	Mass             float64 `yaml:"mass"`
	CollisionRadius  float64 `yaml:"collision_radius"`
	MaxBounceAngle   float64 `yaml:"max_bounce_angle"` // Radians
}

// WaterConfig holds the surface height-field parameters.
type WaterConfig struct {
	Resolution       int     `yaml:"resolution"`
	WaveSpeed        float64 `yaml:"wave_speed"`
	Damping          float64 `yaml:"damping"`           // Per-tick velocity factor
	SurfaceBand      float64 `yaml:"surface_band"`      // Fish closer than this to the surface disturb it
	AgentDisturbance float64 `yaml:"agent_disturbance"` // Impulse per fish per tick inside the band
}

// KelpConfig holds kelp placement and chain dynamics.
type KelpConfig struct {
	Count       int     `yaml:"count"`
	Segments    int     `yaml:"segments"`
	JointLength float64 `yaml:"joint_length"`
	SpringK     float64 `yaml:"spring_k"`
	Damping     float64 `yaml:"damping"` // Velocity decays by exp(-damping*dt)

	RepelRadius   float64 `yaml:"repel_radius"`
	RepelStrength float64 `yaml:"repel_strength"`
	UpwardBias    float64 `yaml:"upward_bias"`

	SwayAmplitude float64 `yaml:"sway_amplitude"`
	SwayFrequency float64 `yaml:"sway_frequency"`
	SwayPhaseStep float64 `yaml:"sway_phase_step"`
	SwayTwist     float64 `yaml:"sway_twist"`

	BaseWidth float64 `yaml:"base_width"`
	TipWidth  float64 `yaml:"tip_width"`
}

// SandConfig holds the deformable floor parameters.
type SandConfig struct {
	Resolution int     `yaml:"resolution"`
	Amplitude  float64 `yaml:"amplitude"`
	NoiseScale float64 `yaml:"noise_scale"`
	RelaxRate  float64 `yaml:"relax_rate"`
}

// CreatureConfig holds the creature control curves and mesh densities.
// Profile points are [x, y] pairs for top and bottom, [x, z] for side.
type CreatureConfig struct {
	Top    [][]float64 `yaml:"top"`
	Bottom [][]float64 `yaml:"bottom"`
	Side   [][]float64 `yaml:"side"`
	Fins   []FinConfig `yaml:"fins"`

	CurveSamples int     `yaml:"curve_samples"`
	FinSamples   int     `yaml:"fin_samples"`
	FrameSize    int     `yaml:"frame_size"`
	AxialStep    float64 `yaml:"axial_step"`
	FinInset     float64 `yaml:"fin_inset"`
	FinThickness float64 `yaml:"fin_thickness"`
}

// FinConfig is one fin outline in [x, y] pairs.
type FinConfig struct {
	Name    string      `yaml:"name"`
	Attach  string      `yaml:"attach"` // "top" or "bottom"
	Contour [][]float64 `yaml:"contour"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds of sim time per window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	BoundsX, BoundsY, BoundsZ float64 // Fish motion half-extents
	SurfaceY                  float64 // Water surface height
	FloorY                    float64 // Sand base height
	WaterCellX, WaterCellZ    float64 // Water grid spacing
	StableDT                  float64 // Largest dt the wave step tolerates
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML or TOML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			data, err = tomlToYAML(data)
			if err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Defaults returns the embedded defaults with derived values filled in.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// tomlToYAML re-encodes a TOML document as YAML so one set of struct tags
// serves both formats.
func tomlToYAML(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.BoundsX = c.Tank.Width/2 - c.Tank.Margin
	c.Derived.BoundsY = c.Tank.Height/2 - c.Tank.Margin
	c.Derived.BoundsZ = c.Tank.Depth/2 - c.Tank.Margin
	c.Derived.SurfaceY = c.Tank.Height / 2
	c.Derived.FloorY = -c.Tank.Height / 2

	if c.Water.Resolution > 1 {
		span := float64(c.Water.Resolution - 1)
		c.Derived.WaterCellX = c.Tank.Width / span
		c.Derived.WaterCellZ = c.Tank.Depth / span
	}

	c.Derived.StableDT = math.Inf(1)
	if c.Water.WaveSpeed > 0 {
		c.Derived.StableDT = math.Sqrt(waterStabilityLimit / c.Water.WaveSpeed)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Tank.Width > 0 && c.Tank.Height > 0 && c.Tank.Depth > 0,
		"tank: dimensions must be positive, got %gx%gx%g", c.Tank.Width, c.Tank.Height, c.Tank.Depth)
	check(c.Tank.Margin >= 0 && c.Derived.BoundsX > 0 && c.Derived.BoundsY > 0 && c.Derived.BoundsZ > 0,
		"tank: margin %g must be non-negative and smaller than half of every dimension", c.Tank.Margin)

	check(c.Physics.DT > 0, "physics: dt must be positive, got %g", c.Physics.DT)
	check(c.Physics.MaxDT >= c.Physics.DT, "physics: max_dt %g must be at least dt %g", c.Physics.MaxDT, c.Physics.DT)
	check(c.Water.WaveSpeed*c.Physics.MaxDT*c.Physics.MaxDT < waterStabilityLimit,
		"water: wave_speed*max_dt² must stay below %g (max stable dt %g, max_dt %g)",
		waterStabilityLimit, c.Derived.StableDT, c.Physics.MaxDT)

	f := c.Flock
	check(f.MinCount >= 0 && f.MinCount <= f.Count && f.Count <= f.MaxCount,
		"flock: need 0 <= min_count <= count <= max_count, got %d/%d/%d", f.MinCount, f.Count, f.MaxCount)
	check(f.Speed > 0, "flock: speed must be positive, got %g", f.Speed)
	check(f.TurnSpeed >= 0, "flock: turn_speed must be non-negative, got %g", f.TurnSpeed)
	check(f.SeparationDist > 0, "flock: separation_dist must be positive, got %g", f.SeparationDist)
	check(f.Mass > 0, "flock: mass must be positive, got %g", f.Mass)
	check(f.OrientationBlend >= 0 && f.OrientationBlend <= 1,
		"flock: orientation_blend must be in [0,1], got %g", f.OrientationBlend)
	check(!f.Flocking || f.FlockRadius > 0, "flock: flock_radius must be positive when flocking")

	check(c.Water.Resolution >= 3, "water: resolution must be at least 3, got %d", c.Water.Resolution)
	check(c.Water.WaveSpeed > 0, "water: wave_speed must be positive, got %g", c.Water.WaveSpeed)
	check(c.Water.Damping > 0 && c.Water.Damping < 1, "water: damping must be in (0,1), got %g", c.Water.Damping)

	k := c.Kelp
	check(k.Count >= 0, "kelp: count must be non-negative, got %d", k.Count)
	check(k.Segments >= 2, "kelp: segments must be at least 2, got %d", k.Segments)
	check(k.JointLength > 0, "kelp: joint_length must be positive, got %g", k.JointLength)
	check(k.Damping >= 0, "kelp: damping must be non-negative, got %g", k.Damping)

	check(c.Sand.Resolution >= 2, "sand: resolution must be at least 2, got %d", c.Sand.Resolution)
	check(c.Sand.RelaxRate >= 0, "sand: relax_rate must be non-negative, got %g", c.Sand.RelaxRate)

	cr := c.Creature
	for name, curve := range map[string][][]float64{"top": cr.Top, "bottom": cr.Bottom, "side": cr.Side} {
		check(len(curve) >= 2, "creature: %s needs at least two control points, got %d", name, len(curve))
		for i, pt := range curve {
			check(len(pt) == 2, "creature: %s point %d must be a pair, got %v", name, i, pt)
		}
	}
	for _, fin := range cr.Fins {
		check(fin.Attach == "top" || fin.Attach == "bottom",
			"creature: fin %q attach must be top or bottom, got %q", fin.Name, fin.Attach)
		check(len(fin.Contour) >= 2, "creature: fin %q needs at least two control points", fin.Name)
		for i, pt := range fin.Contour {
			check(len(pt) == 2, "creature: fin %q point %d must be a pair, got %v", fin.Name, i, pt)
		}
	}
	check(cr.CurveSamples >= 2 && cr.FinSamples >= 2,
		"creature: curve_samples and fin_samples must be at least 2")
	check(cr.FrameSize >= 3, "creature: frame_size must be at least 3, got %d", cr.FrameSize)
	check(cr.AxialStep > 0, "creature: axial_step must be positive, got %g", cr.AxialStep)

	check(c.Telemetry.StatsWindow > 0, "telemetry: stats_window must be positive, got %g", c.Telemetry.StatsWindow)

	return errors.Join(errs...)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
