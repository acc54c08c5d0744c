// Package config provides configuration loading and access for the creature lab.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Genotype   GenotypeConfig   `yaml:"genotype"`
	Mutation   MutationConfig   `yaml:"mutation"`
	Population PopulationConfig `yaml:"population"`
	Fitness    FitnessConfig    `yaml:"fitness"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    StorageConfig    `yaml:"storage"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds parameters of the reference simulator.
type PhysicsConfig struct {
	DT            float64 `yaml:"dt"`
	Gravity       float64 `yaml:"gravity"`        // Downward acceleration along -Y
	GroundHeight  float64 `yaml:"ground_height"`  // Y of the ground plane
	Friction      float64 `yaml:"friction"`       // Horizontal velocity damping on contact, per step
	Density       float64 `yaml:"density"`        // Body density used by the builder
	MaxGroups     int     `yaml:"max_groups"`     // Collision group ids available to creatures
	MaxBodies     int     `yaml:"max_bodies"`     // Actor capacity (0 = unlimited)
	MaxJoints     int     `yaml:"max_joints"`     // Joint capacity (0 = unlimited)
	BreakDistance float64 `yaml:"break_distance"` // Anchor separation that breaks a joint
	Iterations    int     `yaml:"iterations"`     // Constraint solver passes per step
	MaxMotorSpeed float64 `yaml:"max_motor_speed"`
}

// GenotypeConfig holds the bounds enforced by normalization.
type GenotypeConfig struct {
	MinDimension float64 `yaml:"min_dimension"`
	MaxDimension float64 `yaml:"max_dimension"`
	MinScale     float64 `yaml:"min_scale"`
	MaxScale     float64 `yaml:"max_scale"`
	MinStrength  float64 `yaml:"min_strength"`
	MaxStrength  float64 `yaml:"max_strength"`
	MinStiffness float64 `yaml:"min_stiffness"`
	MaxStiffness float64 `yaml:"max_stiffness"`
}

// MutationConfig holds per-operator mutation probabilities and step sizes.
type MutationConfig struct {
	Rate         float64 `yaml:"rate"`          // Default probability for continuous operators
	Sigma        float64 `yaml:"sigma"`         // Step size for continuous jitter
	AngleSigma   float64 `yaml:"angle_sigma"`   // Rotation jitter in radians
	ReflectRate  float64 `yaml:"reflect_rate"`
	RetargetRate float64 `yaml:"retarget_rate"` // Edge target and source rewrites
	GateSwapRate float64 `yaml:"gate_swap_rate"`
	RewireRate   float64 `yaml:"rewire_rate"`
	RootRate     float64 `yaml:"root_rate"`

	AddNode    float64 `yaml:"add_node"`
	AddEdge    float64 `yaml:"add_edge"`
	AddGate    float64 `yaml:"add_gate"`
	AddWire    float64 `yaml:"add_wire"`
	RemoveNode float64 `yaml:"remove_node"`
	RemoveEdge float64 `yaml:"remove_edge"`
	RemoveGate float64 `yaml:"remove_gate"`
	RemoveWire float64 `yaml:"remove_wire"`

	MaxRepeats int `yaml:"max_repeats"` // Cap on Bernoulli repeats per structural operator
}

// PopulationConfig holds population management parameters.
type PopulationConfig struct {
	Size        int `yaml:"size"`
	ArchiveSize int `yaml:"archive_size"`
	MaxNodes    int `yaml:"max_nodes"` // Upper bounds for random founders
	MaxEdges    int `yaml:"max_edges"`
	MaxGates    int `yaml:"max_gates"`
	MaxWires    int `yaml:"max_wires"`
}

// FitnessConfig holds rollout parameters.
type FitnessConfig struct {
	RoundTicks    int     `yaml:"round_ticks"`    // Maximum rollout length
	BaselineTicks int     `yaml:"baseline_ticks"` // Displacement baseline reset interval
	FloorFitness  float64 `yaml:"floor_fitness"`  // Score for aborted rollouts
	StartHeight   float64 `yaml:"start_height"`   // Root placement above ground
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	OutputDir        string `yaml:"output_dir"`
	StepTimerWindow  int    `yaml:"step_timer_window"`
	RolloutLogEnable bool   `yaml:"rollout_log"`
}

// StorageConfig selects the archive store backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // memory | sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	BaselineEvery int // Fitness.BaselineTicks, clamped to at least 1
	RoundSeconds  float64
}

// EnvOverrides are process environment settings applied after YAML.
type EnvOverrides struct {
	Seed        int64  `env:"CREATURES_SEED"`
	Generations int    `env:"CREATURES_GENERATIONS"`
	OutputDir   string `env:"CREATURES_OUTPUT_DIR"`
	Store       string `env:"CREATURES_STORE"`
	SQLitePath  string `env:"CREATURES_SQLITE_PATH"`
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

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
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
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()
	return cfg, nil
}

// Defaults returns the embedded defaults with derived values filled in.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.ComputeDerived()
	return cfg, nil
}

// ParseEnv reads CREATURES_* variables and applies the storage and output
// overrides to c. The returned overrides carry the run-level settings
// (seed, generations) that have no YAML counterpart.
func (c *Config) ParseEnv() (EnvOverrides, error) {
	var ov EnvOverrides
	if err := env.Parse(&ov); err != nil {
		return ov, fmt.Errorf("parse env: %w", err)
	}
	if ov.OutputDir != "" {
		c.Telemetry.OutputDir = ov.OutputDir
	}
	if ov.Store != "" {
		c.Storage.Backend = ov.Store
	}
	if ov.SQLitePath != "" {
		c.Storage.SQLitePath = ov.SQLitePath
	}
	return ov, nil
}

// ComputeDerived recalculates values derived from the loaded config. Call it
// after changing fields in code.
func (c *Config) ComputeDerived() {
	c.Derived.BaselineEvery = c.Fitness.BaselineTicks
	if c.Derived.BaselineEvery < 1 {
		c.Derived.BaselineEvery = 1
	}
	c.Derived.RoundSeconds = float64(c.Fitness.RoundTicks) * c.Physics.DT

	if c.Mutation.MaxRepeats < 1 {
		c.Mutation.MaxRepeats = 1
	}
	if c.Population.ArchiveSize < 1 {
		c.Population.ArchiveSize = 1
	}
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
