package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/memora/internal/params"
	"github.com/abhisek/memora/internal/spacedrep"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the memora config file (config.yaml or config.toml).
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	// Empty selects the default sqlite path.
	DSN string `yaml:"dsn" toml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// SchedulerConfig mirrors spacedrep.Config. ParametersFile points to a JSON
// parameter table; empty means the built-in defaults.
type SchedulerConfig struct {
	TargetRetention     float64 `yaml:"target_retention" toml:"target_retention"`
	MinInterval         int     `yaml:"min_interval" toml:"min_interval"`
	MaxInterval         int     `yaml:"max_interval" toml:"max_interval"`
	LearningSteps       []int   `yaml:"learning_steps" toml:"learning_steps"`
	RelearningSteps     []int   `yaml:"relearning_steps" toml:"relearning_steps"`
	GraduationStability float64 `yaml:"graduation_stability" toml:"graduation_stability"`
	ShortTermDisabled   bool    `yaml:"short_term_disabled" toml:"short_term_disabled"`
	DisableFuzz         bool    `yaml:"disable_fuzz" toml:"disable_fuzz"`
	ParametersFile      string  `yaml:"parameters_file" toml:"parameters_file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	sched := spacedrep.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Log:      LogConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			TargetRetention:     sched.TargetRetention,
			MinInterval:         sched.MinInterval,
			MaxInterval:         sched.MaxInterval,
			LearningSteps:       sched.LearningSteps,
			RelearningSteps:     sched.RelearningSteps,
			GraduationStability: sched.GraduationStability,
		},
	}
}

// Load reads the config file at path. The format is chosen by extension:
// .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// Parse decodes data in the given format on top of the defaults and
// validates the result.
func Parse(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", spacedrep.ErrConfig, format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Resolve finds and loads the config file. The path comes from flagPath,
// then MEMORA_CONFIG, then the default location. A missing default file is
// not an error: Resolve returns the defaults and an empty path.
func Resolve(flagPath string) (*Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("MEMORA_CONFIG")
	}
	if path != "" {
		cfg, err := Load(expandHome(path))
		return cfg, path, err
	}

	path, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), "", nil
	}
	return cfg, path, err
}

// Validate checks a Config for logical errors. Errors match spacedrep.ErrConfig.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", spacedrep.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: database.driver %q must be %s or %s",
			spacedrep.ErrConfig, c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		return fmt.Errorf("%w: log.format %q must be text or json", spacedrep.ErrConfig, c.Log.Format)
	}

	// The parameter file is checked when the scheduler is built.
	sched := c.Scheduler.engineConfig(spacedrep.DefaultParameters())
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

// SchedulerConfig builds the engine configuration, loading the parameter
// table when one is configured.
func (c *Config) SchedulerConfig() (spacedrep.Config, error) {
	p := spacedrep.DefaultParameters()
	if c.Scheduler.ParametersFile != "" {
		var err error
		if p, err = params.Load(expandHome(c.Scheduler.ParametersFile)); err != nil {
			return spacedrep.Config{}, err
		}
	}
	cfg := c.Scheduler.engineConfig(p)
	if err := cfg.Validate(); err != nil {
		return spacedrep.Config{}, fmt.Errorf("scheduler: %w", err)
	}
	return cfg, nil
}

func (s SchedulerConfig) engineConfig(p spacedrep.Parameters) spacedrep.Config {
	return spacedrep.Config{
		Parameters:          p,
		TargetRetention:     s.TargetRetention,
		MinInterval:         s.MinInterval,
		MaxInterval:         s.MaxInterval,
		LearningSteps:       slices.Clone(s.LearningSteps),
		RelearningSteps:     slices.Clone(s.RelearningSteps),
		GraduationStability: s.GraduationStability,
		ShortTermDisabled:   s.ShortTermDisabled,
		DisableFuzz:         s.DisableFuzz,
	}
}
