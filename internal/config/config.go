// Package config provides unified configuration loading for lhvsim.
// It supports loading from YAML files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/entangle"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/lhv"
	"github.com/nvandessel/lhvsim/internal/logging"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LHVSIM_"

// Config contains all lhvsim configuration settings.
type Config struct {
	// Simulation selects the model, inequality and run parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// RNG selects the random source feeding settings and hidden variables.
	RNG rng.Config `json:"rng" yaml:"rng"`

	// Entangler configures the pair-production schedule.
	Entangler entangle.Config `json:"entangler" yaml:"entangler"`

	// Search tunes the angle search.
	Search SearchConfig `json:"search" yaml:"search"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Output names the files a run writes.
	Output OutputConfig `json:"output" yaml:"output"`
}

// SimulationConfig configures one experiment.
type SimulationConfig struct {
	// Model is "wang", "trivial" or "null". Prefixes are accepted.
	Model string `json:"model" yaml:"model"`

	// Inequality is "ch", "chsh", "guistina" or "guistina-fair".
	Inequality string `json:"inequality" yaml:"inequality"`

	Seed   int64  `json:"seed" yaml:"seed"`
	Trials int    `json:"trials" yaml:"trials"`
	Mode   string `json:"mode" yaml:"mode"`

	// Efficiency is the entanglement efficiency r of the Wang model.
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`

	// Symmetric measures both sides with the B-side rule.
	Symmetric bool `json:"symmetric" yaml:"symmetric"`

	// Gated and Strength are passed to the model.
	Gated    bool    `json:"gated" yaml:"gated"`
	Strength float64 `json:"strength,omitempty" yaml:"strength,omitempty"`

	// Angles overrides the inequality's preferred angles when set.
	Angles *models.Angles `json:"angles,omitempty" yaml:"angles,omitempty"`
}

// SearchConfig tunes the angle search.
type SearchConfig struct {
	BatchTrials  int `json:"batch_trials" yaml:"batch_trials"`
	VerifyTrials int `json:"verify_trials" yaml:"verify_trials"`
	VerifyTopK   int `json:"verify_top_k" yaml:"verify_top_k"`

	// Workers is the number of parallel evaluators. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// LoggingConfig configures lhvsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug" or "trace".
	// "debug" also writes events.jsonl in the output directory.
	Level string `json:"level" yaml:"level"`
}

// OutputConfig names the files written by runs. Relative names resolve
// against Dir.
type OutputConfig struct {
	Dir string `json:"dir" yaml:"dir"`

	// TrialLog enables the per-trial log.
	TrialLog     bool   `json:"trial_log" yaml:"trial_log"`
	TrialLogFile string `json:"trial_log_file" yaml:"trial_log_file"`
	SummaryFile  string `json:"summary_file" yaml:"summary_file"`
	StateFile    string `json:"state_file" yaml:"state_file"`

	// HistoryDB is the SQLite run history. Empty disables it.
	HistoryDB string `json:"history_db" yaml:"history_db"`

	// MetricsFile receives Prometheus text metrics after each command.
	// Empty disables it.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// Path resolves name against Dir.
func (o OutputConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Model:      "wang",
			Inequality: "guistina",
			Seed:       constants.DefaultSeed,
			Trials:     constants.DefaultTrials,
			Mode:       string(models.AngleModeRandom),
			Efficiency: constants.DefaultEntanglementEfficiency,
			Symmetric:  true,
		},
		RNG:       rng.DefaultConfig(),
		Entangler: entangle.DefaultConfig(),
		Search: SearchConfig{
			BatchTrials:  constants.DefaultBatchTrials,
			VerifyTrials: constants.DefaultVerifyTrials,
			VerifyTopK:   constants.DefaultVerifyTopK,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Dir:          ".",
			TrialLog:     true,
			TrialLogFile: constants.DefaultTrialLogFile,
			SummaryFile:  constants.DefaultSummaryFile,
			StateFile:    constants.DefaultStateFile,
			HistoryDB:    constants.DefaultHistoryDB,
		},
	}
}

// DefaultPath returns ~/.lhvsim/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".lhvsim", "config.yaml"), nil
}

// Load loads configuration from path, or from the default location when
// path is empty, then applies .env and environment overrides.
// Order: defaults -> config file -> .env -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			fileConfig, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			config = fileConfig
		case explicit:
			return nil, fmt.Errorf("loading config file: %w", statErr)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Output.Dir = expandEnvVars(config.Output.Dir)
	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := lhv.New(c.Simulation.Model, models.Settings{}, lhv.Options{}); err != nil {
		return err
	}
	if _, err := inequality.ByName(c.Simulation.Inequality); err != nil {
		return err
	}
	if _, err := models.ParseAngleMode(c.Simulation.Mode); err != nil {
		return err
	}
	if c.Simulation.Trials < 0 {
		return fmt.Errorf("trials must be non-negative, got %d", c.Simulation.Trials)
	}
	if c.Simulation.Efficiency < 0 || c.Simulation.Efficiency > 1 {
		return fmt.Errorf("efficiency must be between 0 and 1, got %f", c.Simulation.Efficiency)
	}
	if c.Simulation.Strength < 0 {
		return fmt.Errorf("strength must be non-negative, got %f", c.Simulation.Strength)
	}

	if err := c.RNG.Validate(); err != nil {
		return err
	}
	if err := c.Entangler.Validate(); err != nil {
		return err
	}

	if c.Search.BatchTrials < 0 || c.Search.VerifyTrials < 0 || c.Search.VerifyTopK < 0 {
		return errors.New("search trial counts and top-k must be non-negative")
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("search workers must be non-negative, got %d", c.Search.Workers)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// loadDotEnv loads path into the process environment if it exists.
// Variables already set are not overridden.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies LHVSIM_* environment variables.
func applyEnvOverrides(config *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}

	str("MODEL", &config.Simulation.Model)
	str("INEQUALITY", &config.Simulation.Inequality)
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			config.Simulation.Seed = seed
		}
	}
	integer("TRIALS", &config.Simulation.Trials)
	str("MODE", &config.Simulation.Mode)
	float("EFFICIENCY", &config.Simulation.Efficiency)
	boolean("SYMMETRIC", &config.Simulation.Symmetric)

	if v := os.Getenv(EnvPrefix + "RNG_KIND"); v != "" {
		config.RNG.Kind = rng.Kind(strings.ToLower(v))
	}
	float("RNG_BIAS", &config.RNG.Bias)
	boolean("ENTANGLER_ENABLED", &config.Entangler.Enabled)

	integer("SEARCH_WORKERS", &config.Search.Workers)
	integer("SEARCH_BATCH_TRIALS", &config.Search.BatchTrials)
	integer("SEARCH_VERIFY_TRIALS", &config.Search.VerifyTrials)

	str("LOG_LEVEL", &config.Logging.Level)
	str("OUTPUT_DIR", &config.Output.Dir)
	str("HISTORY_DB", &config.Output.HistoryDB)
	str("METRICS_FILE", &config.Output.MetricsFile)

	return errors.Join(errs...)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
