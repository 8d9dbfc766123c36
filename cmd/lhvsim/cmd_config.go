package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/lhvsim/internal/config"
	"github.com/nvandessel/lhvsim/internal/rng"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage lhvsim configuration",
		Long: `View and modify lhvsim configuration settings.

Configuration is stored in ~/.lhvsim/config.yaml unless --config names
another file. LHVSIM_* environment variables and a .env file in the
working directory override the file.

Examples:
  lhvsim config list                            # Show the resolved settings
  lhvsim config get simulation.model            # Get a specific setting
  lhvsim config set simulation.efficiency 0.7   # Set a setting
  lhvsim config set simulation.angles 0,45,-11.25,11.25
  lhvsim config init                            # Write the defaults`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigPathCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

// configPath returns --config or the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	p, err := config.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return p, nil
}

// loadConfigFile reads only the config file, so that environment
// overrides are never written back.
func loadConfigFile(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(cfg, string(data))
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(map[string]any{
				"key":   key,
				"value": value,
			}, fmt.Sprintf("%s = %v\n", key, value))
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfigFile(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(map[string]any{
				"status": "updated",
				"key":    key,
				"value":  value,
				"path":   path,
			}, fmt.Sprintf("Set %s = %s\n", key, value))
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(map[string]any{
				"path":   path,
				"exists": statErr == nil,
			}, path+"\n")
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(map[string]any{
				"status": "created",
				"path":   path,
			}, fmt.Sprintf("Wrote default configuration to %s\n", path))
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (any, bool) {
	switch key {
	case "simulation.model":
		return cfg.Simulation.Model, true
	case "simulation.inequality":
		return cfg.Simulation.Inequality, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.trials":
		return cfg.Simulation.Trials, true
	case "simulation.mode":
		return cfg.Simulation.Mode, true
	case "simulation.efficiency":
		return cfg.Simulation.Efficiency, true
	case "simulation.symmetric":
		return cfg.Simulation.Symmetric, true
	case "simulation.gated":
		return cfg.Simulation.Gated, true
	case "simulation.strength":
		return cfg.Simulation.Strength, true
	case "simulation.angles":
		if cfg.Simulation.Angles == nil {
			return "(inequality default)", true
		}
		a := cfg.Simulation.Angles
		return fmt.Sprintf("%g,%g,%g,%g", a.A[0], a.A[1], a.B[0], a.B[1]), true
	case "rng.kind":
		return string(cfg.RNG.Kind), true
	case "rng.bias":
		return cfg.RNG.Bias, true
	case "entangler.enabled":
		return cfg.Entangler.Enabled, true
	case "entangler.efficiency":
		return cfg.Entangler.Efficiency, true
	case "entangler.factor":
		return cfg.Entangler.Factor, true
	case "search.batch_trials":
		return cfg.Search.BatchTrials, true
	case "search.verify_trials":
		return cfg.Search.VerifyTrials, true
	case "search.verify_top_k":
		return cfg.Search.VerifyTopK, true
	case "search.workers":
		return cfg.Search.Workers, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "output.dir":
		return cfg.Output.Dir, true
	case "output.trial_log":
		return cfg.Output.TrialLog, true
	case "output.trial_log_file":
		return cfg.Output.TrialLogFile, true
	case "output.summary_file":
		return cfg.Output.SummaryFile, true
	case "output.state_file":
		return cfg.Output.StateFile, true
	case "output.history_db":
		return cfg.Output.HistoryDB, true
	case "output.metrics_file":
		return cfg.Output.MetricsFile, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
// Range checks are left to Config.Validate.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch key {
	case "simulation.model":
		cfg.Simulation.Model = value
	case "simulation.inequality":
		cfg.Simulation.Inequality = value
	case "simulation.seed":
		cfg.Simulation.Seed, err = strconv.ParseInt(value, 10, 64)
	case "simulation.trials":
		cfg.Simulation.Trials, err = strconv.Atoi(value)
	case "simulation.mode":
		cfg.Simulation.Mode = value
	case "simulation.efficiency":
		cfg.Simulation.Efficiency, err = strconv.ParseFloat(value, 64)
	case "simulation.symmetric":
		cfg.Simulation.Symmetric = parseBool(value)
	case "simulation.gated":
		cfg.Simulation.Gated = parseBool(value)
	case "simulation.strength":
		cfg.Simulation.Strength, err = strconv.ParseFloat(value, 64)
	case "simulation.angles":
		if value == "" || value == "default" {
			cfg.Simulation.Angles = nil
			return nil
		}
		angles, perr := parseAngles(value)
		if perr != nil {
			return perr
		}
		cfg.Simulation.Angles = &angles
	case "rng.kind":
		cfg.RNG.Kind = rng.Kind(strings.ToLower(value))
	case "rng.bias":
		cfg.RNG.Bias, err = strconv.ParseFloat(value, 64)
	case "entangler.enabled":
		cfg.Entangler.Enabled = parseBool(value)
	case "entangler.efficiency":
		cfg.Entangler.Efficiency, err = strconv.ParseFloat(value, 64)
	case "entangler.factor":
		cfg.Entangler.Factor, err = strconv.ParseFloat(value, 64)
	case "search.batch_trials":
		cfg.Search.BatchTrials, err = strconv.Atoi(value)
	case "search.verify_trials":
		cfg.Search.VerifyTrials, err = strconv.Atoi(value)
	case "search.verify_top_k":
		cfg.Search.VerifyTopK, err = strconv.Atoi(value)
	case "search.workers":
		cfg.Search.Workers, err = strconv.Atoi(value)
	case "logging.level":
		cfg.Logging.Level = value
	case "output.dir":
		cfg.Output.Dir = value
	case "output.trial_log":
		cfg.Output.TrialLog = parseBool(value)
	case "output.trial_log_file":
		cfg.Output.TrialLogFile = value
	case "output.summary_file":
		cfg.Output.SummaryFile = value
	case "output.state_file":
		cfg.Output.StateFile = value
	case "output.history_db":
		cfg.Output.HistoryDB = value
	case "output.metrics_file":
		cfg.Output.MetricsFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return nil
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}
