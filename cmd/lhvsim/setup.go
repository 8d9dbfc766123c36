package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/nvandessel/lhvsim/internal/config"
	"github.com/nvandessel/lhvsim/internal/engine"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/lhv"
	"github.com/nvandessel/lhvsim/internal/logging"
	"github.com/nvandessel/lhvsim/internal/metrics"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
	"github.com/nvandessel/lhvsim/internal/store"
	"github.com/spf13/cobra"
)

// app carries what every simulation command needs: the resolved config,
// the logger and the optional metrics recorder.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	events  *logging.EventLog
	metrics *metrics.Recorder
	jsonOut bool
	out     io.Writer
}

// addSimulationFlags registers the flags that override the simulation
// section of the config.
func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "LHV model: wang, trivial, null")
	cmd.Flags().String("inequality", "", "Inequality: ch, chsh, guistina, guistina-fair")
	cmd.Flags().Int64("seed", 0, "Random seed")
	cmd.Flags().Int("trials", 0, "Number of trials")
	cmd.Flags().String("mode", "", "Hidden variable mode: random, iterate, supplied")
	cmd.Flags().Float64("efficiency", 0, "Entanglement efficiency r in [0,1]")
	cmd.Flags().String("rng", "", "Random source: uniform, skewed")
	cmd.Flags().Bool("asymmetric", false, "Measure side A with the A-side rule")
	cmd.Flags().Bool("gated", false, "Draw Wang detections against the probability factor")
	cmd.Flags().String("angles", "", "Detector angles a,a',b,b' in degrees (default: the inequality's)")
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Output.Dir = v
	}
	if err := applySimulationFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	a := &app{
		cfg:     cfg,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		events:  logging.NewEventLog(cfg.Output.Dir, cfg.Logging.Level),
		jsonOut: jsonOut,
		out:     cmd.OutOrStdout(),
	}
	if cfg.Output.MetricsFile != "" {
		a.metrics = metrics.NewRecorder()
	}
	return a, nil
}

func applySimulationFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("model") == nil {
		return nil
	}
	sim := &cfg.Simulation

	if flags.Changed("model") {
		sim.Model, _ = flags.GetString("model")
	}
	if flags.Changed("inequality") {
		sim.Inequality, _ = flags.GetString("inequality")
	}
	if flags.Changed("seed") {
		sim.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("trials") {
		sim.Trials, _ = flags.GetInt("trials")
	}
	if flags.Changed("mode") {
		sim.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("efficiency") {
		sim.Efficiency, _ = flags.GetFloat64("efficiency")
	}
	if flags.Changed("rng") {
		kind, _ := flags.GetString("rng")
		cfg.RNG.Kind = rng.Kind(strings.ToLower(kind))
	}
	if flags.Changed("asymmetric") {
		asym, _ := flags.GetBool("asymmetric")
		sim.Symmetric = !asym
	}
	if flags.Changed("gated") {
		sim.Gated, _ = flags.GetBool("gated")
	}
	if flags.Changed("angles") {
		s, _ := flags.GetString("angles")
		angles, err := parseAngles(s)
		if err != nil {
			return err
		}
		sim.Angles = &angles
	}
	return nil
}

// parseAngles reads "a,a',b,b'".
func parseAngles(s string) (models.Angles, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.Angles{}, fmt.Errorf("angles must be four comma-separated values a,a',b,b', got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.Angles{}, fmt.Errorf("invalid angle %q: %w", p, err)
		}
		v[i] = f
	}
	return models.Angles{A: [2]float64{v[0], v[1]}, B: [2]float64{v[2], v[3]}}, nil
}

// defaultWorkers is the parallelism used when the config leaves it at zero.
func defaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// experiment resolves the settings, model and inequality of the config.
func (a *app) experiment() (models.Settings, lhv.Model, inequality.Inequality, error) {
	sim := a.cfg.Simulation
	ineq, err := inequality.ByName(sim.Inequality)
	if err != nil {
		return models.Settings{}, nil, nil, err
	}
	mode, err := models.ParseAngleMode(sim.Mode)
	if err != nil {
		return models.Settings{}, nil, nil, err
	}

	settings := models.Settings{
		Angles:                 ineq.PreferredAngles(),
		EntanglementEfficiency: sim.Efficiency,
		Seed:                   sim.Seed,
		Trials:                 sim.Trials,
		Mode:                   mode,
	}
	if sim.Angles != nil {
		settings.Angles = *sim.Angles
	}
	if err := settings.Validate(); err != nil {
		return models.Settings{}, nil, nil, err
	}

	model, err := lhv.New(sim.Model, settings, lhv.Options{Gated: sim.Gated, Strength: sim.Strength})
	if err != nil {
		return models.Settings{}, nil, nil, err
	}
	return settings, model, ineq, nil
}

// newEngine builds an engine for the configured experiment.
func (a *app) newEngine(observer engine.TrialObserver) (*engine.Engine, error) {
	settings, model, ineq, err := a.experiment()
	if err != nil {
		return nil, err
	}

	opts := engine.DefaultOptions()
	opts.Symmetric = a.cfg.Simulation.Symmetric
	opts.RNG = a.cfg.RNG
	opts.Entangler = a.cfg.Entangler
	opts.Logger = a.logger
	opts.Observer = observer
	opts.Metrics = a.metrics

	e, err := engine.New(settings, model, ineq, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, nil
}

// openHistory opens the history database, or returns nil when disabled.
func (a *app) openHistory(ctx context.Context) (*store.SQLiteStore, error) {
	if a.cfg.Output.HistoryDB == "" {
		return nil, nil
	}
	s, err := store.Open(ctx, a.cfg.Output.Path(a.cfg.Output.HistoryDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return s, nil
}

// close flushes the event log and the metrics textfile.
func (a *app) close() error {
	a.events.Close()
	if a.metrics != nil {
		path := a.cfg.Output.Path(a.cfg.Output.MetricsFile)
		if err := a.metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		a.logger.Debug("metrics written", "path", path)
	}
	return nil
}

// emit writes v as JSON or text as the --json flag asks.
func (a *app) emit(v any, text string) error {
	if a.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(a.out, text)
	return err
}
