package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/lhvsim/internal/counts"
)

// ReplicateOptions tunes Replicate.
type ReplicateOptions struct {
	// Runs is the number of seeds, starting at the engine seed.
	Runs int
	// Trials per run. Zero uses the engine settings.
	Trials  int
	Workers int
}

// Replica is the outcome of one seed.
type Replica struct {
	Seed          int64        `json:"seed"`
	Statistic     float64      `json:"statistic"`
	Broken        bool         `json:"broken"`
	BothDetected  float64      `json:"both_detected_pct"`
	SettingCounts [4]int       `json:"setting_counts"`
	Counts        counts.State `json:"counts"`
}

// Replicate runs the current configuration for Runs consecutive seeds
// and returns the replicas in seed order. Cancelling ctx stops handing
// out seeds; the replicas finished so far are returned with ctx.Err().
func (e *Engine) Replicate(ctx context.Context, opts ReplicateOptions) ([]Replica, error) {
	if opts.Runs <= 0 {
		return nil, fmt.Errorf("replicate needs at least one run, got %d", opts.Runs)
	}
	trials := opts.Trials
	if trials <= 0 {
		trials = e.settings.Trials
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > opts.Runs {
		workers = opts.Runs
	}

	out := make([]Replica, opts.Runs)
	done := make([]bool, opts.Runs)
	angles := e.settings.Angles

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			eng, err := e.fork()
			if err != nil {
				return fmt.Errorf("creating replicate worker: %w", err)
			}
			for i := w; i < opts.Runs; i += workers {
				if ctx.Err() != nil {
					return nil
				}
				seed := e.settings.Seed + int64(i)
				eng.Reconfigure(angles, seed)
				res := eng.Run(trials, nil, false)
				c := eng.Counts()
				out[i] = Replica{
					Seed:          seed,
					Statistic:     res.Statistic,
					Broken:        res.Broken,
					BothDetected:  c.PercentBothDetected(),
					SettingCounts: [4]int{c.Trials(0, 0), c.Trials(0, 1), c.Trials(1, 0), c.Trials(1, 1)},
					Counts:        c.State(),
				}
				done[i] = true
				e.logger.Debug("replica complete", "seed", seed, "statistic", res.Statistic)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	finished := out[:0]
	for i, r := range out {
		if done[i] {
			finished = append(finished, r)
		}
	}
	return finished, ctx.Err()
}
