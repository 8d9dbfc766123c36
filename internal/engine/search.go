package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// SearchSpace lists the values tried for each angle. Candidates are
// enumerated with A1 outermost and B2 innermost.
type SearchSpace struct {
	A1 []float64 `json:"a1"`
	A2 []float64 `json:"a2"`
	B1 []float64 `json:"b1"`
	B2 []float64 `json:"b2"`
}

// DefaultSearchSpace sweeps A1 in [0,90), A2 in [1,90), B1 in [0,45) and
// B2 in [-45,45) in 1° steps.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		A1: steps(0, 90),
		A2: steps(1, 90),
		B1: steps(0, 45),
		B2: steps(-45, 45),
	}
}

func steps(from, to int) []float64 {
	out := make([]float64, 0, to-from)
	for v := from; v < to; v++ {
		out = append(out, float64(v))
	}
	return out
}

// Size is the number of quadruples, including those Search skips because
// two angles coincide.
func (s SearchSpace) Size() int {
	return len(s.A1) * len(s.A2) * len(s.B1) * len(s.B2)
}

// At decodes enumeration index i.
func (s SearchSpace) At(i int) models.Angles {
	b2 := i % len(s.B2)
	i /= len(s.B2)
	b1 := i % len(s.B1)
	i /= len(s.B1)
	a2 := i % len(s.A2)
	a1 := i / len(s.A2)
	return models.Angles{
		A: [2]float64{s.A1[a1], s.A2[a2]},
		B: [2]float64{s.B1[b1], s.B2[b2]},
	}
}

// SearchOptions tunes Search. Zero values select the defaults.
type SearchOptions struct {
	BatchTrials  int `json:"batch_trials" yaml:"batch_trials"`
	VerifyTrials int `json:"verify_trials" yaml:"verify_trials"`
	VerifyTopK   int `json:"verify_top_k" yaml:"verify_top_k"`
	Workers      int `json:"workers" yaml:"workers"`
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.BatchTrials <= 0 {
		o.BatchTrials = constants.DefaultBatchTrials
	}
	if o.VerifyTrials <= 0 {
		o.VerifyTrials = constants.DefaultVerifyTrials
	}
	if o.VerifyTopK <= 0 {
		o.VerifyTopK = constants.DefaultVerifyTopK
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// SearchResult is the verified winner of a search.
type SearchResult struct {
	Best           models.Angles        `json:"best"`
	Statistic      float64              `json:"statistic"`
	BatchStatistic float64              `json:"batch_statistic"`
	Found          bool                 `json:"found"`
	Candidates     int                  `json:"candidates"`
	Broken         int                  `json:"broken"`
	Verified       int                  `json:"verified"`
	Interrupted    bool                 `json:"interrupted"`
	Breakdown      inequality.Breakdown `json:"breakdown,omitempty"`
}

// candidate is a batch-phase survivor.
type candidate struct {
	index     int
	angles    models.Angles
	statistic float64
}

// better orders candidates by statistic, then by enumeration order.
func better(a, b candidate) bool {
	if a.statistic != b.statistic {
		return a.statistic > b.statistic
	}
	return a.index < b.index
}

// pool keeps the best k candidates seen so far, best first.
type pool struct {
	k     int
	items []candidate
}

func (p *pool) offer(c candidate) bool {
	if len(p.items) == p.k && !better(c, p.items[len(p.items)-1]) {
		return false
	}
	i := sort.Search(len(p.items), func(i int) bool { return better(c, p.items[i]) })
	p.items = append(p.items, candidate{})
	copy(p.items[i+1:], p.items[i:])
	p.items[i] = c
	if len(p.items) > p.k {
		p.items = p.items[:p.k]
	}
	return i == 0
}

// evalFunc runs trials for one candidate on a worker engine and returns
// the statistic.
type evalFunc func(w *Engine, angles models.Angles, seed int64, trials int) float64

func runCandidate(w *Engine, angles models.Angles, seed int64, trials int) float64 {
	w.Reconfigure(angles, seed)
	return w.Run(trials, nil, false).Statistic
}

type searcher struct {
	base  *Engine
	space SearchSpace
	opts  SearchOptions
	eval  evalFunc
}

// Search sweeps space for the angles that break the inequality the most.
//
// Every candidate runs a small batch on a seed derived from the engine
// seed and its enumeration index. The best VerifyTopK broken candidates
// are then re-run with VerifyTrials on an independent derived seed, and
// the winner is the best verified statistic that is still broken. Seeds
// depend only on enumeration order, so the result is the same for any
// number of workers.
//
// Cancelling ctx stops the sweep; candidates collected so far are still
// verified and the result is marked Interrupted.
func (e *Engine) Search(ctx context.Context, space SearchSpace, opts SearchOptions) (SearchResult, error) {
	s := &searcher{base: e, space: space, opts: opts.withDefaults(), eval: runCandidate}
	return s.run(ctx)
}

func (s *searcher) run(ctx context.Context) (SearchResult, error) {
	if s.space.Size() == 0 {
		return SearchResult{}, fmt.Errorf("search space is empty")
	}

	pooled, evaluated, broken, err := s.sweep(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{
		Candidates:  evaluated,
		Broken:      broken,
		Interrupted: ctx.Err() != nil,
	}

	verified, breakdowns, err := s.verify(pooled)
	if err != nil {
		return SearchResult{}, err
	}
	res.Verified = len(verified)

	ineq := s.base.ineq
	best := -1
	for i, v := range verified {
		if !ineq.IsBroken(v) {
			continue
		}
		if best < 0 || v > verified[best] || (v == verified[best] && pooled[i].index < pooled[best].index) {
			best = i
		}
	}
	if best >= 0 {
		res.Found = true
		res.Best = pooled[best].angles
		res.Statistic = verified[best]
		res.BatchStatistic = pooled[best].statistic
		res.Breakdown = breakdowns[best]
	}

	if res.Found {
		s.base.opts.Metrics.ObserveSearchBest(ineq.Name(), res.Statistic)
		s.base.logger.Info("search winner",
			"angles", res.Best.ShortString(),
			"statistic", res.Statistic,
			"batch_statistic", res.BatchStatistic,
		)
	} else {
		s.base.logger.Info("search found no verified violation",
			"candidates", res.Candidates, "broken", res.Broken)
	}
	return res, nil
}

// sweep runs the batch phase and returns the merged pool, best first.
func (s *searcher) sweep(ctx context.Context) ([]candidate, int, int, error) {
	workers := s.opts.Workers
	size := s.space.Size()
	if workers > size {
		workers = size
	}

	pools := make([]pool, workers)
	var evaluated, broken atomic.Int64
	ineq := s.base.ineq

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			eng, err := s.base.fork()
			if err != nil {
				return fmt.Errorf("creating search worker: %w", err)
			}
			p := &pools[w]
			p.k = s.opts.VerifyTopK

			for i := w; i < size; i += workers {
				if ctx.Err() != nil {
					return nil
				}
				angles := s.space.At(i)
				if !angles.Distinct() {
					continue
				}
				seed := rng.DeriveSeed(s.base.settings.Seed, uint64(2*i))
				stat := s.eval(eng, angles, seed, s.opts.BatchTrials)

				isBroken := ineq.IsBroken(stat)
				s.base.opts.Metrics.ObserveCandidate(isBroken)
				if n := evaluated.Add(1); n%constants.SearchProgressEvery == 0 {
					s.base.logger.Info("search progress", "candidates", n, "of", size)
				}
				if !isBroken {
					continue
				}
				broken.Add(1)
				if p.offer(candidate{index: i, angles: angles, statistic: stat}) {
					s.base.logger.Info("new batch best",
						"worker", w,
						"angles", angles.ShortString(),
						"statistic", stat,
						"detected_pct", eng.counts.PercentBothDetected(),
					)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	merged := pool{k: s.opts.VerifyTopK}
	for _, p := range pools {
		for _, c := range p.items {
			merged.offer(c)
		}
	}
	return merged.items, int(evaluated.Load()), int(broken.Load()), nil
}

// verify re-runs every pooled candidate with the large batch and returns
// the statistics and breakdowns in pool order.
func (s *searcher) verify(pooled []candidate) ([]float64, []inequality.Breakdown, error) {
	out := make([]float64, len(pooled))
	breakdowns := make([]inequality.Breakdown, len(pooled))
	if len(pooled) == 0 {
		return out, breakdowns, nil
	}
	workers := s.opts.Workers
	if workers > len(pooled) {
		workers = len(pooled)
	}

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			eng, err := s.base.fork()
			if err != nil {
				return fmt.Errorf("creating verify worker: %w", err)
			}
			for j := w; j < len(pooled); j += workers {
				c := pooled[j]
				seed := rng.DeriveSeed(s.base.settings.Seed, uint64(2*c.index+1))
				out[j] = s.eval(eng, c.angles, seed, s.opts.VerifyTrials)
				breakdowns[j] = eng.Describe()
				s.base.opts.Metrics.ObserveVerified()
				s.base.logger.Info("verified candidate",
					"angles", c.angles.ShortString(),
					"batch_statistic", c.statistic,
					"statistic", out[j],
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, breakdowns, nil
}
