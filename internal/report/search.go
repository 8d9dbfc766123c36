package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nvandessel/lhvsim/internal/analysis"
	"github.com/nvandessel/lhvsim/internal/engine"
)

// SearchText describes a search result.
func SearchText(inequality string, r engine.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Searched %s candidates: %s broke %s in the batch phase, %s verified\n",
		humanize.Comma(int64(r.Candidates)), humanize.Comma(int64(r.Broken)), inequality,
		humanize.Comma(int64(r.Verified)))
	if r.Interrupted {
		b.WriteString("Search interrupted; only the candidates seen so far were verified\n")
	}
	if !r.Found {
		b.WriteString("No angles found that break the inequality\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Best angles: %s\n", r.Best.ShortString())
	fmt.Fprintf(&b, "Statistic: %s (batch %s)\n", num(r.Statistic), num(r.BatchStatistic))
	b.WriteString(r.Breakdown.String())
	return b.String()
}

// ReplicateText describes a replicate sweep.
func ReplicateText(inequality string, bound float64, replicas []engine.Replica, s analysis.Summary, u analysis.Uniformity) string {
	broken := 0
	for _, r := range replicas {
		if r.Broken {
			broken++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d runs of %s, %d broke the bound %s\n", len(replicas), inequality, broken, num(bound))
	fmt.Fprintf(&b, "mean %s, std dev %s, median %s, range [%s, %s]\n",
		num(s.Mean), num(s.StdDev), num(s.Median), num(s.Min), num(s.Max))
	fmt.Fprintf(&b, "%g%% confidence interval [%s, %s]", s.Confidence*100, num(s.CILow), num(s.CIHigh))
	if s.ExceedsBound(bound) {
		b.WriteString(", entirely above the bound")
	}
	b.WriteByte('\n')
	if s.Dropped > 0 {
		fmt.Fprintf(&b, "%d runs had an undefined statistic and were left out\n", s.Dropped)
	}

	verdict := "uniform"
	if !u.Uniform {
		verdict = "NOT uniform"
	}
	fmt.Fprintf(&b, "setting combinations %v: chi-square %.3f, p=%.4g, %s at alpha %g\n",
		u.Observed, u.ChiSquare, u.PValue, verdict, u.Alpha)
	return b.String()
}

// Finite returns v, or nil when v is NaN or infinite, for JSON output.
func Finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
