// Package report renders run results as the comma-delimited summary
// written to summary.csv and as human-readable text.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/models"
)

// Summary is everything summary.csv reports for one run.
type Summary struct {
	Date       time.Time
	Settings   models.Settings
	Model      string
	Inequality string
	Statistic  float64
	Broken     bool
	Breakdown  inequality.Breakdown
	Counts     *counts.Counts
}

// Render writes s as "key, value[, description]" lines.
func Render(w io.Writer, s Summary) error {
	var b bytes.Buffer
	a, bb := s.Settings.Angles.A, s.Settings.Angles.B

	line(&b, "Date", s.Date.Format(time.RFC1123))
	line(&b, "A1", num(a[0]), "angle at detector A in degrees")
	line(&b, "A2", num(a[1]), "angle at detector A in degrees")
	line(&b, "B1", num(bb[0]), "angle at detector B in degrees")
	line(&b, "B2", num(bb[1]), "angle at detector B in degrees")
	line(&b, "entanglementEfficiency", num(s.Settings.EntanglementEfficiency))
	line(&b, "Seed", strconv.FormatInt(s.Settings.Seed, 10), "the seed used in the random generator")
	line(&b, "Trials", strconv.Itoa(s.Counts.TotalTrials()), "the number of pairs that we have produced in total")
	line(&b, "Model", s.Model, "the model that computes the measurement for a photon, an angle at a detector and a hidden variable")
	line(&b, "Inequality", s.Inequality, "the inequality formula")
	b.WriteString(s.Breakdown.String())
	line(&b, "Broken", strconv.FormatBool(s.Broken))
	line(&b, "% detected", Percent(s.Counts.PercentBothDetected()))
	line(&b, "% single A", Percent(s.Counts.PercentSingleA()))
	line(&b, "% single B", Percent(s.Counts.PercentSingleB()))
	line(&b, "Total count", strconv.Itoa(s.Counts.TotalTrials()))

	_, err := w.Write(b.Bytes())
	return err
}

// WriteFile renders s to path, replacing the file.
func WriteFile(path string, s Summary) error {
	var b bytes.Buffer
	if err := Render(&b, s); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// Text is the short human-readable form printed after a run.
func Text(s Summary) string {
	verdict := "respected"
	if s.Broken {
		verdict = "BROKEN"
	}
	return fmt.Sprintf("%s with %s: statistic %s (%s), %s trials, %s both detected\n",
		s.Inequality, s.Model, num(s.Statistic), verdict,
		humanize.Comma(int64(s.Counts.TotalTrials())),
		Percent(s.Counts.PercentBothDetected()))
}

// Percent formats a percentage with at most two decimals.
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "NaN%"
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + "%"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func line(b *bytes.Buffer, key, value string, desc ...string) {
	b.WriteString(key)
	b.WriteString(", ")
	b.WriteString(value)
	for _, d := range desc {
		b.WriteString(", ")
		b.WriteString(d)
	}
	b.WriteByte('\n')
}
