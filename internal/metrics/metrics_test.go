package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveTrials(1, 2, 3)
	r.ObserveSkipped()
	r.ObserveRun("ch", 1, true, 0.1)
	r.ObserveCandidate(true)
	r.ObserveVerified()
	r.ObserveSearchBest("ch", 2)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.ObserveTrials(10, 5, 85)
	r.ObserveTrials(1, 0, 0)
	r.ObserveSkipped()
	r.ObserveCandidate(true)
	r.ObserveCandidate(false)
	r.ObserveCandidate(false)
	r.ObserveRun("chsh", 2.5, true, 0.2)

	assert.Equal(t, 11.0, testutil.ToFloat64(r.trials.WithLabelValues("both")))
	assert.Equal(t, 85.0, testutil.ToFloat64(r.trials.WithLabelValues("neither")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.candidates.WithLabelValues("classical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("chsh", "true")))
	assert.Equal(t, 2.5, testutil.ToFloat64(r.statistic.WithLabelValues("chsh")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveSearchBest("guistina", 42)

	path := filepath.Join(t.TempDir(), "out", "lhvsim.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `lhvsim_search_best_statistic{inequality="guistina"} 42`))
}
