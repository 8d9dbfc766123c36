package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/lhvsim/internal/rng"
	"github.com/nvandessel/lhvsim/internal/snapshot"
)

// isolateHome sets HOME to a temp directory to avoid touching a real
// ~/.lhvsim/config.yaml.
func isolateHome(t *testing.T) {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	require.NoError(t, os.MkdirAll(home, 0700))
	t.Setenv("HOME", home)
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

func executeJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := execute(t, append(args, "--json")...)
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestRunWritesOutputs(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	v := executeJSON(t, "run", "--output-dir", dir, "--trials", "2000")

	assert.Equal(t, "wang", v["model"])
	assert.Equal(t, "guistina", v["inequality"])
	assert.Equal(t, float64(2000), v["total_trials"])
	assert.NotEmpty(t, v["id"])
	assert.Contains(t, v, "breakdown")

	for _, name := range []string{"log.csv", "summary.csv", "state.json.gz", "history.db"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Equal(t, 2001, countLines(t, filepath.Join(dir, "log.csv")), "header plus one line per trial")

	summary, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Model, wang")
}

func TestRunTextOutput(t *testing.T) {
	isolateHome(t)
	out, err := execute(t, "run", "--output-dir", t.TempDir(), "--trials", "500",
		"--model", "trivial", "--inequality", "chsh", "--no-log")
	require.NoError(t, err)
	assert.Contains(t, out, "chsh with trivial")
	assert.Contains(t, out, "500 trials")
}

func TestRunContinue(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	executeJSON(t, "run", "--output-dir", dir, "--trials", "1500", "--seed", "9", "--model", "trivial")
	continued := executeJSON(t, "run", "--output-dir", dir, "--trials", "1500", "--continue")

	assert.Equal(t, "trivial", continued["model"], "settings come from the saved run")
	assert.Equal(t, float64(1500), continued["trials"])
	assert.Equal(t, float64(3000), continued["total_trials"])
	assert.Equal(t, 3001, countLines(t, filepath.Join(dir, "log.csv")), "continued log is appended")

	state := executeJSON(t, "state", "--output-dir", dir)
	assert.Equal(t, float64(3000), state["total_trials"])

	list := executeJSON(t, "history", "list", "--output-dir", dir)
	assert.Equal(t, float64(2), list["total_count"])
}

func TestRunContinueKeepsPolicy(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, dir string)
	}{
		{
			name: "skewed source",
			args: []string{"--rng", "skewed"},
			check: func(t *testing.T, dir string) {
				cp, _, err := snapshot.Load(filepath.Join(dir, "state.json.gz"))
				require.NoError(t, err)
				assert.Equal(t, rng.KindSkewed, cp.Source.Kind)
			},
		},
		{
			name: "asymmetric measurement",
			args: []string{"--asymmetric", "--gated"},
			check: func(t *testing.T, dir string) {
				cp, _, err := snapshot.Load(filepath.Join(dir, "state.json.gz"))
				require.NoError(t, err)
				assert.False(t, cp.Symmetric)
				assert.True(t, cp.ModelOptions.Gated)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateHome(t)
			dir := t.TempDir()

			first := append([]string{"run", "--output-dir", dir, "--trials", "800", "--no-log"}, tt.args...)
			executeJSON(t, first...)
			continued := executeJSON(t, "run", "--output-dir", dir, "--trials", "800", "--no-log", "--continue")

			assert.Equal(t, float64(1600), continued["total_trials"])
			tt.check(t, dir)
		})
	}
}

func TestRunContinueWithoutState(t *testing.T) {
	isolateHome(t)
	v := executeJSON(t, "run", "--output-dir", t.TempDir(), "--trials", "300", "--continue")
	assert.Equal(t, float64(300), v["total_trials"])
}

func TestRunSuppliedPairs(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	pairsFile := filepath.Join(dir, "pairs.csv")
	require.NoError(t, os.WriteFile(pairsFile, []byte("0, 1\n1, 0\n2, 1\n1, 1\n"), 0644))

	v := executeJSON(t, "run", "--output-dir", dir, "--trials", "3", "--pairs", pairsFile)
	assert.Equal(t, float64(1), v["skipped"])
	assert.Equal(t, float64(3), v["total_trials"])
}

func TestRunInvalidFlags(t *testing.T) {
	isolateHome(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown model", []string{"--model", "bohm"}},
		{"unknown inequality", []string{"--inequality", "mermin"}},
		{"efficiency out of range", []string{"--efficiency", "1.5"}},
		{"bad angles", []string{"--angles", "0,45"}},
		{"missing pairs file", []string{"--pairs", "/nonexistent/pairs.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--output-dir", t.TempDir(), "--trials", "10"}, tt.args...)
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestRunWritesMetrics(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	t.Setenv("LHVSIM_METRICS_FILE", "metrics.prom")

	_, err := execute(t, "run", "--output-dir", dir, "--trials", "100", "--no-log")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "lhvsim_")
}

func TestSearchSmallSpace(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	v := executeJSON(t, "search", "--output-dir", dir,
		"--a1", "0", "--a2", "45", "--b1", "5,10", "--b2=-10,-5",
		"--batch-trials", "200", "--verify-trials", "400", "--top-k", "2", "--workers", "2")

	assert.Equal(t, float64(4), v["candidates"])
	assert.False(t, v["interrupted"].(bool))
	assert.LessOrEqual(t, v["verified"].(float64), float64(2))
	assert.NotEmpty(t, v["id"])

	list := executeJSON(t, "history", "searches", "--output-dir", dir)
	assert.Equal(t, float64(1), list["total_count"])
}

func TestSearchBadAxis(t *testing.T) {
	isolateHome(t)
	_, err := execute(t, "search", "--output-dir", t.TempDir(), "--a1", "10:5")
	assert.Error(t, err)
}

func TestReplicate(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	v := executeJSON(t, "replicate", "--output-dir", dir, "--runs", "3", "--trials", "400", "--workers", "2")
	assert.Equal(t, float64(3), v["runs"])
	replicas := v["replicas"].([]any)
	require.Len(t, replicas, 3)
	seeds := make([]float64, 3)
	for i, r := range replicas {
		seeds[i] = r.(map[string]any)["seed"].(float64)
	}
	assert.Equal(t, []float64{1234, 1235, 1236}, seeds)
	assert.Contains(t, v, "uniformity")

	list := executeJSON(t, "history", "list", "--output-dir", dir)
	assert.Equal(t, float64(3), list["total_count"])
	for _, r := range list["runs"].([]any) {
		assert.Equal(t, "replicate", r.(map[string]any)["command"])
	}
}

func TestReplicateRejectsBadConfidence(t *testing.T) {
	isolateHome(t)
	_, err := execute(t, "replicate", "--output-dir", t.TempDir(), "--runs", "2", "--confidence", "1.5")
	assert.Error(t, err)
}

func TestHistoryShowAndPrune(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	run := executeJSON(t, "run", "--output-dir", dir, "--trials", "200", "--no-log")
	id := run["id"].(string)

	shown := executeJSON(t, "history", "show", id[:6], "--output-dir", dir)
	assert.Equal(t, id, shown["id"])
	assert.Contains(t, shown, "counts")

	out, err := execute(t, "history", "list", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id[:8])

	_, err = execute(t, "history", "show", "does-not-exist", "--output-dir", dir)
	assert.Error(t, err)

	pruned := executeJSON(t, "history", "prune", "--older-than", "1h", "--output-dir", dir)
	assert.Equal(t, float64(0), pruned["deleted"])

	_, err = execute(t, "history", "prune", "--output-dir", dir)
	assert.Error(t, err, "--older-than is required")
}

func TestStateCmd(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	executeJSON(t, "run", "--output-dir", dir, "--trials", "250", "--no-log")

	v := executeJSON(t, "state", "--output-dir", dir)
	assert.Equal(t, true, v["valid"])
	assert.Equal(t, float64(250), v["total_trials"])
	assert.Equal(t, "wang", v["model"])

	_, err := execute(t, "state", filepath.Join(dir, "missing.json.gz"))
	assert.Error(t, err)
}

func TestConfigSetGet(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "init refuses to overwrite")

	_, err = execute(t, "config", "set", "simulation.efficiency", "0.7", "--config", path)
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "simulation.angles", "0,45,-11.25,11.25", "--config", path)
	require.NoError(t, err)

	v := executeJSON(t, "config", "get", "simulation.efficiency", "--config", path)
	assert.Equal(t, 0.7, v["value"])
	v = executeJSON(t, "config", "get", "simulation.angles", "--config", path)
	assert.Equal(t, "0,45,-11.25,11.25", v["value"])

	tests := []struct {
		name       string
		key, value string
	}{
		{"unknown key", "simulation.colour", "red"},
		{"not a number", "simulation.trials", "many"},
		{"out of range", "simulation.efficiency", "2"},
		{"unknown model", "simulation.model", "bohm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "config", "set", tt.key, tt.value, "--config", path)
			assert.Error(t, err)
		})
	}

	_, err = execute(t, "config", "get", "nope", "--config", path)
	assert.Error(t, err)
}

func TestConfigFileDrivesRun(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "config", "set", "simulation.model", "trivial", "--config", path)
	require.NoError(t, err)

	v := executeJSON(t, "run", "--config", path, "--output-dir", t.TempDir(), "--trials", "100", "--no-log")
	assert.Equal(t, "trivial", v["model"])
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lhvsim version "+version+" (commit: none, built: unknown)\n", out)

	v := executeJSON(t, "version")
	assert.Equal(t, version, v["version"])
}

func TestParseAngles(t *testing.T) {
	angles, err := parseAngles("0, 45, -11.25, 11.25")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0, 45}, angles.A)
	assert.Equal(t, [2]float64{-11.25, 11.25}, angles.B)

	_, err = parseAngles("0,45,x,1")
	assert.Error(t, err)
	_, err = parseAngles("0,45,1")
	assert.Error(t, err)
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr bool
	}{
		{"single value", "45", []float64{45}, false},
		{"list", "1, 2,3", []float64{1, 2, 3}, false},
		{"range", "0:3", []float64{0, 1, 2}, false},
		{"range with step", "-45:45:30", []float64{-45, -15, 15}, false},
		{"fractional step", "0:1:0.5", []float64{0, 0.5}, false},
		{"empty range", "5:5", nil, true},
		{"zero step", "0:10:0", nil, true},
		{"too many parts", "0:1:2:3", nil, true},
		{"bad number", "a,b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAxis(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
