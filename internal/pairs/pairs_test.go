package pairs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeparators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		sep   string
	}{
		{"comma", "0, 1\n1,0\n", ","},
		{"tab", "0\t1\n1\t0\n", "\t"},
		{"semicolon", "0;1\n1; 0\n", ";"},
		{"space", "0 1\n1   0\n", " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.sep, res.Separator)
			assert.Equal(t, []models.SettingPair{{A: 0, B: 1}, {A: 1, B: 0}}, res.Pairs)
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestParseDiagnostics(t *testing.T) {
	input := strings.Join([]string{
		"header",
		"",
		"0,0",
		"1,2",
		"x,1",
		"1",
		"0,1,1",
		"1,1",
	}, "\n")

	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, ",", res.Separator)
	assert.Equal(t, []models.SettingPair{
		{A: 0, B: 0},
		models.InvalidPair,
		models.InvalidPair,
		models.InvalidPair,
		models.InvalidPair,
		{A: 1, B: 1},
	}, res.Pairs)
	assert.Equal(t, 2, res.Valid())

	require.Len(t, res.Diagnostics, 5)
	assert.Equal(t, 1, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[0].Reason, "no separator")
	assert.Equal(t, 4, res.Diagnostics[1].Line)
	assert.Contains(t, res.Diagnostics[1].Reason, "out of range")
	assert.Contains(t, res.Diagnostics[2].Reason, "not an integer")
	assert.Contains(t, res.Diagnostics[3].Reason, "expected 2 values, got 1")
	assert.Contains(t, res.Diagnostics[4].Reason, "got 3")
	assert.Contains(t, res.Diagnostics[1].String(), `line 4 "1,2"`)
}

func TestParseQuotedFields(t *testing.T) {
	res, err := Parse(strings.NewReader("\"0\",\"1\"\n1; 0\n\"1,0\n"))
	require.NoError(t, err)

	assert.Equal(t, ",", res.Separator)
	assert.Equal(t, []models.SettingPair{{A: 0, B: 1}, models.InvalidPair, models.InvalidPair}, res.Pairs)
	require.Len(t, res.Diagnostics, 2)
	assert.Contains(t, res.Diagnostics[0].Reason, "expected 2 values, got 1", "semicolon is not the file separator")
	assert.Equal(t, 3, res.Diagnostics[1].Line)
	assert.Contains(t, res.Diagnostics[1].Reason, "malformed line")
}

func TestParseEmpty(t *testing.T) {
	res, err := Parse(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Empty(t, res.Separator)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,1\n1,1\n"), 0644))

	res, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, res.Pairs, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
