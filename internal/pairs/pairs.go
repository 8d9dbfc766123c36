// Package pairs reads supplied detector settings from a text file.
//
// Each non-empty line holds the setting of detector A and of detector B,
// for example "0, 1". The separator is taken from the first line that
// contains one of ',' '\t' ';' ' ' (checked in that order) and applies to
// the whole file. Lines before that are ignored. Comma, tab and semicolon
// lines are split as CSV records, so quoted fields are accepted; a space
// separator splits on runs of whitespace.
package pairs

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/lhvsim/internal/models"
)

// separators in detection order.
var separators = []string{",", "\t", ";", " "}

// Diagnostic describes a rejected line.
type Diagnostic struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d %q: %s", d.Line, d.Text, d.Reason)
}

// Result holds the parsed pairs. Rejected lines keep their position as
// models.InvalidPair, so the engine skips them in order.
type Result struct {
	Pairs       []models.SettingPair
	Separator   string
	Diagnostics []Diagnostic
}

// Valid counts the pairs that passed validation.
func (r Result) Valid() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Valid() {
			n++
		}
	}
	return n
}

// ReadFile parses the settings file at path.
func ReadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening settings file: %w", err)
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		return Result{}, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	return res, nil
}

// Parse reads pairs from r. Malformed lines produce a Diagnostic and an
// InvalidPair entry; only read errors are returned.
func Parse(r io.Reader) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if res.Separator == "" {
			res.Separator = detectSeparator(line)
			if res.Separator == "" {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Line: lineNo, Text: line, Reason: "no separator found, line ignored",
				})
				continue
			}
		}

		pair, reason := parseLine(line, res.Separator)
		if reason != "" {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Line: lineNo, Text: line, Reason: reason})
		}
		res.Pairs = append(res.Pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func detectSeparator(line string) string {
	for _, sep := range separators {
		if strings.Contains(line, sep) {
			return sep
		}
	}
	return ""
}

// splitLine splits one line on sep.
func splitLine(line, sep string) ([]string, error) {
	if sep == " " {
		return strings.Fields(line), nil
	}
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = rune(sep[0])
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.Read()
}

func parseLine(line, sep string) (models.SettingPair, string) {
	fields, err := splitLine(line, sep)
	if err != nil {
		return models.InvalidPair, fmt.Sprintf("malformed line: %v", err)
	}
	if len(fields) != 2 {
		return models.InvalidPair, fmt.Sprintf("expected 2 values, got %d", len(fields))
	}

	var vals [2]int
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return models.InvalidPair, fmt.Sprintf("value %q is not an integer", strings.TrimSpace(f))
		}
		if v != 0 && v != 1 {
			return models.InvalidPair, fmt.Sprintf("setting %d out of range, only 0 and 1 are allowed", v)
		}
		vals[i] = v
	}
	return models.SettingPair{A: vals[0], B: vals[1]}, ""
}
