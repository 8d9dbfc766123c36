package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/models"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no record matches an ID.
var ErrNotFound = errors.New("record not found")

// Run is one completed simulation.
type Run struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	Command    string               `json:"command"`
	Model      string               `json:"model"`
	Inequality string               `json:"inequality"`
	Settings   models.Settings      `json:"settings"`
	Trials     int                  `json:"trials"`
	Skipped    int                  `json:"skipped"`
	Statistic  float64              `json:"-"`
	Broken     bool                 `json:"broken"`
	Breakdown  inequality.Breakdown `json:"-"`
	Counts     counts.State         `json:"counts"`
}

// Search is one completed angle search.
type Search struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	Model          string         `json:"model"`
	Inequality     string         `json:"inequality"`
	Seed           int64          `json:"seed"`
	Efficiency     float64        `json:"efficiency"`
	BatchTrials    int            `json:"batch_trials"`
	VerifyTrials   int            `json:"verify_trials"`
	Candidates     int            `json:"candidates"`
	Broken         int            `json:"broken"`
	Verified       int            `json:"verified"`
	Found          bool           `json:"found"`
	Interrupted    bool           `json:"interrupted"`
	Best           *models.Angles `json:"best,omitempty"`
	Statistic      float64        `json:"-"`
	BatchStatistic float64        `json:"-"`
}

// runRow mirrors the runs table.
type runRow struct {
	ID         string          `db:"id"`
	CreatedAt  string          `db:"created_at"`
	Command    string          `db:"command"`
	Model      string          `db:"model"`
	Inequality string          `db:"inequality"`
	Mode       string          `db:"mode"`
	Seed       int64           `db:"seed"`
	Efficiency float64         `db:"efficiency"`
	Angles     string          `db:"angles"`
	Trials     int             `db:"trials"`
	Skipped    int             `db:"skipped"`
	Statistic  sql.NullFloat64 `db:"statistic"`
	Broken     bool            `db:"broken"`
	Breakdown  sql.NullString  `db:"breakdown"`
	Counts     string          `db:"counts"`
}

// searchRow mirrors the searches table.
type searchRow struct {
	ID             string          `db:"id"`
	CreatedAt      string          `db:"created_at"`
	Model          string          `db:"model"`
	Inequality     string          `db:"inequality"`
	Seed           int64           `db:"seed"`
	Efficiency     float64         `db:"efficiency"`
	BatchTrials    int             `db:"batch_trials"`
	VerifyTrials   int             `db:"verify_trials"`
	Candidates     int             `db:"candidates"`
	Broken         int             `db:"broken"`
	Verified       int             `db:"verified"`
	Found          bool            `db:"found"`
	Interrupted    bool            `db:"interrupted"`
	BestAngles     sql.NullString  `db:"best_angles"`
	Statistic      sql.NullFloat64 `db:"statistic"`
	BatchStatistic sql.NullFloat64 `db:"batch_statistic"`
}

// breakdownTerm stores NaN as null, which JSON cannot carry.
type breakdownTerm struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
}

// SQLiteStore records history in a SQLite database.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun stores r and returns its ID. An empty ID or zero CreatedAt is
// filled in.
func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Command == "" {
		r.Command = "run"
	}

	angles, err := json.Marshal(r.Settings.Angles)
	if err != nil {
		return "", fmt.Errorf("failed to marshal angles: %w", err)
	}
	countsJSON, err := json.Marshal(r.Counts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal counts: %w", err)
	}
	breakdown, err := encodeBreakdown(r.Breakdown)
	if err != nil {
		return "", err
	}

	row := runRow{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt.UTC().Format(timeLayout),
		Command:    r.Command,
		Model:      r.Model,
		Inequality: r.Inequality,
		Mode:       string(r.Settings.Mode),
		Seed:       r.Settings.Seed,
		Efficiency: r.Settings.EntanglementEfficiency,
		Angles:     string(angles),
		Trials:     r.Trials,
		Skipped:    r.Skipped,
		Statistic:  nullFloat(r.Statistic),
		Broken:     r.Broken,
		Breakdown:  breakdown,
		Counts:     string(countsJSON),
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, command, model, inequality, mode, seed, efficiency,
			angles, trials, skipped, statistic, broken, breakdown, counts
		) VALUES (
			:id, :created_at, :command, :model, :inequality, :mode, :seed, :efficiency,
			:angles, :trials, :skipped, :statistic, :broken, :breakdown, :counts
		)`, row)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return r.ID, nil
}

// RecordSearch stores r and returns its ID.
func (s *SQLiteStore) RecordSearch(ctx context.Context, r Search) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	row := searchRow{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt.UTC().Format(timeLayout),
		Model:          r.Model,
		Inequality:     r.Inequality,
		Seed:           r.Seed,
		Efficiency:     r.Efficiency,
		BatchTrials:    r.BatchTrials,
		VerifyTrials:   r.VerifyTrials,
		Candidates:     r.Candidates,
		Broken:         r.Broken,
		Verified:       r.Verified,
		Found:          r.Found,
		Interrupted:    r.Interrupted,
		Statistic:      nullFloat(r.Statistic),
		BatchStatistic: nullFloat(r.BatchStatistic),
	}
	if r.Best != nil {
		best, err := json.Marshal(r.Best)
		if err != nil {
			return "", fmt.Errorf("failed to marshal angles: %w", err)
		}
		row.BestAngles = sql.NullString{String: string(best), Valid: true}
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO searches (
			id, created_at, model, inequality, seed, efficiency, batch_trials,
			verify_trials, candidates, broken, verified, found, interrupted,
			best_angles, statistic, batch_statistic
		) VALUES (
			:id, :created_at, :model, :inequality, :seed, :efficiency, :batch_trials,
			:verify_trials, :candidates, :broken, :verified, :found, :interrupted,
			:best_angles, :statistic, :batch_statistic
		)`, row)
	if err != nil {
		return "", fmt.Errorf("failed to insert search: %w", err)
	}
	return r.ID, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?`, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// GetRun returns the run whose ID is id or starts with id. An ambiguous
// prefix is an error.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs WHERE id = ? OR id LIKE ? || '%' ORDER BY id LIMIT 2`, id, id); err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	switch {
	case len(rows) == 0:
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case len(rows) > 1 && rows[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	r, err := rows[0].toRun()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListSearches returns the most recent searches first.
func (s *SQLiteStore) ListSearches(ctx context.Context, limit int) ([]Search, error) {
	var rows []searchRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM searches ORDER BY created_at DESC, id LIMIT ?`, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}

	searches := make([]Search, 0, len(rows))
	for _, row := range rows {
		sr, err := row.toSearch()
		if err != nil {
			return nil, err
		}
		searches = append(searches, sr)
	}
	return searches, nil
}

// DeleteRunsBefore removes runs created before cutoff and returns how
// many were removed.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

func (row runRow) toRun() (Run, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: invalid created_at: %w", row.ID, err)
	}
	mode, err := models.ParseAngleMode(row.Mode)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", row.ID, err)
	}

	r := Run{
		ID:         row.ID,
		CreatedAt:  created,
		Command:    row.Command,
		Model:      row.Model,
		Inequality: row.Inequality,
		Settings: models.Settings{
			EntanglementEfficiency: row.Efficiency,
			Seed:                   row.Seed,
			Trials:                 row.Trials,
			Mode:                   mode,
		},
		Trials:    row.Trials,
		Skipped:   row.Skipped,
		Statistic: floatOrNaN(row.Statistic),
		Broken:    row.Broken,
	}
	if err := json.Unmarshal([]byte(row.Angles), &r.Settings.Angles); err != nil {
		return Run{}, fmt.Errorf("run %s: invalid angles: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Counts), &r.Counts); err != nil {
		return Run{}, fmt.Errorf("run %s: invalid counts: %w", row.ID, err)
	}
	if r.Breakdown, err = decodeBreakdown(row.Breakdown); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", row.ID, err)
	}
	return r, nil
}

func (row searchRow) toSearch() (Search, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return Search{}, fmt.Errorf("search %s: invalid created_at: %w", row.ID, err)
	}
	sr := Search{
		ID:             row.ID,
		CreatedAt:      created,
		Model:          row.Model,
		Inequality:     row.Inequality,
		Seed:           row.Seed,
		Efficiency:     row.Efficiency,
		BatchTrials:    row.BatchTrials,
		VerifyTrials:   row.VerifyTrials,
		Candidates:     row.Candidates,
		Broken:         row.Broken,
		Verified:       row.Verified,
		Found:          row.Found,
		Interrupted:    row.Interrupted,
		Statistic:      floatOrNaN(row.Statistic),
		BatchStatistic: floatOrNaN(row.BatchStatistic),
	}
	if row.BestAngles.Valid {
		var best models.Angles
		if err := json.Unmarshal([]byte(row.BestAngles.String), &best); err != nil {
			return Search{}, fmt.Errorf("search %s: invalid angles: %w", row.ID, err)
		}
		sr.Best = &best
	}
	return sr, nil
}

func encodeBreakdown(b inequality.Breakdown) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}
	terms := make([]breakdownTerm, len(b))
	for i, t := range b {
		terms[i].Key = t.Key
		if !math.IsNaN(t.Value) && !math.IsInf(t.Value, 0) {
			v := t.Value
			terms[i].Value = &v
		}
	}
	data, err := json.Marshal(terms)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeBreakdown(s sql.NullString) (inequality.Breakdown, error) {
	if !s.Valid {
		return nil, nil
	}
	var terms []breakdownTerm
	if err := json.Unmarshal([]byte(s.String), &terms); err != nil {
		return nil, fmt.Errorf("invalid breakdown: %w", err)
	}
	b := make(inequality.Breakdown, len(terms))
	for i, t := range terms {
		b[i] = inequality.Term{Key: t.Key, Value: math.NaN()}
		if t.Value != nil {
			b[i].Value = *t.Value
		}
	}
	return b, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
