package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/core"
	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run states.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one catalogued render.
type Run struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Scenario     string     `json:"scenario"`
	Params       config.Run `json:"params"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	FinishedAt   string     `json:"finished_at,omitempty" format:"date-time"`
	DurationMS   int64      `json:"duration_ms"`
	Pixels       int        `json:"pixels"`
	Batches      int        `json:"batches"`
	Captured     int        `json:"captured"`
	Escaped      int        `json:"escaped"`
	StepLimited  int        `json:"step_limited"`
	Diverged     int        `json:"diverged"`
	Emitting     int        `json:"emitting"`
	AverageSteps float64    `json:"average_steps"`
	MeanValue    float64    `json:"mean_value"`
	MaxValue     float64    `json:"max_value"`
	TotalValue   float64    `json:"total_value"`
}

// Diagnostic is a pixel whose geodesic ended abnormally.
type Diagnostic struct {
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Status string  `json:"status"`
	Flags  int     `json:"flags"`
	Steps  int     `json:"steps"`
	Value  float64 `json:"value"`
}

// Repo reads and writes the catalog.
type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r Repo) now() string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// StartRun records a new running render and returns its ID.
func (r Repo) StartRun(ctx context.Context, run config.Run) (string, error) {
	params, err := json.Marshal(run)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx, `INSERT INTO runs(id,name,scenario,params_json,status,created_at) VALUES (?,?,?,?,?,?)`,
		id, run.Name, run.Scenario, string(params), StatusRunning, r.now())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// CompleteRun stores the statistics and output of a finished render.
func (r Repo) CompleteRun(ctx context.Context, id string, stats renderer.RenderStats, outputPath string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE runs SET status=?,output_path=?,finished_at=?,duration_ms=?,pixels=?,batches=?,captured=?,escaped=?,step_limited=?,diverged=?,emitting=?,average_steps=?,mean_value=?,max_value=?,total_value=? WHERE id=?`,
		StatusCompleted, nullable(outputPath), r.now(), stats.Duration.Milliseconds(), stats.TotalPixels, stats.Batches,
		stats.Captured, stats.Escaped, stats.StepLimited, stats.Diverged, stats.Emitting,
		stats.AverageSteps, stats.Mean, stats.Max, stats.Total, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return expectOne(res)
}

// FailRun marks a render failed or cancelled.
func (r Repo) FailRun(ctx context.Context, id, status string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE runs SET status=?,error=?,finished_at=? WHERE id=?`,
		status, nullable(msg), r.now(), id)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return expectOne(res)
}

// RecordDiagnostics stores every pixel that hit the step budget or diverged.
// It returns the number of pixels recorded.
func (r Repo) RecordDiagnostics(ctx context.Context, id string, img *renderer.Image) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pixel_diagnostics(run_id,pixel_row,pixel_col,alpha,beta,status,flags,steps,value) VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for i, p := range img.Pixels {
		if !p.Flags.Has(core.FlagStepLimit) && !p.Flags.Has(core.FlagDiverged) {
			continue
		}
		row, col := i/img.Size, i%img.Size
		if _, err := stmt.ExecContext(ctx, id, row, col, p.Alpha, p.Beta, p.Status.String(), int(p.Flags), p.Steps, p.Value); err != nil {
			return 0, fmt.Errorf("insert diagnostic (%d, %d): %w", row, col, err)
		}
		n++
	}
	return n, tx.Commit()
}

const runColumns = `id,name,scenario,params_json,status,COALESCE(error,''),COALESCE(output_path,''),created_at,COALESCE(finished_at,''),duration_ms,pixels,batches,captured,escaped,step_limited,diverged,emitting,average_steps,mean_value,max_value,total_value`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var params string
	err := s.Scan(&run.ID, &run.Name, &run.Scenario, &params, &run.Status, &run.Error, &run.OutputPath,
		&run.CreatedAt, &run.FinishedAt, &run.DurationMS, &run.Pixels, &run.Batches, &run.Captured, &run.Escaped,
		&run.StepLimited, &run.Diverged, &run.Emitting, &run.AverageSteps, &run.MeanValue, &run.MaxValue, &run.TotalValue)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return run, fmt.Errorf("decode params of run %s: %w", run.ID, err)
	}
	return run, nil
}

// GetRun returns one run.
func (r Repo) GetRun(ctx context.Context, id string) (Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id))
}

// ListRuns returns the most recent runs first.
func (r Repo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

// Diagnostics returns the recorded pixels of a run in row-major order.
func (r Repo) Diagnostics(ctx context.Context, id string) ([]Diagnostic, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT pixel_row,pixel_col,alpha,beta,status,flags,steps,value FROM pixel_diagnostics WHERE run_id=? ORDER BY pixel_row,pixel_col`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Row, &d.Col, &d.Alpha, &d.Beta, &d.Status, &d.Flags, &d.Steps, &d.Value); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
