// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored metadata of one analysis.
type Run struct {
	ID        string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source"`
	Timezone  string        `json:"timezone"`
	Width     time.Duration `json:"width"`
	Visits    int           `json:"visits"`
	Rejected  int           `json:"rejected"`
	Buckets   int           `json:"buckets"`
	PeakLoad  int           `json:"peak_load"`
}

// SaveRun stores the analysis together with its input visits. visits is the
// full input; rejected ones are flagged with their reason.
func (db *DB) SaveRun(ctx context.Context, a *models.Analysis, visits []models.Visit) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_run", time.Since(start), err) }()

	loc := a.Hourly.Location()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, source, timezone, width_seconds, visits, rejected, buckets, peak_load)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.CreatedAt.UTC(), a.Source, loc.String(), int64(a.Hourly.Width()/time.Second),
		a.Summary.Visits, a.Summary.Rejected, a.Hourly.Len(), a.Summary.Load.PeakLoad,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err = insertVisits(ctx, tx, a, visits, loc); err != nil {
		return err
	}
	if err = insertHourly(ctx, tx, a.RunID, a.Hourly); err != nil {
		return err
	}
	if err = insertWeekly(ctx, tx, a.RunID, a.Weekly); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.Ctx(ctx).Debug().Str("run_id", a.RunID).Int("visits", len(visits)).Dur("elapsed", time.Since(start)).Msg("Run stored")
	return nil
}

func insertVisits(ctx context.Context, tx *sql.Tx, a *models.Analysis, visits []models.Visit, loc *time.Location) error {
	reasons := make(map[int]string, len(a.Rejections))
	for _, r := range a.Rejections {
		reasons[r.Index] = r.Reason
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO visits (run_id, idx, arrival, treatment_start, finish, rejected_reason)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, v := range visits {
		var reason any
		if r, ok := reasons[i]; ok {
			reason = r
		}
		if _, err := stmt.ExecContext(ctx, a.RunID, i,
			wall(v.Arrival, loc), wall(v.TreatmentStart, loc), wall(v.Finish, loc), reason); err != nil {
			return fmt.Errorf("failed to insert visit %d: %w", i, err)
		}
	}
	return nil
}

func insertHourly(ctx context.Context, tx *sql.Tx, runID string, t *models.HourlyTable) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly (run_id, bucket_start, weekday, slot, arrivals, treatments, finishes, mean_waiting_minutes, load)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare hourly insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	loc := t.Location()
	for i := range t.Len() {
		row := t.Row(i)
		if _, err := stmt.ExecContext(ctx, runID, wall(row.Start, loc), int(row.Weekday), row.Slot,
			row.Arrivals, row.Treatments, row.Finishes, nullMinutes(row.MeanWaiting), row.Load); err != nil {
			return fmt.Errorf("failed to insert hourly row %d: %w", i, err)
		}
	}
	return nil
}

func insertWeekly(ctx context.Context, tx *sql.Tx, runID string, t *models.WeeklyTable) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weekly (run_id, weekday, hour, minute, buckets, waiting_buckets, arrivals, treatments, finishes,
		                    mean_waiting_minutes, visit_waiting_minutes, load, peak_load)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare weekly insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range t.Rows() {
		if _, err := stmt.ExecContext(ctx, runID, int(row.Weekday), row.Hour, row.Minute, row.Buckets, row.WaitingBuckets,
			row.Arrivals, row.Treatments, row.Finishes, nullMinutes(row.MeanWaiting), nullMinutes(row.VisitWaiting),
			row.Load, row.PeakLoad); err != nil {
			return fmt.Errorf("failed to insert weekly row %s: %w", row.WeeklyKey, err)
		}
	}
	return nil
}

func nullMinutes(n models.NullDuration) sql.NullFloat64 {
	m, ok := n.Minutes()
	return sql.NullFloat64{Float64: m, Valid: ok}
}

// Runs lists stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, created_at, source, timezone, width_seconds, visits, rejected, buckets, peak_load
		FROM runs
		ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one stored run.
func (db *DB) Run(ctx context.Context, id string) (Run, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT run_id, created_at, source, timezone, width_seconds, visits, rejected, buckets, peak_load
		FROM runs
		WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r     Run
		width int64
	)
	if err := s.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Timezone, &width, &r.Visits, &r.Rejected, &r.Buckets, &r.PeakLoad); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	r.Width = time.Duration(width) * time.Second
	return r, nil
}

// DeleteRun removes a run and everything stored with it.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	for _, table := range []string{"visits", "hourly", "weekly", "runs"} {
		if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete run from %s: %w", table, err)
		}
	}
	return nil
}
