// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
)

// PostgresSource runs a SQL query against Postgres. Like DuckDBSource the
// first three result columns are arrival, treatment start and finish;
// timestamp columns without a zone are read in the analysis location.
type PostgresSource struct {
	dsn     string
	query   string
	loc     *time.Location
	timeout time.Duration
}

// NewPostgresSource returns a source running query against dsn.
func NewPostgresSource(dsn, query string, loc *time.Location, timeout time.Duration) *PostgresSource {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresSource{dsn: dsn, query: query, loc: loc, timeout: timeout}
}

// Name implements Source. The DSN is not included since it may hold a password.
func (s *PostgresSource) Name() string { return "postgres" }

// Visits implements Source.
func (s *PostgresSource) Visits(ctx context.Context) (visits []models.Visit, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("source_postgres", time.Since(start), err) }()

	poolConfig, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("visit query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: query returned %d columns, want 3", ErrColumns, len(fields))
	}
	var naive [3]bool
	for i, fd := range fields {
		naive[i] = fd.DataTypeOID == pgtype.TimestampOID
	}

	for rows.Next() {
		var ts [3]*time.Time
		if err := rows.Scan(&ts[0], &ts[1], &ts[2]); err != nil {
			return nil, fmt.Errorf("scan visit row %d: %w", len(visits), err)
		}
		var out [3]time.Time
		for i, t := range ts {
			if t == nil {
				continue
			}
			out[i] = *t
			if naive[i] {
				out[i] = wallClock(*t, s.loc)
			}
		}
		visits = append(visits, models.Visit{Arrival: out[0], TreatmentStart: out[1], Finish: out[2]})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visit rows: %w", err)
	}

	logging.Ctx(ctx).Debug().Int("visits", len(visits)).Dur("elapsed", time.Since(start)).Msg("Queried visits from Postgres")
	return visits, nil
}
