// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
)

// DuckDBSource runs a SQL query in DuckDB. The query must return the
// arrival, treatment start and finish timestamps as its first three
// columns, for example:
//
//	SELECT ind, behandling, ud FROM read_csv_auto('visits.csv')
type DuckDBSource struct {
	path    string // "" for an in-memory database
	query   string
	loc     *time.Location
	timeout time.Duration
}

// NewDuckDBSource returns a source running query against the database at path.
func NewDuckDBSource(path, query string, loc *time.Location, timeout time.Duration) *DuckDBSource {
	if loc == nil {
		loc = time.UTC
	}
	return &DuckDBSource{path: path, query: query, loc: loc, timeout: timeout}
}

// Name implements Source.
func (s *DuckDBSource) Name() string {
	if s.path == "" {
		return "duckdb::memory:"
	}
	return "duckdb:" + s.path
}

// Visits implements Source.
func (s *DuckDBSource) Visits(ctx context.Context) (visits []models.Visit, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("source_duckdb", time.Since(start), err) }()

	path := s.path
	if path == "" {
		path = ":memory:"
	}
	conn, err := sql.Open("duckdb", path+"?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("visit query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	naive, err := naiveColumns(rows)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var ts [3]sql.NullTime
		if err := rows.Scan(&ts[0], &ts[1], &ts[2]); err != nil {
			return nil, fmt.Errorf("scan visit row %d: %w", len(visits), err)
		}
		visits = append(visits, s.visit(ts, naive))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visit rows: %w", err)
	}

	logging.Ctx(ctx).Debug().Str("source", s.Name()).Int("visits", len(visits)).Dur("elapsed", time.Since(start)).Msg("Queried visits")
	return visits, nil
}

func (s *DuckDBSource) visit(ts [3]sql.NullTime, naive [3]bool) models.Visit {
	var out [3]time.Time
	for i, t := range ts {
		if !t.Valid {
			continue
		}
		out[i] = t.Time
		if naive[i] {
			out[i] = wallClock(t.Time, s.loc)
		}
	}
	return models.Visit{Arrival: out[0], TreatmentStart: out[1], Finish: out[2]}
}

// naiveColumns checks the result shape and reports which of the three
// columns are TIMESTAMP without a zone.
func naiveColumns(rows *sql.Rows) ([3]bool, error) {
	var naive [3]bool
	types, err := rows.ColumnTypes()
	if err != nil {
		return naive, fmt.Errorf("read column types: %w", err)
	}
	if len(types) != 3 {
		return naive, fmt.Errorf("%w: query returned %d columns, want 3", ErrColumns, len(types))
	}
	for i, ct := range types {
		name := strings.ToUpper(ct.DatabaseTypeName())
		naive[i] = strings.HasPrefix(name, "TIMESTAMP") && !strings.Contains(name, "TZ") && !strings.Contains(name, "TIME ZONE")
	}
	return naive, nil
}
