// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
)

// BucketLoad is the SQL-computed load of one bucket. Start is the
// wall-clock bucket start tagged as UTC.
type BucketLoad struct {
	Start time.Time
	Load  int
}

// overlapQuery counts, per bucket, the accepted visits whose arrival bucket
// is not after it and whose finish bucket is not before it. Buckets come
// from generate_series over the run's span so empty buckets report 0.
const overlapQuery = `
	WITH v AS (
		SELECT
			time_bucket(to_seconds(?), arrival) AS a,
			time_bucket(to_seconds(?), finish) AS f
		FROM visits
		WHERE run_id = ? AND rejected_reason IS NULL
	),
	span AS (
		SELECT MIN(a) AS lo, MAX(f) AS hi FROM v
	),
	buckets AS (
		SELECT unnest(generate_series(lo, hi, to_seconds(?))) AS bucket_start
		FROM span
		WHERE lo IS NOT NULL
	)
	SELECT b.bucket_start, COUNT(v.a) AS load
	FROM buckets b
	LEFT JOIN v ON v.a <= b.bucket_start AND v.f >= b.bucket_start
	GROUP BY b.bucket_start
	ORDER BY b.bucket_start`

// OverlapLoad recomputes the load column of a stored run in SQL.
func (db *DB) OverlapLoad(ctx context.Context, runID string, width time.Duration) (loads []BucketLoad, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("overlap_load", time.Since(start), err) }()

	secs := int64(width / time.Second)
	rows, err := db.conn.QueryContext(ctx, overlapQuery, secs, secs, runID, secs)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlap load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var bl BucketLoad
		if err := rows.Scan(&bl.Start, &bl.Load); err != nil {
			return nil, fmt.Errorf("failed to scan overlap load: %w", err)
		}
		bl.Start = bl.Start.UTC()
		loads = append(loads, bl)
	}
	return loads, rows.Err()
}

// Mismatch is a bucket where the engine and SQL disagree.
type Mismatch struct {
	Start  time.Time `json:"start"`
	Engine int       `json:"engine"`
	SQL    int       `json:"sql"`
}

// Verify compares the load column of table with OverlapLoad for runID.
// Buckets missing on either side count as load 0.
func (db *DB) Verify(ctx context.Context, runID string, table *models.HourlyTable) ([]Mismatch, error) {
	loads, err := db.OverlapLoad(ctx, runID, table.Width())
	if err != nil {
		return nil, err
	}
	expected := make(map[int64]int, len(loads))
	for _, bl := range loads {
		expected[bl.Start.Unix()] = bl.Load
	}

	var mismatches []Mismatch
	loc := table.Location()
	for i := range table.Len() {
		row := table.Row(i)
		key := wall(row.Start, loc).(time.Time).Unix()
		sqlLoad := expected[key]
		delete(expected, key)
		if sqlLoad != row.Load {
			mismatches = append(mismatches, Mismatch{Start: row.Start, Engine: row.Load, SQL: sqlLoad})
		}
	}
	for key, load := range expected {
		if load != 0 {
			mismatches = append(mismatches, Mismatch{Start: time.Unix(key, 0).UTC(), SQL: load})
		}
	}
	return mismatches, nil
}
