// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package store

import (
	"context"
	"fmt"
	"time"
)

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id        VARCHAR PRIMARY KEY,
		created_at    TIMESTAMP NOT NULL,
		source        VARCHAR NOT NULL,
		timezone      VARCHAR NOT NULL,
		width_seconds BIGINT NOT NULL,
		visits        INTEGER NOT NULL,
		rejected      INTEGER NOT NULL,
		buckets       INTEGER NOT NULL,
		peak_load     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS visits (
		run_id          VARCHAR NOT NULL,
		idx             INTEGER NOT NULL,
		arrival         TIMESTAMP,
		treatment_start TIMESTAMP,
		finish          TIMESTAMP,
		rejected_reason VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS hourly (
		run_id               VARCHAR NOT NULL,
		bucket_start         TIMESTAMP NOT NULL,
		weekday              TINYINT NOT NULL,
		slot                 INTEGER NOT NULL,
		arrivals             INTEGER NOT NULL,
		treatments           INTEGER NOT NULL,
		finishes             INTEGER NOT NULL,
		mean_waiting_minutes DOUBLE,
		load                 INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS weekly (
		run_id                VARCHAR NOT NULL,
		weekday               TINYINT NOT NULL,
		hour                  TINYINT NOT NULL,
		minute                TINYINT NOT NULL,
		buckets               INTEGER NOT NULL,
		waiting_buckets       INTEGER NOT NULL,
		arrivals              DOUBLE NOT NULL,
		treatments            DOUBLE NOT NULL,
		finishes              DOUBLE NOT NULL,
		mean_waiting_minutes  DOUBLE,
		visit_waiting_minutes DOUBLE,
		load                  DOUBLE NOT NULL,
		peak_load             INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_hourly_run ON hourly(run_id, bucket_start)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_run ON weekly(run_id)`,
}

func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
