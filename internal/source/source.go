// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package source reads patient visits from CSV and Parquet files, DuckDB and
// Postgres queries, or the synthetic generator.
//
// Sources only decode. A record with a missing timestamp is returned with a
// zero time so the flow engine rejects it with a reason; a value that cannot
// be decoded at all fails the read with a *ParseError.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/synth"
)

// Source yields the visits for one analysis run.
type Source interface {
	// Name identifies the source in logs, metrics and reports.
	Name() string
	Visits(ctx context.Context) ([]models.Visit, error)
}

var (
	// ErrUnknownKind is returned by New for an unsupported input.kind.
	ErrUnknownKind = errors.New("unknown input kind")

	// ErrColumns is returned when a query or file does not provide the
	// three timestamp columns.
	ErrColumns = errors.New("visit columns not found")
)

// New builds the source selected by cfg.Input.Kind.
func New(cfg *config.Config) (Source, error) {
	in := cfg.Input
	loc := cfg.Location()

	switch in.Kind {
	case config.InputCSV:
		return NewCSVSource(in.Path, CSVOptions{
			ArrivalColumn:   in.ArrivalColumn,
			TreatmentColumn: in.TreatmentColumn,
			FinishColumn:    in.FinishColumn,
			Layout:          in.TimeLayout,
			Delimiter:       []rune(in.Delimiter)[0],
			Location:        loc,
		}), nil
	case config.InputParquet:
		return NewParquetSource(in.Path), nil
	case config.InputDuckDB:
		return NewDuckDBSource(in.Path, in.Query, loc, in.Timeout), nil
	case config.InputPostgres:
		return NewPostgresSource(in.DSN, in.Query, loc, in.Timeout), nil
	case config.InputSynthetic:
		start, end, err := cfg.SyntheticRange()
		if err != nil {
			return nil, err
		}
		s := cfg.Synthetic
		return NewSyntheticSource(synth.Params{
			Count:      s.Count,
			Start:      start,
			End:        end,
			Seed:       s.Seed,
			WaitMin:    s.WaitMin,
			WaitMax:    s.WaitMax,
			TreatMin:   s.TreatMin,
			TreatMax:   s.TreatMax,
			Resolution: s.Resolution,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
	}
}

// ParseError reports a value that could not be decoded as a timestamp.
type ParseError struct {
	Line   int    // 1-based line in the input file
	Column string // header name
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %q: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// wallClock reinterprets a zone-less database timestamp, which drivers
// return as UTC, as wall-clock time in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() || loc == time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
