// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/patientflow/internal/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind string
		want string
	}{
		{config.InputCSV, "*source.CSVSource"},
		{config.InputParquet, "*source.ParquetSource"},
		{config.InputDuckDB, "*source.DuckDBSource"},
		{config.InputPostgres, "*source.PostgresSource"},
		{config.InputSynthetic, "*source.SyntheticSource"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Input.Kind = tt.kind
			src, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := fmt.Sprintf("%T", src); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Input.Kind = "excel"
	if _, err := New(cfg); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestNew_Synthetic(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Synthetic.Count = 50
	src, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	visits, err := src.Visits(context.Background())
	if err != nil {
		t.Fatalf("Visits: %v", err)
	}
	if len(visits) != 50 {
		t.Fatalf("Expected 50 visits, got %d", len(visits))
	}
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	if visits[0].Arrival.Before(start) {
		t.Errorf("Expected arrivals from %s, got %s", start, visits[0].Arrival)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Visits(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWallClock(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, "America/Sao_Paulo")
	in := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	got := wallClock(in, loc)
	if got.Hour() != 10 || got.Location() != loc {
		t.Errorf("Expected 10:00 in %s, got %s", loc, got)
	}
	if !wallClock(time.Time{}, loc).IsZero() {
		t.Error("Expected zero time to stay zero")
	}
}
