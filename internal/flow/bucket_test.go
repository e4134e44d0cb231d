// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

import (
	"testing"
	"time"

	"github.com/tomtom215/patientflow/internal/models"
)

func TestFloorDiv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b, div, mod int64
	}{
		{7, 3, 2, 1},
		{-7, 3, -3, 2},
		{-6, 3, -2, 0},
		{0, 3, 0, 0},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.div {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.div)
		}
		if got := floorMod(tt.a, tt.b); got != tt.mod {
			t.Errorf("floorMod(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.mod)
		}
	}
}

func TestClock(t *testing.T) {
	t.Parallel()

	c := newClock(time.Hour, time.UTC)
	ts := time.Date(2021, 1, 4, 10, 59, 59, 0, time.UTC)
	i := c.index(ts)

	if got := c.start(i); !got.Equal(time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected bucket start 10:00, got %s", got)
	}
	if c.index(ts.Add(time.Second)) != i+1 {
		t.Error("Expected 11:00 to open the next bucket")
	}
	if got := c.weekday(i); got != models.Monday {
		t.Errorf("Expected Monday, got %s", got)
	}
	if got := c.slot(i); got != 10 {
		t.Errorf("Expected slot 10, got %d", got)
	}
	if got := c.start(c.dayFloor(i)); !got.Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected day floor at midnight, got %s", got)
	}
	if c.bucketsPerDay() != 24 {
		t.Errorf("Expected 24 buckets per day, got %d", c.bucketsPerDay())
	}
}

func TestClock_BeforeEpoch(t *testing.T) {
	t.Parallel()

	c := newClock(time.Hour, time.UTC)
	ts := time.Date(1969, 12, 31, 23, 30, 0, 0, time.UTC)
	i := c.index(ts)
	if i != -1 {
		t.Errorf("Expected bucket -1, got %d", i)
	}
	if c.slot(i) != 23 {
		t.Errorf("Expected slot 23, got %d", c.slot(i))
	}
	if c.weekday(i) != models.Wednesday {
		t.Errorf("Expected Wednesday, got %s", c.weekday(i))
	}
}

func TestClock_Location(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC-3", -3*3600)
	c := newClock(time.Hour, loc)
	// 01:30 UTC on Tuesday is 22:30 on Monday at UTC-3.
	i := c.index(time.Date(2021, 1, 5, 1, 30, 0, 0, time.UTC))

	start := c.start(i)
	if start.Hour() != 22 || start.Location() != loc {
		t.Errorf("Expected local 22:00, got %s", start)
	}
	if c.weekday(i) != models.Monday || c.slot(i) != 22 {
		t.Errorf("Expected mon slot 22, got %s slot %d", c.weekday(i), c.slot(i))
	}
}
