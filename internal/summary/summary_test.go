// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package summary

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/patientflow/internal/flow"
	"github.com/tomtom215/patientflow/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	d := Describe([]float64{4, 1, 3, 2})
	want := models.Description{
		Count: 4,
		Mean:  2.5,
		Std:   math.Sqrt(5.0 / 3.0),
		Min:   1,
		P25:   1.75,
		P50:   2.5,
		P75:   3.25,
		Max:   4,
	}
	if d.Count != want.Count || !approx(d.Mean, want.Mean) || !approx(d.Std, want.Std) ||
		!approx(d.Min, want.Min) || !approx(d.P25, want.P25) || !approx(d.P50, want.P50) ||
		!approx(d.P75, want.P75) || !approx(d.Max, want.Max) {
		t.Errorf("Expected %+v, got %+v", want, d)
	}
}

func TestDescribe_EdgeCases(t *testing.T) {
	t.Parallel()

	if d := Describe(nil); d != (models.Description{}) {
		t.Errorf("Expected zero description for no values, got %+v", d)
	}

	d := Describe([]float64{12})
	if d.Count != 1 || d.Mean != 12 || d.Std != 0 || d.P25 != 12 || d.P75 != 12 {
		t.Errorf("unexpected single-value description: %+v", d)
	}
}

func TestWaitingHistogram(t *testing.T) {
	t.Parallel()

	h := WaitingHistogram([]float64{4.9, 5, 5.5, 6, 44.99, 45, math.NaN()}, 5, 45, 1)
	if len(h.Counts) != 40 {
		t.Fatalf("Expected 40 bins, got %d", len(h.Counts))
	}
	if h.Below != 1 || h.Above != 1 {
		t.Errorf("Expected 1 below and 1 above, got %d and %d", h.Below, h.Above)
	}
	if h.Counts[0] != 2 || h.Counts[1] != 1 || h.Counts[39] != 1 {
		t.Errorf("unexpected counts: %v", h.Counts)
	}
	if h.BinStart(39) != 44 {
		t.Errorf("Expected last bin at 44, got %v", h.BinStart(39))
	}

	if h := WaitingHistogram([]float64{1}, 5, 5, 1); h.Counts != nil {
		t.Errorf("Expected no bins for an empty range, got %v", h.Counts)
	}
	if h := WaitingHistogram([]float64{1, 2, 3}, 0, 3, 2); len(h.Counts) != 2 || h.Counts[1] != 1 {
		t.Errorf("Expected a partial last bin, got %v", h.Counts)
	}
}

func hourlyTable(loads ...int) *models.HourlyTable {
	start := time.Date(2021, 1, 4, 8, 0, 0, 0, time.UTC)
	rows := make([]models.HourlyRow, len(loads))
	for i, l := range loads {
		rows[i] = models.HourlyRow{
			Start:   start.Add(time.Duration(i) * time.Hour),
			Weekday: models.Monday,
			Slot:    8 + i,
			Load:    l,
		}
	}
	return models.NewHourlyTable(time.Hour, time.UTC, rows)
}

func TestPeak(t *testing.T) {
	t.Parallel()

	hourly := hourlyTable(1, 3, 3, 0)
	ls := Peak(hourly, flow.Weekly(hourly), 2)

	if ls.PeakLoad != 3 {
		t.Errorf("Expected peak 3, got %d", ls.PeakLoad)
	}
	if want := time.Date(2021, 1, 4, 9, 0, 0, 0, time.UTC); !ls.PeakStart.Equal(want) {
		t.Errorf("Expected first peak bucket %s, got %s", want, ls.PeakStart)
	}
	if !approx(ls.MeanLoad, 1.75) {
		t.Errorf("Expected mean load 1.75, got %v", ls.MeanLoad)
	}
	if ls.BusiestSlot != (models.WeeklyKey{Weekday: models.Monday, Hour: 9}) || ls.BusiestSlotLoad != 3 {
		t.Errorf("Expected busiest slot mon 09:00, got %s (%v)", ls.BusiestSlot, ls.BusiestSlotLoad)
	}
	if !strings.HasPrefix(ls.CapacityNote, "Over capacity") {
		t.Errorf("unexpected capacity note %q", ls.CapacityNote)
	}
}

func TestPeak_Empty(t *testing.T) {
	t.Parallel()

	hourly := models.NewHourlyTable(time.Hour, time.UTC, nil)
	ls := Peak(hourly, flow.Weekly(hourly), 0)
	if ls.PeakLoad != 0 || ls.MeanLoad != 0 || !ls.PeakStart.IsZero() {
		t.Errorf("Expected an empty load summary, got %+v", ls)
	}
	if ls.CapacityNote != "No visits in the observation window" {
		t.Errorf("unexpected capacity note %q", ls.CapacityNote)
	}
}

func TestCapacityNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		peak     int
		mean     float64
		capacity int
		prefix   string
	}{
		{0, 0, 0, "No visits"},
		{4, 2, 0, "Light load"},
		{12, 2, 0, "Bursty load"},
		{12, 8, 0, "Moderate load"},
		{30, 20, 0, "Heavy load"},
		{9, 5, 10, "Near capacity"},
		{5, 3, 10, "Within capacity"},
		{11, 5, 10, "Over capacity"},
	}
	for _, tt := range tests {
		if got := capacityNote(tt.peak, tt.mean, tt.capacity); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("capacityNote(%d, %v, %d) = %q, expected prefix %q", tt.peak, tt.mean, tt.capacity, got, tt.prefix)
		}
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	visits := []models.Visit{
		{Arrival: base, TreatmentStart: base.Add(10 * time.Minute), Finish: base.Add(40 * time.Minute)},
		{Arrival: base.Add(20 * time.Minute), TreatmentStart: base.Add(40 * time.Minute), Finish: base.Add(90 * time.Minute)},
		{Arrival: base.Add(2 * time.Hour), TreatmentStart: base.Add(2*time.Hour + 30*time.Minute), Finish: base.Add(3 * time.Hour)},
	}

	engine, err := flow.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Hourly(visits)
	if err != nil {
		t.Fatal(err)
	}
	weekly := flow.Weekly(res.Table)

	s := Build(res.Table, weekly, visits, 2, DefaultOptions())
	if s.Visits != 3 || s.Rejected != 2 {
		t.Errorf("Expected 3 visits and 2 rejected, got %d and %d", s.Visits, s.Rejected)
	}
	if s.Buckets != res.Table.Len() {
		t.Errorf("Expected %d buckets, got %d", res.Table.Len(), s.Buckets)
	}
	// 10:00 bucket averages 10m and 20m; 12:00 has 30m.
	if s.HourlyWaiting.Count != 2 || !approx(s.HourlyWaiting.Mean, 22.5) {
		t.Errorf("unexpected hourly waiting: %+v", s.HourlyWaiting)
	}
	if s.VisitWaiting.Count != 3 || !approx(s.VisitWaiting.Mean, 20) {
		t.Errorf("unexpected visit waiting: %+v", s.VisitWaiting)
	}
	if s.WaitingHistory.Counts[10] != 1 || s.WaitingHistory.Counts[25] != 1 {
		t.Errorf("unexpected histogram: %v", s.WaitingHistory.Counts)
	}
	if s.Load.PeakLoad != 2 {
		t.Errorf("Expected peak load 2, got %d", s.Load.PeakLoad)
	}
}
