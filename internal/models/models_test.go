// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestVisit_Ordered(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		visit Visit
		want  bool
	}{
		{"ordered", Visit{base, base.Add(10 * time.Minute), base.Add(time.Hour)}, true},
		{"all equal", Visit{base, base, base}, true},
		{"treatment before arrival", Visit{base, base.Add(-time.Minute), base.Add(time.Hour)}, false},
		{"finish before treatment", Visit{base, base.Add(time.Hour), base.Add(30 * time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.visit.Ordered(); got != tt.want {
				t.Errorf("Expected Ordered() = %v, got %v", tt.want, got)
			}
		})
	}

	v := Visit{base, base.Add(15 * time.Minute), base.Add(50 * time.Minute)}
	if v.Waiting() != 15*time.Minute || v.Duration() != 50*time.Minute {
		t.Errorf("Expected waiting 15m and duration 50m, got %v and %v", v.Waiting(), v.Duration())
	}
}

func TestWeekday(t *testing.T) {
	t.Parallel()

	if got := WeekdayOf(time.Sunday); got != Sunday {
		t.Errorf("Expected Sunday to map to %d, got %d", Sunday, got)
	}
	if got := WeekdayOf(time.Monday); got != Monday {
		t.Errorf("Expected Monday to map to 0, got %d", got)
	}
	if Weekday(7).Valid() || Weekday(7).String() != "Weekday(7)" {
		t.Error("Weekday(7) should be invalid")
	}

	tests := map[string]Weekday{"mon": Monday, "sun": Sunday, "0": Monday, "4": Friday}
	for in, want := range tests {
		got, err := ParseWeekday(in)
		if err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "7", "Monday", "-1"} {
		if _, err := ParseWeekday(in); err == nil {
			t.Errorf("ParseWeekday(%q) should fail", in)
		}
	}
}

func TestNullDuration_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal([]NullDuration{SomeDuration(90 * time.Second), {}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1.5,null]" {
		t.Errorf("Expected [1.5,null], got %s", data)
	}

	var back []NullDuration
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back[0].Valid || back[0].Duration != 90*time.Second || back[1].Valid {
		t.Errorf("unexpected round trip: %+v", back)
	}
	if back[1].String() != "-" || back[1].MinutesPtr() != nil {
		t.Error("absent value should render as - and have no minutes")
	}
}

func TestHourlyTable_At(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start := time.Date(2021, 1, 4, 8, 0, 0, 0, loc)
	rows := []HourlyRow{
		{Start: start, Slot: 8, Load: 1},
		{Start: start.Add(time.Hour), Slot: 9, Load: 2},
	}
	table := NewHourlyTable(time.Hour, loc, rows)

	if row, ok := table.At(start.Add(90 * time.Minute)); !ok || row.Slot != 9 {
		t.Errorf("Expected slot 9 at 09:30, got %+v (%v)", row, ok)
	}
	if _, ok := table.At(start.Add(2 * time.Hour)); ok {
		t.Error("End of the window is exclusive")
	}
	if _, ok := table.At(start.Add(-time.Second)); ok {
		t.Error("Instant before the window should not match")
	}
	if !table.End().Equal(start.Add(2 * time.Hour)) {
		t.Errorf("Expected End %v, got %v", start.Add(2*time.Hour), table.End())
	}

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatal(err)
	}
	var back HourlyTable
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Width() != time.Hour || back.Location().String() != "Europe/Copenhagen" || back.Len() != 2 {
		t.Errorf("unexpected decoded table: width=%v loc=%v len=%d", back.Width(), back.Location(), back.Len())
	}
}

func TestWeeklyTable_Lookup(t *testing.T) {
	t.Parallel()

	table := NewWeeklyTable(time.Hour, []WeeklyRow{
		{WeeklyKey: WeeklyKey{Weekday: Tuesday, Hour: 9}, Load: 2},
		{WeeklyKey: WeeklyKey{Weekday: Monday, Hour: 10}, Load: 1},
		{WeeklyKey: WeeklyKey{Weekday: Monday, Hour: 8}, Load: 3},
	})

	rows := table.Rows()
	if rows[0].WeeklyKey != (WeeklyKey{Weekday: Monday, Hour: 8}) {
		t.Errorf("Expected rows sorted by key, first is %s", rows[0].WeeklyKey)
	}
	if row, ok := table.Get(WeeklyKey{Weekday: Tuesday, Hour: 9}); !ok || row.Load != 2 {
		t.Errorf("Expected tue 09:00 load 2, got %+v (%v)", row, ok)
	}
	if _, ok := table.Get(WeeklyKey{Weekday: Sunday}); ok {
		t.Error("Missing key should not be found")
	}
	if got := len(table.Day(Monday)); got != 2 {
		t.Errorf("Expected 2 monday rows, got %d", got)
	}
	if s := (WeeklyKey{Weekday: Friday, Hour: 7, Minute: 30}).String(); s != "fri 07:30" {
		t.Errorf("Expected fri 07:30, got %s", s)
	}
}
