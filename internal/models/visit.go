// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package models

import (
	"fmt"
	"time"
)

// Visit is one patient visit: arrival, start of treatment and finish.
//
// A valid visit satisfies Arrival <= TreatmentStart <= Finish.
type Visit struct {
	Arrival        time.Time `json:"arrival" parquet:"arrival,timestamp(microsecond)"`
	TreatmentStart time.Time `json:"treatment_start" parquet:"treatment_start,timestamp(microsecond)"`
	Finish         time.Time `json:"finish" parquet:"finish,timestamp(microsecond)"`
}

// Waiting returns the time between arrival and start of treatment.
func (v Visit) Waiting() time.Duration {
	return v.TreatmentStart.Sub(v.Arrival)
}

// Duration returns the total time the patient spent in the clinic.
func (v Visit) Duration() time.Duration {
	return v.Finish.Sub(v.Arrival)
}

// Ordered reports whether the visit timestamps are in arrival, treatment, finish order.
func (v Visit) Ordered() bool {
	return !v.TreatmentStart.Before(v.Arrival) && !v.Finish.Before(v.TreatmentStart)
}

// String formats the visit for log lines and error messages.
func (v Visit) String() string {
	return fmt.Sprintf("arrival=%s treatment_start=%s finish=%s",
		v.Arrival.Format(time.RFC3339), v.TreatmentStart.Format(time.RFC3339), v.Finish.Format(time.RFC3339))
}

// Weekday is a day of the week numbered Monday = 0 through Sunday = 6.
type Weekday int

// Weekdays in table order.
const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of weekday keys in a weekly table.
const DaysPerWeek = 7

var weekdayNames = [DaysPerWeek]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// WeekdayOf converts Go's Sunday-first weekday to the Monday-first numbering.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % DaysPerWeek)
}

// String returns the short lowercase name ("mon".."sun").
func (d Weekday) String() string {
	if d < 0 || int(d) >= DaysPerWeek {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Valid reports whether d is in 0..6.
func (d Weekday) Valid() bool {
	return d >= 0 && int(d) < DaysPerWeek
}

// ParseWeekday accepts "mon".."sun" or "0".."6".
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if s == name {
			return Weekday(i), nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return Weekday(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
