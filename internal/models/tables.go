// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// HourlyRow holds the aggregates for one absolute time bucket.
// Buckets are one hour wide unless the engine was configured otherwise.
type HourlyRow struct {
	Start       time.Time    `json:"start"`
	Weekday     Weekday      `json:"weekday"`
	Slot        int          `json:"slot"` // bucket index within the day, the hour for 1h buckets
	Arrivals    int          `json:"arrivals"`
	Treatments  int          `json:"treatments"`
	Finishes    int          `json:"finishes"`
	MeanWaiting NullDuration `json:"mean_waiting_minutes"`
	Load        int          `json:"load"`

	// TotalWaiting is the exact waiting sum behind MeanWaiting.
	TotalWaiting time.Duration `json:"total_waiting_ns"`
}

// HourlyTable is the per-calendar-bucket table covering the whole observation
// window without gaps. It is immutable: accessors return copies.
type HourlyTable struct {
	width    time.Duration
	location *time.Location
	rows     []HourlyRow
}

// NewHourlyTable takes ownership of rows, which must be contiguous and ordered.
func NewHourlyTable(width time.Duration, loc *time.Location, rows []HourlyRow) *HourlyTable {
	if loc == nil {
		loc = time.UTC
	}
	return &HourlyTable{width: width, location: loc, rows: rows}
}

// Width returns the bucket width.
func (t *HourlyTable) Width() time.Duration { return t.width }

// Location returns the timezone the buckets were computed in.
func (t *HourlyTable) Location() *time.Location { return t.location }

// Len returns the number of buckets.
func (t *HourlyTable) Len() int { return len(t.rows) }

// Empty reports whether the table has no buckets.
func (t *HourlyTable) Empty() bool { return len(t.rows) == 0 }

// Row returns the i-th bucket.
func (t *HourlyTable) Row(i int) HourlyRow { return t.rows[i] }

// Rows returns a copy of all rows in time order.
func (t *HourlyTable) Rows() []HourlyRow {
	out := make([]HourlyRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Start returns the start of the first bucket, or the zero time for an empty table.
func (t *HourlyTable) Start() time.Time {
	if len(t.rows) == 0 {
		return time.Time{}
	}
	return t.rows[0].Start
}

// End returns the exclusive end of the last bucket.
func (t *HourlyTable) End() time.Time {
	if len(t.rows) == 0 {
		return time.Time{}
	}
	return t.rows[len(t.rows)-1].Start.Add(t.width)
}

// At returns the bucket containing instant ts.
func (t *HourlyTable) At(ts time.Time) (HourlyRow, bool) {
	i := sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i].Start.Add(t.width).After(ts)
	})
	if i == len(t.rows) || ts.Before(t.rows[i].Start) {
		return HourlyRow{}, false
	}
	return t.rows[i], true
}

type hourlyTableJSON struct {
	WidthSeconds int64       `json:"width_seconds"`
	Timezone     string      `json:"timezone"`
	Rows         []HourlyRow `json:"rows"`
}

// MarshalJSON implements json.Marshaler.
func (t *HourlyTable) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = []HourlyRow{}
	}
	return json.Marshal(hourlyTableJSON{
		WidthSeconds: int64(t.width / time.Second),
		Timezone:     t.location.String(),
		Rows:         rows,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *HourlyTable) UnmarshalJSON(data []byte) error {
	var raw hourlyTableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	loc := resolveLocation(raw.Timezone, raw.Rows)
	for i := range raw.Rows {
		raw.Rows[i].Start = raw.Rows[i].Start.In(loc)
	}
	*t = HourlyTable{width: time.Duration(raw.WidthSeconds) * time.Second, location: loc, rows: raw.Rows}
	return nil
}

// resolveLocation loads a zone by name, falling back to a fixed zone with the
// offset recorded on the first row.
func resolveLocation(name string, rows []HourlyRow) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if len(rows) > 0 {
		_, offset := rows[0].Start.Zone()
		return time.FixedZone(name, offset)
	}
	return time.UTC
}

// WeeklyKey identifies a weekday and time-of-day slot.
type WeeklyKey struct {
	Weekday Weekday `json:"weekday"`
	Hour    int     `json:"hour"`
	Minute  int     `json:"minute"`
}

// String renders the key as "mon 08:00".
func (k WeeklyKey) String() string {
	return fmt.Sprintf("%s %02d:%02d", k.Weekday, k.Hour, k.Minute)
}

// Less orders keys by weekday then time of day.
func (k WeeklyKey) Less(o WeeklyKey) bool {
	if k.Weekday != o.Weekday {
		return k.Weekday < o.Weekday
	}
	if k.Hour != o.Hour {
		return k.Hour < o.Hour
	}
	return k.Minute < o.Minute
}

// WeeklyRow holds the per-week averages for one weekday/time-of-day slot.
type WeeklyRow struct {
	WeeklyKey
	Buckets        int          `json:"buckets"`         // hourly rows averaged
	WaitingBuckets int          `json:"waiting_buckets"` // hourly rows with a mean waiting value
	Arrivals       float64      `json:"arrivals"`
	Treatments     float64      `json:"treatments"`
	Finishes       float64      `json:"finishes"`
	MeanWaiting    NullDuration `json:"mean_waiting_minutes"`  // mean of the hourly means
	VisitWaiting   NullDuration `json:"visit_waiting_minutes"` // mean over the visits themselves
	Load           float64      `json:"load"`
	PeakLoad       int          `json:"peak_load"`
}

// WeeklyTable is the weekday x time-of-day table. Keys with no contributing
// buckets are absent. It is immutable: accessors return copies.
type WeeklyTable struct {
	width time.Duration
	rows  []WeeklyRow
	index map[WeeklyKey]int
}

// NewWeeklyTable takes ownership of rows and sorts them by key.
func NewWeeklyTable(width time.Duration, rows []WeeklyRow) *WeeklyTable {
	sort.Slice(rows, func(i, j int) bool { return rows[i].WeeklyKey.Less(rows[j].WeeklyKey) })
	index := make(map[WeeklyKey]int, len(rows))
	for i, r := range rows {
		index[r.WeeklyKey] = i
	}
	return &WeeklyTable{width: width, rows: rows, index: index}
}

// Width returns the slot width inherited from the hourly table.
func (t *WeeklyTable) Width() time.Duration { return t.width }

// Len returns the number of populated keys.
func (t *WeeklyTable) Len() int { return len(t.rows) }

// Rows returns a copy of all rows ordered by key.
func (t *WeeklyTable) Rows() []WeeklyRow {
	out := make([]WeeklyRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Get returns the row for key, or false when no bucket contributed to it.
func (t *WeeklyTable) Get(key WeeklyKey) (WeeklyRow, bool) {
	i, ok := t.index[key]
	if !ok {
		return WeeklyRow{}, false
	}
	return t.rows[i], true
}

// Day returns the rows for one weekday in time-of-day order.
func (t *WeeklyTable) Day(d Weekday) []WeeklyRow {
	var out []WeeklyRow
	for _, r := range t.rows {
		if r.Weekday == d {
			out = append(out, r)
		}
	}
	return out
}

type weeklyTableJSON struct {
	WidthSeconds int64       `json:"width_seconds"`
	Rows         []WeeklyRow `json:"rows"`
}

// MarshalJSON implements json.Marshaler.
func (t *WeeklyTable) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = []WeeklyRow{}
	}
	return json.Marshal(weeklyTableJSON{WidthSeconds: int64(t.width / time.Second), Rows: rows})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *WeeklyTable) UnmarshalJSON(data []byte) error {
	var raw weeklyTableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = *NewWeeklyTable(time.Duration(raw.WidthSeconds)*time.Second, raw.Rows)
	return nil
}
