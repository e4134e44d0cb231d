// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

import (
	"time"

	"github.com/tomtom215/patientflow/internal/models"
)

const secondsPerDay = 24 * 60 * 60

// clock maps instants to bucket indexes counted in wall-clock seconds since
// the Unix epoch, so that bucket boundaries fall on local hours and weekdays
// even in zones whose offset is not a whole number of hours.
type clock struct {
	width int64 // seconds
	loc   *time.Location
}

func newClock(width time.Duration, loc *time.Location) clock {
	return clock{width: int64(width / time.Second), loc: loc}
}

// wall returns t as seconds since the epoch on the local wall clock.
func (c clock) wall(t time.Time) int64 {
	_, offset := t.In(c.loc).Zone()
	return t.Unix() + int64(offset)
}

// index returns the bucket containing t.
func (c clock) index(t time.Time) int64 {
	return floorDiv(c.wall(t), c.width)
}

// start returns the local start of bucket i.
func (c clock) start(i int64) time.Time {
	u := time.Unix(i*c.width, 0).UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, c.loc)
}

// weekday returns the Monday-first weekday of bucket i.
func (c clock) weekday(i int64) models.Weekday {
	return models.WeekdayOf(time.Unix(i*c.width, 0).UTC().Weekday())
}

// slot returns the position of bucket i within its day.
func (c clock) slot(i int64) int {
	return int(floorMod(i*c.width, secondsPerDay) / c.width)
}

// dayFloor returns the first bucket of the day containing bucket i.
func (c clock) dayFloor(i int64) int64 {
	return floorDiv(i*c.width, secondsPerDay) * secondsPerDay / c.width
}

// bucketsPerDay returns how many buckets make up one day.
func (c clock) bucketsPerDay() int64 {
	return secondsPerDay / c.width
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
