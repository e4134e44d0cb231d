// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

import (
	"time"

	"github.com/tomtom215/patientflow/internal/models"
)

// weeklyAcc sums one weekday/slot group.
type weeklyAcc struct {
	buckets        int
	arrivals       int
	treatments     int
	finishes       int
	load           int
	peak           int
	waitingBuckets int
	waitingSum     time.Duration // sum of hourly means
	visitArrivals  int
	visitWaiting   time.Duration // sum of per-visit waiting
}

// Weekly folds the hourly table into per-week averages keyed by weekday and
// time of day. Every column is the arithmetic mean over the hourly rows of
// that key; rows without arrivals are excluded from the waiting mean.
// Keys that no row falls on are absent from the result.
//
// Weekly is a pure function of its input.
func Weekly(hourly *models.HourlyTable) *models.WeeklyTable {
	width := hourly.Width()
	groups := make(map[models.WeeklyKey]*weeklyAcc)

	for i := 0; i < hourly.Len(); i++ {
		row := hourly.Row(i)
		key := slotKey(row.Weekday, row.Slot, width)
		acc, ok := groups[key]
		if !ok {
			acc = &weeklyAcc{}
			groups[key] = acc
		}
		acc.buckets++
		acc.arrivals += row.Arrivals
		acc.treatments += row.Treatments
		acc.finishes += row.Finishes
		acc.load += row.Load
		acc.peak = max(acc.peak, row.Load)
		if row.MeanWaiting.Valid {
			acc.waitingBuckets++
			acc.waitingSum += row.MeanWaiting.Duration
			acc.visitArrivals += row.Arrivals
			acc.visitWaiting += row.TotalWaiting
		}
	}

	rows := make([]models.WeeklyRow, 0, len(groups))
	for key, acc := range groups {
		n := float64(acc.buckets)
		row := models.WeeklyRow{
			WeeklyKey:      key,
			Buckets:        acc.buckets,
			WaitingBuckets: acc.waitingBuckets,
			Arrivals:       float64(acc.arrivals) / n,
			Treatments:     float64(acc.treatments) / n,
			Finishes:       float64(acc.finishes) / n,
			Load:           float64(acc.load) / n,
			PeakLoad:       acc.peak,
		}
		if acc.waitingBuckets > 0 {
			row.MeanWaiting = models.SomeDuration(acc.waitingSum / time.Duration(acc.waitingBuckets))
			row.VisitWaiting = models.SomeDuration(acc.visitWaiting / time.Duration(acc.visitArrivals))
		}
		rows = append(rows, row)
	}
	return models.NewWeeklyTable(width, rows)
}

func slotKey(day models.Weekday, slot int, width time.Duration) models.WeeklyKey {
	offset := time.Duration(slot) * width
	return models.WeeklyKey{
		Weekday: day,
		Hour:    int(offset / time.Hour),
		Minute:  int((offset % time.Hour) / time.Minute),
	}
}

// Weeks returns how many weeks the hourly table spans, as a fraction.
func Weeks(hourly *models.HourlyTable) float64 {
	if hourly.Empty() {
		return 0
	}
	return float64(hourly.Len()) * float64(hourly.Width()) / float64(7*24*time.Hour)
}
