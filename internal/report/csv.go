// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/tomtom215/patientflow/internal/models"
)

var (
	hourlyHeader = []string{
		"start", "weekday", "slot", "arrivals", "treatments", "finishes", "mean_waiting_minutes", "load",
	}
	weeklyHeader = []string{
		"weekday", "hour", "minute", "buckets", "waiting_buckets", "arrivals", "treatments", "finishes",
		"mean_waiting_minutes", "visit_waiting_minutes", "load", "peak_load",
	}
)

// WriteHourlyCSV writes one row per bucket. Absent mean waiting is an empty cell.
func WriteHourlyCSV(w io.Writer, t *models.HourlyTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(hourlyHeader); err != nil {
		return err
	}
	record := make([]string, len(hourlyHeader))
	for i := range t.Len() {
		row := t.Row(i)
		record[0] = row.Start.Format(time.RFC3339)
		record[1] = row.Weekday.String()
		record[2] = strconv.Itoa(row.Slot)
		record[3] = strconv.Itoa(row.Arrivals)
		record[4] = strconv.Itoa(row.Treatments)
		record[5] = strconv.Itoa(row.Finishes)
		record[6] = minutesCell(row.MeanWaiting)
		record[7] = strconv.Itoa(row.Load)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWeeklyCSV writes one row per weekday and time-of-day key.
func WriteWeeklyCSV(w io.Writer, t *models.WeeklyTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(weeklyHeader); err != nil {
		return err
	}
	record := make([]string, len(weeklyHeader))
	for _, row := range t.Rows() {
		record[0] = row.Weekday.String()
		record[1] = strconv.Itoa(row.Hour)
		record[2] = strconv.Itoa(row.Minute)
		record[3] = strconv.Itoa(row.Buckets)
		record[4] = strconv.Itoa(row.WaitingBuckets)
		record[5] = formatFloat(row.Arrivals)
		record[6] = formatFloat(row.Treatments)
		record[7] = formatFloat(row.Finishes)
		record[8] = minutesCell(row.MeanWaiting)
		record[9] = minutesCell(row.VisitWaiting)
		record[10] = formatFloat(row.Load)
		record[11] = strconv.Itoa(row.PeakLoad)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func minutesCell(n models.NullDuration) string {
	m, ok := n.Minutes()
	if !ok {
		return ""
	}
	return formatFloat(m)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
