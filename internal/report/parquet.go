// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package report

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tomtom215/patientflow/internal/models"
)

// HourlyRecord is the Parquet row of the hourly table.
type HourlyRecord struct {
	Start              time.Time `parquet:"start,timestamp(microsecond)"`
	Weekday            string    `parquet:"weekday,dict"`
	Slot               int32     `parquet:"slot"`
	Arrivals           int32     `parquet:"arrivals"`
	Treatments         int32     `parquet:"treatments"`
	Finishes           int32     `parquet:"finishes"`
	MeanWaitingMinutes *float64  `parquet:"mean_waiting_minutes,optional"`
	Load               int32     `parquet:"load"`
}

// WeeklyRecord is the Parquet row of the weekly table.
type WeeklyRecord struct {
	Weekday             string   `parquet:"weekday,dict"`
	Hour                int32    `parquet:"hour"`
	Minute              int32    `parquet:"minute"`
	Buckets             int32    `parquet:"buckets"`
	WaitingBuckets      int32    `parquet:"waiting_buckets"`
	Arrivals            float64  `parquet:"arrivals"`
	Treatments          float64  `parquet:"treatments"`
	Finishes            float64  `parquet:"finishes"`
	MeanWaitingMinutes  *float64 `parquet:"mean_waiting_minutes,optional"`
	VisitWaitingMinutes *float64 `parquet:"visit_waiting_minutes,optional"`
	Load                float64  `parquet:"load"`
	PeakLoad            int32    `parquet:"peak_load"`
}

// WriteHourlyParquet writes the hourly table with absent waiting as null.
func WriteHourlyParquet(w io.Writer, t *models.HourlyTable) error {
	records := make([]HourlyRecord, t.Len())
	for i := range records {
		row := t.Row(i)
		records[i] = HourlyRecord{
			Start:              row.Start,
			Weekday:            row.Weekday.String(),
			Slot:               int32(row.Slot),
			Arrivals:           int32(row.Arrivals),
			Treatments:         int32(row.Treatments),
			Finishes:           int32(row.Finishes),
			MeanWaitingMinutes: row.MeanWaiting.MinutesPtr(),
			Load:               int32(row.Load),
		}
	}
	return writeParquet(w, records)
}

// WriteWeeklyParquet writes the weekly table with absent waiting as null.
func WriteWeeklyParquet(w io.Writer, t *models.WeeklyTable) error {
	rows := t.Rows()
	records := make([]WeeklyRecord, len(rows))
	for i, row := range rows {
		records[i] = WeeklyRecord{
			Weekday:             row.Weekday.String(),
			Hour:                int32(row.Hour),
			Minute:              int32(row.Minute),
			Buckets:             int32(row.Buckets),
			WaitingBuckets:      int32(row.WaitingBuckets),
			Arrivals:            row.Arrivals,
			Treatments:          row.Treatments,
			Finishes:            row.Finishes,
			MeanWaitingMinutes:  row.MeanWaiting.MinutesPtr(),
			VisitWaitingMinutes: row.VisitWaiting.MinutesPtr(),
			Load:                row.Load,
			PeakLoad:            int32(row.PeakLoad),
		}
	}
	return writeParquet(w, records)
}

func writeParquet[T any](w io.Writer, records []T) error {
	writer := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
