// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package summary computes the descriptive statistics reported after a run:
// a describe() of waiting times, the waiting histogram and the load peak.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/tomtom215/patientflow/internal/flow"
	"github.com/tomtom215/patientflow/internal/models"
)

// Options controls Build.
type Options struct {
	HistogramLow  float64 // minutes
	HistogramHigh float64
	HistogramStep float64
	Capacity      int // 0 = unknown
}

// DefaultOptions bins waiting times per minute from 5 to 45 minutes.
func DefaultOptions() Options {
	return Options{HistogramLow: 5, HistogramHigh: 45, HistogramStep: 1}
}

// Build assembles the run summary. visits are the accepted visits only.
func Build(hourly *models.HourlyTable, weekly *models.WeeklyTable, visits []models.Visit, rejected int, opts Options) models.Summary {
	bucketWaiting := HourlyWaiting(hourly)
	visitWaiting := make([]float64, len(visits))
	for i, v := range visits {
		visitWaiting[i] = v.Waiting().Minutes()
	}

	return models.Summary{
		Visits:         len(visits),
		Rejected:       rejected,
		Buckets:        hourly.Len(),
		Weeks:          flow.Weeks(hourly),
		HourlyWaiting:  Describe(bucketWaiting),
		VisitWaiting:   Describe(visitWaiting),
		WaitingHistory: WaitingHistogram(bucketWaiting, opts.HistogramLow, opts.HistogramHigh, opts.HistogramStep),
		Load:           Peak(hourly, weekly, opts.Capacity),
	}
}

// HourlyWaiting returns the present mean waiting values of the hourly table
// in minutes. Buckets without arrivals are skipped.
func HourlyWaiting(hourly *models.HourlyTable) []float64 {
	out := make([]float64, 0, hourly.Len())
	for i := range hourly.Len() {
		if m, ok := hourly.Row(i).MeanWaiting.Minutes(); ok {
			out = append(out, m)
		}
	}
	return out
}

// Describe returns count, mean, sample standard deviation, min, quartiles
// and max. Quartiles interpolate linearly between closest ranks. Std is 0
// for fewer than two values.
func Describe(values []float64) models.Description {
	if len(values) == 0 {
		return models.Description{}
	}
	data := stats.Float64Data(values)

	d := models.Description{Count: len(values)}
	d.Mean, _ = stats.Mean(data)
	d.Min, _ = stats.Min(data)
	d.Max, _ = stats.Max(data)
	d.P50, _ = stats.Median(data)
	if len(values) > 1 {
		d.Std, _ = stats.StandardDeviationSample(data)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	d.P25 = quantile(sorted, 0.25)
	d.P75 = quantile(sorted, 0.75)
	return d
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// WaitingHistogram counts values into bins of width step over [lo, hi).
// Values outside the range are counted in Below and Above; NaNs are ignored.
func WaitingHistogram(values []float64, lo, hi, step float64) models.Histogram {
	h := models.Histogram{Low: lo, High: hi, Step: step}
	if step <= 0 || hi <= lo {
		return h
	}
	h.Counts = make([]int, int(math.Ceil((hi-lo)/step)))
	for _, v := range values {
		switch {
		case math.IsNaN(v):
		case v < lo:
			h.Below++
		case v >= hi:
			h.Above++
		default:
			i := int((v - lo) / step)
			if i >= len(h.Counts) {
				i = len(h.Counts) - 1
			}
			h.Counts[i]++
		}
	}
	return h
}

// Peak finds the busiest bucket and the busiest weekly slot.
func Peak(hourly *models.HourlyTable, weekly *models.WeeklyTable, capacity int) models.LoadSummary {
	var ls models.LoadSummary
	if hourly.Empty() {
		ls.CapacityNote = capacityNote(0, 0, capacity)
		return ls
	}

	var total int
	ls.PeakLoad = -1
	for i := range hourly.Len() {
		row := hourly.Row(i)
		total += row.Load
		if row.Load > ls.PeakLoad {
			ls.PeakLoad = row.Load
			ls.PeakStart = row.Start
		}
	}
	ls.MeanLoad = float64(total) / float64(hourly.Len())

	if weekly != nil {
		for i, row := range weekly.Rows() {
			if i == 0 || row.Load > ls.BusiestSlotLoad {
				ls.BusiestSlot = row.WeeklyKey
				ls.BusiestSlotLoad = row.Load
			}
		}
	}
	ls.CapacityNote = capacityNote(ls.PeakLoad, ls.MeanLoad, capacity)
	return ls
}

// capacityNote gives staffing guidance from the peak occupancy.
func capacityNote(peak int, mean float64, capacity int) string {
	if capacity > 0 {
		utilization := float64(peak) / float64(capacity) * 100
		switch {
		case peak > capacity:
			return fmt.Sprintf("Over capacity - peak of %d patients exceeds capacity of %d (%.0f%%)", peak, capacity, utilization)
		case utilization >= 85:
			return fmt.Sprintf("Near capacity - peak of %d patients uses %.0f%% of capacity %d", peak, utilization, capacity)
		default:
			return fmt.Sprintf("Within capacity - peak of %d patients uses %.0f%% of capacity %d", peak, utilization, capacity)
		}
	}

	switch {
	case peak == 0:
		return "No visits in the observation window"
	case peak <= 5:
		return "Light load - a single treatment room covers the peak"
	case float64(peak) > 3*mean:
		return "Bursty load - the peak is well above the average, consider staggered staffing"
	case peak <= 15:
		return "Moderate load - plan staffing around the busiest weekly slots"
	default:
		return "Heavy load - peak occupancy calls for additional treatment capacity"
	}
}
