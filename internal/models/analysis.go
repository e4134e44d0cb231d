// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package models

import (
	"time"
)

// Description is a pandas-style describe() of a sample, in minutes.
type Description struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	Max   float64 `json:"max"`
}

// Histogram counts values into fixed-width bins over [Low, High).
type Histogram struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Step   float64 `json:"step"`
	Counts []int   `json:"counts"`
	Below  int     `json:"below"`
	Above  int     `json:"above"`
}

// BinStart returns the lower edge of bin i.
func (h Histogram) BinStart(i int) float64 {
	return h.Low + float64(i)*h.Step
}

// LoadSummary characterizes occupancy over the observation window.
type LoadSummary struct {
	PeakLoad        int       `json:"peak_load"`
	PeakStart       time.Time `json:"peak_start"`
	MeanLoad        float64   `json:"mean_load"`
	BusiestSlot     WeeklyKey `json:"busiest_slot"`
	BusiestSlotLoad float64   `json:"busiest_slot_load"`
	CapacityNote    string    `json:"capacity_note"`
}

// Summary holds the descriptive statistics printed after a run.
type Summary struct {
	Visits         int         `json:"visits"`
	Rejected       int         `json:"rejected"`
	Buckets        int         `json:"buckets"`
	Weeks          float64     `json:"weeks"`
	HourlyWaiting  Description `json:"hourly_waiting_minutes"` // over per-bucket mean waiting
	VisitWaiting   Description `json:"visit_waiting_minutes"`  // over individual visits
	WaitingHistory Histogram   `json:"waiting_histogram"`
	Load           LoadSummary `json:"load"`
}

// Rejection records a visit excluded from the analysis.
type Rejection struct {
	Index  int    `json:"index"`
	Visit  Visit  `json:"visit"`
	Reason string `json:"reason"`
}

// Analysis is the complete result of one run.
type Analysis struct {
	RunID      string       `json:"run_id"`
	CreatedAt  time.Time    `json:"created_at"`
	Source     string       `json:"source"`
	Hourly     *HourlyTable `json:"hourly"`
	Weekly     *WeeklyTable `json:"weekly"`
	Summary    Summary      `json:"summary"`
	Rejections []Rejection  `json:"rejections"`
	Cached     bool         `json:"cached"`
}
