// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

/*
Package models defines the data structures shared by every patientflow layer.

Key Components:

  - Visit: one patient visit (arrival, treatment start, finish)
  - Weekday: Monday-first day numbering used by the weekly table
  - HourlyTable: gap-free per-bucket aggregates over the observation window
  - WeeklyTable: weekday x time-of-day averages per week
  - NullDuration: an optional duration that marshals to minutes or null
  - Analysis: the complete result of one run, as written to report.json
    and served by the API

Tables are immutable once built. HourlyTable and WeeklyTable carry their
bucket width and timezone through JSON so a report read back from disk or
the result cache is equivalent to the one computed.
*/
package models
