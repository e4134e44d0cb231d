// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package flow turns patient visits into hourly and weekly flow tables.
//
// The pipeline is strictly one-way:
//
//	[]models.Visit --Engine.Hourly--> *models.HourlyTable --Weekly--> *models.WeeklyTable
//
// # Buckets
//
// Timestamps are bucketed on wall-clock time in the engine's location
// (UTC by default). A bucket is identified by its start; the hourly table
// spans floor(min arrival) through floor(max finish) plus one bucket, with
// no gaps. All input timestamps are assumed to share one timezone; mixing
// zones is a caller error and is not detected.
//
// # Load
//
// The load of a bucket [start, end) is the number of visits with
// arrival < end and finish >= start. It is computed with a sweep line over
// a difference array: +1 at floor(arrival), -1 one bucket after
// floor(finish). A bucket therefore reports the occupancy after every
// arrival that lands in it and before any departure that lands in it, so a
// patient who arrives and leaves within the same hour contributes load 1
// to that hour. A visit finishing exactly at a bucket's start is still
// present in that bucket; one arriving exactly at a bucket's end is not.
//
// # Rejections
//
// Visits violating arrival <= treatment start <= finish are rejected with an
// *InvalidVisitError carrying the visit and its input position. Rejected
// visits are excluded from every count and processing continues.
//
// # Weekly averages
//
// Weekly groups hourly rows by (weekday, time of day), Monday = 0, and
// averages each column across the weeks present. Buckets without arrivals
// have no mean waiting value and are left out of the waiting average
// instead of counting as zero.
package flow
