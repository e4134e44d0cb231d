// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package metrics holds the Prometheus instrumentation for analysis runs,
// the run store, the result cache and the HTTP API.
//
// Everything is registered on Registry rather than the default registerer
// so batch runs can dump exactly these series to a node-exporter textfile.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patientflow"

// Registry holds every patientflow metric plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

//nolint:gochecknoinits // collectors must be present before the first scrape
func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// Analysis metrics
	VisitsRead = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_read_total",
			Help:      "Visits read from the input source",
		},
		[]string{"source"},
	)

	VisitsAccepted = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_accepted_total",
			Help:      "Visits that passed validation and were bucketed",
		},
	)

	VisitsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_rejected_total",
			Help:      "Visits excluded from the analysis, by reason",
		},
		[]string{"reason"},
	)

	HourlyBuckets = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hourly_buckets",
			Help:      "Buckets in the most recent hourly table",
		},
	)

	WeeklySlots = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weekly_slots",
			Help:      "Weekday/time-of-day keys in the most recent weekly table",
		},
	)

	PeakLoad = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peak_load",
			Help:      "Highest bucket load in the most recent run",
		},
	)

	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	Runs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed analysis runs by status",
		},
		[]string{"status"}, // "success", "error", "cached"
	)

	LastRunSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		},
	)

	// Cache metrics
	CacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Analysis results served from the result cache",
		},
	)

	CacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Result cache lookups that found nothing",
		},
	)

	// Database metrics
	DBQueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of store and source queries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_query_errors_total",
			Help:      "Failed store and source queries",
		},
		[]string{"operation"},
	)

	// API metrics
	APIRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "API requests in flight",
		},
	)

	APIRateLimitHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StartStage returns a func that records the stage duration when called.
//
//	defer metrics.StartStage("engine")()
func StartStage(stage string) func() {
	start := time.Now()
	return func() { ObserveStage(stage, time.Since(start)) }
}

// RecordRejection counts one rejected visit.
func RecordRejection(reason string) {
	VisitsRejected.WithLabelValues(reason).Inc()
}

// RecordTables publishes the shape of the latest result.
func RecordTables(buckets, slots, peak int) {
	HourlyBuckets.Set(float64(buckets))
	WeeklySlots.Set(float64(slots))
	PeakLoad.Set(float64(peak))
}

// RecordRun counts a finished run.
func RecordRun(status string) {
	Runs.WithLabelValues(status).Inc()
	if status != "error" {
		LastRunSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordCache counts a cache lookup.
func RecordCache(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordDBQuery records a query against the store or a database source.
func RecordDBQuery(operation string, d time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// WriteTextfile writes Registry atomically to path for the node-exporter
// textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
