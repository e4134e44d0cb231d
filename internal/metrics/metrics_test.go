// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// sampleCount reads the observation count of one histogram series.
func sampleCount(t *testing.T, vec *prometheus.HistogramVec, label string) uint64 {
	t.Helper()
	var m io_prometheus_client.Metric
	h, ok := vec.WithLabelValues(label).(prometheus.Histogram)
	if !ok {
		t.Fatalf("series %q is not a histogram", label)
	}
	if err := h.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// Metrics are package globals, so these tests compare deltas and do not run
// in parallel with each other.

func TestRecordRejection(t *testing.T) {
	before := testutil.ToFloat64(VisitsRejected.WithLabelValues("finish before treatment"))
	RecordRejection("finish before treatment")
	RecordRejection("finish before treatment")
	after := testutil.ToFloat64(VisitsRejected.WithLabelValues("finish before treatment"))
	if after-before != 2 {
		t.Errorf("Expected 2 rejections, got %v", after-before)
	}
}

func TestRecordTables(t *testing.T) {
	RecordTables(337, 168, 9)

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"hourly buckets", testutil.ToFloat64(HourlyBuckets), 337},
		{"weekly slots", testutil.ToFloat64(WeeklySlots), 168},
		{"peak load", testutil.ToFloat64(PeakLoad), 9},
	}
	for _, tt := range tests {
		if tt.value != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.value)
		}
	}
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(Runs.WithLabelValues("success"))
	RecordRun("success")
	if got := testutil.ToFloat64(Runs.WithLabelValues("success")) - before; got != 1 {
		t.Errorf("Expected 1 run, got %v", got)
	}
	if testutil.ToFloat64(LastRunSuccess) == 0 {
		t.Error("Expected last run timestamp to be set")
	}
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)

	RecordCache(true)
	RecordCache(false)
	RecordCache(false)

	if got := testutil.ToFloat64(CacheHits) - hits; got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses) - misses; got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}
}

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("verify"))
	RecordDBQuery("verify", 5*time.Millisecond, nil)
	RecordDBQuery("verify", 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("verify")) - before; got != 1 {
		t.Errorf("Expected 1 query error, got %v", got)
	}
	if n := sampleCount(t, DBQueryDuration, "verify"); n < 2 {
		t.Errorf("Expected at least 2 query observations, got %d", n)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("Expected 1 active request, got %v", got)
	}
	TrackActiveRequest(false)
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/weekly", "200"))
	RecordAPIRequest("GET", "/api/v1/weekly", http.StatusOK, 3*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/weekly", "200")) - before; got != 1 {
		t.Errorf("Expected 1 request, got %v", got)
	}
}

func TestStartStage(t *testing.T) {
	before := sampleCount(t, StageDuration, "engine")
	StartStage("engine")()
	ObserveStage("engine", 20*time.Millisecond)
	if got := sampleCount(t, StageDuration, "engine") - before; got != 2 {
		t.Errorf("Expected 2 stage observations, got %d", got)
	}
}

func TestHandler(t *testing.T) {
	VisitsAccepted.Add(0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "patientflow_visits_accepted_total") {
		t.Error("Expected patientflow metrics in the exposition")
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patientflow.prom")
	RecordTables(10, 5, 2)

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "patientflow_hourly_buckets 10") {
		t.Errorf("Expected hourly_buckets in textfile, got:\n%s", data)
	}
}
