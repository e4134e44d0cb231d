// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/patientflow/internal/cache"
	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/flow"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/report"
	"github.com/tomtom215/patientflow/internal/store"
)

// staticSource serves a fixed slice of visits.
type staticSource struct {
	visits []models.Visit
	err    error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Visits(context.Context) ([]models.Visit, error) {
	return s.visits, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Formats = []string{"json"}
	cfg.Output.Charts = false
	cfg.Synthetic.Count = 300
	cfg.Synthetic.End = "2021-01-08"
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func visitAt(base time.Time, arrive, treat, finish time.Duration) models.Visit {
	return models.Visit{Arrival: base.Add(arrive), TreatmentStart: base.Add(treat), Finish: base.Add(finish)}
}

func TestRun_Synthetic(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := newPipeline(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if a.RunID == "" {
		t.Error("Expected a run ID")
	}
	if a.Source != "synthetic:seed=1" {
		t.Errorf("Expected synthetic source, got %s", a.Source)
	}
	if a.Summary.Visits != 300 || a.Summary.Rejected != 0 {
		t.Errorf("Expected 300 accepted visits, got %d (rejected %d)", a.Summary.Visits, a.Summary.Rejected)
	}
	if a.Hourly.Len() == 0 || a.Weekly.Len() == 0 {
		t.Fatalf("Expected non-empty tables, got %d hourly and %d weekly rows", a.Hourly.Len(), a.Weekly.Len())
	}

	arrivals := 0
	for _, row := range a.Hourly.Rows() {
		arrivals += row.Arrivals
	}
	if arrivals != 300 {
		t.Errorf("Expected 300 arrivals across buckets, got %d", arrivals)
	}

	f, err := os.Open(filepath.Join(cfg.Output.Dir, report.FileReport))
	if err != nil {
		t.Fatalf("Expected %s to be written: %v", report.FileReport, err)
	}
	defer f.Close()
	written, err := report.ReadJSON(f)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if written.RunID != a.RunID {
		t.Errorf("Expected report for run %s, got %s", a.RunID, written.RunID)
	}
}

func TestRun_Rejections(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	src := &staticSource{visits: []models.Visit{
		visitAt(base, 0, 10*time.Minute, 40*time.Minute),
		visitAt(base, 0, -5*time.Minute, 40*time.Minute),
		visitAt(base, 30*time.Minute, 50*time.Minute, 90*time.Minute),
		{Arrival: base},
	}}

	t.Run("lenient", func(t *testing.T) {
		t.Parallel()
		a, err := newPipeline(t, testConfig(t), WithSource(src)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if a.Summary.Visits != 2 || a.Summary.Rejected != 2 {
			t.Errorf("Expected 2 accepted and 2 rejected, got %d and %d", a.Summary.Visits, a.Summary.Rejected)
		}
		if len(a.Rejections) != 2 || a.Rejections[0].Index != 1 || a.Rejections[1].Index != 3 {
			t.Fatalf("Expected rejections at 1 and 3, got %+v", a.Rejections)
		}
		if a.Rejections[0].Reason != flow.ErrTreatmentBeforeArrival.Error() {
			t.Errorf("Expected %q, got %q", flow.ErrTreatmentBeforeArrival, a.Rejections[0].Reason)
		}
		if a.Summary.VisitWaiting.Mean != 15 {
			t.Errorf("Expected mean visit waiting of 15 minutes, got %v", a.Summary.VisitWaiting.Mean)
		}
	})

	t.Run("strict", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		cfg.Analysis.Strict = true
		_, err := newPipeline(t, cfg, WithSource(src)).Run(context.Background())
		if !errors.Is(err, ErrRejectedVisits) {
			t.Fatalf("Expected ErrRejectedVisits, got %v", err)
		}
		if !errors.Is(err, flow.ErrInvalidVisit) {
			t.Errorf("Expected the rejections to be wrapped, got %v", err)
		}
	})
}

func TestRun_MaxVisit(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 8, 0, 0, 0, time.UTC)
	src := &staticSource{visits: []models.Visit{
		visitAt(base, 0, 10*time.Minute, time.Hour),
		visitAt(base, 0, time.Hour, 20*time.Hour),
	}}
	cfg := testConfig(t)
	cfg.Analysis.MaxVisit = 12 * time.Hour

	a, err := newPipeline(t, cfg, WithSource(src)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(a.Rejections) != 1 || a.Rejections[0].Index != 1 {
		t.Fatalf("Expected the 20h visit to be rejected, got %+v", a.Rejections)
	}
	if a.Hourly.Len() != 3 {
		t.Errorf("Expected span 08:00 through 10:00, got %d buckets", a.Hourly.Len())
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	sourceErr := errors.New("disk on fire")
	_, err := newPipeline(t, testConfig(t), WithSource(&staticSource{err: sourceErr})).Run(context.Background())
	if !errors.Is(err, sourceErr) {
		t.Errorf("Expected source error, got %v", err)
	}

	base := time.Date(2021, 1, 4, 8, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	cfg.Analysis.MaxBuckets = 24
	src := &staticSource{visits: []models.Visit{visitAt(base, 0, time.Minute, 72*time.Hour)}}
	_, err = newPipeline(t, cfg, WithSource(src)).Run(context.Background())
	if !errors.Is(err, flow.ErrSpanTooLarge) {
		t.Errorf("Expected ErrSpanTooLarge, got %v", err)
	}
}

func TestRun_CacheHit(t *testing.T) {
	t.Parallel()

	c, err := cache.Open(config.CacheConfig{Enabled: true, InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	cfg := testConfig(t)
	p := newPipeline(t, cfg, WithCache(c))

	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Cached {
		t.Error("Expected the first run to compute")
	}

	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if !second.Cached {
		t.Error("Expected the second run to hit the cache")
	}
	if second.RunID != first.RunID || second.Summary.Visits != first.Summary.Visits {
		t.Errorf("Expected cached run %s, got %s", first.RunID, second.RunID)
	}

	cfg.Analysis.Capacity = 4
	third, err := newPipeline(t, cfg, WithCache(c)).Run(context.Background())
	if err != nil {
		t.Fatalf("Third run failed: %v", err)
	}
	if third.Cached {
		t.Error("Expected a capacity change to miss the cache")
	}
}

func TestRun_CacheKeepsRunRules(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	src := &staticSource{visits: []models.Visit{
		visitAt(base, 0, 10*time.Minute, 40*time.Minute),
		visitAt(base, 0, 30*time.Minute, 20*time.Minute),
		visitAt(base, 5*time.Hour, 5*time.Hour+10*time.Minute, 6*time.Hour),
	}}

	c, err := cache.Open(config.CacheConfig{Enabled: true, InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	lenient, err := newPipeline(t, testConfig(t), WithSource(src), WithCache(c)).Run(context.Background())
	if err != nil {
		t.Fatalf("Lenient run failed: %v", err)
	}
	if lenient.Cached || len(lenient.Rejections) != 1 {
		t.Fatalf("Expected a computed run with 1 rejection, got cached=%v rejections=%d", lenient.Cached, len(lenient.Rejections))
	}

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{"strict", func(cfg *config.Config) { cfg.Analysis.Strict = true }, ErrRejectedVisits},
		{"max buckets", func(cfg *config.Config) { cfg.Analysis.MaxBuckets = 3 }, flow.ErrSpanTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			a, err := newPipeline(t, cfg, WithSource(src), WithCache(c)).Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got err=%v (analysis %+v)", tt.wantErr, err, a)
			}
		})
	}

	again, err := newPipeline(t, testConfig(t), WithSource(src), WithCache(c)).Run(context.Background())
	if err != nil {
		t.Fatalf("Lenient rerun failed: %v", err)
	}
	if !again.Cached || again.RunID != lenient.RunID {
		t.Errorf("Expected the lenient rerun to reuse run %s, got cached=%v run %s", lenient.RunID, again.Cached, again.RunID)
	}
}

func TestRun_StoreVerify(t *testing.T) {
	t.Parallel()

	db, err := store.Open(config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig(t)
	cfg.Database.Enabled = true
	cfg.Analysis.Verify = true
	cfg.Analysis.Timezone = "Europe/Copenhagen"
	cfg.Analysis.Width = 30 * time.Minute

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPipeline(t, cfg, WithStore(db), WithClock(func() time.Time { return fixed }))
	if p.Store() != db {
		t.Fatal("Expected the supplied store to be used")
	}

	a, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !a.CreatedAt.Equal(fixed) {
		t.Errorf("Expected CreatedAt %v, got %v", fixed, a.CreatedAt)
	}

	runs, err := db.Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != a.RunID {
		t.Errorf("Expected run %s to be saved, got %+v", a.RunID, runs)
	}
}

func TestAccepted(t *testing.T) {
	t.Parallel()

	base := time.Date(2021, 1, 4, 8, 0, 0, 0, time.UTC)
	visits := []models.Visit{
		visitAt(base, 0, 0, time.Minute),
		visitAt(base, time.Minute, 0, time.Minute),
		visitAt(base, 2*time.Minute, 2*time.Minute, 3*time.Minute),
	}
	if got := accepted(visits, nil); len(got) != 3 {
		t.Errorf("Expected all visits without rejections, got %d", len(got))
	}
	got := accepted(visits, flow.Rejections{{Index: 1, Reason: flow.ErrTreatmentBeforeArrival}})
	if len(got) != 2 || !got[1].Arrival.Equal(visits[2].Arrival) {
		t.Errorf("Expected visits 0 and 2, got %+v", got)
	}
}
