// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tomtom215/patientflow/internal/flow"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/summary"
	"github.com/tomtom215/patientflow/internal/synth"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// testAnalysis runs a small synthetic week through the engine.
func testAnalysis(t *testing.T) *models.Analysis {
	t.Helper()

	p := synth.DefaultParams()
	p.Count = 300
	p.End = p.Start.Add(7 * 24 * time.Hour)
	visits, err := synth.Generate(p)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := flow.NewEngine(flow.WithDayAlignedSpan())
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Hourly(visits)
	if err != nil {
		t.Fatal(err)
	}
	weekly := flow.Weekly(res.Table)
	return &models.Analysis{
		RunID:     "test-run",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:    "synthetic:seed=1",
		Hourly:    res.Table,
		Weekly:    weekly,
		Summary:   summary.Build(res.Table, weekly, visits, 0, summary.DefaultOptions()),
	}
}

func TestWriter_AllFormats(t *testing.T) {
	t.Parallel()

	a := testAnalysis(t)
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(Options{Dir: dir, Formats: []string{"json", "CSV", "parquet"}, Charts: true, ChartWidth: 800, ChartHeight: 400})

	written, err := w.Write(context.Background(), a)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []string{FileReport, FileHourlyCSV, FileWeeklyCSV, FileHourlyParquet, FileWeeklyParquet}
	for _, name := range ChartNames {
		want = append(want, name+".png")
	}
	if len(written) != len(want) {
		t.Fatalf("Expected %d files, got %d: %v", len(want), len(written), written)
	}
	for _, name := range want {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}

	for _, name := range ChartNames {
		data, err := os.ReadFile(filepath.Join(dir, name+".png"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(data, pngMagic) {
			t.Errorf("%s is not a PNG", name)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestWriter_UnknownFormat(t *testing.T) {
	t.Parallel()

	w := NewWriter(Options{Dir: t.TempDir(), Formats: []string{"xlsx"}})
	if _, err := w.Write(context.Background(), testAnalysis(t)); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	a := testAnalysis(t)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, a); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.RunID != a.RunID || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("Expected run %s at %s, got %s at %s", a.RunID, a.CreatedAt, got.RunID, got.CreatedAt)
	}
	if got.Hourly.Len() != a.Hourly.Len() || got.Weekly.Len() != a.Weekly.Len() {
		t.Errorf("Expected %d/%d rows, got %d/%d", a.Hourly.Len(), a.Weekly.Len(), got.Hourly.Len(), got.Weekly.Len())
	}
	if got.Summary.Load.PeakLoad != a.Summary.Load.PeakLoad {
		t.Errorf("Expected peak %d, got %d", a.Summary.Load.PeakLoad, got.Summary.Load.PeakLoad)
	}
}

func TestWriteHourlyCSV(t *testing.T) {
	t.Parallel()

	start := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	table := models.NewHourlyTable(time.Hour, time.UTC, []models.HourlyRow{
		{Start: start, Weekday: models.Monday, Slot: 10, Arrivals: 2, Treatments: 1, Finishes: 0, MeanWaiting: models.SomeDuration(90 * time.Second), Load: 2},
		{Start: start.Add(time.Hour), Weekday: models.Monday, Slot: 11, Finishes: 2, Load: 2},
	})

	var buf bytes.Buffer
	if err := WriteHourlyCSV(&buf, table); err != nil {
		t.Fatalf("WriteHourlyCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(records))
	}
	want := []string{"2021-01-04T10:00:00Z", "mon", "10", "2", "1", "0", "1.5", "2"}
	for i := range want {
		if records[1][i] != want[i] {
			t.Errorf("column %s: expected %q, got %q", hourlyHeader[i], want[i], records[1][i])
		}
	}
	if records[2][6] != "" {
		t.Errorf("Expected empty cell for absent waiting, got %q", records[2][6])
	}
}

func TestWriteWeeklyCSV(t *testing.T) {
	t.Parallel()

	table := models.NewWeeklyTable(time.Hour, []models.WeeklyRow{
		{
			WeeklyKey:      models.WeeklyKey{Weekday: models.Friday, Hour: 14},
			Buckets:        2,
			WaitingBuckets: 1,
			Arrivals:       0.5,
			MeanWaiting:    models.SomeDuration(20 * time.Minute),
			VisitWaiting:   models.SomeDuration(20 * time.Minute),
			Load:           1.5,
			PeakLoad:       2,
		},
	})

	var buf bytes.Buffer
	if err := WriteWeeklyCSV(&buf, table); err != nil {
		t.Fatalf("WriteWeeklyCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if want := "fri,14,0,2,1,0.5,0,0,20,20,1.5,2"; lines[1] != want {
		t.Errorf("Expected %q, got %q", want, lines[1])
	}
}

func TestWriteHourlyParquet_Nulls(t *testing.T) {
	t.Parallel()

	start := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC)
	table := models.NewHourlyTable(time.Hour, time.UTC, []models.HourlyRow{
		{Start: start, Slot: 10, Arrivals: 1, MeanWaiting: models.SomeDuration(12 * time.Minute), Load: 1},
		{Start: start.Add(time.Hour), Slot: 11, Load: 1},
	})

	path := filepath.Join(t.TempDir(), FileHourlyParquet)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteHourlyParquet(f, table); err != nil {
		t.Fatalf("WriteHourlyParquet: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := parquet.ReadFile[HourlyRecord](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].MeanWaitingMinutes == nil || *records[0].MeanWaitingMinutes != 12 {
		t.Errorf("Expected 12 minutes, got %v", records[0].MeanWaitingMinutes)
	}
	if records[1].MeanWaitingMinutes != nil {
		t.Errorf("Expected null waiting, got %v", *records[1].MeanWaitingMinutes)
	}
	if !records[1].Start.Equal(start.Add(time.Hour)) {
		t.Errorf("Expected start %s, got %s", start.Add(time.Hour), records[1].Start)
	}
}

func TestChartRenderer_Errors(t *testing.T) {
	t.Parallel()

	r := NewChartRenderer(0, 0)
	empty := &models.Analysis{
		Hourly: models.NewHourlyTable(time.Hour, time.UTC, nil),
		Weekly: models.NewWeeklyTable(time.Hour, nil),
	}
	for _, name := range ChartNames {
		if err := r.Render(name, empty, &bytes.Buffer{}); !errors.Is(err, ErrNoChartData) {
			t.Errorf("%s: expected ErrNoChartData, got %v", name, err)
		}
	}
	if err := r.Render("pie", empty, &bytes.Buffer{}); !errors.Is(err, ErrUnknownChart) {
		t.Errorf("Expected ErrUnknownChart, got %v", err)
	}
}
