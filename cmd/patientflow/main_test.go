// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/models"
)

// isolate runs the test in an empty directory with no config file and
// returns that directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	return dir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"help"}, exitOK},
		{"unknown command", []string{"frobnicate"}, exitUsage},
		{"unknown flag", []string{"analyze", "-no-such-flag"}, exitUsage},
		{"stray argument", []string{"analyze", "extra"}, exitUsage},
		{"generate without out", []string{"generate"}, exitUsage},
		{"generate bad extension", []string{"generate", "-out", "visits.txt"}, exitUsage},
		{"invalid width", []string{"-width", "7h"}, exitError},
		{"missing csv path", []string{"-input", "csv"}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != tt.want {
				t.Errorf("Expected exit code %d, got %d (stderr: %s)", tt.want, code, stderr)
			}
		})
	}
}

func TestGenerateThenAnalyze(t *testing.T) {
	dir := isolate(t)
	csvPath := filepath.Join(dir, "visits.csv")

	code, stdout, stderr := runCLI(t, "generate", "-out", csvPath,
		"-count", "250", "-seed", "7", "-start", "2021-01-04", "-end", "2021-01-06")
	if code != exitOK {
		t.Fatalf("generate failed with %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "wrote 250 visits") {
		t.Errorf("unexpected generate output: %q", stdout)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 251 || lines[0] != "arrival,treatment_start,finish" {
		t.Fatalf("Expected header plus 250 rows, got %d lines starting %q", len(lines), lines[0])
	}

	outDir := filepath.Join(dir, "reports")
	code, stdout, stderr = runCLI(t, "analyze", "-input", "csv", "-path", csvPath,
		"-out", outDir, "-format", "json,csv", "-charts=false", "-capacity", "10")
	if code != exitOK {
		t.Fatalf("analyze failed with %d: %s", code, stderr)
	}
	for _, want := range []string{"visits", "250 (rejected 0)", "peak load", "busiest slot", "capacity"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("summary missing %q:\n%s", want, stdout)
		}
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "report.json"))
	if err != nil {
		t.Fatalf("report.json not written: %v", err)
	}
	var a models.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("report.json is not valid: %v", err)
	}
	if a.Summary.Visits != 250 {
		t.Errorf("Expected 250 visits in report, got %d", a.Summary.Visits)
	}
	if a.Source != "csv:"+csvPath {
		t.Errorf("Expected source csv:%s, got %s", csvPath, a.Source)
	}
	for _, name := range []string{"hourly.csv", "weekly.csv"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}
}

func TestGenerate_Parquet(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "visits.parquet")

	code, _, stderr := runCLI(t, "generate", "-out", path, "-count", "50")
	if code != exitOK {
		t.Fatalf("generate failed with %d: %s", code, stderr)
	}

	code, stdout, stderr := runCLI(t, "-input", "parquet", "-path", path, "-format", "", "-charts=false")
	if code != exitOK {
		t.Fatalf("analyze failed with %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "50 (rejected 0)") {
		t.Errorf("unexpected summary:\n%s", stdout)
	}
}

func TestAnalyze_ConfigFlag(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "clinic.yaml")
	content := `
synthetic:
  count: 40
  start: "2021-02-01"
  end: "2021-02-02"
output:
  formats: []
  charts: false
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, "-config", cfgPath)
	if code != exitOK {
		t.Fatalf("analyze failed with %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "40 (rejected 0)") {
		t.Errorf("config file not applied:\n%s", stdout)
	}

	if code, _, _ := runCLI(t, "-config", filepath.Join(dir, "nope.yaml")); code != exitError {
		t.Errorf("Expected exit code %d for a missing config file, got %d", exitError, code)
	}
}

func TestFlagSet_Overrides(t *testing.T) {
	t.Parallel()

	fs := newFlagSet("analyze", io.Discard)
	fs.analysisFlags()
	fs.outputFlags()
	if err := fs.parse([]string{"-width", "30m", "-db", "runs.duckdb", "-strict", "-seed", "3"}); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got := fs.overrides()
	want := map[string]any{
		"analysis.width":   "30m0s",
		"analysis.strict":  true,
		"database.path":    "runs.duckdb",
		"database.enabled": true,
		"synthetic.seed":   uint64(3),
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d overrides, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %s=%v, got %v", k, v, got[k])
		}
	}
	if _, ok := got["analysis.timezone"]; ok {
		t.Error("unset flags must not override the config")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return port
}

func TestServe(t *testing.T) {
	isolate(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"serve", "-port", fmt.Sprint(port), "-count", "100",
			"-format", "", "-charts=false", "-log-level", "warn"}, io.Discard, io.Discard)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(10 * time.Second)
	ready := false
	for time.Now().Before(deadline) && !ready {
		resp, err := http.Get(url)
		if err == nil {
			ready = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		}
		if !ready {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if !ready {
		cancel()
		t.Fatal("server never reported ready")
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected metrics status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case code := <-done:
		if code != exitOK {
			t.Errorf("Expected exit code %d after shutdown, got %d", exitOK, code)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
