// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package report writes an analysis to disk: a JSON report, CSV and Parquet
// exports of the hourly and weekly tables, and PNG charts.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/models"
)

// Files written to the output directory.
const (
	FileReport        = "report.json"
	FileHourlyCSV     = "hourly.csv"
	FileWeeklyCSV     = "weekly.csv"
	FileHourlyParquet = "hourly.parquet"
	FileWeeklyParquet = "weekly.parquet"
)

// Options selects what Write produces.
type Options struct {
	Dir         string
	Formats     []string // json, csv, parquet
	Charts      bool
	ChartWidth  int
	ChartHeight int
}

// Writer writes reports for finished analyses.
type Writer struct {
	opts   Options
	charts *ChartRenderer
}

// NewWriter returns a Writer for opts.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts, charts: NewChartRenderer(opts.ChartWidth, opts.ChartHeight)}
}

// Write produces every configured output and returns the paths written.
// A chart that cannot be drawn for the data at hand is skipped with a
// warning; any other failure aborts.
func (w *Writer) Write(ctx context.Context, a *models.Analysis) ([]string, error) {
	if err := os.MkdirAll(w.opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", w.opts.Dir, err)
	}
	logger := logging.Ctx(ctx)

	var written []string
	emit := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(w.opts.Dir, name)
		if err := writeFile(path, fn); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, format := range w.opts.Formats {
		var err error
		switch strings.ToLower(format) {
		case "json":
			err = emit(FileReport, func(out io.Writer) error { return WriteJSON(out, a) })
		case "csv":
			if err = emit(FileHourlyCSV, func(out io.Writer) error { return WriteHourlyCSV(out, a.Hourly) }); err == nil {
				err = emit(FileWeeklyCSV, func(out io.Writer) error { return WriteWeeklyCSV(out, a.Weekly) })
			}
		case "parquet":
			if err = emit(FileHourlyParquet, func(out io.Writer) error { return WriteHourlyParquet(out, a.Hourly) }); err == nil {
				err = emit(FileWeeklyParquet, func(out io.Writer) error { return WriteWeeklyParquet(out, a.Weekly) })
			}
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			return written, err
		}
	}

	if w.opts.Charts {
		for _, name := range ChartNames {
			err := emit(name+".png", func(out io.Writer) error { return w.charts.Render(name, a, out) })
			if err != nil {
				logger.Warn().Err(err).Str("chart", name).Msg("Skipping chart")
			}
		}
	}

	logger.Info().Str("dir", w.opts.Dir).Int("files", len(written)).Msg("Reports written")
	return written, nil
}

// writeFile writes through a temporary file so a failed render never
// leaves a truncated output behind.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
