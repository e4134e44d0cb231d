// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tomtom215/patientflow/internal/api"
	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/pipeline"
	"github.com/tomtom215/patientflow/internal/source"
	"github.com/tomtom215/patientflow/internal/supervisor"
	"github.com/tomtom215/patientflow/internal/supervisor/services"
)

func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("analyze", stderr)
	fs.analysisFlags()
	fs.outputFlags()
	cfg, err := fs.load(args)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close pipeline")
		}
	}()

	a, err := p.Run(ctx)
	if err != nil {
		return err
	}
	return printSummary(stdout, a, cfg)
}

// printSummary writes the human-readable run summary.
func printSummary(w io.Writer, a *models.Analysis, cfg *config.Config) error {
	s := a.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", a.RunID)
	fmt.Fprintf(tw, "source\t%s\n", a.Source)
	fmt.Fprintf(tw, "visits\t%d (rejected %d)\n", s.Visits, s.Rejected)
	fmt.Fprintf(tw, "buckets\t%d x %s (%.1f weeks)\n", s.Buckets, cfg.Analysis.Width, s.Weeks)
	fmt.Fprintf(tw, "waiting (visit)\tmean %.1f  p50 %.1f  p75 %.1f  max %.1f min\n",
		s.VisitWaiting.Mean, s.VisitWaiting.P50, s.VisitWaiting.P75, s.VisitWaiting.Max)
	fmt.Fprintf(tw, "waiting (hourly)\tmean %.1f  std %.1f min\n", s.HourlyWaiting.Mean, s.HourlyWaiting.Std)
	fmt.Fprintf(tw, "peak load\t%d at %s\n", s.Load.PeakLoad, s.Load.PeakStart.Format(time.RFC3339))
	fmt.Fprintf(tw, "mean load\t%.2f\n", s.Load.MeanLoad)
	fmt.Fprintf(tw, "busiest slot\t%s (%.2f)\n", s.Load.BusiestSlot, s.Load.BusiestSlotLoad)
	if s.Load.CapacityNote != "" {
		fmt.Fprintf(tw, "capacity\t%s\n", s.Load.CapacityNote)
	}
	if a.Cached {
		fmt.Fprintf(tw, "cached\tyes\n")
	}
	return tw.Flush()
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("generate", stderr)
	out := fs.String("out", "", "output file, .csv or .parquet (required)")
	fs.integer("count", "synthetic.count", "synthetic visits")
	fs.uinteger("seed", "synthetic.seed", "synthetic seed")
	fs.str("start", "synthetic.start", "window start (YYYY-MM-DD)")
	fs.str("end", "synthetic.end", "window end (YYYY-MM-DD)")
	fs.str("tz", "analysis.timezone", "IANA timezone of the window and CSV timestamps")
	fs.str("log-level", "logging.level", "trace, debug, info, warn or error")

	if err := fs.parse(args); err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprintln(stderr, "generate: -out is required")
		fs.Usage()
		return errUsage
	}
	ext := strings.ToLower(filepath.Ext(*out))
	if ext != ".csv" && ext != ".parquet" {
		fmt.Fprintf(stderr, "generate: -out must end in .csv or .parquet, got %q\n", *out)
		return errUsage
	}

	cfg, err := fs.config(map[string]any{"input.kind": config.InputSynthetic})
	if err != nil {
		return err
	}

	src, err := source.New(cfg)
	if err != nil {
		return err
	}
	visits, err := src.Visits(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if ext == ".csv" {
		err = source.WriteCSV(f, visits, cfg.Location())
	} else {
		err = source.WriteParquet(f, visits)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}

	logging.Info().Str("path", *out).Int("visits", len(visits)).Msg("Synthetic visits written")
	fmt.Fprintf(stdout, "wrote %d visits to %s\n", len(visits), *out)
	return nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	fs.analysisFlags()
	fs.outputFlags()
	fs.str("host", "server.host", "listen host")
	fs.integer("port", "server.port", "listen port")
	fs.duration("refresh", "server.refresh", "rerun the analysis at this interval (0 = once)")
	cfg, err := fs.load(args)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close pipeline")
		}
	}()

	// A nil *store.DB must not become a non-nil RunLister.
	var runs api.RunLister
	if db := p.Store(); db != nil {
		runs = db
	}
	handler := api.NewHandler(cfg.Server, cfg.Output, runs)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.Routes(metricsHandler),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddAnalysisService(services.NewAnalysisService(p, handler, cfg.Server.Refresh))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Dur("refresh", cfg.Server.Refresh).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The channel yields exactly one value, when the tree stops.
	serveErr := <-errCh
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	if serveErr != nil {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	logging.Info().Msg("Shutdown complete")
	return serveErr
}
