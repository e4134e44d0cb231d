// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package pipeline runs one batch analysis end to end: read visits, build
// the hourly and weekly tables, summarize, export and optionally persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/patientflow/internal/cache"
	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/flow"
	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/report"
	"github.com/tomtom215/patientflow/internal/source"
	"github.com/tomtom215/patientflow/internal/store"
	"github.com/tomtom215/patientflow/internal/summary"
)

// Run status labels for metrics.Runs.
const (
	StatusSuccess = "success"
	StatusCached  = "cached"
	StatusError   = "error"
)

// maxLoggedRejections bounds the per-visit warnings of a single run.
const maxLoggedRejections = 20

var (
	// ErrRejectedVisits is returned in strict mode when any visit was rejected.
	ErrRejectedVisits = errors.New("visits rejected")

	// ErrVerifyMismatch is returned when the SQL overlap check disagrees
	// with the computed load column.
	ErrVerifyMismatch = errors.New("load verification failed")
)

// Pipeline holds everything a run needs. Build it with New and release it
// with Close.
type Pipeline struct {
	cfg     *config.Config
	src     source.Source
	engine  *flow.Engine
	reports *report.Writer
	cache   *cache.ResultCache
	store   *store.DB
	now     func() time.Time

	ownCache bool
	ownStore bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSource replaces the source selected by the configuration.
func WithSource(src source.Source) Option {
	return func(p *Pipeline) { p.src = src }
}

// WithCache uses c instead of opening the configured cache.
func WithCache(c *cache.ResultCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithStore uses db instead of opening the configured store.
func WithStore(db *store.DB) Option {
	return func(p *Pipeline) { p.store = db }
}

// WithClock sets the clock used for Analysis.CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline from cfg, opening the cache and store when they are
// enabled and not supplied.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	engine, err := flow.NewEngine(engineOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	p.engine = engine

	if p.src == nil {
		if p.src, err = source.New(cfg); err != nil {
			return nil, fmt.Errorf("failed to create source: %w", err)
		}
	}

	p.reports = report.NewWriter(report.Options{
		Dir:         cfg.Output.Dir,
		Formats:     cfg.Output.Formats,
		Charts:      cfg.Output.Charts,
		ChartWidth:  cfg.Output.ChartWidth,
		ChartHeight: cfg.Output.ChartHeight,
	})

	if p.cache == nil && cfg.Cache.Enabled {
		if p.cache, err = cache.Open(cfg.Cache); err != nil {
			return nil, err
		}
		p.ownCache = true
	}
	if p.store == nil && cfg.Database.Enabled {
		if p.store, err = store.Open(cfg.Database); err != nil {
			p.closeCache()
			return nil, err
		}
		p.ownStore = true
	}
	return p, nil
}

func engineOptions(cfg *config.Config) []flow.Option {
	a := cfg.Analysis
	opts := []flow.Option{
		flow.WithWidth(a.Width),
		flow.WithLocation(cfg.Location()),
		flow.WithWorkers(a.Workers),
		flow.WithMaxBuckets(a.MaxBuckets),
		flow.WithVisitCheck(visitCheck(a.MaxVisit)),
	}
	if a.AlignDays {
		opts = append(opts, flow.WithDayAlignedSpan())
	}
	return opts
}

// ErrVisitTooLong is the rejection reason for visits longer than analysis.max_visit.
var ErrVisitTooLong = errors.New("visit exceeds maximum duration")

// visitCheck enforces analysis.max_visit. Unordered visits pass through to
// the engine's ordering check so their rejection reason stays specific.
func visitCheck(maxVisit time.Duration) func(models.Visit) error {
	return func(v models.Visit) error {
		if maxVisit <= 0 || !v.Ordered() || v.Arrival.IsZero() || v.Finish.IsZero() {
			return nil
		}
		if d := v.Duration(); d > maxVisit {
			return fmt.Errorf("%w: %s > %s", ErrVisitTooLong, d, maxVisit)
		}
		return nil
	}
}

// Store returns the store in use, or nil.
func (p *Pipeline) Store() *store.DB {
	return p.store
}

// Close releases the cache and store if New opened them.
func (p *Pipeline) Close() error {
	var errs []error
	if p.ownCache && p.cache != nil {
		errs = append(errs, p.cache.Close())
	}
	if p.ownStore && p.store != nil {
		errs = append(errs, p.store.Close())
	}
	return errors.Join(errs...)
}

func (p *Pipeline) closeCache() {
	if p.ownCache && p.cache != nil {
		if err := p.cache.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close result cache")
		}
	}
}

// Run performs one analysis and returns it. Rejected visits are reported in
// the result and only fail the run when analysis.strict is set.
//
// A result-cache hit returns the analysis as first computed, with that run's
// RunID; the run_id on this call's log lines identifies the invocation only.
// The strict and max_buckets rules are applied to cached results as well.
func (p *Pipeline) Run(ctx context.Context) (*models.Analysis, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	logger := logging.Ctx(ctx)
	start := time.Now()

	logger.Info().Str("source", p.src.Name()).Dur("width", p.engine.Width()).
		Str("timezone", p.engine.Location().String()).Msg("Starting analysis")

	a, err := p.run(ctx, runID)
	status := StatusSuccess
	switch {
	case err != nil:
		status = StatusError
	case a.Cached:
		status = StatusCached
	}
	metrics.RecordRun(status)
	p.writeTextfile(ctx)

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Analysis failed")
		return nil, err
	}
	logger.Info().
		Int("visits", a.Summary.Visits).
		Int("rejected", a.Summary.Rejected).
		Int("buckets", a.Summary.Buckets).
		Int("peak_load", a.Summary.Load.PeakLoad).
		Bool("cached", a.Cached).
		Str("analysis_run_id", a.RunID).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis complete")
	return a, nil
}

func (p *Pipeline) run(ctx context.Context, runID string) (*models.Analysis, error) {
	visits, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	key := cache.Key(visits, p.keyParams())
	if a := p.cached(ctx, key); a != nil {
		if err := p.checkCached(a, len(visits)); err != nil {
			return nil, err
		}
		metrics.VisitsAccepted.Add(float64(a.Summary.Visits))
		if err := p.export(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	}

	stop := metrics.StartStage("engine")
	result, err := p.engine.Hourly(visits)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to build hourly table: %w", err)
	}
	metrics.VisitsAccepted.Add(float64(result.Accepted))
	p.logRejections(ctx, result.Rejected)
	if p.cfg.Analysis.Strict && result.Rejected.Len() > 0 {
		return nil, fmt.Errorf("%w: %d of %d: %w", ErrRejectedVisits, result.Rejected.Len(), len(visits), result.Rejected.Err())
	}

	stop = metrics.StartStage("weekly")
	weekly := flow.Weekly(result.Table)
	stop()

	stop = metrics.StartStage("summary")
	sum := summary.Build(result.Table, weekly, accepted(visits, result.Rejected), result.Rejected.Len(), p.summaryOptions())
	stop()

	a := &models.Analysis{
		RunID:      runID,
		CreatedAt:  p.now().UTC(),
		Source:     p.src.Name(),
		Hourly:     result.Table,
		Weekly:     weekly,
		Summary:    sum,
		Rejections: result.Rejected.Models(),
	}
	metrics.RecordTables(result.Table.Len(), weekly.Len(), sum.Load.PeakLoad)

	if err := p.persist(ctx, a, visits); err != nil {
		return nil, err
	}
	if err := p.export(ctx, a); err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.Put(ctx, key, a); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache analysis")
		}
	}
	return a, nil
}

func (p *Pipeline) load(ctx context.Context) ([]models.Visit, error) {
	defer metrics.StartStage("load")()

	visits, err := p.src.Visits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read visits from %s: %w", p.src.Name(), err)
	}
	metrics.VisitsRead.WithLabelValues(p.cfg.Input.Kind).Add(float64(len(visits)))
	logging.Ctx(ctx).Info().Str("source", p.src.Name()).Int("visits", len(visits)).Msg("Loaded visits")
	return visits, nil
}

// cached returns a previous analysis of the same input, or nil. Verify runs
// always compute, since the check needs the visits in the store.
func (p *Pipeline) cached(ctx context.Context, key string) *models.Analysis {
	if p.cache == nil || p.cfg.Analysis.Verify {
		return nil
	}
	a, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Result cache lookup failed")
		}
		return nil
	}
	a.Cached = true
	logging.Ctx(ctx).Info().Str("cached_run_id", a.RunID).Msg("Reusing cached analysis")
	return a
}

// checkCached applies the rules a fresh run would enforce but the cache key
// does not cover.
func (p *Pipeline) checkCached(a *models.Analysis, read int) error {
	limit := p.cfg.Analysis.MaxBuckets
	if limit > 0 && a.Hourly != nil && int64(a.Hourly.Len()) > limit {
		return fmt.Errorf("%w: cached run %s has %d buckets, limit %d",
			flow.ErrSpanTooLarge, a.RunID, a.Hourly.Len(), limit)
	}
	if p.cfg.Analysis.Strict && len(a.Rejections) > 0 {
		return fmt.Errorf("%w: %d of %d (cached run %s): first at index %d: %s",
			ErrRejectedVisits, len(a.Rejections), read, a.RunID, a.Rejections[0].Index, a.Rejections[0].Reason)
	}
	return nil
}

func (p *Pipeline) logRejections(ctx context.Context, rejected flow.Rejections) {
	logger := logging.Ctx(ctx)
	for i, r := range rejected {
		metrics.RecordRejection(r.Reason.Error())
		if i < maxLoggedRejections {
			logger.Warn().Int("index", r.Index).Str("reason", r.Reason.Error()).
				Str("visit", r.Visit.String()).Msg("Visit rejected")
		}
	}
	if n := rejected.Len(); n > maxLoggedRejections {
		logger.Warn().Int("rejected", n).Int("logged", maxLoggedRejections).Msg("Further rejections not logged individually")
	}
}

// persist saves the run and, when enabled, cross-checks the load column.
func (p *Pipeline) persist(ctx context.Context, a *models.Analysis, visits []models.Visit) error {
	if p.store == nil {
		return nil
	}
	defer metrics.StartStage("store")()

	if err := p.store.SaveRun(ctx, a, visits); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if !p.cfg.Analysis.Verify {
		return nil
	}

	mismatches, err := p.store.Verify(ctx, a.RunID, a.Hourly)
	if err != nil {
		return fmt.Errorf("failed to verify load: %w", err)
	}
	if len(mismatches) > 0 {
		m := mismatches[0]
		return fmt.Errorf("%w: %d buckets differ, first at %s (engine %d, sql %d)",
			ErrVerifyMismatch, len(mismatches), m.Start.Format(time.RFC3339), m.Engine, m.SQL)
	}
	logging.Ctx(ctx).Info().Int("buckets", a.Hourly.Len()).Msg("Load column verified against SQL")
	return nil
}

func (p *Pipeline) export(ctx context.Context, a *models.Analysis) error {
	o := p.cfg.Output
	if len(o.Formats) == 0 && !o.Charts {
		return nil
	}
	defer metrics.StartStage("report")()

	if _, err := p.reports.Write(ctx, a); err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}
	return nil
}

func (p *Pipeline) writeTextfile(ctx context.Context) {
	path := p.cfg.Metrics.Textfile
	if !p.cfg.Metrics.Enabled || path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
	}
}

func (p *Pipeline) keyParams() cache.KeyParams {
	a := p.cfg.Analysis
	return cache.KeyParams{
		Width:         a.Width,
		Location:      p.engine.Location().String(),
		AlignDays:     a.AlignDays,
		MaxVisit:      a.MaxVisit,
		HistogramLow:  a.HistogramLow,
		HistogramHigh: a.HistogramHigh,
		HistogramStep: a.HistogramStep,
		Capacity:      a.Capacity,
	}
}

func (p *Pipeline) summaryOptions() summary.Options {
	a := p.cfg.Analysis
	return summary.Options{
		HistogramLow:  a.HistogramLow,
		HistogramHigh: a.HistogramHigh,
		HistogramStep: a.HistogramStep,
		Capacity:      a.Capacity,
	}
}

// accepted returns visits without the rejected ones, preserving order.
func accepted(visits []models.Visit, rejected flow.Rejections) []models.Visit {
	if len(rejected) == 0 {
		return visits
	}
	skip := make(map[int]struct{}, len(rejected))
	for _, r := range rejected {
		skip[r.Index] = struct{}{}
	}
	out := make([]models.Visit, 0, len(visits)-len(skip))
	for i, v := range visits {
		if _, ok := skip[i]; !ok {
			out = append(out, v)
		}
	}
	return out
}
