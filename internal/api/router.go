// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package api serves the latest analysis over a read-only HTTP API.
//
// Routes:
//
//	GET /api/v1/health
//	GET /api/v1/summary
//	GET /api/v1/hourly
//	GET /api/v1/weekly?weekday=mon
//	GET /api/v1/rejections?limit=100&offset=0
//	GET /api/v1/runs               (when a store is attached)
//	GET /api/v1/charts/{name}.png
//	GET /metrics
//
// JSON responses use the {success, data, error, meta} envelope.
package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/report"
	"github.com/tomtom215/patientflow/internal/store"
)

// RunLister lists persisted runs; *store.DB implements it.
type RunLister interface {
	Runs(ctx context.Context) ([]store.Run, error)
}

// Handler holds the analysis being served.
type Handler struct {
	cfg     config.ServerConfig
	charts  *report.ChartRenderer
	runs    RunLister
	started time.Time

	mu       sync.RWMutex
	analysis *models.Analysis
	pngs     map[string][]byte
}

// NewHandler returns a Handler with no analysis loaded. runs may be nil.
func NewHandler(cfg config.ServerConfig, output config.OutputConfig, runs RunLister) *Handler {
	return &Handler{
		cfg:     cfg,
		charts:  report.NewChartRenderer(output.ChartWidth, output.ChartHeight),
		runs:    runs,
		started: time.Now(),
		pngs:    make(map[string][]byte),
	}
}

// SetAnalysis replaces the served analysis and drops rendered charts.
func (h *Handler) SetAnalysis(a *models.Analysis) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.analysis = a
	h.pngs = make(map[string][]byte)
}

// Analysis returns the served analysis, or nil before the first run.
func (h *Handler) Analysis() *models.Analysis {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.analysis
}

// chart returns the PNG for name, rendering it on first use.
func (h *Handler) chart(name string) ([]byte, error) {
	h.mu.RLock()
	png, ok := h.pngs[name]
	a := h.analysis
	h.mu.RUnlock()
	if ok {
		return png, nil
	}

	var buf bytes.Buffer
	if err := h.charts.Render(name, a, &buf); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.analysis == a {
		h.pngs[name] = buf.Bytes()
	}
	h.mu.Unlock()
	return buf.Bytes(), nil
}

// Routes builds the chi router.
func (h *Handler) Routes(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(h.cfg.RateLimitReqs, h.cfg.RateLimitWindow))
		r.Use(PrometheusMetrics())

		r.Get("/health", h.Health)
		r.Get("/summary", h.Summary)
		r.Get("/hourly", h.Hourly)
		r.Get("/weekly", h.Weekly)
		r.Get("/rejections", h.Rejections)
		r.Get("/charts/{name}.png", h.Chart)
		if h.runs != nil {
			r.Get("/runs", h.Runs)
		}
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}
