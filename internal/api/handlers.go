// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/report"
	"github.com/tomtom215/patientflow/internal/validation"
)

const (
	defaultRejectionLimit = 100
	maxRejectionLimit     = 1000
)

// HealthResponse is the body of /api/v1/health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Ready    bool      `json:"ready"`
	RunID    string    `json:"run_id,omitempty"`
	Source   string    `json:"source,omitempty"`
	Computed time.Time `json:"computed_at"`
	Uptime   float64   `json:"uptime_seconds"`
}

// WeeklyResponse is the body of /api/v1/weekly.
type WeeklyResponse struct {
	WidthSeconds int64              `json:"width_seconds"`
	Weekday      string             `json:"weekday,omitempty"`
	Rows         []models.WeeklyRow `json:"rows"`
}

type weeklyParams struct {
	Weekday string `validate:"omitempty,weekday"`
}

type rejectionParams struct {
	Limit  int `validate:"min=1,max=1000"`
	Offset int `validate:"min=0"`
}

// Health reports whether an analysis is loaded. It answers 503 until the
// first run finishes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	resp := HealthResponse{Status: "starting", Uptime: time.Since(h.started).Seconds()}

	a := h.Analysis()
	if a == nil {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Analysis not ready", resp)
		return
	}
	resp.Status = "ok"
	resp.Ready = true
	resp.RunID = a.RunID
	resp.Source = a.Source
	resp.Computed = a.CreatedAt
	rw.Success(resp)
}

// Summary returns the run summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	a := h.ready(rw)
	if a == nil {
		return
	}
	rw.SuccessWithMeta(a.Summary, &APIMeta{RunID: a.RunID})
}

// Hourly returns the full hourly table.
func (h *Handler) Hourly(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	a := h.ready(rw)
	if a == nil {
		return
	}
	rw.SuccessWithMeta(a.Hourly, &APIMeta{RunID: a.RunID})
}

// Weekly returns the weekly table, optionally limited to one weekday.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	params := weeklyParams{Weekday: r.URL.Query().Get("weekday")}
	if verr := validation.ValidateStruct(&params); verr != nil {
		writeValidationError(rw, verr)
		return
	}
	a := h.ready(rw)
	if a == nil {
		return
	}

	resp := WeeklyResponse{WidthSeconds: int64(a.Weekly.Width() / time.Second)}
	if params.Weekday == "" {
		resp.Rows = a.Weekly.Rows()
	} else {
		day, _ := models.ParseWeekday(params.Weekday)
		resp.Weekday = day.String()
		resp.Rows = a.Weekly.Day(day)
	}
	if resp.Rows == nil {
		resp.Rows = []models.WeeklyRow{}
	}
	rw.SuccessWithMeta(resp, &APIMeta{RunID: a.RunID})
}

// Rejections returns a page of rejected visits.
func (h *Handler) Rejections(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	params := rejectionParams{Limit: defaultRejectionLimit}
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &params.Limit, "offset": &params.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			rw.Fail(http.StatusBadRequest, name+" must be an integer")
			return
		}
		*dst = v
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		writeValidationError(rw, verr)
		return
	}
	a := h.ready(rw)
	if a == nil {
		return
	}

	total := len(a.Rejections)
	lo := min(params.Offset, total)
	hi := min(lo+params.Limit, total)
	page := a.Rejections[lo:hi]
	if page == nil {
		page = []models.Rejection{}
	}
	rw.SuccessWithMeta(page, &APIMeta{
		RunID: a.RunID,
		Pagination: &PaginationMeta{
			Total:   total,
			Count:   len(page),
			Offset:  params.Offset,
			Limit:   params.Limit,
			HasMore: hi < total,
		},
	})
}

// Runs lists the runs saved in the store, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	runs, err := h.runs.Runs(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(runs)
}

// Chart serves one rendered chart as PNG.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rw := NewResponseWriter(w, r)
	if h.ready(rw) == nil {
		return
	}

	png, err := h.chart(name)
	switch {
	case errors.Is(err, report.ErrUnknownChart):
		rw.Fail(http.StatusNotFound, "Unknown chart: "+name)
		return
	case errors.Is(err, report.ErrNoChartData):
		rw.Fail(http.StatusNotFound, "No data for chart: "+name)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("chart", name).Msg("Failed to render chart")
		rw.Fail(http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write chart")
	}
}

// ready returns the analysis or writes 503 and returns nil.
func (h *Handler) ready(rw *ResponseWriter) *models.Analysis {
	a := h.Analysis()
	if a == nil {
		rw.Fail(http.StatusServiceUnavailable, "Analysis not ready")
	}
	return a
}

func writeValidationError(rw *ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}
