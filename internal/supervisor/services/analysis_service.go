// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/models"
)

// Runner produces an analysis; *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context) (*models.Analysis, error)
}

// Publisher receives each finished analysis; *api.Handler implements it.
type Publisher interface {
	SetAnalysis(a *models.Analysis)
}

// AnalysisService runs the pipeline and publishes the result. With a zero
// refresh interval it runs once and then idles until shutdown; a failed run
// returns an error so the supervisor retries it with backoff.
type AnalysisService struct {
	runner    Runner
	publisher Publisher
	refresh   time.Duration
}

// NewAnalysisService creates the service. refresh <= 0 disables reruns.
func NewAnalysisService(runner Runner, publisher Publisher, refresh time.Duration) *AnalysisService {
	return &AnalysisService{runner: runner, publisher: publisher, refresh: refresh}
}

// Serve implements suture.Service.
func (s *AnalysisService) Serve(ctx context.Context) error {
	if err := s.runOnce(ctx); err != nil {
		return err
	}
	if s.refresh <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				// Keep serving the previous result; the supervisor restarts us.
				return err
			}
		}
	}
}

func (s *AnalysisService) runOnce(ctx context.Context) error {
	a, err := s.runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("analysis run failed: %w", err)
	}
	s.publisher.SetAnalysis(a)
	logging.Ctx(ctx).Info().Str("run_id", a.RunID).Bool("cached", a.Cached).Msg("Analysis published")
	return nil
}

// String implements fmt.Stringer.
func (s *AnalysisService) String() string {
	return "analysis"
}
