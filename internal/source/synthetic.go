// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"context"
	"fmt"

	"github.com/tomtom215/patientflow/internal/models"
	"github.com/tomtom215/patientflow/internal/synth"
)

// SyntheticSource generates visits instead of reading them.
type SyntheticSource struct {
	params synth.Params
}

// NewSyntheticSource returns a source generating visits from p.
func NewSyntheticSource(p synth.Params) *SyntheticSource {
	return &SyntheticSource{params: p}
}

// Name implements Source.
func (s *SyntheticSource) Name() string {
	return fmt.Sprintf("synthetic:seed=%d", s.params.Seed)
}

// Visits implements Source.
func (s *SyntheticSource) Visits(ctx context.Context) ([]models.Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synth.Generate(s.params)
}
