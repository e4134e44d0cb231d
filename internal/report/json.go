// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package report

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/tomtom215/patientflow/internal/models"
)

// WriteJSON writes the full analysis as indented JSON.
func WriteJSON(w io.Writer, a *models.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// ReadJSON decodes an analysis written by WriteJSON.
func ReadJSON(r io.Reader) (*models.Analysis, error) {
	var a models.Analysis
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
