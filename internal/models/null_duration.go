// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package models

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// NullDuration is a duration that may be absent, in the manner of sql.NullInt64.
// An absent value marshals to JSON null; a present one marshals to minutes.
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// SomeDuration returns a present NullDuration.
func SomeDuration(d time.Duration) NullDuration {
	return NullDuration{Duration: d, Valid: true}
}

// Minutes returns the value in minutes and whether it is present.
func (n NullDuration) Minutes() (float64, bool) {
	if !n.Valid {
		return 0, false
	}
	return n.Duration.Minutes(), true
}

// MinutesPtr returns a pointer to the minutes value, or nil when absent.
func (n NullDuration) MinutesPtr() *float64 {
	if !n.Valid {
		return nil
	}
	m := n.Duration.Minutes()
	return &m
}

// String renders the duration or "-" when absent.
func (n NullDuration) String() string {
	if !n.Valid {
		return "-"
	}
	return n.Duration.String()
}

// MarshalJSON implements json.Marshaler.
func (n NullDuration) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Duration.Minutes(), 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullDuration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullDuration{}
		return nil
	}
	var minutes float64
	if err := json.Unmarshal(data, &minutes); err != nil {
		return err
	}
	*n = SomeDuration(time.Duration(minutes * float64(time.Minute)))
	return nil
}
