// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

import (
	"errors"
	"fmt"

	"github.com/tomtom215/patientflow/internal/models"
)

var (
	// ErrInvalidVisit matches every *InvalidVisitError via errors.Is.
	ErrInvalidVisit = errors.New("invalid visit")

	// ErrInvalidWidth is returned by NewEngine for unusable bucket widths.
	ErrInvalidWidth = errors.New("invalid bucket width")

	// ErrSpanTooLarge is returned when the observation window needs more
	// buckets than the engine allows.
	ErrSpanTooLarge = errors.New("observation window too large")

	// Reasons attached to rejected visits by the built-in check.
	ErrMissingTimestamp       = errors.New("missing timestamp")
	ErrTreatmentBeforeArrival = errors.New("treatment start before arrival")
	ErrFinishBeforeTreatment  = errors.New("finish before treatment start")
)

// InvalidVisitError reports a visit that violates the ordering invariant.
type InvalidVisitError struct {
	Index  int          // position in the input slice
	Visit  models.Visit // the offending record
	Reason error
}

func (e *InvalidVisitError) Error() string {
	return fmt.Sprintf("visit %d rejected: %v (%s)", e.Index, e.Reason, e.Visit)
}

// Unwrap returns the rejection reason.
func (e *InvalidVisitError) Unwrap() error {
	return e.Reason
}

// Is makes errors.Is(err, ErrInvalidVisit) true for any rejection.
func (e *InvalidVisitError) Is(target error) bool {
	return target == ErrInvalidVisit
}

// Rejection converts the error to its reportable form.
func (e *InvalidVisitError) Rejection() models.Rejection {
	return models.Rejection{Index: e.Index, Visit: e.Visit, Reason: e.Reason.Error()}
}

// Rejections lists the visits excluded from a run in input order.
type Rejections []*InvalidVisitError

// Len returns the number of rejected visits.
func (r Rejections) Len() int {
	return len(r)
}

// Err joins the rejections into one error, or returns nil when there are none.
func (r Rejections) Err() error {
	if len(r) == 0 {
		return nil
	}
	errs := make([]error, len(r))
	for i, e := range r {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Models converts the rejections for reports and the API.
func (r Rejections) Models() []models.Rejection {
	out := make([]models.Rejection, len(r))
	for i, e := range r {
		out[i] = e.Rejection()
	}
	return out
}

// checkVisit is the built-in ordering check.
func checkVisit(v models.Visit) error {
	switch {
	case v.Arrival.IsZero() || v.TreatmentStart.IsZero() || v.Finish.IsZero():
		return ErrMissingTimestamp
	case v.TreatmentStart.Before(v.Arrival):
		return ErrTreatmentBeforeArrival
	case v.Finish.Before(v.TreatmentStart):
		return ErrFinishBeforeTreatment
	}
	return nil
}
