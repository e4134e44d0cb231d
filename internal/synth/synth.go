// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package synth generates reproducible mock visit data for demos and tests.
package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/tomtom215/patientflow/internal/models"
)

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid synthetic parameters")

// Params controls Generate. Offsets are drawn uniformly in whole multiples
// of Resolution between the min and max, both ends included.
type Params struct {
	Count      int
	Start, End time.Time // arrivals fall in [Start, End)
	Seed       uint64
	WaitMin    time.Duration
	WaitMax    time.Duration
	TreatMin   time.Duration
	TreatMax   time.Duration
	Resolution time.Duration
}

// DefaultParams mirrors the clinic's two-week sample: 2000 visits starting
// 2021-01-01, 5 to 55 minutes waiting and 15 to 60 minutes of treatment.
func DefaultParams() Params {
	return Params{
		Count:      2000,
		Start:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, 1, 14, 0, 0, 0, 0, time.UTC),
		Seed:       1,
		WaitMin:    5 * time.Minute,
		WaitMax:    55 * time.Minute,
		TreatMin:   15 * time.Minute,
		TreatMax:   60 * time.Minute,
		Resolution: time.Minute,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch {
	case p.Count < 0:
		return fmt.Errorf("%w: count %d is negative", ErrInvalidParams, p.Count)
	case !p.End.After(p.Start):
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidParams, p.End, p.Start)
	case p.Resolution <= 0:
		return fmt.Errorf("%w: resolution must be positive", ErrInvalidParams)
	case p.WaitMin < 0 || p.WaitMax < p.WaitMin:
		return fmt.Errorf("%w: wait range [%s, %s]", ErrInvalidParams, p.WaitMin, p.WaitMax)
	case p.TreatMin < 0 || p.TreatMax < p.TreatMin:
		return fmt.Errorf("%w: treatment range [%s, %s]", ErrInvalidParams, p.TreatMin, p.TreatMax)
	}
	return nil
}

// Generate returns p.Count visits sorted by arrival. Arrivals are uniform
// over [Start, End) at one-second resolution. The same Params always yield
// the same visits.
func Generate(p Params) ([]models.Visit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	window := int64(p.End.Sub(p.Start) / time.Second)
	if window <= 0 {
		window = 1
	}

	arrivals := make([]time.Time, p.Count)
	for i := range arrivals {
		arrivals[i] = p.Start.Add(time.Duration(rng.Int64N(window)) * time.Second)
	}
	slices.SortFunc(arrivals, func(a, b time.Time) int { return a.Compare(b) })

	visits := make([]models.Visit, p.Count)
	for i, arrival := range arrivals {
		treatment := arrival.Add(offset(rng, p.WaitMin, p.WaitMax, p.Resolution))
		visits[i] = models.Visit{
			Arrival:        arrival,
			TreatmentStart: treatment,
			Finish:         treatment.Add(offset(rng, p.TreatMin, p.TreatMax, p.Resolution)),
		}
	}
	return visits, nil
}

func offset(rng *rand.Rand, lo, hi, step time.Duration) time.Duration {
	steps := int64((hi - lo) / step)
	return lo + time.Duration(rng.Int64N(steps+1))*step
}
