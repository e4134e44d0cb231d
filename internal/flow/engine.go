// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/patientflow/internal/models"
)

const (
	// DefaultWidth is the bucket width used when none is configured.
	DefaultWidth = time.Hour

	// DefaultMaxBuckets bounds the hourly table at roughly ten years of hours.
	DefaultMaxBuckets = 10 * 366 * 24
)

// Engine buckets visits into the hourly flow table.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	width      time.Duration
	loc        *time.Location
	workers    int
	alignDays  bool
	maxBuckets int64
	check      func(models.Visit) error
	clock      clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithWidth sets the bucket width. It must be a positive whole number of
// seconds that divides 24h.
func WithWidth(d time.Duration) Option {
	return func(e *Engine) { e.width = d }
}

// WithLocation sets the timezone buckets and weekdays are computed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithWorkers partitions the work across n goroutines. Results are identical
// to the sequential run.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithDayAlignedSpan extends the table to whole days: from midnight of the
// first arrival through midnight after the day of the last finish.
func WithDayAlignedSpan() Option {
	return func(e *Engine) { e.alignDays = true }
}

// WithMaxBuckets caps the number of buckets a single table may hold.
func WithMaxBuckets(n int64) Option {
	return func(e *Engine) { e.maxBuckets = n }
}

// WithVisitCheck installs an extra per-visit check that runs before the
// built-in ordering check. A non-nil error rejects the visit.
func WithVisitCheck(check func(models.Visit) error) Option {
	return func(e *Engine) { e.check = check }
}

// NewEngine builds an Engine with hourly UTC buckets unless overridden.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		width:      DefaultWidth,
		loc:        time.UTC,
		workers:    1,
		maxBuckets: DefaultMaxBuckets,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := validateWidth(e.width); err != nil {
		return nil, err
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.maxBuckets <= 0 {
		e.maxBuckets = DefaultMaxBuckets
	}
	e.clock = newClock(e.width, e.loc)
	return e, nil
}

func validateWidth(w time.Duration) error {
	switch {
	case w <= 0:
		return fmt.Errorf("%w: %s is not positive", ErrInvalidWidth, w)
	case w%time.Second != 0:
		return fmt.Errorf("%w: %s is not a whole number of seconds", ErrInvalidWidth, w)
	case (24*time.Hour)%w != 0:
		return fmt.Errorf("%w: %s does not divide a day", ErrInvalidWidth, w)
	}
	return nil
}

// Width returns the bucket width.
func (e *Engine) Width() time.Duration { return e.width }

// Location returns the bucketing timezone.
func (e *Engine) Location() *time.Location { return e.loc }

// HourlyResult is the output of Engine.Hourly.
type HourlyResult struct {
	Table    *models.HourlyTable
	Rejected Rejections
	Accepted int
}

// indexed is a validated visit reduced to bucket indexes.
type indexed struct {
	arrival   int64
	treatment int64
	finish    int64
	waiting   time.Duration
}

// part is one record partition after validation.
type part struct {
	visits   []indexed
	rejected Rejections
	lo, hi   int64 // min arrival bucket, max finish bucket
}

// Hourly builds the hourly table. Invalid visits are returned in Rejected
// and excluded from every column; they never fail the call. The only error
// is ErrSpanTooLarge. Input order does not matter.
func (e *Engine) Hourly(visits []models.Visit) (*HourlyResult, error) {
	parts := e.index(visits)

	result := &HourlyResult{}
	first, last, found := int64(0), int64(0), false
	for _, p := range parts {
		result.Rejected = append(result.Rejected, p.rejected...)
		result.Accepted += len(p.visits)
		if len(p.visits) == 0 {
			continue
		}
		if !found || p.lo < first {
			first = p.lo
		}
		if !found || p.hi > last {
			last = p.hi
		}
		found = true
	}
	if !found {
		result.Table = models.NewHourlyTable(e.width, e.loc, nil)
		return result, nil
	}

	// The bucket after the last finish closes the window.
	last++
	if e.alignDays {
		first = e.clock.dayFloor(first)
		last = e.clock.dayFloor(last-1) + e.clock.bucketsPerDay()
	}
	n := last - first + 1
	if n > e.maxBuckets {
		return nil, fmt.Errorf("%w: %d buckets from %s to %s (limit %d)",
			ErrSpanTooLarge, n, e.clock.start(first).Format(time.RFC3339), e.clock.start(last).Format(time.RFC3339), e.maxBuckets)
	}

	acc := e.accumulate(parts, first, int(n))
	load := e.sweep(acc.delta)
	result.Table = models.NewHourlyTable(e.width, e.loc, e.rows(acc, load, first))
	return result, nil
}

// index validates the visits and converts them to bucket indexes.
func (e *Engine) index(visits []models.Visit) []part {
	bounds := partition(len(visits), e.workers)
	parts := make([]part, len(bounds))

	e.parallel(len(bounds), func(p int) {
		lo, hi := bounds[p].lo, bounds[p].hi
		out := part{visits: make([]indexed, 0, hi-lo)}
		for i := lo; i < hi; i++ {
			v := visits[i]
			if reason := e.reject(v); reason != nil {
				out.rejected = append(out.rejected, &InvalidVisitError{Index: i, Visit: v, Reason: reason})
				continue
			}
			iv := indexed{
				arrival:   e.clock.index(v.Arrival),
				treatment: e.clock.index(v.TreatmentStart),
				finish:    e.clock.index(v.Finish),
				waiting:   v.Waiting(),
			}
			// Wall clocks run backwards across a DST fall-back; keep the
			// bucket order of the three timestamps.
			iv.treatment = max(iv.treatment, iv.arrival)
			iv.finish = max(iv.finish, iv.treatment)
			if len(out.visits) == 0 || iv.arrival < out.lo {
				out.lo = iv.arrival
			}
			if len(out.visits) == 0 || iv.finish > out.hi {
				out.hi = iv.finish
			}
			out.visits = append(out.visits, iv)
		}
		parts[p] = out
	})
	return parts
}

func (e *Engine) reject(v models.Visit) error {
	if e.check != nil {
		if err := e.check(v); err != nil {
			return err
		}
	}
	return checkVisit(v)
}

// counters holds the per-bucket accumulators for one partition.
type counters struct {
	arrivals   []int
	treatments []int
	finishes   []int
	waiting    []time.Duration
	delta      []int // occupancy difference array
}

func newCounters(n int) *counters {
	return &counters{
		arrivals:   make([]int, n),
		treatments: make([]int, n),
		finishes:   make([]int, n),
		waiting:    make([]time.Duration, n),
		delta:      make([]int, n),
	}
}

// add records one visit. The departure lands one bucket after the finish
// bucket, which always lies inside the window.
func (c *counters) add(v indexed, first int64) {
	a := v.arrival - first
	c.arrivals[a]++
	c.waiting[a] += v.waiting
	c.treatments[v.treatment-first]++
	c.finishes[v.finish-first]++
	c.delta[a]++
	c.delta[v.finish-first+1]--
}

// merge adds o's buckets [lo, hi) into c.
func (c *counters) merge(o *counters, lo, hi int) {
	for i := lo; i < hi; i++ {
		c.arrivals[i] += o.arrivals[i]
		c.treatments[i] += o.treatments[i]
		c.finishes[i] += o.finishes[i]
		c.waiting[i] += o.waiting[i]
		c.delta[i] += o.delta[i]
	}
}

// accumulate counts every partition into its own counters, then merges them
// bucket range by bucket range.
func (e *Engine) accumulate(parts []part, first int64, n int) *counters {
	accs := make([]*counters, len(parts))
	e.parallel(len(parts), func(p int) {
		c := newCounters(n)
		for _, v := range parts[p].visits {
			c.add(v, first)
		}
		accs[p] = c
	})
	if len(accs) == 1 {
		return accs[0]
	}

	total := accs[0]
	ranges := partition(n, e.workers)
	e.parallel(len(ranges), func(r int) {
		for _, c := range accs[1:] {
			total.merge(c, ranges[r].lo, ranges[r].hi)
		}
	})
	return total
}

// rows materializes the table rows.
func (e *Engine) rows(acc *counters, load []int, first int64) []models.HourlyRow {
	rows := make([]models.HourlyRow, len(load))
	ranges := partition(len(rows), e.workers)
	e.parallel(len(ranges), func(r int) {
		for i := ranges[r].lo; i < ranges[r].hi; i++ {
			b := first + int64(i)
			row := models.HourlyRow{
				Start:      e.clock.start(b),
				Weekday:    e.clock.weekday(b),
				Slot:       e.clock.slot(b),
				Arrivals:   acc.arrivals[i],
				Treatments: acc.treatments[i],
				Finishes:   acc.finishes[i],
				Load:       load[i],
			}
			if row.Arrivals > 0 {
				row.TotalWaiting = acc.waiting[i]
				row.MeanWaiting = models.SomeDuration(acc.waiting[i] / time.Duration(row.Arrivals))
			}
			rows[i] = row
		}
	})
	return rows
}

// parallel runs fn for every index in [0, n), concurrently when the engine
// has more than one worker.
func (e *Engine) parallel(n int, fn func(int)) {
	if n <= 1 || e.workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

type span struct{ lo, hi int }

// partition splits [0, n) into at most parts contiguous non-empty ranges.
// It returns a single (possibly empty) range when n is small.
func partition(n, parts int) []span {
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	if parts <= 1 {
		return []span{{0, n}}
	}
	out := make([]span, parts)
	size, extra := n/parts, n%parts
	lo := 0
	for p := range out {
		hi := lo + size
		if p < extra {
			hi++
		}
		out[p] = span{lo, hi}
		lo = hi
	}
	return out
}
