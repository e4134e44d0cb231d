// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/models"
)

// Layouts tried in order for CSV timestamps. Values without a zone are read
// in the configured location.
var Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Header names recognized when no column is configured. The Danish names
// are the ones the clinic's own exports use.
var (
	arrivalAliases   = []string{"arrival", "ind", "arrival_time", "arrived"}
	treatmentAliases = []string{"treatment_start", "behandling", "treatment", "treated"}
	finishAliases    = []string{"finish", "ud", "departure", "finished"}
)

var errShortRow = errors.New("row has no value for this column")

// CSVOptions controls CSV decoding.
type CSVOptions struct {
	ArrivalColumn   string
	TreatmentColumn string
	FinishColumn    string
	Layout          string // forces a single layout
	Delimiter       rune
	Location        *time.Location
}

// CSVSource reads visits from a header-driven CSV file.
type CSVSource struct {
	path string
	opts CSVOptions
}

// NewCSVSource returns a source reading path.
func NewCSVSource(path string, opts CSVOptions) *CSVSource {
	return &CSVSource{path: path, opts: opts}
}

// Name implements Source.
func (s *CSVSource) Name() string { return "csv:" + s.path }

// Visits implements Source.
func (s *CSVSource) Visits(ctx context.Context) ([]models.Visit, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	visits, err := ReadCSV(ctx, f, s.opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	logging.Ctx(ctx).Debug().Str("path", s.path).Int("visits", len(visits)).Msg("Read CSV visits")
	return visits, nil
}

// ReadCSV decodes visits from r. The first row is the header.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]models.Visit, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layouts := Layouts
	if opts.Layout != "" {
		layouts = []string{opts.Layout}
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header, opts)
	if err != nil {
		return nil, err
	}

	var visits []models.Visit
	for {
		if len(visits)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		var ts [3]time.Time
		for i, idx := range cols {
			if idx >= len(record) {
				line, _ := cr.FieldPos(0)
				return nil, &ParseError{Line: line, Column: header[idx], Err: errShortRow}
			}
			value := strings.TrimSpace(record[idx])
			if value == "" {
				continue
			}
			t, err := parseTime(value, layouts, loc)
			if err != nil {
				line, _ := cr.FieldPos(idx)
				return nil, &ParseError{Line: line, Column: header[idx], Value: value, Err: err}
			}
			ts[i] = t
		}
		visits = append(visits, models.Visit{Arrival: ts[0], TreatmentStart: ts[1], Finish: ts[2]})
	}
	return visits, nil
}

// resolveColumns returns the header positions of arrival, treatment start
// and finish.
func resolveColumns(header []string, opts CSVOptions) ([3]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	wanted := [3]struct {
		configured string
		aliases    []string
	}{
		{opts.ArrivalColumn, arrivalAliases},
		{opts.TreatmentColumn, treatmentAliases},
		{opts.FinishColumn, finishAliases},
	}

	var cols [3]int
	for i, w := range wanted {
		names := w.aliases
		if w.configured != "" {
			names = []string{w.configured}
		}
		found := false
		for _, name := range names {
			if idx, ok := index[strings.ToLower(name)]; ok {
				cols[i], found = idx, true
				break
			}
		}
		if !found {
			return cols, fmt.Errorf("%w: none of %v in header %v", ErrColumns, names, header)
		}
	}
	return cols, nil
}

func parseTime(value string, layouts []string, loc *time.Location) (time.Time, error) {
	var firstErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// WriteCSV writes visits with an arrival,treatment_start,finish header and
// RFC 3339 values in loc.
func WriteCSV(w io.Writer, visits []models.Visit, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"arrival", "treatment_start", "finish"}); err != nil {
		return err
	}
	for _, v := range visits {
		if err := cw.Write([]string{
			formatTime(v.Arrival, loc),
			formatTime(v.TreatmentStart, loc),
			formatTime(v.Finish, loc),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}
