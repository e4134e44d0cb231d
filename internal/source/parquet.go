// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/models"
)

const parquetReadBatch = 8192

// ParquetSource reads visits from a Parquet file with arrival,
// treatment_start and finish timestamp columns.
type ParquetSource struct {
	path string
}

// NewParquetSource returns a source reading path.
func NewParquetSource(path string) *ParquetSource {
	return &ParquetSource{path: path}
}

// Name implements Source.
func (s *ParquetSource) Name() string { return "parquet:" + s.path }

// Visits implements Source.
func (s *ParquetSource) Visits(ctx context.Context) ([]models.Visit, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}

	visits, err := ReadParquet(ctx, f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	logging.Ctx(ctx).Debug().Str("path", s.path).Int("visits", len(visits)).Msg("Read Parquet visits")
	return visits, nil
}

// ReadParquet decodes all visits from the size-byte Parquet file in r.
func ReadParquet(ctx context.Context, r io.ReaderAt, size int64) ([]models.Visit, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	reader := parquet.NewGenericReader[models.Visit](pf)
	defer func() { _ = reader.Close() }()

	visits := make([]models.Visit, 0, reader.NumRows())
	buf := make([]models.Visit, parquetReadBatch)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := reader.Read(buf)
		visits = append(visits, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return visits, nil
}

// WriteParquet writes visits as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, visits []models.Visit) error {
	writer := parquet.NewGenericWriter[models.Visit](w, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(visits); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
