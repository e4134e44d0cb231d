// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package cache stores finished analyses in BadgerDB keyed by a digest of
// their input, so rerunning an unchanged batch skips the engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/logging"
	"github.com/tomtom215/patientflow/internal/metrics"
	"github.com/tomtom215/patientflow/internal/models"
)

const analysisKeyPrefix = "analysis:"

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// KeyParams are the analysis settings that change the result for the same visits.
type KeyParams struct {
	Width         time.Duration
	Location      string
	AlignDays     bool
	MaxVisit      time.Duration
	HistogramLow  float64
	HistogramHigh float64
	HistogramStep float64
	Capacity      int
}

// Key returns the hex SHA-256 digest identifying visits analyzed with p.
// Visit order is significant since rejection indexes refer to it.
func Key(visits []models.Visit, p KeyParams) string {
	h := sha256.New()
	var buf [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	putTime := func(t time.Time) {
		if t.IsZero() {
			putInt(math.MinInt64)
			return
		}
		putInt(t.UnixNano())
	}

	putInt(int64(p.Width))
	_, _ = h.Write([]byte(p.Location))
	putInt(int64(len(p.Location)))
	if p.AlignDays {
		putInt(1)
	} else {
		putInt(0)
	}
	putInt(int64(p.MaxVisit))
	putInt(int64(math.Float64bits(p.HistogramLow)))
	putInt(int64(math.Float64bits(p.HistogramHigh)))
	putInt(int64(math.Float64bits(p.HistogramStep)))
	putInt(int64(p.Capacity))

	putInt(int64(len(visits)))
	for _, v := range visits {
		putTime(v.Arrival)
		putTime(v.TreatmentStart)
		putTime(v.Finish)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ResultCache is a BadgerDB-backed analysis cache.
type ResultCache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens the cache described by cfg.
func Open(cfg config.CacheConfig) (*ResultCache, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for results: %w", err)
	}
	return &ResultCache{db: db, ttl: cfg.TTL}, nil
}

// Get returns the cached analysis for key, or ErrMiss.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.Analysis, error) {
	var a models.Analysis
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(analysisKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("get analysis: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	metrics.RecordCache(err == nil)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().Str("key", key).Str("cached_run_id", a.RunID).Msg("Result cache hit")
	return &a, nil
}

// Put stores a under key, expiring after the configured TTL.
func (c *ResultCache) Put(ctx context.Context, key string, a *models.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(analysisKeyPrefix+key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("set analysis: %w", err)
	}
	logging.Ctx(ctx).Debug().Str("key", key).Int("bytes", len(data)).Msg("Result cached")
	return nil
}

// Purge removes every cached analysis.
func (c *ResultCache) Purge() error {
	return c.db.DropPrefix([]byte(analysisKeyPrefix))
}

// Close closes the underlying database.
func (c *ResultCache) Close() error {
	return c.db.Close()
}
