// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package config

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of synthetic.start and synthetic.end.
const DateLayout = "2006-01-02"

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateInput,
		c.validateAnalysis,
		c.validateSynthetic,
		c.validateOutput,
		c.validateCache,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateInput() error {
	in := c.Input
	switch in.Kind {
	case InputCSV, InputParquet:
		if in.Path == "" {
			return fmt.Errorf("input.path is required for input.kind=%s", in.Kind)
		}
	case InputDuckDB:
		if in.Query == "" {
			return fmt.Errorf("input.query is required for input.kind=duckdb")
		}
	case InputPostgres:
		if in.DSN == "" {
			return fmt.Errorf("input.dsn is required for input.kind=postgres")
		}
		if in.Query == "" {
			return fmt.Errorf("input.query is required for input.kind=postgres")
		}
	case InputSynthetic:
	default:
		return fmt.Errorf("input.kind must be one of: csv, parquet, duckdb, postgres, synthetic (got %q)", in.Kind)
	}
	if len([]rune(in.Delimiter)) != 1 {
		return fmt.Errorf("input.delimiter must be a single character")
	}
	if in.Timeout <= 0 {
		return fmt.Errorf("input.timeout must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if err := validateWidth(a.Width); err != nil {
		return err
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("analysis.timezone %q: %w", a.Timezone, err)
	}
	if a.Workers < 0 {
		return fmt.Errorf("analysis.workers must be >= 0")
	}
	if a.MaxBuckets <= 0 {
		return fmt.Errorf("analysis.max_buckets must be positive")
	}
	if a.MaxVisit < 0 {
		return fmt.Errorf("analysis.max_visit must be >= 0")
	}
	if a.HistogramStep <= 0 || a.HistogramHigh <= a.HistogramLow {
		return fmt.Errorf("analysis histogram needs histogram_step > 0 and histogram_high > histogram_low")
	}
	if a.Capacity < 0 {
		return fmt.Errorf("analysis.capacity must be >= 0")
	}
	if a.Verify && !c.Database.Enabled {
		return fmt.Errorf("analysis.verify requires database.enabled=true")
	}
	return nil
}

func validateWidth(w time.Duration) error {
	if w <= 0 || w%time.Second != 0 || (24*time.Hour)%w != 0 {
		return fmt.Errorf("analysis.width must be a positive whole number of seconds dividing 24h (got %s)", w)
	}
	return nil
}

// validateSynthetic only applies when the synthetic source is selected.
func (c *Config) validateSynthetic() error {
	if c.Input.Kind != InputSynthetic {
		return nil
	}
	s := c.Synthetic
	if s.Count < 0 {
		return fmt.Errorf("synthetic.count must be >= 0")
	}
	start, err := time.Parse(DateLayout, s.Start)
	if err != nil {
		return fmt.Errorf("synthetic.start: %w", err)
	}
	end, err := time.Parse(DateLayout, s.End)
	if err != nil {
		return fmt.Errorf("synthetic.end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("synthetic.end must be after synthetic.start")
	}
	if s.WaitMin < 0 || s.WaitMax < s.WaitMin {
		return fmt.Errorf("synthetic wait range is invalid: [%s, %s]", s.WaitMin, s.WaitMax)
	}
	if s.TreatMin < 0 || s.TreatMax < s.TreatMin {
		return fmt.Errorf("synthetic treatment range is invalid: [%s, %s]", s.TreatMin, s.TreatMax)
	}
	if s.Resolution <= 0 {
		return fmt.Errorf("synthetic.resolution must be positive")
	}
	return nil
}

var validFormats = map[string]bool{
	"json":    true,
	"csv":     true,
	"parquet": true,
}

func (c *Config) validateOutput() error {
	o := c.Output
	for _, f := range o.Formats {
		if !validFormats[strings.ToLower(f)] {
			return fmt.Errorf("output.formats: unknown format %q (want json, csv or parquet)", f)
		}
	}
	if (len(o.Formats) > 0 || o.Charts) && o.Dir == "" {
		return fmt.Errorf("output.dir is required when writing reports")
	}
	if o.Charts && (o.ChartWidth <= 0 || o.ChartHeight <= 0) {
		return fmt.Errorf("output chart dimensions must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && !c.Cache.InMemory && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required unless cache.in_memory=true")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0")
	}
	return nil
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if s.RateLimitReqs <= 0 || s.RateLimitWindow <= 0 {
		return fmt.Errorf("server rate limit needs rate_limit_reqs > 0 and rate_limit_window > 0")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if s.Refresh < 0 {
		return fmt.Errorf("server.refresh must be >= 0")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace":    true,
	"debug":    true,
	"info":     true,
	"warn":     true,
	"error":    true,
	"disabled": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}
	return nil
}

// SyntheticRange returns the synthetic window in the analysis timezone.
func (c *Config) SyntheticRange() (start, end time.Time, err error) {
	loc := c.Location()
	if start, err = time.ParseInLocation(DateLayout, c.Synthetic.Start, loc); err != nil {
		return start, end, fmt.Errorf("synthetic.start: %w", err)
	}
	if end, err = time.ParseInLocation(DateLayout, c.Synthetic.End, loc); err != nil {
		return start, end, fmt.Errorf("synthetic.end: %w", err)
	}
	return start, end, nil
}
