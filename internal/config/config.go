// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Package config loads patientflow configuration.
//
// Values are layered with koanf, lowest priority first:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH, patientflow.yaml, /etc/patientflow/config.yaml)
//  3. environment variables, PATIENTFLOW_<SECTION>_<KEY> plus a few short aliases
//  4. command-line overrides supplied by the caller
//
// Example:
//
//	PATIENTFLOW_INPUT_KIND=csv PATIENTFLOW_INPUT_PATH=visits.csv \
//	PATIENTFLOW_ANALYSIS_TIMEZONE=Europe/Copenhagen patientflow analyze
package config

import (
	"net"
	"strconv"
	"time"
)

// Input kinds.
const (
	InputCSV       = "csv"
	InputParquet   = "parquet"
	InputDuckDB    = "duckdb"
	InputPostgres  = "postgres"
	InputSynthetic = "synthetic"
)

// Config is the complete application configuration.
type Config struct {
	Input     InputConfig     `koanf:"input"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Synthetic SyntheticConfig `koanf:"synthetic"`
	Output    OutputConfig    `koanf:"output"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// InputConfig selects where visits are read from.
type InputConfig struct {
	Kind string `koanf:"kind"` // csv, parquet, duckdb, postgres or synthetic
	Path string `koanf:"path"` // csv and parquet file, duckdb database file ("" = in-memory)

	// Query returns arrival, treatment_start and finish columns (duckdb, postgres).
	Query string `koanf:"query"`

	// DSN is the Postgres connection string.
	DSN string `koanf:"dsn"`

	// CSV column names. Empty means auto-detect from the header.
	ArrivalColumn   string `koanf:"arrival_column"`
	TreatmentColumn string `koanf:"treatment_column"`
	FinishColumn    string `koanf:"finish_column"`

	// TimeLayout forces a single Go time layout for CSV values.
	TimeLayout string `koanf:"time_layout"`
	Delimiter  string `koanf:"delimiter"`

	Timeout time.Duration `koanf:"timeout"` // database sources
}

// AnalysisConfig controls the flow engine.
type AnalysisConfig struct {
	Width      time.Duration `koanf:"width"`
	Timezone   string        `koanf:"timezone"`
	Workers    int           `koanf:"workers"` // 0 = runtime.NumCPU()
	AlignDays  bool          `koanf:"align_days"`
	MaxBuckets int64         `koanf:"max_buckets"`

	// Strict turns any rejected visit into a failed run.
	Strict bool `koanf:"strict"`

	// MaxVisit rejects visits longer than this. 0 disables the check.
	MaxVisit time.Duration `koanf:"max_visit"`

	// Histogram bins for waiting time, in minutes.
	HistogramLow  float64 `koanf:"histogram_low"`
	HistogramHigh float64 `koanf:"histogram_high"`
	HistogramStep float64 `koanf:"histogram_step"`

	// Capacity is the number of patients the clinic can hold at once.
	// 0 leaves it unknown.
	Capacity int `koanf:"capacity"`

	// Verify cross-checks the load column against SQL in the store.
	Verify bool `koanf:"verify"`
}

// SyntheticConfig parameterizes the synthetic visit generator.
type SyntheticConfig struct {
	Count      int           `koanf:"count"`
	Start      string        `koanf:"start"` // YYYY-MM-DD in analysis.timezone
	End        string        `koanf:"end"`
	Seed       uint64        `koanf:"seed"`
	WaitMin    time.Duration `koanf:"wait_min"`
	WaitMax    time.Duration `koanf:"wait_max"`
	TreatMin   time.Duration `koanf:"treat_min"`
	TreatMax   time.Duration `koanf:"treat_max"`
	Resolution time.Duration `koanf:"resolution"`
}

// OutputConfig controls reports written after a run.
type OutputConfig struct {
	Dir     string   `koanf:"dir"`
	Formats []string `koanf:"formats"` // json, csv, parquet
	Charts  bool     `koanf:"charts"`

	// ChartWidth and ChartHeight are in pixels.
	ChartWidth  int `koanf:"chart_width"`
	ChartHeight int `koanf:"chart_height"`
}

// DatabaseConfig configures the DuckDB run store.
type DatabaseConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"` // "" or ":memory:" for in-memory
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// CacheConfig configures the BadgerDB result cache.
type CacheConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"` // 0 = no expiry
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// Refresh reruns the analysis in serve mode. 0 runs it once at startup.
	Refresh time.Duration `koanf:"refresh"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`

	// Textfile is written after a batch run for the node-exporter textfile
	// collector. Empty disables it.
	Textfile string `koanf:"textfile"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Location resolves analysis.timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the listen address for serve mode.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
