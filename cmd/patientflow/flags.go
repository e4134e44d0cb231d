// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomtom215/patientflow/internal/config"
	"github.com/tomtom215/patientflow/internal/logging"
)

// flagSet wraps flag.FlagSet and remembers which config path each flag sets,
// so only flags given on the command line override the config.
type flagSet struct {
	*flag.FlagSet
	paths      map[string]string // flag name -> config path
	values     map[string]func() any
	configPath *string
}

func newFlagSet(name string, stderr io.Writer) *flagSet {
	fs := &flagSet{
		FlagSet: flag.NewFlagSet(name, flag.ContinueOnError),
		paths:   make(map[string]string),
		values:  make(map[string]func() any),
	}
	fs.SetOutput(stderr)
	fs.configPath = fs.String("config", "", "config file (default patientflow.yaml, or $CONFIG_PATH)")
	return fs
}

func (fs *flagSet) str(name, path, usage string) {
	p := fs.String(name, "", usage)
	fs.bind(name, path, func() any { return *p })
}

func (fs *flagSet) integer(name, path, usage string) {
	p := fs.Int(name, 0, usage)
	fs.bind(name, path, func() any { return *p })
}

func (fs *flagSet) uinteger(name, path, usage string) {
	p := fs.Uint64(name, 0, usage)
	fs.bind(name, path, func() any { return *p })
}

func (fs *flagSet) boolean(name, path, usage string) {
	p := fs.Bool(name, false, usage)
	fs.bind(name, path, func() any { return *p })
}

func (fs *flagSet) duration(name, path, usage string) {
	p := fs.Duration(name, 0, usage)
	fs.bind(name, path, func() any { return *p })
}

func (fs *flagSet) bind(name, path string, value func() any) {
	fs.paths[name] = path
	fs.values[name] = value
}

// analysisFlags are shared by analyze and serve.
func (fs *flagSet) analysisFlags() {
	fs.str("input", "input.kind", "input kind: csv, parquet, duckdb, postgres or synthetic")
	fs.str("path", "input.path", "input file (csv, parquet) or DuckDB database")
	fs.str("query", "input.query", "SQL returning arrival, treatment_start, finish (duckdb, postgres)")
	fs.str("dsn", "input.dsn", "Postgres connection string")
	fs.str("time-layout", "input.time_layout", "Go time layout for CSV timestamps")
	fs.duration("width", "analysis.width", "bucket width (must divide 24h)")
	fs.str("tz", "analysis.timezone", "IANA timezone for bucketing")
	fs.integer("workers", "analysis.workers", "parallel workers (0 = all CPUs)")
	fs.boolean("align-days", "analysis.align_days", "extend the window to whole days")
	fs.boolean("strict", "analysis.strict", "fail the run if any visit is rejected")
	fs.duration("max-visit", "analysis.max_visit", "reject visits longer than this")
	fs.integer("capacity", "analysis.capacity", "patients the clinic can hold at once")
	fs.boolean("verify", "analysis.verify", "cross-check the load column with SQL (needs -db)")
	fs.integer("count", "synthetic.count", "synthetic visits")
	fs.uinteger("seed", "synthetic.seed", "synthetic seed")
	fs.str("start", "synthetic.start", "synthetic window start (YYYY-MM-DD)")
	fs.str("end", "synthetic.end", "synthetic window end (YYYY-MM-DD)")
	fs.str("cache", "cache.dir", "result cache directory (enables the cache)")
	fs.str("db", "database.path", "DuckDB run store (enables persistence)")
	fs.str("log-level", "logging.level", "trace, debug, info, warn or error")
	fs.str("log-format", "logging.format", "json or console")
	fs.str("metrics-textfile", "metrics.textfile", "write Prometheus metrics to this file after the run")
}

func (fs *flagSet) outputFlags() {
	fs.str("out", "output.dir", "report directory")
	fs.str("format", "output.formats", "comma-separated report formats: json, csv, parquet")
	fs.boolean("charts", "output.charts", "render PNG charts")
}

// load parses args and returns the layered configuration.
func (fs *flagSet) load(args []string) (*config.Config, error) {
	if err := fs.parse(args); err != nil {
		return nil, err
	}
	return fs.config(nil)
}

func (fs *flagSet) parse(args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %v\n", fs.Args())
		return errUsage
	}
	return nil
}

// config loads the configuration with the set flags applied, then forced
// on top, and initializes logging from it.
func (fs *flagSet) config(forced map[string]any) (*config.Config, error) {
	if *fs.configPath != "" {
		if _, err := os.Stat(*fs.configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := os.Setenv(config.ConfigPathEnvVar, *fs.configPath); err != nil {
			return nil, err
		}
	}

	overrides := fs.overrides()
	for k, v := range forced {
		overrides[k] = v
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    fs.Output(),
	})
	return cfg, nil
}

// overrides returns the config paths of the flags that were set.
func (fs *flagSet) overrides() map[string]any {
	out := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		path, ok := fs.paths[f.Name]
		if !ok {
			return
		}
		v := fs.values[f.Name]()
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		out[path] = v
	})
	if _, ok := out["cache.dir"]; ok {
		out["cache.enabled"] = true
	}
	if _, ok := out["database.path"]; ok {
		out["database.enabled"] = true
	}
	return out
}
