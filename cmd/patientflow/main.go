// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

// Command patientflow analyzes clinic patient flow: arrivals, waiting time
// and occupancy per hour and per weekday.
//
// # Commands
//
//	patientflow [analyze] [flags]   run one analysis and write reports
//	patientflow generate -out FILE  write synthetic visits (.csv or .parquet)
//	patientflow serve [flags]       run the analysis and serve it over HTTP
//
// # Configuration
//
// Settings are layered, highest priority last:
//   - built-in defaults
//   - patientflow.yaml (or the file named by CONFIG_PATH / -config)
//   - PATIENTFLOW_<SECTION>_<KEY> environment variables
//   - command-line flags
//
// # Examples
//
// Two weeks of synthetic visits, reports in ./out:
//
//	patientflow -format json,csv -charts
//
// A clinic export in Copenhagen time with the original column names:
//
//	patientflow -input csv -path visits.csv -tz Europe/Copenhagen -align-days
//
// Persist runs and cross-check the load column in DuckDB:
//
//	patientflow -db runs.duckdb -verify
//
// # Exit Codes
//
// 0 on success, 1 on any fatal error, 2 on invalid usage. Rejected visits
// alone do not fail a run unless -strict is given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// errUsage marks errors caused by invalid command-line input.
var errUsage = errors.New("usage")

// run dispatches to a subcommand and maps its error to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	name := "analyze"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		name, args = args[0], args[1:]
	}

	var err error
	switch name {
	case "analyze":
		err = runAnalyze(ctx, args, stdout, stderr)
	case "generate":
		err = runGenerate(ctx, args, stdout, stderr)
	case "serve":
		err = runServe(ctx, args, stderr)
	case "help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "patientflow: unknown command %q\n\n", name)
		printUsage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		fmt.Fprintf(stderr, "patientflow: %v\n", err)
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `patientflow - clinic patient-flow load analytics

Usage:
  patientflow [analyze] [flags]    run one analysis and write reports
  patientflow generate -out FILE   write synthetic visits as .csv or .parquet
  patientflow serve [flags]        analyze, then serve the result over HTTP

Run "patientflow <command> -h" for the flags of a command.
`)
}
