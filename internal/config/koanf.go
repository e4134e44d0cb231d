// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"patientflow.yaml",
	"patientflow.yml",
	"/etc/patientflow/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix prefixes every environment variable read into the config.
const EnvPrefix = "PATIENTFLOW_"

// sections are the top-level keys an environment variable may address.
var sections = []string{
	"input", "analysis", "synthetic", "output", "database", "cache", "server", "metrics", "logging",
}

// envAliases maps short conventional variable names to config paths.
var envAliases = map[string]string{
	"log_level":    "logging.level",
	"log_format":   "logging.format",
	"log_caller":   "logging.caller",
	"http_port":    "server.port",
	"http_host":    "server.host",
	"duckdb_path":  "database.path",
	"database_url": "input.dsn",
}

func defaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Kind:      InputSynthetic,
			Delimiter: ",",
			Timeout:   2 * time.Minute,
		},
		Analysis: AnalysisConfig{
			Width:         time.Hour,
			Timezone:      "UTC",
			Workers:       0,
			MaxBuckets:    10 * 366 * 24,
			HistogramLow:  5,
			HistogramHigh: 45,
			HistogramStep: 1,
		},
		// Two weeks of visits, as in the clinic's own sample data.
		Synthetic: SyntheticConfig{
			Count:      2000,
			Start:      "2021-01-01",
			End:        "2021-01-14",
			Seed:       1,
			WaitMin:    5 * time.Minute,
			WaitMax:    55 * time.Minute,
			TreatMin:   15 * time.Minute,
			TreatMax:   60 * time.Minute,
			Resolution: time.Minute,
		},
		Output: OutputConfig{
			Dir:         "out",
			Formats:     []string{"json"},
			Charts:      true,
			ChartWidth:  1024,
			ChartHeight: 512,
		},
		Database: DatabaseConfig{
			Enabled:   false,
			Path:      "",
			MaxMemory: "1GB",
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".patientflow-cache",
			TTL:     7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8480,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the config file, the
// environment and finally overrides, which is keyed by dotted path
// ("analysis.width") and typically holds the command-line flags the user set.
func Load(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"output.formats",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var items []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to config paths:
//
//	PATIENTFLOW_ANALYSIS_ALIGN_DAYS -> analysis.align_days
//	LOG_LEVEL                       -> logging.level
//
// Anything else is skipped so unrelated variables never reach the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if alias, ok := envAliases[key]; ok {
		return alias
	}

	rest, ok := strings.CutPrefix(key, strings.ToLower(EnvPrefix))
	if !ok {
		return ""
	}
	section, field, ok := strings.Cut(rest, "_")
	if !ok || field == "" {
		return ""
	}
	for _, s := range sections {
		if s == section {
			return section + "." + field
		}
	}
	return ""
}
