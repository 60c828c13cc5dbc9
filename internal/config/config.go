// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Nested sections map to dotted koanf keys (source.facts_path, ratio.pbad_scale).
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/curvewatch/internal/domain/dimension"
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Pvol denominators.
const (
	PvolCreditLimit        = "credit_limit"
	PvolAverageOutstanding = "average_outstanding"
	PvolTotalBalance       = "total_balance"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of fill workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the partition queue.
	QueueSize int `koanf:"queue_size"`

	// Schedule is a cron expression for reruns. Empty runs once.
	Schedule string `koanf:"schedule"`

	// MaxStatement caps grid extension. Zero means no cap.
	MaxStatement int `koanf:"max_statement"`

	// MaxRowsLimit caps GET /metrics-rows?limit.
	MaxRowsLimit int `koanf:"max_rows_limit"`

	Source       SourceConfig       `koanf:"source"`
	Sink         SinkConfig         `koanf:"sink"`
	Store        StoreConfig        `koanf:"store"`
	Dimension    DimensionConfig    `koanf:"dimension"`
	Fill         FillConfig         `koanf:"fill"`
	Ratio        RatioConfig        `koanf:"ratio"`
	Presentation PresentationConfig `koanf:"presentation"`
}

// SourceConfig selects where facts and assumptions are read from.
type SourceConfig struct {
	Kind             string `koanf:"kind"`
	FactsPath        string `koanf:"facts_path"`
	AssumptionsPath  string `koanf:"assumptions_path"`
	DSN              string `koanf:"dsn"`
	FactsTable       string `koanf:"facts_table"`
	AssumptionsTable string `koanf:"assumptions_table"`
}

// SinkConfig lists optional outputs. Empty paths disable the sink.
type SinkConfig struct {
	CSVPath        string `koanf:"csv_path"`
	JSONPath       string `koanf:"json_path"`
	RawPath        string `koanf:"raw_path"`
	PostgresDSN    string `koanf:"postgres_dsn"`
	PostgresSchema string `koanf:"postgres_schema"`
	RunTag         string `koanf:"run_tag"`
}

// StoreConfig selects the latest-run store backing the read API.
type StoreConfig struct {
	Kind          string        `koanf:"kind"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	RedisKey      string        `koanf:"redis_key"`
	TTL           time.Duration `koanf:"ttl"`
}

// DimensionConfig holds bucketing edges.
type DimensionConfig struct {
	SegmentEdges     []int     `koanf:"segment_edges"`
	CreditLimitEdges []float64 `koanf:"credit_limit_edges"`
	APRThreshold     float64   `koanf:"apr_threshold"`
}

// Mapper builds a dimension mapper from the configured edges.
func (d DimensionConfig) Mapper() *dimension.Mapper {
	return dimension.New(
		dimension.WithSegmentEdges(d.SegmentEdges),
		dimension.WithCreditLimitEdges(d.CreditLimitEdges),
		dimension.WithAPRThreshold(d.APRThreshold),
	)
}

// FillConfig holds the delinquency forecast parameters.
type FillConfig struct {
	LedStatements    int     `koanf:"led_statements"`
	ConversionFactor float64 `koanf:"conversion_factor"`
	RollRateFactor   float64 `koanf:"roll_rate_factor"`
	Annualization    float64 `koanf:"annualization"`
}

// RatioConfig holds the ratio variants.
type RatioConfig struct {
	PbadScale       float64 `koanf:"pbad_scale"`
	PvolDenominator string  `koanf:"pvol_denominator"`
}

// PresentationConfig controls output formatting.
type PresentationConfig struct {
	ClampNegative bool `koanf:"clamp_negative"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		WorkerCount:  runtime.NumCPU(),
		QueueSize:    10_000,
		MaxStatement: 0,
		MaxRowsLimit: 1000,
		Source: SourceConfig{
			Kind:             SourceCSV,
			FactsPath:        "data/facts.csv",
			AssumptionsPath:  "data/assumptions.csv",
			FactsTable:       "statement_facts",
			AssumptionsTable: "assumption_curves",
		},
		Sink: SinkConfig{
			PostgresSchema: "curvewatch",
		},
		Store: StoreConfig{
			Kind:     StoreMemory,
			RedisKey: "curvewatch:latest",
			TTL:      24 * time.Hour,
		},
		Dimension: DimensionConfig{
			SegmentEdges:     []int{12, 24},
			CreditLimitEdges: []float64{300, 500, 1000, 2000, 4000, 6000, 8000},
			APRThreshold:     0.15,
		},
		Fill: FillConfig{
			LedStatements:    6,
			ConversionFactor: 0.65,
			RollRateFactor:   0.91,
			Annualization:    12,
		},
		Ratio: RatioConfig{
			PbadScale:       12,
			PvolDenominator: PvolCreditLimit,
		},
		Presentation: PresentationConfig{
			ClampNegative: true,
		},
	}
}
