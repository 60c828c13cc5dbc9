// Package batch runs the pipeline once from the command line and writes
// the configured outputs.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	service "github.com/okian/curvewatch/internal/app"
	"github.com/okian/curvewatch/internal/config"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/pkg/logger"
)

// ErrNoOutput is returned when a run would produce nothing but the summary.
var ErrNoOutput = errors.New("no output configured: set -csv-out, -json-out, -raw-out or -pg-dsn")

// Summary is printed to stdout after a successful run.
type Summary struct {
	RunID    string         `json:"run_id"`
	Tag      string         `json:"tag,omitempty"`
	Duration string         `json:"duration"`
	Variant  model.Variant  `json:"variant"`
	Stats    model.RunStats `json:"stats"`
}

type flags struct {
	config       string
	facts        string
	assumptions  string
	sourceDSN    string
	csvOut       string
	jsonOut      string
	rawOut       string
	pgDSN        string
	pgSchema     string
	tag          string
	pvol         string
	pbadScale    float64
	maxStatement int
	workers      int
	clamp        bool
	allowEmpty   bool
}

func parse(args []string, stderr io.Writer) (*flags, map[string]bool, error) {
	f := &flags{}
	fs := flag.NewFlagSet("curvewatch-run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "YAML config file (defaults to $CURVEWATCH_CONFIG)")
	fs.StringVar(&f.facts, "facts", "", "Statement facts CSV")
	fs.StringVar(&f.assumptions, "assumptions", "", "Assumption curves CSV")
	fs.StringVar(&f.sourceDSN, "source-dsn", "", "Read facts and assumptions from PostgreSQL instead of CSV")
	fs.StringVar(&f.csvOut, "csv-out", "", "Write metric rows as CSV")
	fs.StringVar(&f.jsonOut, "json-out", "", "Write the run as JSON")
	fs.StringVar(&f.rawOut, "raw-out", "", "Write filled aggregate rows as CSV")
	fs.StringVar(&f.pgDSN, "pg-dsn", "", "Write metric rows to PostgreSQL")
	fs.StringVar(&f.pgSchema, "pg-schema", "", "PostgreSQL schema for -pg-dsn")
	fs.StringVar(&f.tag, "tag", "", "Tag stored with the run")
	fs.StringVar(&f.pvol, "pvol", "", "Pvol denominator: credit_limit, average_outstanding or total_balance")
	fs.Float64Var(&f.pbadScale, "pbad-scale", 0, "Multiplier applied to the charge-off rate")
	fs.IntVar(&f.maxStatement, "max-statement", 0, "Cap on statements added by grid extension (0 = none)")
	fs.IntVar(&f.workers, "workers", 0, "Fill workers")
	fs.BoolVar(&f.clamp, "clamp", true, "Clamp negative presented ratios to zero")
	fs.BoolVar(&f.allowEmpty, "allow-no-output", false, "Run even when no output is configured")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply overlays explicitly set flags on the loaded config.
func (f *flags) apply(cfg *config.Config, set map[string]bool) {
	if set["facts"] {
		cfg.Source.Kind = config.SourceCSV
		cfg.Source.FactsPath = f.facts
	}
	if set["assumptions"] {
		cfg.Source.AssumptionsPath = f.assumptions
	}
	if set["source-dsn"] {
		cfg.Source.Kind = config.SourcePostgres
		cfg.Source.DSN = f.sourceDSN
	}
	if set["csv-out"] {
		cfg.Sink.CSVPath = f.csvOut
	}
	if set["json-out"] {
		cfg.Sink.JSONPath = f.jsonOut
	}
	if set["raw-out"] {
		cfg.Sink.RawPath = f.rawOut
	}
	if set["pg-dsn"] {
		cfg.Sink.PostgresDSN = f.pgDSN
	}
	if set["pg-schema"] {
		cfg.Sink.PostgresSchema = f.pgSchema
	}
	if set["tag"] {
		cfg.Sink.RunTag = f.tag
	}
	if set["pvol"] {
		cfg.Ratio.PvolDenominator = f.pvol
	}
	if set["pbad-scale"] {
		cfg.Ratio.PbadScale = f.pbadScale
	}
	if set["max-statement"] {
		cfg.MaxStatement = f.maxStatement
	}
	if set["workers"] {
		cfg.WorkerCount = f.workers
	}
	if set["clamp"] {
		cfg.Presentation.ClampNegative = f.clamp
	}
	// one-shot runs never schedule
	cfg.Schedule = ""
}

func hasOutput(cfg *config.Config) bool {
	s := cfg.Sink
	return s.CSVPath != "" || s.JSONPath != "" || s.RawPath != "" || s.PostgresDSN != ""
}

// Run parses args, runs the pipeline once, and prints a JSON summary to stdout.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, set, err := parse(args, stderr)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if f.config != "" {
		cfg, err = config.LoadFile(ctx, f.config)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return err
	}
	f.apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !hasOutput(cfg) && !f.allowEmpty {
		return ErrNoOutput
	}

	log := logger.Get().Named("batch")

	loader, closeLoader, err := service.OpenLoader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer closeLoader()

	out, closeSink, err := service.OpenSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer closeSink()

	svc, err := service.New(cfg,
		service.WithLoader(loader),
		service.WithSink(out),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}

	run, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	summary := Summary{
		RunID:    run.RunID,
		Tag:      run.Tag,
		Duration: run.FinishedAt.Sub(run.StartedAt).String(),
		Variant:  run.Variant,
		Stats:    run.Stats,
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
