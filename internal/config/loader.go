package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

const (
	envPrefix = "CURVEWATCH_"
	envConfig = "CURVEWATCH_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CURVEWATCH_CONFIG is set
//  3. env (prefix CURVEWATCH_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(envConfig))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file layer.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CURVEWATCH_SOURCE__FACTS_PATH -> source.facts_path; comma lists become slices
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(key, envPrefix)
		key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
		if strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// mapstructure writes into existing slices index by index; drop the
	// defaults so a shorter override does not keep trailing edges.
	if k.Exists("dimension.segment_edges") {
		cfg.Dimension.SegmentEdges = nil
	}
	if k.Exists("dimension.credit_limit_edges") {
		cfg.Dimension.CreditLimitEdges = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr", "must not be empty")
	}
	if c.WorkerCount <= 0 {
		return invalid("worker_count", "must be positive, got %d", c.WorkerCount)
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size", "must be positive, got %d", c.QueueSize)
	}
	if c.MaxStatement < 0 {
		return invalid("max_statement", "must not be negative")
	}
	if c.MaxRowsLimit <= 0 {
		return invalid("max_rows_limit", "must be positive")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return invalid("schedule", "%v", err)
		}
	}

	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.FactsPath == "" {
			return invalid("source.facts_path", "required for csv source")
		}
	case SourcePostgres:
		if c.Source.DSN == "" {
			return invalid("source.dsn", "required for postgres source")
		}
	default:
		return invalid("source.kind", "unknown kind %q", c.Source.Kind)
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return invalid("store.redis_addr", "required for redis store")
		}
	default:
		return invalid("store.kind", "unknown kind %q", c.Store.Kind)
	}

	if !sort.IntsAreSorted(c.Dimension.SegmentEdges) || len(c.Dimension.SegmentEdges) == 0 {
		return invalid("dimension.segment_edges", "must be non-empty and ascending")
	}
	if !sort.Float64sAreSorted(c.Dimension.CreditLimitEdges) || len(c.Dimension.CreditLimitEdges) == 0 {
		return invalid("dimension.credit_limit_edges", "must be non-empty and ascending")
	}

	if c.Fill.LedStatements < 0 {
		return invalid("fill.led_statements", "must not be negative")
	}
	if c.Fill.ConversionFactor <= 0 {
		return invalid("fill.conversion_factor", "must be positive")
	}
	if c.Fill.RollRateFactor <= 0 {
		return invalid("fill.roll_rate_factor", "must be positive")
	}
	if c.Fill.Annualization <= 0 {
		return invalid("fill.annualization", "must be positive")
	}
	if c.Ratio.PbadScale <= 0 {
		return invalid("ratio.pbad_scale", "must be positive")
	}

	switch c.Ratio.PvolDenominator {
	case PvolCreditLimit, PvolAverageOutstanding, PvolTotalBalance:
	default:
		return invalid("ratio.pvol_denominator", "unknown denominator %q", c.Ratio.PvolDenominator)
	}
	return nil
}
