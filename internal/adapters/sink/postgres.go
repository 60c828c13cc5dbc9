package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/curvewatch/internal/domain/model"
)

// ErrInvalidSchema is returned for schema names that are not plain identifiers.
var ErrInvalidSchema = errors.New("sink: invalid schema name")

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DB is the subset of pgxpool.Pool used by the Postgres sink.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres stores runs and their metric rows.
type Postgres struct {
	db     DB
	schema string
	tag    string
}

// NewPostgres validates the schema name and returns a sink.
func NewPostgres(db DB, schema, tag string) (*Postgres, error) {
	if !schemaPattern.MatchString(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	return &Postgres{db: db, schema: schema, tag: tag}, nil
}

// MetricColumns lists the metric_rows columns in copy order.
var MetricColumns = []string{
	"run_id", "series", "segment", "risk_group", "util_group", "eligibility",
	"rewards_type", "apr_type", "credit_limit_bucket", "clip_amount_group",
	"statement_age", "source", "original_statements", "open_statements",
	"charged_off_statements", "pbad", "severity", "utilization", "credit_line",
	"dq30", "cash_advance", "penalty", "pvol", "attrition", "revolve_rate",
	"outstanding", "pbad_assumption", "severity_assumption",
	"utilization_assumption", "credit_line_assumption", "cash_advance_assumption",
	"penalty_assumption", "pvol_assumption", "attrition_assumption",
	"outstanding_assumption", "revolve_rate_assumption",
}

// EnsureSchema creates the schema and tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, p.schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.runs (
			id uuid PRIMARY KEY,
			run_tag text,
			started_at timestamptz NOT NULL,
			finished_at timestamptz NOT NULL,
			pbad_scale double precision NOT NULL,
			pvol_denominator text NOT NULL,
			facts_read integer NOT NULL,
			facts_included integer NOT NULL,
			facts_excluded integer NOT NULL,
			facts_invalid integer NOT NULL,
			duplicate_statements integer NOT NULL,
			unmatched integer NOT NULL,
			output_rows integer NOT NULL
		)`, p.schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.metric_rows (
			run_id uuid NOT NULL REFERENCES %s.runs(id) ON DELETE CASCADE,
			series text NOT NULL,
			segment text NOT NULL,
			risk_group text NOT NULL,
			util_group text NOT NULL,
			eligibility text NOT NULL,
			rewards_type text NOT NULL,
			apr_type text NOT NULL,
			credit_limit_bucket text NOT NULL,
			clip_amount_group text NOT NULL,
			statement_age integer NOT NULL,
			source text NOT NULL,
			original_statements double precision NOT NULL,
			open_statements double precision NOT NULL,
			charged_off_statements double precision NOT NULL,
			pbad double precision NOT NULL,
			severity double precision NOT NULL,
			utilization double precision NOT NULL,
			credit_line double precision NOT NULL,
			dq30 double precision NOT NULL,
			cash_advance double precision NOT NULL,
			penalty double precision NOT NULL,
			pvol double precision NOT NULL,
			attrition double precision NOT NULL,
			revolve_rate double precision NOT NULL,
			outstanding double precision NOT NULL,
			pbad_assumption double precision,
			severity_assumption double precision,
			utilization_assumption double precision,
			credit_line_assumption double precision,
			cash_advance_assumption double precision,
			penalty_assumption double precision,
			pvol_assumption double precision,
			attrition_assumption double precision,
			outstanding_assumption double precision,
			revolve_rate_assumption double precision
		)`, p.schema, p.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS metric_rows_run_idx ON %s.metric_rows (run_id)`, p.schema),
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func assumptionValue(a *model.AssumptionRow, get func(*model.AssumptionRow) model.Measure) *float64 {
	if a == nil {
		return nil
	}
	return get(a).Ptr()
}

func metricValues(runID uuid.UUID, r model.MetricRow) []any {
	a := r.Assumption
	return []any{
		runID, r.Key.Series, r.Key.Segment, r.Key.RiskGroup, r.Key.UtilGroup, r.Key.Eligibility,
		r.Key.RewardsType, r.Key.APRType, r.Key.CreditLimitBucket, r.Key.ClipAmountGroup,
		r.StatementAge, string(r.Source), r.OriginalStatements, r.OpenStatements,
		r.ChargedOffStatements, r.Pbad, r.Severity, r.Utilization, r.CreditLine,
		r.DQ30, r.CashAdvance, r.Penalty, r.Pvol, r.Attrition, r.RevolveRate,
		r.Outstanding,
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Pbad }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Severity }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Utilization }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.CreditLine }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.CashAdvance }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Penalty }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Pvol }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Attrition }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.Outstanding }),
		assumptionValue(a, func(a *model.AssumptionRow) model.Measure { return a.RevolveRate }),
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// WriteRun inserts the run header and copies its rows in one transaction.
func (p *Postgres) WriteRun(ctx context.Context, run *model.Run) (err error) {
	if run == nil {
		return ErrNoRun
	}
	runID, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.RunID, err)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag := p.tag
	if run.Tag != "" {
		tag = run.Tag
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.runs (
			id, run_tag, started_at, finished_at, pbad_scale, pvol_denominator,
			facts_read, facts_included, facts_excluded, facts_invalid,
			duplicate_statements, unmatched, output_rows
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,
			$11,$12,$13
		)`, p.schema),
		runID, nullString(tag), run.StartedAt, run.FinishedAt,
		run.Variant.PbadScale, run.Variant.PvolDenominator,
		run.Stats.FactsRead, run.Stats.FactsIncluded, run.Stats.FactsExcluded, run.Stats.FactsInvalid,
		run.Stats.DuplicateStatements, run.Stats.Unmatched, run.Stats.OutputRows,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := Present(run)
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{p.schema, "metric_rows"},
		MetricColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return metricValues(runID, rows[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy metric rows: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
