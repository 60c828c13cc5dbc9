package source

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Querier is the subset of pgxpool.Pool used by the Postgres source.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Postgres reads facts and assumptions from tables.
type Postgres struct {
	db               Querier
	factsTable       string
	assumptionsTable string
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrOpen, err)
	}
	return pool, nil
}

// NewPostgresWithQuerier builds a source over any Querier, e.g. a pool or pgxmock.
func NewPostgresWithQuerier(db Querier, factsTable, assumptionsTable string) *Postgres {
	return &Postgres{db: db, factsTable: factsTable, assumptionsTable: assumptionsTable}
}

func ident(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// FactsQuery returns the SELECT used for facts.
func FactsQuery(table string) string {
	return `SELECT account_id, statement_age, risk_series, risk_group, util_group,
	COALESCE(clip_amount_group, ''), COALESCE(cohort, ''), credit_limit,
	COALESCE(eligible, false), COALESCE(reward_rate, 0), COALESCE(apr, 0),
	COALESCE(delinquency_bucket, 0), is_open, is_charged_off,
	COALESCE(is_voluntary_closure, 0), COALESCE(took_cash_advance, 0), COALESCE(late_fee, 0),
	COALESCE(total_balance, 0), COALESCE(principal_balance, 0), COALESCE(purchase_balance, 0),
	COALESCE(average_outstanding_balance, 0), included
FROM ` + ident(table)
}

// AssumptionsQuery returns the SELECT used for assumptions.
func AssumptionsQuery(table string) string {
	return `SELECT series, segment, risk_group, util_group, credit_line_bucket,
	statement_number, clip_amount_group,
	pbad, severity, utilization, credit_line, cash_advance, penalty, pvol,
	attrition, outstanding, revolve_rate
FROM ` + ident(table)
}

// Facts reads every fact row.
func (p *Postgres) Facts(ctx context.Context) ([]model.StatementFact, Stats, error) {
	rows, err := p.db.Query(ctx, FactsQuery(p.factsTable))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var (
		facts []model.StatementFact
		st    Stats
	)
	for rows.Next() {
		var f model.StatementFact
		if err := rows.Scan(
			&f.AccountID, &f.StatementAge, &f.RiskSeries, &f.RiskGroup, &f.UtilGroup,
			&f.ClipAmountGroup, &f.Cohort, &f.CreditLimit,
			&f.Eligible, &f.RewardRate, &f.APR,
			&f.DelinquencyBucket, &f.IsOpen, &f.IsChargedOff,
			&f.IsVoluntaryClosure, &f.TookCashAdvance, &f.LateFee,
			&f.TotalBalance, &f.PrincipalBalance, &f.PurchaseBalance,
			&f.AverageOutstandingBalance, &f.Included,
		); err != nil {
			return nil, st, fmt.Errorf("scan fact: %w", err)
		}
		st.Read++
		// double precision columns accept 'NaN' and 'Infinity'
		if !finite(
			f.CreditLimit, f.RewardRate, f.APR,
			f.IsOpen, f.IsChargedOff, f.IsVoluntaryClosure, f.TookCashAdvance, f.LateFee,
			f.TotalBalance, f.PrincipalBalance, f.PurchaseBalance, f.AverageOutstandingBalance,
		) {
			st.Invalid++
			continue
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, st, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, st, nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finiteMetrics(vals []*float64) bool {
	for _, v := range vals {
		if v != nil && !finite(*v) {
			return false
		}
	}
	return true
}

func measure(v *float64) model.Measure {
	if v == nil {
		return model.None()
	}
	return model.Some(*v)
}

// Assumptions reads every assumption row. NULL ratios are absent.
func (p *Postgres) Assumptions(ctx context.Context) ([]model.AssumptionRow, Stats, error) {
	if p.assumptionsTable == "" {
		return nil, Stats{}, nil
	}
	rows, err := p.db.Query(ctx, AssumptionsQuery(p.assumptionsTable))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("query assumptions: %w", err)
	}
	defer rows.Close()

	var (
		out []model.AssumptionRow
		st  Stats
	)
	for rows.Next() {
		var (
			a       model.AssumptionRow
			metrics [10]*float64
		)
		if err := rows.Scan(
			&a.Key.Series, &a.Key.Segment, &a.Key.RiskGroup, &a.Key.UtilGroup,
			&a.Key.CreditLineBucket, &a.Key.StatementNumber, &a.Key.ClipAmountGroup,
			&metrics[0], &metrics[1], &metrics[2], &metrics[3], &metrics[4],
			&metrics[5], &metrics[6], &metrics[7], &metrics[8], &metrics[9],
		); err != nil {
			return nil, st, fmt.Errorf("scan assumption: %w", err)
		}
		st.Read++
		if !finiteMetrics(metrics[:]) {
			st.Invalid++
			continue
		}
		a.Pbad = measure(metrics[0])
		a.Severity = measure(metrics[1])
		a.Utilization = measure(metrics[2])
		a.CreditLine = measure(metrics[3])
		a.CashAdvance = measure(metrics[4])
		a.Penalty = measure(metrics[5])
		a.Pvol = measure(metrics[6])
		a.Attrition = measure(metrics[7])
		a.Outstanding = measure(metrics[8])
		a.RevolveRate = measure(metrics[9])
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, st, fmt.Errorf("iterate assumptions: %w", err)
	}
	return out, st, nil
}
