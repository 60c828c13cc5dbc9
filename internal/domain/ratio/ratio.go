// Package ratio converts filled aggregate rows into presentation ratios.
package ratio

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Pvol denominator variants.
const (
	PvolCreditLimit        = "credit_limit"
	PvolAverageOutstanding = "average_outstanding"
	PvolTotalBalance       = "total_balance"
)

// ErrUnknownDenominator is returned for an unsupported Pvol variant.
var ErrUnknownDenominator = errors.New("ratio: unknown pvol denominator")

// SafeDiv returns n/d, or 0 when either side is absent or d is not positive.
func SafeDiv(n, d model.Measure) float64 {
	if !n.Valid || !d.Valid || d.Value <= 0 {
		return 0
	}
	v := n.Value / d.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithPvolDenominator selects the purchase-volume denominator.
func WithPvolDenominator(name string) Option {
	return func(c *Calculator) {
		if name != "" {
			c.pvol = name
		}
	}
}

// Calculator computes MetricRows.
type Calculator struct {
	pvol string
}

// New builds a Calculator; the Pvol variant is validated here.
func New(opts ...Option) (*Calculator, error) {
	c := &Calculator{pvol: PvolCreditLimit}
	for _, opt := range opts {
		opt(c)
	}
	switch c.pvol {
	case PvolCreditLimit, PvolAverageOutstanding, PvolTotalBalance:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDenominator, c.pvol)
	}
	return c, nil
}

// PvolDenominator returns the configured variant.
func (c *Calculator) PvolDenominator() string { return c.pvol }

func (c *Calculator) pvolDenominator(r *model.AggregateRow) model.Measure {
	switch c.pvol {
	case PvolAverageOutstanding:
		return r.AverageOutstandingOpen
	case PvolTotalBalance:
		return r.TotalBalanceOpen
	default:
		return r.CreditLimitOpen
	}
}

// Compute derives every ratio for one row.
func (c *Calculator) Compute(j model.JoinedRow) model.MetricRow {
	r := &j.AggregateRow
	open := r.OpenStatements
	return model.MetricRow{
		Key:                  r.Key,
		StatementAge:         r.StatementAge,
		Source:               r.Source,
		OriginalStatements:   r.OriginalStatements.Or(0),
		OpenStatements:       open.Or(0),
		ChargedOffStatements: r.ChargedOffStatements.Or(0),

		Pbad:        SafeDiv(r.PbadNumerator, open),
		Severity:    SafeDiv(r.PrincipalBalanceChargedOff, r.ChargedOffStatements),
		Utilization: SafeDiv(r.TotalBalanceOpen, r.CreditLimitOpen),
		CreditLine:  SafeDiv(r.CreditLimitOpen, open),
		DQ30:        SafeDiv(r.Bkt2Accounts, open),
		CashAdvance: SafeDiv(r.CashAdvanceTakers, open),
		Penalty:     SafeDiv(r.LateFees, open),
		Pvol:        SafeDiv(r.PurchaseBalanceOpen, c.pvolDenominator(r)),
		Attrition:   SafeDiv(r.VoluntaryClosures, open),
		RevolveRate: SafeDiv(r.PurchaseBalanceOpen, r.AverageOutstandingOpen),
		Outstanding: r.AverageOutstandingOpen.Or(0),

		Assumption: j.Assumption,
	}
}

// ComputeAll maps Compute over rows, preserving order.
func (c *Calculator) ComputeAll(rows []model.JoinedRow) []model.MetricRow {
	out := make([]model.MetricRow, len(rows))
	for i := range rows {
		out[i] = c.Compute(rows[i])
	}
	return out
}

func floor(v float64) float64 { return math.Max(v, 0) }

// Clamp floors negative ratios at zero for presentation. The row is kept.
func Clamp(r model.MetricRow) model.MetricRow {
	r.Pbad = floor(r.Pbad)
	r.Severity = floor(r.Severity)
	r.Utilization = floor(r.Utilization)
	r.CreditLine = floor(r.CreditLine)
	r.DQ30 = floor(r.DQ30)
	r.CashAdvance = floor(r.CashAdvance)
	r.Penalty = floor(r.Penalty)
	r.Pvol = floor(r.Pvol)
	r.Attrition = floor(r.Attrition)
	r.RevolveRate = floor(r.RevolveRate)
	r.Outstanding = floor(r.Outstanding)
	return r
}

// ClampAll applies Clamp to a copy of rows.
func ClampAll(rows []model.MetricRow) []model.MetricRow {
	out := make([]model.MetricRow, len(rows))
	for i, r := range rows {
		out[i] = Clamp(r)
	}
	return out
}
