// Package aggregate groups statement facts by dimensional key and statement age.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/okian/curvewatch/internal/domain/dimension"
	"github.com/okian/curvewatch/internal/domain/model"
)

const cancelCheckEvery = 4096

// Result holds the aggregate rows and inclusion counts.
type Result struct {
	Rows     []model.AggregateRow
	Included int
	Excluded int
	// Invalid counts included facts skipped for a NaN or infinite numeric.
	Invalid int
}

// Aggregator sums included facts per (key, age).
type Aggregator struct {
	mapper *dimension.Mapper
}

// New returns an Aggregator using the given mapper.
func New(mapper *dimension.Mapper) *Aggregator {
	if mapper == nil {
		mapper = dimension.New()
	}
	return &Aggregator{mapper: mapper}
}

type groupKey struct {
	key model.DimensionalKey
	age int
}

// sums accumulates one group.
type sums struct {
	original, open, chargedOff, closures, bkt2, cashAdvance, lateFees decimal.Decimal

	creditLimitOpen, totalBalanceOpen, principalOpen, purchaseOpen, avgOutstandingOpen decimal.Decimal
	principalChargedOff, creditLimitChargedOff                                         decimal.Decimal
}

func finiteFloat(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// finite reports whether every numeric field of f can be summed.
func finite(f model.StatementFact) bool {
	for _, v := range [...]float64{
		f.CreditLimit, f.RewardRate, f.APR,
		f.IsOpen, f.IsChargedOff, f.IsVoluntaryClosure, f.TookCashAdvance, f.LateFee,
		f.TotalBalance, f.PrincipalBalance, f.PurchaseBalance, f.AverageOutstandingBalance,
	} {
		if !finiteFloat(v) {
			return false
		}
	}
	return true
}

// dec converts v, treating NaN and infinities as zero.
func dec(v float64) decimal.Decimal {
	if !finiteFloat(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// masked is indicator×balance. A fractional indicator scales the balance.
func masked(indicator, balance float64) decimal.Decimal {
	return dec(indicator).Mul(dec(balance))
}

func (s *sums) add(f model.StatementFact, delinquency string) {
	s.original = s.original.Add(decimal.NewFromInt(1))
	s.open = s.open.Add(dec(f.IsOpen))
	s.chargedOff = s.chargedOff.Add(dec(f.IsChargedOff))
	s.closures = s.closures.Add(dec(f.IsVoluntaryClosure))
	if delinquency == "2" {
		s.bkt2 = s.bkt2.Add(decimal.NewFromInt(1))
	}
	s.cashAdvance = s.cashAdvance.Add(dec(f.TookCashAdvance))
	s.lateFees = s.lateFees.Add(dec(f.LateFee))

	s.creditLimitOpen = s.creditLimitOpen.Add(masked(f.IsOpen, f.CreditLimit))
	s.totalBalanceOpen = s.totalBalanceOpen.Add(masked(f.IsOpen, f.TotalBalance))
	s.principalOpen = s.principalOpen.Add(masked(f.IsOpen, f.PrincipalBalance))
	s.purchaseOpen = s.purchaseOpen.Add(masked(f.IsOpen, f.PurchaseBalance))
	s.avgOutstandingOpen = s.avgOutstandingOpen.Add(masked(f.IsOpen, f.AverageOutstandingBalance))
	s.principalChargedOff = s.principalChargedOff.Add(masked(f.IsChargedOff, f.PrincipalBalance))
	s.creditLimitChargedOff = s.creditLimitChargedOff.Add(masked(f.IsChargedOff, f.CreditLimit))
}

func measure(d decimal.Decimal) model.Measure {
	v, _ := d.Float64()
	return model.Some(v)
}

func (s *sums) row(g groupKey) model.AggregateRow {
	return model.AggregateRow{
		Key:                        g.key,
		StatementAge:               g.age,
		Source:                     model.SourceActual,
		OriginalStatements:         measure(s.original),
		OpenStatements:             measure(s.open),
		ChargedOffStatements:       measure(s.chargedOff),
		VoluntaryClosures:          measure(s.closures),
		Bkt2Accounts:               measure(s.bkt2),
		CashAdvanceTakers:          measure(s.cashAdvance),
		LateFees:                   measure(s.lateFees),
		CreditLimitOpen:            measure(s.creditLimitOpen),
		TotalBalanceOpen:           measure(s.totalBalanceOpen),
		PrincipalBalanceOpen:       measure(s.principalOpen),
		PurchaseBalanceOpen:        measure(s.purchaseOpen),
		AverageOutstandingOpen:     measure(s.avgOutstandingOpen),
		PrincipalBalanceChargedOff: measure(s.principalChargedOff),
		CreditLimitChargedOff:      measure(s.creditLimitChargedOff),
	}
}

// Aggregate groups included facts. Output is sorted by key and age.
func (a *Aggregator) Aggregate(ctx context.Context, facts []model.StatementFact) (*Result, error) {
	groups := make(map[groupKey]*sums)
	res := &Result{}

	for i, f := range facts {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !f.Included {
			res.Excluded++
			continue
		}
		if !finite(f) {
			res.Invalid++
			continue
		}
		res.Included++

		g := groupKey{key: a.mapper.Key(f), age: f.StatementAge}
		s, ok := groups[g]
		if !ok {
			s = &sums{}
			groups[g] = s
		}
		s.add(f, dimension.DelinquencyBucket(f.DelinquencyBucket))
	}

	res.Rows = make([]model.AggregateRow, 0, len(groups))
	total := 0
	for g, s := range groups {
		res.Rows = append(res.Rows, s.row(g))
		total += int(s.original.IntPart())
	}
	if total != res.Included {
		return nil, fmt.Errorf("%w: rows sum to %d, included %d", ErrCountMismatch, total, res.Included)
	}

	SortRows(res.Rows)
	return res, nil
}

// SortRows orders rows by key and age for presentation.
func SortRows(rows []model.AggregateRow) {
	slices.SortFunc(rows, func(a, b model.AggregateRow) int {
		return model.CompareKeyAge(a.Key, a.StatementAge, b.Key, b.StatementAge)
	})
}
