// Package profile summarises metric rows for data-quality review and
// compares actual ratios with their assumption counterparts.
package profile

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/okian/curvewatch/internal/domain/model"
)

const (
	// distinctLimit is the distinct-value count above which a column is bucketed by range.
	distinctLimit = 50
	rangeBuckets  = 8
)

type numericColumn struct {
	name string
	get  func(*model.MetricRow) model.Measure
}

func actual(f func(*model.MetricRow) float64) func(*model.MetricRow) model.Measure {
	return func(r *model.MetricRow) model.Measure { return model.Some(f(r)) }
}

func expected(f func(*model.AssumptionRow) model.Measure) func(*model.MetricRow) model.Measure {
	return func(r *model.MetricRow) model.Measure {
		if r.Assumption == nil {
			return model.None()
		}
		return f(r.Assumption)
	}
}

// pair links an actual ratio with its assumption; assumption is nil for actual-only metrics.
type pair struct {
	metric     string
	actual     func(*model.MetricRow) model.Measure
	assumption func(*model.MetricRow) model.Measure
}

var pairs = []pair{
	{"pbad", actual(func(r *model.MetricRow) float64 { return r.Pbad }), expected(func(a *model.AssumptionRow) model.Measure { return a.Pbad })},
	{"severity", actual(func(r *model.MetricRow) float64 { return r.Severity }), expected(func(a *model.AssumptionRow) model.Measure { return a.Severity })},
	{"utilization", actual(func(r *model.MetricRow) float64 { return r.Utilization }), expected(func(a *model.AssumptionRow) model.Measure { return a.Utilization })},
	{"credit_line", actual(func(r *model.MetricRow) float64 { return r.CreditLine }), expected(func(a *model.AssumptionRow) model.Measure { return a.CreditLine })},
	{"dq30", actual(func(r *model.MetricRow) float64 { return r.DQ30 }), nil},
	{"cash_advance", actual(func(r *model.MetricRow) float64 { return r.CashAdvance }), expected(func(a *model.AssumptionRow) model.Measure { return a.CashAdvance })},
	{"penalty", actual(func(r *model.MetricRow) float64 { return r.Penalty }), expected(func(a *model.AssumptionRow) model.Measure { return a.Penalty })},
	{"pvol", actual(func(r *model.MetricRow) float64 { return r.Pvol }), expected(func(a *model.AssumptionRow) model.Measure { return a.Pvol })},
	{"attrition", actual(func(r *model.MetricRow) float64 { return r.Attrition }), expected(func(a *model.AssumptionRow) model.Measure { return a.Attrition })},
	{"outstanding", actual(func(r *model.MetricRow) float64 { return r.Outstanding }), expected(func(a *model.AssumptionRow) model.Measure { return a.Outstanding })},
	{"revolve_rate", actual(func(r *model.MetricRow) float64 { return r.RevolveRate }), expected(func(a *model.AssumptionRow) model.Measure { return a.RevolveRate })},
}

func numericColumns() []numericColumn {
	cols := []numericColumn{
		{"statement_age", actual(func(r *model.MetricRow) float64 { return float64(r.StatementAge) })},
		{"original_statements", actual(func(r *model.MetricRow) float64 { return r.OriginalStatements })},
		{"open_statements", actual(func(r *model.MetricRow) float64 { return r.OpenStatements })},
		{"charged_off_statements", actual(func(r *model.MetricRow) float64 { return r.ChargedOffStatements })},
	}
	for _, p := range pairs {
		cols = append(cols, numericColumn{p.metric, p.actual})
	}
	for _, p := range pairs {
		if p.assumption != nil {
			cols = append(cols, numericColumn{p.metric + "_assumption", p.assumption})
		}
	}
	return cols
}

var categoricalColumns = []struct {
	name string
	get  func(*model.MetricRow) string
}{
	{"series", func(r *model.MetricRow) string { return r.Key.Series }},
	{"segment", func(r *model.MetricRow) string { return r.Key.Segment }},
	{"risk_group", func(r *model.MetricRow) string { return r.Key.RiskGroup }},
	{"util_group", func(r *model.MetricRow) string { return r.Key.UtilGroup }},
	{"eligibility", func(r *model.MetricRow) string { return r.Key.Eligibility }},
	{"rewards_type", func(r *model.MetricRow) string { return r.Key.RewardsType }},
	{"apr_type", func(r *model.MetricRow) string { return r.Key.APRType }},
	{"credit_limit_bucket", func(r *model.MetricRow) string { return r.Key.CreditLimitBucket }},
	{"clip_amount_group", func(r *model.MetricRow) string { return r.Key.ClipAmountGroup }},
	{"source", func(r *model.MetricRow) string { return string(r.Source) }},
}

// Build profiles every output column. All-null columns are listed as skipped.
func Build(rows []model.MetricRow) *model.Profile {
	p := &model.Profile{}
	for _, col := range numericColumns() {
		values := make([]float64, 0, len(rows))
		nulls := 0
		for i := range rows {
			m := col.get(&rows[i])
			if !m.Valid {
				nulls++
				continue
			}
			values = append(values, m.Value)
		}
		if len(values) == 0 {
			p.Skipped = append(p.Skipped, col.name)
			continue
		}
		p.Numeric = append(p.Numeric, numeric(col.name, values, nulls))
	}

	for _, col := range categoricalColumns {
		counts := make(map[string]int)
		for i := range rows {
			counts[col.get(&rows[i])]++
		}
		cp := model.CategoricalProfile{Column: col.name}
		for label, n := range counts {
			cp.Values = append(cp.Values, model.ValueBucket{Label: label, Count: n})
		}
		slices.SortFunc(cp.Values, func(a, b model.ValueBucket) int {
			if a.Label < b.Label {
				return -1
			}
			if a.Label > b.Label {
				return 1
			}
			return 0
		})
		p.Categorical = append(p.Categorical, cp)
	}
	return p
}

func numeric(name string, values []float64, nulls int) model.NumericProfile {
	np := model.NumericProfile{
		Column: name,
		Count:  len(values),
		Nulls:  nulls,
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
	}
	sum := 0.0
	distinct := make(map[float64]int)
	for _, v := range values {
		sum += v
		np.Min = math.Min(np.Min, v)
		np.Max = math.Max(np.Max, v)
		distinct[v]++
	}
	np.Mean = sum / float64(len(values))

	if len(distinct) > distinctLimit {
		np.Buckets = ranges(values, np.Min, np.Max)
		return np
	}
	keys := make([]float64, 0, len(distinct))
	for v := range distinct {
		keys = append(keys, v)
	}
	slices.Sort(keys)
	for _, v := range keys {
		np.Buckets = append(np.Buckets, model.ValueBucket{
			Label: strconv.FormatFloat(v, 'f', -1, 64),
			Count: distinct[v],
		})
	}
	return np
}

// ranges splits [lo, hi] into equal-width buckets; the last bucket includes hi.
func ranges(values []float64, lo, hi float64) []model.ValueBucket {
	width := (hi - lo) / rangeBuckets
	out := make([]model.ValueBucket, rangeBuckets)
	for i := range out {
		out[i].Label = fmt.Sprintf("%.4g-%.4g", lo+float64(i)*width, lo+float64(i+1)*width)
	}
	for _, v := range values {
		i := rangeBuckets - 1
		if width > 0 {
			i = min(int((v-lo)/width), rangeBuckets-1)
		}
		out[i].Count++
	}
	return out
}

// Validate compares the mean of each actual ratio with its assumption.
func Validate(rows []model.MetricRow) []model.Validation {
	out := make([]model.Validation, 0, len(pairs))
	for _, p := range pairs {
		v := model.Validation{Metric: p.metric, HasAssumption: p.assumption != nil}
		v.ActualCount, v.ActualMean = mean(rows, p.actual)
		if p.assumption != nil {
			v.AssumptionCount, v.AssumptionMean = mean(rows, p.assumption)
		}
		out = append(out, v)
	}
	return out
}

func mean(rows []model.MetricRow, get func(*model.MetricRow) model.Measure) (int, float64) {
	n, sum := 0, 0.0
	for i := range rows {
		if m := get(&rows[i]); m.Valid {
			n++
			sum += m.Value
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, sum / float64(n)
}
