// Package fill extends aggregate rows over the statement grid, carrying
// observations forward and substituting the charge-off forecast.
package fill

import (
	"slices"

	"github.com/okian/curvewatch/internal/domain/model"
)

const (
	defaultLed           = 6
	defaultConversion    = 0.65
	defaultRollRate      = 0.91
	defaultAnnualization = 12
	defaultPbadScale     = 12
)

// Stats counts the substitutions made.
type Stats struct {
	Extended int `json:"extended"`
	Carried  int `json:"carried"`
	Forecast int `json:"forecast"`
}

// Add accumulates another partition's stats.
func (s *Stats) Add(o Stats) {
	s.Extended += o.Extended
	s.Carried += o.Carried
	s.Forecast += o.Forecast
}

// Partition is every row of one dimensional key, ascending by age.
type Partition struct {
	Key  model.DimensionalKey
	Rows []model.AggregateRow
}

// Filler is stateless between partitions and safe for concurrent use.
type Filler struct {
	led           int
	conversion    float64
	rollRate      float64
	annualization float64
	pbadScale     float64
	maxStatement  int
	ages          AgeSource
}

// New builds a Filler.
func New(opts ...Option) *Filler {
	f := &Filler{
		led:           defaultLed,
		conversion:    defaultConversion,
		rollRate:      defaultRollRate,
		annualization: defaultAnnualization,
		pbadScale:     defaultPbadScale,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Split groups rows into partitions in order of first appearance.
func Split(rows []model.AggregateRow) []Partition {
	pos := make(map[model.DimensionalKey]int)
	var parts []Partition
	for _, r := range rows {
		i, ok := pos[r.Key]
		if !ok {
			i = len(parts)
			pos[r.Key] = i
			parts = append(parts, Partition{Key: r.Key})
		}
		parts[i].Rows = append(parts[i].Rows, r)
	}
	for i := range parts {
		slices.SortStableFunc(parts[i].Rows, func(a, b model.AggregateRow) int {
			return a.StatementAge - b.StatementAge
		})
	}
	return parts
}

// Fill processes every partition sequentially.
func (f *Filler) Fill(rows []model.AggregateRow) ([]model.AggregateRow, Stats) {
	var (
		out []model.AggregateRow
		st  Stats
	)
	for _, p := range Split(rows) {
		filled, ps := f.FillPartition(p)
		out = append(out, filled...)
		st.Add(ps)
	}
	return out, st
}

// FillPartition extends one partition over its grid and fills it.
func (f *Filler) FillPartition(p Partition) ([]model.AggregateRow, Stats) {
	var st Stats
	rows := f.extend(p, &st)

	// carried measures; "last seen" resets with each partition
	carriable := []func(*model.AggregateRow) *model.Measure{
		func(r *model.AggregateRow) *model.Measure { return &r.OpenStatements },
		func(r *model.AggregateRow) *model.Measure { return &r.CreditLimitOpen },
		func(r *model.AggregateRow) *model.Measure { return &r.OriginalStatements },
		func(r *model.AggregateRow) *model.Measure { return &r.AverageOutstandingOpen },
		func(r *model.AggregateRow) *model.Measure { return &r.CreditLimitChargedOff },
	}
	last := make([]model.Measure, len(carriable))

	for i := range rows {
		r := &rows[i]
		carried := false
		for m, field := range carriable {
			v := field(r)
			if v.Valid {
				last[m] = *v
				continue
			}
			if last[m].Valid {
				*v = last[m]
				carried = true
				st.Carried++
			}
		}
		if carried && r.Source == "" {
			r.Source = model.SourceCarried
		}
	}

	byAge := make(map[int]*model.AggregateRow, len(rows))
	for i := range rows {
		byAge[rows[i].StatementAge] = &rows[i]
	}
	for i := range rows {
		r := &rows[i]
		if r.ChargedOffStatements.Valid {
			r.PbadNumerator = model.Some(r.ChargedOffStatements.Value * f.pbadScale)
			continue
		}
		lagged, ok := byAge[r.StatementAge-f.led]
		if !ok || !lagged.Bkt2Accounts.Valid {
			continue
		}
		r.PbadNumerator = model.Some(f.Forecast(lagged.Bkt2Accounts.Value))
		r.Source = model.SourceForecast
		st.Forecast++
	}

	for i := range rows {
		if rows[i].Source == "" {
			rows[i].Source = model.SourceExtended
		}
	}
	return rows, st
}

// Forecast converts a lagged bucket-2 count into an annualized charge-off numerator.
func (f *Filler) Forecast(bkt2 float64) float64 {
	return bkt2 * f.conversion / f.rollRate * f.annualization
}

// extend returns a copy of the partition over observed ∪ curve ages.
func (f *Filler) extend(p Partition, st *Stats) []model.AggregateRow {
	rows := slices.Clone(p.Rows)
	if f.ages == nil {
		return rows
	}

	observed := make(map[int]bool, len(rows))
	for _, r := range rows {
		observed[r.StatementAge] = true
	}
	for _, age := range f.ages.Ages(p.Key.AssumptionKey(0)) {
		if observed[age] || (f.maxStatement > 0 && age > f.maxStatement) {
			continue
		}
		observed[age] = true
		rows = append(rows, model.AggregateRow{Key: p.Key, StatementAge: age})
		st.Extended++
	}
	slices.SortFunc(rows, func(a, b model.AggregateRow) int {
		return a.StatementAge - b.StatementAge
	})
	return rows
}
