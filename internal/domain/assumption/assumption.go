// Package assumption indexes assumption curves and joins them to aggregate rows.
package assumption

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Stats describes an index build and the joins served from it.
type Stats struct {
	Rows       int `json:"rows"`
	Duplicates int `json:"duplicates"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
}

// Index is a read-only lookup of assumption rows. Safe for concurrent reads.
type Index struct {
	rows       map[model.AssumptionKey]*model.AssumptionRow
	ages       map[model.AssumptionKey][]int
	duplicates int
}

// Normalize canonicalises a join column: trimmed, case-folded, and numeric
// codes rendered without padding or trailing zeros ("05", "5.0" -> "5").
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// NormalizeKey applies Normalize to every string column.
func NormalizeKey(k model.AssumptionKey) model.AssumptionKey {
	return model.AssumptionKey{
		Series:           Normalize(k.Series),
		Segment:          Normalize(k.Segment),
		RiskGroup:        Normalize(k.RiskGroup),
		UtilGroup:        Normalize(k.UtilGroup),
		CreditLineBucket: Normalize(k.CreditLineBucket),
		StatementNumber:  k.StatementNumber,
		ClipAmountGroup:  Normalize(k.ClipAmountGroup),
	}
}

// NewIndex builds an index. The first row for a key wins; later duplicates are counted.
func NewIndex(rows []model.AssumptionRow) *Index {
	idx := &Index{
		rows: make(map[model.AssumptionKey]*model.AssumptionRow, len(rows)),
		ages: make(map[model.AssumptionKey][]int),
	}
	for i := range rows {
		k := NormalizeKey(rows[i].Key)
		if _, dup := idx.rows[k]; dup {
			idx.duplicates++
			continue
		}
		r := rows[i]
		idx.rows[k] = &r
		curve := k.Curve()
		idx.ages[curve] = append(idx.ages[curve], k.StatementNumber)
	}
	for c := range idx.ages {
		slices.Sort(idx.ages[c])
	}
	return idx
}

// Len returns the number of distinct keys.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.rows)
}

// Duplicates returns how many rows were discarded as duplicate keys.
func (i *Index) Duplicates() int {
	if i == nil {
		return 0
	}
	return i.duplicates
}

// Lookup returns the assumption for a key, or nil.
func (i *Index) Lookup(k model.AssumptionKey) *model.AssumptionRow {
	if i == nil {
		return nil
	}
	return i.rows[NormalizeKey(k)]
}

// Ages returns the ascending statement numbers on the curve of k.
// The statement number of k is ignored.
func (i *Index) Ages(k model.AssumptionKey) []int {
	if i == nil {
		return nil
	}
	return i.ages[NormalizeKey(k).Curve()]
}

// Join attaches assumptions to rows. Unmatched rows keep a nil assumption;
// nothing is dropped and order is preserved.
func (i *Index) Join(rows []model.AggregateRow) ([]model.JoinedRow, Stats) {
	st := Stats{Rows: i.Len(), Duplicates: i.Duplicates()}
	out := make([]model.JoinedRow, len(rows))
	for n, r := range rows {
		a := i.Lookup(r.Key.AssumptionKey(r.StatementAge))
		if a != nil {
			st.Matched++
		} else {
			st.Unmatched++
		}
		out[n] = model.JoinedRow{AggregateRow: r, Assumption: a}
	}
	return out, st
}
