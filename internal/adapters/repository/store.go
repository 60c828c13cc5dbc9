// Package repository holds the latest published run behind the read API.
package repository

import (
	"context"
	"strings"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Filter selects metric rows. Empty fields match everything; Limit <= 0 is unlimited.
type Filter struct {
	Series    string
	Segment   string
	RiskGroup string
	UtilGroup string
	Limit     int
}

func matches(want, got string) bool {
	return want == "" || strings.EqualFold(strings.TrimSpace(want), got)
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r model.MetricRow) bool {
	return matches(f.Series, r.Key.Series) &&
		matches(f.Segment, r.Key.Segment) &&
		matches(f.RiskGroup, r.Key.RiskGroup) &&
		matches(f.UtilGroup, r.Key.UtilGroup)
}

// Apply returns the matching rows in their stored order.
func (f Filter) Apply(rows []model.MetricRow) []model.MetricRow {
	out := make([]model.MetricRow, 0)
	for _, r := range rows {
		if !f.Match(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Store provides read/write access to the latest run.
type Store interface {
	// Publish replaces the latest run.
	Publish(ctx context.Context, run *model.Run) error

	// Latest returns the latest run, or ErrNotFound before the first publish.
	Latest(ctx context.Context) (*model.Run, error)

	// Rows returns the latest run's metric rows matching f.
	Rows(ctx context.Context, f Filter) ([]model.MetricRow, error)

	// Count returns the number of metric rows in the latest run.
	Count(ctx context.Context) int
}
