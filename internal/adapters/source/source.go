// Package source reads statement facts and assumption curves from CSV files or Postgres.
package source

import (
	"context"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Stats counts rows read and rows skipped as unparseable.
type Stats struct {
	Read    int `json:"read"`
	Invalid int `json:"invalid"`
}

// Loader is implemented by every source.
type Loader interface {
	Facts(ctx context.Context) ([]model.StatementFact, Stats, error)
	Assumptions(ctx context.Context) ([]model.AssumptionRow, Stats, error)
}
