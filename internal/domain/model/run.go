package model

import "time"

// Variant records the ratio definitions a run used.
type Variant struct {
	PbadScale       float64 `json:"pbad_scale"`
	PvolDenominator string  `json:"pvol_denominator"`
	ClampNegative   bool    `json:"clamp_negative"`
}

// RunStats counts what happened during a run.
type RunStats struct {
	FactsRead            int `json:"facts_read"`
	FactsIncluded        int `json:"facts_included"`
	FactsExcluded        int `json:"facts_excluded"`
	FactsInvalid         int `json:"facts_invalid"`
	AssumptionsRead      int `json:"assumptions_read"`
	DuplicateStatements  int `json:"duplicate_statements"`
	Groups               int `json:"groups"`
	Partitions           int `json:"partitions"`
	CarriedFills         int `json:"carried_fills"`
	ForecastFills        int `json:"forecast_fills"`
	Matched              int `json:"matched"`
	Unmatched            int `json:"unmatched"`
	DuplicateAssumptions int `json:"duplicate_assumptions"`
	OutputRows           int `json:"output_rows"`
}

// Run is the outcome of one pipeline execution.
type Run struct {
	RunID      string       `json:"run_id"`
	Tag        string       `json:"tag,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Variant    Variant      `json:"variant"`
	Stats      RunStats     `json:"stats"`
	Rows       []MetricRow  `json:"rows"`
	Profile    *Profile     `json:"profile,omitempty"`
	Validation []Validation `json:"validation,omitempty"`

	// Raw holds the filled aggregate rows for troubleshooting dumps.
	Raw []AggregateRow `json:"-"`
}

// Profile summarises the output columns.
type Profile struct {
	Numeric     []NumericProfile     `json:"numeric"`
	Categorical []CategoricalProfile `json:"categorical"`
	Skipped     []string             `json:"skipped,omitempty"`
}

// NumericProfile describes one numeric column.
type NumericProfile struct {
	Column  string        `json:"column"`
	Count   int           `json:"count"`
	Nulls   int           `json:"nulls"`
	Mean    float64       `json:"mean"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Buckets []ValueBucket `json:"buckets"`
}

// ValueBucket is a histogram entry; Label is a value or a "lo-hi" range.
type ValueBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoricalProfile holds value counts for one key column.
type CategoricalProfile struct {
	Column string        `json:"column"`
	Values []ValueBucket `json:"values"`
}

// Validation compares a metric with its assumption counterpart.
type Validation struct {
	Metric          string  `json:"metric"`
	ActualCount     int     `json:"actual_count"`
	ActualMean      float64 `json:"actual_mean"`
	AssumptionCount int     `json:"assumption_count"`
	AssumptionMean  float64 `json:"assumption_mean"`
	HasAssumption   bool    `json:"has_assumption"`
}
