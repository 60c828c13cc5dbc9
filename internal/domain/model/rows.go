package model

// Source records how a row's measures were obtained.
type Source string

// Row provenance.
const (
	SourceActual   Source = "actual"
	SourceCarried  Source = "carried"
	SourceForecast Source = "forecast"
	// SourceExtended marks a grid row that received no value.
	SourceExtended Source = "extended"
)

// AggregateRow holds sums for one (key, age) group.
type AggregateRow struct {
	Key          DimensionalKey `json:"key"`
	StatementAge int            `json:"statement_age"`
	Source       Source         `json:"source"`

	OriginalStatements         Measure `json:"original_statements"`
	OpenStatements             Measure `json:"open_statements"`
	ChargedOffStatements       Measure `json:"charged_off_statements"`
	VoluntaryClosures          Measure `json:"voluntary_closures"`
	Bkt2Accounts               Measure `json:"bkt2_accounts"`
	CashAdvanceTakers          Measure `json:"cash_advance_takers"`
	LateFees                   Measure `json:"late_fees"`
	CreditLimitOpen            Measure `json:"credit_limit_open"`
	TotalBalanceOpen           Measure `json:"total_balance_open"`
	PrincipalBalanceOpen       Measure `json:"principal_balance_open"`
	PurchaseBalanceOpen        Measure `json:"purchase_balance_open"`
	AverageOutstandingOpen     Measure `json:"average_outstanding_open"`
	PrincipalBalanceChargedOff Measure `json:"principal_balance_charged_off"`
	CreditLimitChargedOff      Measure `json:"credit_limit_charged_off"`

	// PbadNumerator is set by the filler: scaled actual charge-offs or the forecast.
	PbadNumerator Measure `json:"pbad_numerator"`
}

// AssumptionRow is one point of an expected curve.
type AssumptionRow struct {
	Key AssumptionKey `json:"key"`

	Pbad        Measure `json:"pbad"`
	Severity    Measure `json:"severity"`
	Utilization Measure `json:"utilization"`
	CreditLine  Measure `json:"credit_line"`
	CashAdvance Measure `json:"cash_advance"`
	Penalty     Measure `json:"penalty"`
	Pvol        Measure `json:"pvol"`
	Attrition   Measure `json:"attrition"`
	Outstanding Measure `json:"outstanding"`
	RevolveRate Measure `json:"revolve_rate"`
}

// JoinedRow is an aggregate row with its matched assumption, nil when unmatched.
type JoinedRow struct {
	AggregateRow
	Assumption *AssumptionRow
}

// MetricRow is one presentation row.
type MetricRow struct {
	Key          DimensionalKey `json:"key"`
	StatementAge int            `json:"statement_age"`
	Source       Source         `json:"source"`

	OriginalStatements   float64 `json:"original_statements"`
	OpenStatements       float64 `json:"open_statements"`
	ChargedOffStatements float64 `json:"charged_off_statements"`

	Pbad        float64 `json:"pbad"`
	Severity    float64 `json:"severity"`
	Utilization float64 `json:"utilization"`
	CreditLine  float64 `json:"credit_line"`
	DQ30        float64 `json:"dq30"`
	CashAdvance float64 `json:"cash_advance"`
	Penalty     float64 `json:"penalty"`
	Pvol        float64 `json:"pvol"`
	Attrition   float64 `json:"attrition"`
	RevolveRate float64 `json:"revolve_rate"`
	Outstanding float64 `json:"outstanding"`

	Assumption *AssumptionRow `json:"assumption,omitempty"`
}
