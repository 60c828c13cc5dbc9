package sink

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/okian/curvewatch/internal/domain/model"
)

var metricHeader = []string{
	"series", "segment", "risk_group", "util_group", "eligibility", "rewards_type",
	"apr_type", "credit_limit_bucket", "clip_amount_group", "statement_age", "source",
	"original_statements", "open_statements", "charged_off_statements",
	"pbad", "pbad_assumption",
	"severity", "severity_assumption",
	"utilization", "utilization_assumption",
	"credit_line", "credit_line_assumption",
	"dq30",
	"cash_advance", "cash_advance_assumption",
	"penalty", "penalty_assumption",
	"pvol", "pvol_assumption",
	"attrition", "attrition_assumption",
	"revolve_rate", "revolve_rate_assumption",
	"outstanding", "outstanding_assumption",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func keyColumns(k model.DimensionalKey) []string {
	return []string{
		k.Series, k.Segment, k.RiskGroup, k.UtilGroup, k.Eligibility,
		k.RewardsType, k.APRType, k.CreditLimitBucket, k.ClipAmountGroup,
	}
}

// assumptionCell renders an assumption value, empty when unmatched or absent.
func assumptionCell(a *model.AssumptionRow, get func(*model.AssumptionRow) model.Measure) string {
	if a == nil {
		return ""
	}
	return get(a).String()
}

func metricRecord(r model.MetricRow) []string {
	a := r.Assumption
	rec := keyColumns(r.Key)
	return append(rec,
		strconv.Itoa(r.StatementAge), string(r.Source),
		formatFloat(r.OriginalStatements), formatFloat(r.OpenStatements), formatFloat(r.ChargedOffStatements),
		formatFloat(r.Pbad), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Pbad }),
		formatFloat(r.Severity), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Severity }),
		formatFloat(r.Utilization), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Utilization }),
		formatFloat(r.CreditLine), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.CreditLine }),
		formatFloat(r.DQ30),
		formatFloat(r.CashAdvance), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.CashAdvance }),
		formatFloat(r.Penalty), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Penalty }),
		formatFloat(r.Pvol), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Pvol }),
		formatFloat(r.Attrition), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Attrition }),
		formatFloat(r.RevolveRate), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.RevolveRate }),
		formatFloat(r.Outstanding), assumptionCell(a, func(a *model.AssumptionRow) model.Measure { return a.Outstanding }),
	)
}

// WriteMetricsCSV writes one record per metric row.
func WriteMetricsCSV(w io.Writer, rows []model.MetricRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(metricRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var aggregateHeader = []string{
	"series", "segment", "risk_group", "util_group", "eligibility", "rewards_type",
	"apr_type", "credit_limit_bucket", "clip_amount_group", "statement_age", "source",
	"original_statements", "open_statements", "charged_off_statements", "voluntary_closures",
	"bkt2_accounts", "cash_advance_takers", "late_fees", "credit_limit_open",
	"total_balance_open", "principal_balance_open", "purchase_balance_open",
	"average_outstanding_open", "principal_balance_charged_off", "credit_limit_charged_off",
	"pbad_numerator",
}

// WriteAggregatesCSV dumps filled aggregate rows. Absent measures are empty cells.
func WriteAggregatesCSV(w io.Writer, rows []model.AggregateRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(aggregateHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := append(keyColumns(r.Key),
			strconv.Itoa(r.StatementAge), string(r.Source),
			r.OriginalStatements.String(), r.OpenStatements.String(), r.ChargedOffStatements.String(),
			r.VoluntaryClosures.String(), r.Bkt2Accounts.String(), r.CashAdvanceTakers.String(),
			r.LateFees.String(), r.CreditLimitOpen.String(), r.TotalBalanceOpen.String(),
			r.PrincipalBalanceOpen.String(), r.PurchaseBalanceOpen.String(),
			r.AverageOutstandingOpen.String(), r.PrincipalBalanceChargedOff.String(),
			r.CreditLimitChargedOff.String(), r.PbadNumerator.String(),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile writes presented metric rows to a path.
type CSVFile struct {
	path string
}

// NewCSVFile returns a metric CSV writer.
func NewCSVFile(path string) *CSVFile { return &CSVFile{path: path} }

// WriteRun implements Writer.
func (c *CSVFile) WriteRun(_ context.Context, run *model.Run) error {
	if run == nil {
		return ErrNoRun
	}
	return writeFile(c.path, func(f *os.File) error {
		return WriteMetricsCSV(f, Present(run))
	})
}

// RawCSVFile dumps the run's aggregate rows to a path.
type RawCSVFile struct {
	path string
}

// NewRawCSVFile returns an aggregate dump writer.
func NewRawCSVFile(path string) *RawCSVFile { return &RawCSVFile{path: path} }

// WriteRun implements Writer.
func (c *RawCSVFile) WriteRun(_ context.Context, run *model.Run) error {
	if run == nil {
		return ErrNoRun
	}
	return writeFile(c.path, func(f *os.File) error {
		return WriteAggregatesCSV(f, run.Raw)
	})
}
