package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/curvewatch/internal/domain/model"
)

// column describes one logical field and the headers it may appear under.
type column struct {
	field    string
	aliases  []string
	required bool
}

var factColumns = []column{
	{"account_id", []string{"account_id", "acct_id", "account"}, true},
	{"statement_age", []string{"statement_age", "statements_since_clip", "stmt_age", "mob"}, true},
	{"risk_series", []string{"risk_series", "series"}, true},
	{"risk_group", []string{"risk_group"}, true},
	{"util_group", []string{"util_group"}, true},
	{"clip_amount_group", []string{"clip_amount_group", "clip_group"}, false},
	{"cohort", []string{"cohort"}, false},
	{"credit_limit", []string{"credit_limit", "credit_line"}, true},
	{"eligible", []string{"eligible", "eligibility_flag"}, false},
	{"reward_rate", []string{"reward_rate", "rewards_rate"}, false},
	{"apr", []string{"apr", "purchase_apr"}, false},
	{"delinquency_bucket", []string{"delinquency_bucket", "dq_bucket", "cycles_delinquent"}, false},
	{"is_open", []string{"is_open", "open_flag"}, true},
	{"is_charged_off", []string{"is_charged_off", "chargedoff_flag", "charged_off"}, true},
	{"is_voluntary_closure", []string{"is_voluntary_closure", "vol_closure_flag"}, false},
	{"took_cash_advance", []string{"took_cash_advance", "cash_advance_flag"}, false},
	{"late_fee", []string{"late_fee", "late_fee_flag"}, false},
	{"total_balance", []string{"total_balance", "balance"}, false},
	{"principal_balance", []string{"principal_balance"}, false},
	{"purchase_balance", []string{"purchase_balance", "purchases"}, false},
	{"average_outstanding_balance", []string{"average_outstanding_balance", "avg_outstanding"}, false},
	{"included", []string{"included", "include_in_perf_metrics"}, true},
}

var assumptionKeyColumns = []column{
	{"series", []string{"series", "risk_series"}, true},
	{"segment", []string{"segment", "statement_age_segment"}, true},
	{"risk_group", []string{"risk_group"}, true},
	{"util_group", []string{"util_group"}, true},
	{"credit_line_bucket", []string{"credit_line_bucket", "credit_limit_bucket", "cl_bucket"}, true},
	{"statement_number", []string{"statement_number", "stmt_num", "statement_age"}, true},
	{"clip_amount_group", []string{"clip_amount_group", "clip_group"}, true},
}

var assumptionMetricColumns = []column{
	{"pbad", []string{"pbad", "pbad_assumption"}, false},
	{"severity", []string{"severity", "severity_assumption"}, false},
	{"utilization", []string{"utilization", "utilization_assumption"}, false},
	{"credit_line", []string{"credit_line", "credit_line_assumption"}, false},
	{"cash_advance", []string{"cash_advance", "cash_advance_assumption"}, false},
	{"penalty", []string{"penalty", "penalty_assumption"}, false},
	{"pvol", []string{"pvol", "pvol_assumption"}, false},
	{"attrition", []string{"attrition", "attrition_assumption"}, false},
	{"outstanding", []string{"outstanding", "outstanding_assumption"}, false},
	{"revolve_rate", []string{"revolve_rate", "revolve_rate_assumption"}, false},
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "\ufeff")))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// resolve maps each field to its column index, failing on the first missing required field.
func resolve(headers []string, cols []column) (map[string]int, error) {
	normalized := normalizeHeaders(headers)
	out := make(map[string]int, len(cols))
	for _, c := range cols {
		idx, ok := findColumn(normalized, c.aliases)
		if !ok && c.required {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c.field)
		}
		out[c.field] = idx
	}
	return out, nil
}

// record wraps one CSV row and remembers the first parse failure.
type record struct {
	values []string
	idx    map[string]int
	err    error
}

func (r *record) str(field string) string {
	return getValue(r.values, r.idx[field])
}

func (r *record) float(field string) float64 {
	s := r.str(field)
	if s == "" || r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		r.err = fmt.Errorf("%s: invalid number %q", field, s)
		return 0
	}
	return v
}

func (r *record) measure(field string) model.Measure {
	if r.str(field) == "" {
		return model.None()
	}
	return model.Some(r.float(field))
}

func (r *record) int(field string) int {
	v := r.float(field)
	if r.err == nil && v != math.Trunc(v) {
		r.err = fmt.Errorf("%s: not an integer %q", field, r.str(field))
	}
	return int(v)
}

func (r *record) bool(field string) bool {
	s := strings.ToLower(r.str(field))
	switch s {
	case "1", "true", "t", "y", "yes":
		return true
	case "", "0", "false", "f", "n", "no":
		return false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v != 0
	}
	if r.err == nil {
		r.err = fmt.Errorf("%s: invalid flag %q", field, s)
	}
	return false
}

func readAll(r io.Reader, cols []column, each func(*record)) (Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Stats{}, ErrEmptyInput
	}
	if err != nil {
		return Stats{}, err
	}
	idx, err := resolve(headers, cols)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.Read++
		rec := &record{values: values, idx: idx}
		each(rec)
		if rec.err != nil {
			st.Invalid++
		}
	}
	return st, nil
}

// ReadFacts parses statement facts. Rows with unparseable values are skipped and counted.
func ReadFacts(r io.Reader) ([]model.StatementFact, Stats, error) {
	var facts []model.StatementFact
	st, err := readAll(r, factColumns, func(rec *record) {
		f := model.StatementFact{
			AccountID:                 rec.str("account_id"),
			StatementAge:              rec.int("statement_age"),
			RiskSeries:                rec.str("risk_series"),
			RiskGroup:                 rec.str("risk_group"),
			UtilGroup:                 rec.str("util_group"),
			ClipAmountGroup:           rec.str("clip_amount_group"),
			Cohort:                    rec.str("cohort"),
			CreditLimit:               rec.float("credit_limit"),
			Eligible:                  rec.bool("eligible"),
			RewardRate:                rec.float("reward_rate"),
			APR:                       rec.float("apr"),
			DelinquencyBucket:         rec.int("delinquency_bucket"),
			IsOpen:                    rec.float("is_open"),
			IsChargedOff:              rec.float("is_charged_off"),
			IsVoluntaryClosure:        rec.float("is_voluntary_closure"),
			TookCashAdvance:           rec.float("took_cash_advance"),
			LateFee:                   rec.float("late_fee"),
			TotalBalance:              rec.float("total_balance"),
			PrincipalBalance:          rec.float("principal_balance"),
			PurchaseBalance:           rec.float("purchase_balance"),
			AverageOutstandingBalance: rec.float("average_outstanding_balance"),
			Included:                  rec.bool("included"),
		}
		if rec.err == nil {
			facts = append(facts, f)
		}
	})
	return facts, st, err
}

// ReadAssumptions parses assumption rows. Empty metric cells are absent.
func ReadAssumptions(r io.Reader) ([]model.AssumptionRow, Stats, error) {
	cols := append(append([]column{}, assumptionKeyColumns...), assumptionMetricColumns...)
	var rows []model.AssumptionRow
	st, err := readAll(r, cols, func(rec *record) {
		a := model.AssumptionRow{
			Key: model.AssumptionKey{
				Series:           rec.str("series"),
				Segment:          rec.str("segment"),
				RiskGroup:        rec.str("risk_group"),
				UtilGroup:        rec.str("util_group"),
				CreditLineBucket: rec.str("credit_line_bucket"),
				StatementNumber:  rec.int("statement_number"),
				ClipAmountGroup:  rec.str("clip_amount_group"),
			},
			Pbad:        rec.measure("pbad"),
			Severity:    rec.measure("severity"),
			Utilization: rec.measure("utilization"),
			CreditLine:  rec.measure("credit_line"),
			CashAdvance: rec.measure("cash_advance"),
			Penalty:     rec.measure("penalty"),
			Pvol:        rec.measure("pvol"),
			Attrition:   rec.measure("attrition"),
			Outstanding: rec.measure("outstanding"),
			RevolveRate: rec.measure("revolve_rate"),
		}
		if rec.err == nil {
			rows = append(rows, a)
		}
	})
	return rows, st, err
}

// CSV loads from two files on disk.
type CSV struct {
	factsPath       string
	assumptionsPath string
}

// NewCSV returns a CSV loader. An empty assumptions path yields no assumptions.
func NewCSV(factsPath, assumptionsPath string) *CSV {
	return &CSV{factsPath: factsPath, assumptionsPath: assumptionsPath}
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return f, nil
}

// Facts reads the facts file.
func (c *CSV) Facts(_ context.Context) ([]model.StatementFact, Stats, error) {
	f, err := openFile(c.factsPath)
	if err != nil {
		return nil, Stats{}, err
	}
	defer func() { _ = f.Close() }()

	facts, st, err := ReadFacts(f)
	if err != nil {
		return nil, st, fmt.Errorf("facts %s: %w", c.factsPath, err)
	}
	return facts, st, nil
}

// Assumptions reads the assumptions file.
func (c *CSV) Assumptions(_ context.Context) ([]model.AssumptionRow, Stats, error) {
	if c.assumptionsPath == "" {
		return nil, Stats{}, nil
	}
	f, err := openFile(c.assumptionsPath)
	if err != nil {
		return nil, Stats{}, err
	}
	defer func() { _ = f.Close() }()

	rows, st, err := ReadAssumptions(f)
	if err != nil {
		return nil, st, fmt.Errorf("assumptions %s: %w", c.assumptionsPath, err)
	}
	return rows, st, nil
}
