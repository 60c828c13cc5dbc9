package fixtures

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/okian/curvewatch/internal/domain/model"
)

var factHeader = []string{
	"account_id", "statement_age", "risk_series", "risk_group", "util_group",
	"clip_amount_group", "cohort", "credit_limit", "eligible", "reward_rate", "apr",
	"delinquency_bucket", "is_open", "is_charged_off", "is_voluntary_closure",
	"took_cash_advance", "late_fee", "total_balance", "principal_balance",
	"purchase_balance", "average_outstanding_balance", "included",
}

var assumptionHeader = []string{
	"series", "segment", "risk_group", "util_group", "credit_line_bucket",
	"statement_number", "clip_amount_group",
	"pbad", "severity", "utilization", "credit_line", "cash_advance",
	"penalty", "pvol", "attrition", "outstanding", "revolve_rate",
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteFacts writes facts in the source CSV layout.
func WriteFacts(w io.Writer, facts []model.StatementFact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(factHeader); err != nil {
		return err
	}
	for _, f := range facts {
		rec := []string{
			f.AccountID, strconv.Itoa(f.StatementAge), f.RiskSeries, f.RiskGroup, f.UtilGroup,
			f.ClipAmountGroup, f.Cohort, num(f.CreditLimit), flag(f.Eligible), num(f.RewardRate), num(f.APR),
			strconv.Itoa(f.DelinquencyBucket), num(f.IsOpen), num(f.IsChargedOff), num(f.IsVoluntaryClosure),
			num(f.TookCashAdvance), num(f.LateFee), num(f.TotalBalance), num(f.PrincipalBalance),
			num(f.PurchaseBalance), num(f.AverageOutstandingBalance), flag(f.Included),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssumptions writes assumption rows; absent values become empty cells.
func WriteAssumptions(w io.Writer, rows []model.AssumptionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(assumptionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		k := r.Key
		rec := []string{
			k.Series, k.Segment, k.RiskGroup, k.UtilGroup, k.CreditLineBucket,
			strconv.Itoa(k.StatementNumber), k.ClipAmountGroup,
			r.Pbad.String(), r.Severity.String(), r.Utilization.String(), r.CreditLine.String(),
			r.CashAdvance.String(), r.Penalty.String(), r.Pvol.String(), r.Attrition.String(),
			r.Outstanding.String(), r.RevolveRate.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
