package model

import (
	"cmp"
	"strings"
)

// DimensionalKey groups facts for aggregation. It is comparable and usable as a map key.
type DimensionalKey struct {
	Series            string `json:"series"`
	Segment           string `json:"segment"`
	RiskGroup         string `json:"risk_group"`
	UtilGroup         string `json:"util_group"`
	Eligibility       string `json:"eligibility"`
	RewardsType       string `json:"rewards_type"`
	APRType           string `json:"apr_type"`
	CreditLimitBucket string `json:"credit_limit_bucket"`
	ClipAmountGroup   string `json:"clip_amount_group"`
}

// String returns the canonical pipe-joined form.
func (k DimensionalKey) String() string {
	return strings.Join([]string{
		k.Series, k.Segment, k.RiskGroup, k.UtilGroup, k.Eligibility,
		k.RewardsType, k.APRType, k.CreditLimitBucket, k.ClipAmountGroup,
	}, "|")
}

// AssumptionKey projects the key onto the assumption join columns at an age.
func (k DimensionalKey) AssumptionKey(age int) AssumptionKey {
	return AssumptionKey{
		Series:           k.Series,
		Segment:          k.Segment,
		RiskGroup:        k.RiskGroup,
		UtilGroup:        k.UtilGroup,
		CreditLineBucket: k.CreditLimitBucket,
		StatementNumber:  age,
		ClipAmountGroup:  k.ClipAmountGroup,
	}
}

// CompareKeyAge orders by series, segment, risk group, util group, age, then
// the rest of the key.
func CompareKeyAge(a DimensionalKey, ageA int, b DimensionalKey, ageB int) int {
	return cmp.Or(
		cmp.Compare(a.Series, b.Series),
		cmp.Compare(a.Segment, b.Segment),
		cmp.Compare(a.RiskGroup, b.RiskGroup),
		cmp.Compare(a.UtilGroup, b.UtilGroup),
		cmp.Compare(ageA, ageB),
		cmp.Compare(a.Eligibility, b.Eligibility),
		cmp.Compare(a.RewardsType, b.RewardsType),
		cmp.Compare(a.APRType, b.APRType),
		cmp.Compare(a.CreditLimitBucket, b.CreditLimitBucket),
		cmp.Compare(a.ClipAmountGroup, b.ClipAmountGroup),
	)
}

// AssumptionKey identifies one point of an assumption curve.
type AssumptionKey struct {
	Series           string `json:"series"`
	Segment          string `json:"segment"`
	RiskGroup        string `json:"risk_group"`
	UtilGroup        string `json:"util_group"`
	CreditLineBucket string `json:"credit_line_bucket"`
	StatementNumber  int    `json:"statement_number"`
	ClipAmountGroup  string `json:"clip_amount_group"`
}

// Curve drops the statement number, leaving the curve identity.
func (k AssumptionKey) Curve() AssumptionKey {
	k.StatementNumber = 0
	return k
}
