package model

// StatementFact is one account at one statement age. Read-only input.
type StatementFact struct {
	AccountID         string
	StatementAge      int
	RiskSeries        string
	RiskGroup         string
	UtilGroup         string
	ClipAmountGroup   string
	Cohort            string
	CreditLimit       float64
	Eligible          bool
	RewardRate        float64
	APR               float64
	DelinquencyBucket int

	// Indicators are 0/1 in practice but fractional values are honoured.
	IsOpen             float64
	IsChargedOff       float64
	IsVoluntaryClosure float64
	TookCashAdvance    float64
	LateFee            float64

	TotalBalance              float64
	PrincipalBalance          float64
	PurchaseBalance           float64
	AverageOutstandingBalance float64

	// Included marks the fact as part of performance metrics.
	Included bool
}

// Buckets are the labels derived from one fact.
type Buckets struct {
	Segment           string
	CreditLimitBucket string
	Eligibility       string
	RewardsType       string
	APRType           string
	DelinquencyBucket string
}
