// Package dimension derives categorical buckets and dimensional keys from statement facts.
package dimension

import (
	"strconv"
	"strings"

	"github.com/okian/curvewatch/internal/domain/model"
)

// Bucket labels.
const (
	Unknown     = "Unknown"
	Eligible    = "Eligible"
	NotEligible = "Not Eligible"
	Rewards     = "Rewards"
	NonRewards  = "Non-Rewards"
	APRHigh     = "High"
	APRLow      = "Low"
)

var (
	defaultSegmentEdges = []int{12, 24}
	defaultLimitEdges   = []float64{300, 500, 1000, 2000, 4000, 6000, 8000}
)

const defaultAPRThreshold = 0.15

// Mapper is pure and safe for concurrent use once built.
type Mapper struct {
	segmentEdges []int
	limitEdges   []float64
	aprThreshold float64

	segmentLabels []string
	limitLabels   []string
}

// New builds a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		segmentEdges: defaultSegmentEdges,
		limitEdges:   defaultLimitEdges,
		aprThreshold: defaultAPRThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.segmentLabels = make([]string, len(m.segmentEdges)+1)
	for i := range m.segmentEdges {
		m.segmentLabels[i] = "Y" + strconv.Itoa(i+1)
	}
	m.segmentLabels[len(m.segmentEdges)] = "Y" + strconv.Itoa(len(m.segmentEdges)+1) + "+"

	m.limitLabels = make([]string, len(m.limitEdges)+1)
	for i, e := range m.limitEdges {
		m.limitLabels[i] = formatEdge(e)
	}
	m.limitLabels[len(m.limitEdges)] = formatEdge(m.limitEdges[len(m.limitEdges)-1]) + "+"
	return m
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Segment buckets a statement age. Edge ages belong to the lower segment.
func (m *Mapper) Segment(age int) string {
	for i, edge := range m.segmentEdges {
		if age <= edge {
			return m.segmentLabels[i]
		}
	}
	return m.segmentLabels[len(m.segmentEdges)]
}

// CreditLimitBucket returns the smallest edge at or above the limit.
func (m *Mapper) CreditLimitBucket(limit float64) string {
	for i, edge := range m.limitEdges {
		if limit <= edge {
			return m.limitLabels[i]
		}
	}
	return m.limitLabels[len(m.limitEdges)]
}

// Eligibility labels the eligibility flag.
func Eligibility(eligible bool) string {
	if eligible {
		return Eligible
	}
	return NotEligible
}

// RewardsType labels a reward rate.
func RewardsType(rate float64) string {
	if rate > 0 {
		return Rewards
	}
	return NonRewards
}

// APRType labels an APR against the threshold.
func (m *Mapper) APRType(apr float64) string {
	if apr > m.aprThreshold {
		return APRHigh
	}
	return APRLow
}

// DelinquencyBucket labels a delinquency count. Negative values are treated as current.
func DelinquencyBucket(bucket int) string {
	switch {
	case bucket <= 0:
		return "0"
	case bucket >= 3:
		return "3+"
	default:
		return strconv.Itoa(bucket)
	}
}

// Map derives every bucket label for a fact.
func (m *Mapper) Map(f model.StatementFact) model.Buckets {
	return model.Buckets{
		Segment:           m.Segment(f.StatementAge),
		CreditLimitBucket: m.CreditLimitBucket(f.CreditLimit),
		Eligibility:       Eligibility(f.Eligible),
		RewardsType:       RewardsType(f.RewardRate),
		APRType:           m.APRType(f.APR),
		DelinquencyBucket: DelinquencyBucket(f.DelinquencyBucket),
	}
}

// Key builds the dimensional key for a fact.
func (m *Mapper) Key(f model.StatementFact) model.DimensionalKey {
	b := m.Map(f)
	return model.DimensionalKey{
		Series:            label(f.RiskSeries),
		Segment:           b.Segment,
		RiskGroup:         label(f.RiskGroup),
		UtilGroup:         label(f.UtilGroup),
		Eligibility:       b.Eligibility,
		RewardsType:       b.RewardsType,
		APRType:           b.APRType,
		CreditLimitBucket: b.CreditLimitBucket,
		ClipAmountGroup:   label(f.ClipAmountGroup),
	}
}

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
