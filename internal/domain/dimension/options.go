package dimension

// Option configures a Mapper.
type Option func(*Mapper)

// WithSegmentEdges sets the inclusive upper ages of each segment; ages above
// the last edge fall into the open-ended segment.
func WithSegmentEdges(edges []int) Option {
	return func(m *Mapper) {
		if len(edges) > 0 {
			m.segmentEdges = append([]int(nil), edges...)
		}
	}
}

// WithCreditLimitEdges sets the ascending credit-limit bucket edges.
func WithCreditLimitEdges(edges []float64) Option {
	return func(m *Mapper) {
		if len(edges) > 0 {
			m.limitEdges = append([]float64(nil), edges...)
		}
	}
}

// WithAPRThreshold sets the rate above which an account is "High" APR.
func WithAPRThreshold(threshold float64) Option {
	return func(m *Mapper) {
		m.aprThreshold = threshold
	}
}
