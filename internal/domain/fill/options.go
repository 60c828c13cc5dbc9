package fill

import "github.com/okian/curvewatch/internal/domain/model"

// Option configures a Filler.
type Option func(*Filler)

// AgeSource supplies the statement numbers of an assumption curve.
type AgeSource interface {
	Ages(key model.AssumptionKey) []int
}

// WithLedStatements sets how many statements back the forecast reads the bucket-2 count.
func WithLedStatements(n int) Option {
	return func(f *Filler) {
		if n >= 0 {
			f.led = n
		}
	}
}

// WithForecastFactors sets the conversion, roll-rate and annualization factors.
func WithForecastFactors(conversion, rollRate, annualization float64) Option {
	return func(f *Filler) {
		if conversion > 0 {
			f.conversion = conversion
		}
		if rollRate > 0 {
			f.rollRate = rollRate
		}
		if annualization > 0 {
			f.annualization = annualization
		}
	}
}

// WithPbadScale sets the multiplier applied to actual charge-offs.
func WithPbadScale(scale float64) Option {
	return func(f *Filler) {
		if scale > 0 {
			f.pbadScale = scale
		}
	}
}

// WithMaxStatement caps grid extension. Zero disables the cap.
func WithMaxStatement(n int) Option {
	return func(f *Filler) {
		if n >= 0 {
			f.maxStatement = n
		}
	}
}

// WithAgeSource extends each partition's grid with curve ages.
func WithAgeSource(src AgeSource) Option {
	return func(f *Filler) {
		f.ages = src
	}
}
