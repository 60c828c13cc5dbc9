// Package model contains domain models passed between pipeline stages.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Measure is a nullable numeric value. An absent measure is distinct from zero.
type Measure struct {
	Value float64
	Valid bool
}

// Some returns a present measure.
func Some(v float64) Measure { return Measure{Value: v, Valid: true} }

// None returns an absent measure.
func None() Measure { return Measure{} }

// Or returns the value, or def when absent.
func (m Measure) Or(def float64) float64 {
	if !m.Valid {
		return def
	}
	return m.Value
}

// Ptr returns nil when absent.
func (m Measure) Ptr() *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

// String renders the value or an empty string when absent.
func (m Measure) String() string {
	if !m.Valid {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

var jsonNull = []byte("null")

// MarshalJSON encodes absent as null.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return jsonNull, nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null as absent.
func (m *Measure) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*m = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}
