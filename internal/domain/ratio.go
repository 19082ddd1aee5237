package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a derived rate that may be undefined. A ratio whose denominator is
// zero is never coerced to 0: Defined is false and Value is 0.
type Ratio struct {
	Value   float64
	Defined bool
}

// Undefined is the sentinel for a ratio that cannot be computed.
var Undefined = Ratio{}

// Div returns num/den, or Undefined when den is zero or the quotient is not
// a finite number.
func Div(num, den float64) Ratio {
	if den == 0 {
		return Undefined
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Ratio{Value: v, Defined: true}
}

// Scale multiplies a defined ratio by f. Undefined stays undefined.
func (r Ratio) Scale(f float64) Ratio {
	if !r.Defined {
		return r
	}
	return Div(r.Value*f, 1)
}

// Get returns the value and whether it is defined.
func (r Ratio) Get() (float64, bool) { return r.Value, r.Defined }

func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// MarshalJSON encodes an undefined ratio as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(r.Value, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Div(v, 1)
	return nil
}
