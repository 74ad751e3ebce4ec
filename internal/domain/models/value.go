package models

import (
	"encoding/json"
	"math"
)

// Value is an optional float. OK=false marks a value that is not computable.
type Value struct {
	V  float64
	OK bool
}

// Some returns a defined value. NaN and Inf are folded into None.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, OK: true}
}

// None returns an undefined value.
func None() Value { return Value{} }

// Or returns the value or def when undefined.
func (v Value) Or(def float64) float64 {
	if !v.OK {
		return def
	}
	return v.V
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Value{V: f, OK: true}
	return nil
}
