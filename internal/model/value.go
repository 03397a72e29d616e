package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is an optional float64. The zero Value is null, meaning not enough
// history existed to compute it. A computed zero is Value{Float: 0, Valid: true}.
type Value struct {
	Float float64
	Valid bool
}

// Some wraps a computed number.
func Some(v float64) Value { return Value{Float: v, Valid: true} }

// Null is the missing value.
var Null = Value{}

// Get returns the number and whether it is present.
func (v Value) Get() (float64, bool) { return v.Float, v.Valid }

// Sub returns v - o, null if either side is null.
func (v Value) Sub(o Value) Value {
	if !v.Valid || !o.Valid {
		return Null
	}
	return Some(v.Float - o.Float)
}

// String renders the value for logs and CLI tables.
func (v Value) String() string {
	if !v.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(v.Float, 'f', 4, 64)
}

var jsonNull = []byte("null")

// MarshalJSON encodes null or the number.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return jsonNull, nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON accepts null or a number.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*v = Null
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}
