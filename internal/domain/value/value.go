// Package value holds the tagged case value computed once at ingest.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tells the renderer how to treat a value.
type Kind string

const (
	// Numeric values are right-aligned and formatted with the attribute precision.
	Numeric Kind = "numeric"
	// Text values are rendered verbatim.
	Text Kind = "text"
	// Empty marks a missing value or an empty string.
	Empty Kind = "empty"
)

// Value is an immutable tagged case value.
type Value struct {
	kind      Kind
	raw       any
	formatted string
}

// New classifies raw and pre-formats it. precision applies to numeric values only; nil keeps full precision.
func New(raw any, precision *int) Value {
	switch v := raw.(type) {
	case nil:
		return Value{kind: Empty}
	case string:
		if v == "" {
			return Value{kind: Empty, raw: v}
		}
		return Value{kind: Text, raw: v, formatted: v}
	case bool:
		return Value{kind: Text, raw: v, formatted: strconv.FormatBool(v)}
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Value{kind: Text, raw: v.String(), formatted: v.String()}
		}
		return numeric(f, precision)
	case float64:
		return numeric(v, precision)
	case float32:
		return numeric(float64(v), precision)
	case int:
		return numeric(float64(v), precision)
	case int64:
		return numeric(float64(v), precision)
	case int32:
		return numeric(float64(v), precision)
	default:
		s := fmt.Sprint(v)
		return Value{kind: Text, raw: s, formatted: s}
	}
}

func numeric(f float64, precision *int) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{kind: Empty, raw: f}
	}
	prec := -1
	if precision != nil && *precision >= 0 {
		prec = *precision
	}
	return Value{kind: Numeric, raw: f, formatted: strconv.FormatFloat(f, 'f', prec, 64)}
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Raw returns the value as received from the host.
func (v Value) Raw() any { return v.raw }

// Formatted returns the display string.
func (v Value) Formatted() string { return v.formatted }

// IsEmpty reports whether the value is missing.
func (v Value) IsEmpty() bool { return v.kind == Empty || v.kind == "" }

// Number returns the numeric value when Kind is Numeric.
func (v Value) Number() (float64, bool) {
	if v.kind != Numeric {
		return 0, false
	}
	f, ok := v.raw.(float64)
	return f, ok
}

// Reformat re-applies a precision to a numeric value. Other kinds are returned unchanged.
func (v Value) Reformat(precision *int) Value {
	f, ok := v.Number()
	if !ok {
		return v
	}
	return numeric(f, precision)
}

type wireValue struct {
	Kind      Kind   `json:"kind"`
	Raw       any    `json:"raw"`
	Formatted string `json:"formatted"`
}

// MarshalJSON encodes the value as {kind, raw, formatted}.
func (v Value) MarshalJSON() ([]byte, error) {
	kind := v.kind
	if kind == "" {
		kind = Empty
	}
	b, err := json.Marshal(wireValue{Kind: kind, Raw: v.raw, Formatted: v.formatted})
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}
