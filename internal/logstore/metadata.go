// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchtower/internal/logging"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
)

// Value is a metadata value: a string, number, bool, or nested Metadata.
// The zero Value is invalid and is dropped on redaction.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    Metadata
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int returns a numeric Value from an integer.
func Int(n int64) Value { return Value{kind: KindNumber, num: float64(n)} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Map returns a nested Value.
func Map(m Metadata) Value { return Value{kind: KindMap, m: m} }

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string variant, or "" for other kinds.
func (v Value) Str() string { return v.str }

// Num returns the numeric variant, or 0 for other kinds.
func (v Value) Num() float64 { return v.num }

// BoolVal returns the boolean variant, or false for other kinds.
func (v Value) BoolVal() bool { return v.b }

// MapVal returns the nested variant, or nil for other kinds.
func (v Value) MapVal() Metadata { return v.m }

// Text renders the value for flat outputs such as CSV.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindMap:
		return v.m.String()
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return nil, errors.New("metadata: invalid value")
	}
}

// UnmarshalJSON accepts strings, numbers, booleans and objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromAny(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("metadata: %w", err)
		}
		return Number(f), nil
	case float64:
		return Number(x), nil
	case map[string]interface{}:
		m := make(Metadata, len(x))
		for k, item := range x {
			val, err := valueFromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("metadata key %q: %w", k, err)
			}
			m[k] = val
		}
		return Map(m), nil
	case nil:
		return Value{}, errors.New("metadata: null is not allowed")
	default:
		return Value{}, fmt.Errorf("metadata: unsupported type %T", raw)
	}
}

// Metadata is structured key/value context attached to a record.
type Metadata map[string]Value

// Redact returns a deep copy in which values under sensitive keys are
// replaced with "[REDACTED]" and invalid values are dropped.
func (m Metadata) Redact() Metadata {
	if len(m) == 0 {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == KindInvalid {
			continue
		}
		if logging.IsSensitiveKey(k) {
			out[k] = String(logging.RedactedValue)
			continue
		}
		if v.kind == KindMap {
			nested := v.m.Redact()
			if nested == nil {
				nested = Metadata{}
			}
			out[k] = Map(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// String renders the metadata as JSON, or "" when empty.
func (m Metadata) String() string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseMetadata decodes a JSON object. Empty input yields nil.
func ParseMetadata(data string) (Metadata, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return m, nil
}
