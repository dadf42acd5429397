// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
)

// ParamKind discriminates the value held by a ParamValue
type ParamKind string

// Param kinds
const (
	ParamString ParamKind = "string"
	ParamNumber ParamKind = "number"
	ParamBool   ParamKind = "bool"
	ParamList   ParamKind = "list"
	ParamMap    ParamKind = "map"
)

// ParamValue is a small tagged union holding one template parameter value.
// It keeps work-item parameter bags flexible while making serialization
// unambiguous: exactly one of the value fields is populated, per Kind.
type ParamValue struct {
	Kind   ParamKind
	Str    string
	Num    float64
	Bool   bool
	List   []ParamValue
	Fields map[string]ParamValue
}

// Params is an opaque key/value bag attached to a work item
type Params map[string]ParamValue

// StringParam builds a string-valued parameter
func StringParam(s string) ParamValue { return ParamValue{Kind: ParamString, Str: s} }

// NumberParam builds a number-valued parameter
func NumberParam(n float64) ParamValue { return ParamValue{Kind: ParamNumber, Num: n} }

// BoolParam builds a bool-valued parameter
func BoolParam(b bool) ParamValue { return ParamValue{Kind: ParamBool, Bool: b} }

// ListParam builds a list-valued parameter
func ListParam(items ...ParamValue) ParamValue { return ParamValue{Kind: ParamList, List: items} }

// MapParam builds a map-valued parameter
func MapParam(fields map[string]ParamValue) ParamValue {
	return ParamValue{Kind: ParamMap, Fields: fields}
}

// String renders the parameter as the text substituted into templates.
// Lists render comma-separated; maps render as compact JSON.
func (v ParamValue) String() string {
	switch v.Kind {
	case ParamString:
		return v.Str
	case ParamNumber:
		// Trim the trailing ".0" style noise for integral values
		if v.Num == float64(int64(v.Num)) {
			return fmt.Sprintf("%d", int64(v.Num))
		}
		return fmt.Sprintf("%g", v.Num)
	case ParamBool:
		return fmt.Sprintf("%t", v.Bool)
	case ParamList:
		out := ""
		for i, item := range v.List {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out
	case ParamMap:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

// MarshalJSON serializes the parameter as plain JSON of the underlying value
func (v ParamValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ParamString:
		return json.Marshal(v.Str)
	case ParamNumber:
		return json.Marshal(v.Num)
	case ParamBool:
		return json.Marshal(v.Bool)
	case ParamList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case ParamMap:
		if v.Fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Fields)
	}
	return nil, fmt.Errorf("unknown param kind %q", v.Kind)
}

// UnmarshalJSON infers the kind from the JSON value shape
func (v *ParamValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	if v.Kind == "" {
		return fmt.Errorf("unsupported param value: %s", string(data))
	}
	return nil
}

// fromAny converts a decoded JSON value into a ParamValue.
// Null and unsupported shapes produce a zero ParamValue.
func fromAny(raw any) ParamValue {
	switch val := raw.(type) {
	case string:
		return StringParam(val)
	case float64:
		return NumberParam(val)
	case bool:
		return BoolParam(val)
	case []any:
		items := make([]ParamValue, 0, len(val))
		for _, item := range val {
			items = append(items, fromAny(item))
		}
		return ParamValue{Kind: ParamList, List: items}
	case map[string]any:
		fields := make(map[string]ParamValue, len(val))
		for k, item := range val {
			fields[k] = fromAny(item)
		}
		return ParamValue{Kind: ParamMap, Fields: fields}
	}
	return ParamValue{}
}
