package content

import (
	"strconv"

	"quire/geom"
)

// ValueKind tags which field of a Value is meaningful.
type ValueKind int

const (
	ValueKeyword ValueKind = iota // bare identifier, e.g. paper names
	ValueString                   // quoted string
	ValueLength
	ValueInt
	ValueFloat
	ValueBool
)

// String returns a short name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case ValueKeyword:
		return "keyword"
	case ValueString:
		return "string"
	case ValueLength:
		return "length"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	default:
		return "keyword"
	}
}

// Value is a parsed property value. Raw always keeps the original spelling,
// the typed fields are filled according to Kind.
type Value struct {
	Raw    string
	Kind   ValueKind
	Length geom.Length
	Str    string
	Int    int
	Float  float64
	Bool   bool
}

// KeywordValue returns a bare identifier value.
func KeywordValue(s string) Value {
	return Value{Raw: s, Kind: ValueKeyword, Str: s}
}

// StringValue returns a quoted string value.
func StringValue(s string) Value {
	return Value{Raw: strconv.Quote(s), Kind: ValueString, Str: s}
}

// LengthValue returns a length value.
func LengthValue(l geom.Length) Value {
	return Value{Raw: l.String(), Kind: ValueLength, Length: l}
}

// IntValue returns an integer value.
func IntValue(i int) Value {
	return Value{Raw: strconv.Itoa(i), Kind: ValueInt, Int: i, Float: float64(i)}
}

// FloatValue returns a floating point value.
func FloatValue(f float64) Value {
	return Value{Raw: strconv.FormatFloat(f, 'f', -1, 64), Kind: ValueFloat, Float: f}
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	return Value{Raw: strconv.FormatBool(b), Kind: ValueBool, Bool: b}
}

// Text returns the string payload for keyword and string values, otherwise
// the raw spelling.
func (v Value) Text() string {
	if v.Kind == ValueKeyword || v.Kind == ValueString {
		return v.Str
	}
	return v.Raw
}
