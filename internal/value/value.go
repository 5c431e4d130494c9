// Package value implements the polymorphic attribute value used across
// config, input, and output attributes.
package value

import "fmt"

// Kind identifies which variant a Value currently holds.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindComposite
	KindNotActive
	KindEmpty
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindComposite:
		return "composite"
	case KindNotActive:
		return "not_active"
	case KindEmpty:
		return "empty"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is a tagged sum over the attribute value domain: boolean, integer,
// float, string, not_active, empty, null, a symbolic tag, or a composite
// (map) payload. No variant coerces into another implicitly.
type Value struct {
	kind      Kind
	b         bool
	i         int64
	f         float64
	s         string
	composite map[string]Value
}

func Bool(b bool) Value                     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value                     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value                 { return Value{kind: KindFloat, f: f} }
func String(s string) Value                 { return Value{kind: KindString, s: s} }
func Symbol(s string) Value                 { return Value{kind: KindSymbol, s: s} }
func Composite(m map[string]Value) Value    { return Value{kind: KindComposite, composite: m} }
func NotActive() Value                      { return Value{kind: KindNotActive} }
func Empty() Value                          { return Value{kind: KindEmpty} }
func Null() Value                           { return Value{kind: KindNull} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNotActive() bool { return v.kind == KindNotActive }
func (v Value) IsEmpty() bool     { return v.kind == KindEmpty }
func (v Value) IsNull() bool      { return v.kind == KindNull }

// AsBool returns the boolean payload; ok is false if the Value isn't KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer payload; ok is false if the Value isn't KindInt.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the float payload; ok is false if the Value isn't KindFloat.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsString returns the string payload; ok is false if the Value isn't KindString or KindSymbol.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString && v.kind != KindSymbol {
		return "", false
	}
	return v.s, true
}

// AsComposite returns the composite payload; ok is false if the Value isn't KindComposite.
func (v Value) AsComposite() (map[string]Value, bool) {
	if v.kind != KindComposite {
		return nil, false
	}
	return v.composite, true
}

// Equal reports whether two values are identical in kind and payload.
// Used by the dataflow propagator to detect output changes.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString, KindSymbol:
		return v.s == other.s
	case KindComposite:
		if len(v.composite) != len(other.composite) {
			return false
		}
		for k, val := range v.composite {
			ov, ok := other.composite[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		// NotActive, Empty, Null carry no payload; equal kind is equal value.
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindSymbol:
		return v.s
	case KindComposite:
		return fmt.Sprintf("%v", v.composite)
	default:
		return v.kind.String()
	}
}
