package metadata

import (
	"math"
	"strconv"
	"strings"
	"unique"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindBool represents a boolean value.
	KindBool
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
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
	default:
		return "invalid"
	}
}

// Value is a small typed value used for metadata documents and filters.
//
// The representation is designed to make filtering fast and predictable:
// no reflection and no fmt-based stringification. Ordering is defined only
// within a single Kind; one index bucket never mixes kinds.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	s    unique.Handle[string]
	B    bool
}

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, s: unique.Make(v)} }

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s.Value(), true
}

// StringValue returns the string value if Kind is KindString, otherwise "".
func (v Value) StringValue() string {
	if v.Kind == KindString {
		return v.s.Value()
	}
	return ""
}

// Key returns a stable string representation for use in maps.
//
// It is intended for internal indexing (inverted indexes) and must remain
// stable across versions for persisted usage.
func (v Value) Key() string {
	switch v.Kind {
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	case KindInt:
		return "i:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return "f:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindString:
		return "s:" + v.s.Value()
	default:
		return "invalid"
	}
}

// Compare orders v against other within one Kind: -1, 0 or +1.
// Comparing values of different kinds is a programming error; the result for
// mixed kinds orders by Kind tag so that sorting stays total, but callers
// must never place mixed kinds in one index bucket.
func (v Value) Compare(other Value) int {
	if v.Kind != other.Kind {
		if v.Kind < other.Kind {
			return -1
		}
		return 1
	}
	switch v.Kind {
	case KindBool:
		switch {
		case v.B == other.B:
			return 0
		case !v.B:
			return -1
		default:
			return 1
		}
	case KindInt:
		switch {
		case v.I64 < other.I64:
			return -1
		case v.I64 > other.I64:
			return 1
		default:
			return 0
		}
	case KindFloat:
		switch {
		case v.F64 < other.F64:
			return -1
		case v.F64 > other.F64:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(v.s.Value(), other.s.Value())
	default:
		return 0
	}
}

// Equal reports whether v and other hold the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.Kind == other.Kind && v.Compare(other) == 0
}

// Document is a typed metadata document.
type Document map[string]Value

// Clone creates a copy of the metadata document.
// Values are immutable, so a shallow copy of the map suffices.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// Merge returns a document holding base overlaid with overlay.
// Keys present in overlay win. Neither input is mutated.
func Merge(base, overlay Document) Document {
	if len(overlay) == 0 {
		return base.Clone()
	}
	out := make(Document, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
