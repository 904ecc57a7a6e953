// Package value implements the typed data calculus carried on every
// event: a recursive sum type of booleans, signed and unsigned 64-bit integers,
// doubles, strings, byte strings, arrays, and string-keyed maps, plus the
// total ordering predicates need to compare two values.
package value

import (
	"fmt"
	"sort"
)

// Kind identifies which alternative of the sum type a Value holds.
type Kind int

const (
	KindBool Kind = iota
	KindInt64
	KindUint64
	KindDouble
	KindString
	KindBytes
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one node of the recursive data calculus. Only the field
// matching Kind is meaningful; the zero Value is a KindBool false.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Uint   uint64
	Double float64
	Str    string
	Bytes  []byte
	Array  []Value
	Map    map[string]Value
}

func Bool(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value   { return Value{Kind: KindInt64, Int: i} }
func Uint(u uint64) Value { return Value{Kind: KindUint64, Uint: u} }
func Double(d float64) Value { return Value{Kind: KindDouble, Double: d} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value   { return Value{Kind: KindBytes, Bytes: b} }
func Array(a []Value) Value  { return Value{Kind: KindArray, Array: a} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// Lookup resolves a single key against a map-kind Value. ok is false if
// the receiver is not a map or the key is absent.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	sub, ok := v.Map[key]
	return sub, ok
}

// numeric reports whether the value is one of the numeric kinds and
// returns it widened to float64 for cross-width comparison.
func numeric(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.Int), true
	case KindUint64:
		return float64(v.Uint), true
	case KindDouble:
		return v.Double, true
	default:
		return 0, false
	}
}

// Compare implements the canonical total ordering used by §4.1's
// predicate evaluation: numeric values compare numerically regardless
// of width, strings compare lexicographically, byte strings compare
// byte-wise, booleans compare false<true, arrays and maps compare by
// length then element-wise/key-wise. Compare returns (-1, true) or
// (0, true) or (1, true) on success; (0, false) on a type mismatch that
// cannot be ordered (per spec.md §4.1, a type mismatch makes the owning
// predicate false, not merely unordered — callers must check ok).
func Compare(a, b Value) (result int, ok bool) {
	if an, aok := numeric(a); aok {
		if bn, bok := numeric(b); bok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if a.Kind != b.Kind {
		return 0, false
	}

	switch a.Kind {
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0, true
		case !a.Bool:
			return -1, true
		default:
			return 1, true
		}
	case KindString:
		return cmpString(a.Str, b.Str), true
	case KindBytes:
		return cmpBytes(a.Bytes, b.Bytes), true
	case KindArray:
		return cmpArray(a.Array, b.Array)
	case KindMap:
		return cmpMap(a.Map, b.Map)
	default:
		return 0, false
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func cmpArray(a, b []Value) (int, bool) {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1, true
		}
		return 1, true
	}
	for i := range a {
		r, ok := Compare(a[i], b[i])
		if !ok {
			return 0, false
		}
		if r != 0 {
			return r, true
		}
	}
	return 0, true
}

func cmpMap(a, b map[string]Value) (int, bool) {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1, true
		}
		return 1, true
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok {
			return 0, false
		}
		r, ok := Compare(a[k], bv)
		if !ok {
			return 0, false
		}
		if r != 0 {
			return r, true
		}
	}
	return 0, true
}

// String renders a Value for logging/dump purposes; it is not a parser
// round-trip format.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt64:
		return fmt.Sprintf("%d", v.Int)
	case KindUint64:
		return fmt.Sprintf("%d", v.Uint)
	case KindDouble:
		return fmt.Sprintf("%g", v.Double)
	case KindString:
		return v.Str
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case KindArray:
		return fmt.Sprintf("<array len=%d>", len(v.Array))
	case KindMap:
		return fmt.Sprintf("<map len=%d>", len(v.Map))
	default:
		return "<invalid>"
	}
}
