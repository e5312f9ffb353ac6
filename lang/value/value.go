// Package value implements the tagged scalar/string variant manipulated by
// every other layer of lovm: the builder, the assembler and the virtual
// machine all exchange data exclusively through Value.
//
// Much of the shape of this package (the per-kind method set, the ordering
// and hashing conventions) is adapted from the lang/types and lang/machine
// packages of the Starlark-derived interpreter this module was grown from,
// collapsed here into a single tagged struct instead of a zoo of interface
// implementations, to match the closed, compiler-known set of kinds a
// bytecode operand can carry.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which case of Value is populated.
type Kind uint8

const (
	// Int8 is a signed 8-bit integer.
	Int8 Kind = iota
	// Int is a signed 64-bit integer.
	Int
	// Float is a 64-bit floating point number.
	Float
	// Ref is an unsigned index reference, typically an object pool handle.
	Ref
	// Bool is a boolean.
	Bool
	// Char is a single rune.
	Char
	// String is a UTF-8 string.
	String
)

func (k Kind) String() string {
	switch k {
	case Int8:
		return "i8"
	case Int:
		return "int"
	case Float:
		return "float"
	case Ref:
		return "ref"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case String:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind looks up the Kind whose name (as produced by Kind.String) is s,
// used by the assembler to resolve a `cast`'s `@type` suffix.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "i8":
		return Int8, true
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "ref":
		return Ref, true
	case "bool":
		return Bool, true
	case "char":
		return Char, true
	case "string":
		return String, true
	default:
		return 0, false
	}
}

// Value is a tagged variant over the scalar and string cases a lovm program
// may manipulate. It is always passed by value: none of its cases require
// heap indirection to copy cheaply, the String case aside.
type Value struct {
	kind Kind
	num  uint64 // Int8 (sign-extended), Int, Ref, Bool (0/1), Char (rune) and Float (bits) all live here
	str  string // only populated when kind == String
}

// NewInt8 returns a Value holding a signed 8-bit integer.
func NewInt8(n int8) Value { return Value{kind: Int8, num: uint64(uint8(n))} }

// NewInt returns a Value holding a signed 64-bit integer.
func NewInt(n int64) Value { return Value{kind: Int, num: uint64(n)} }

// NewFloat returns a Value holding a 64-bit float.
func NewFloat(f float64) Value { return Value{kind: Float, num: math.Float64bits(f)} }

// NewRef returns a Value holding an unsigned index reference.
func NewRef(n uint64) Value { return Value{kind: Ref, num: n} }

// NewBool returns a Value holding a boolean.
func NewBool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: Bool, num: n}
}

// NewChar returns a Value holding a single rune.
func NewChar(r rune) Value { return Value{kind: Char, num: uint64(r)} }

// NewString returns a Value holding a string.
func NewString(s string) Value { return Value{kind: String, str: s} }

// Kind reports which case the value holds.
func (v Value) Kind() Kind { return v.kind }

// Int8 returns the value as a signed 8-bit integer. It panics if the value is
// not of kind Int8.
func (v Value) Int8() int8 {
	v.mustBe(Int8)
	return int8(uint8(v.num))
}

// Int returns the value as a signed 64-bit integer. It panics if the value is
// not of kind Int.
func (v Value) Int() int64 {
	v.mustBe(Int)
	return int64(v.num)
}

// Float returns the value as a 64-bit float. It panics if the value is not of
// kind Float.
func (v Value) Float() float64 {
	v.mustBe(Float)
	return math.Float64frombits(v.num)
}

// RefIndex returns the value as an unsigned index reference. It panics if the
// value is not of kind Ref.
func (v Value) RefIndex() uint64 {
	v.mustBe(Ref)
	return v.num
}

// Bool returns the value as a boolean. It panics if the value is not of kind
// Bool.
func (v Value) Bool() bool {
	v.mustBe(Bool)
	return v.num != 0
}

// Char returns the value as a rune. It panics if the value is not of kind
// Char.
func (v Value) Char() rune {
	v.mustBe(Char)
	return rune(v.num)
}

// Str returns the value as a string. It panics if the value is not of kind
// String.
func (v Value) Str() string {
	v.mustBe(String)
	return v.str
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: %s accessed as %s", v.kind, k))
	}
}

// String renders the value in its display form, used by the Put interrupt
// and by textual dumps. A finite Float always renders with a '.', so that
// ParseValue reads it back as a Float.
func (v Value) String() string {
	switch v.kind {
	case Int8:
		return strconv.FormatInt(int64(v.Int8()), 10)
	case Int:
		return strconv.FormatInt(v.Int(), 10)
	case Float:
		f := v.Float()
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case Ref:
		return strconv.FormatUint(v.RefIndex(), 10)
	case Bool:
		return strconv.FormatBool(v.Bool())
	case Char:
		return string(v.Char())
	case String:
		return v.str
	default:
		return "<invalid value>"
	}
}

// asInt64 returns the value's numeric case widened to int64. It panics for
// String, which has no numeric representation.
func (v Value) asInt64() int64 {
	switch v.kind {
	case Int8:
		return int64(v.Int8())
	case Int:
		return v.Int()
	case Float:
		return int64(v.Float())
	case Ref:
		return int64(v.RefIndex())
	case Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case Char:
		return int64(v.Char())
	default:
		panic("value: string has no numeric representation")
	}
}

// asFloat64 returns the value's numeric case widened to float64.
func (v Value) asFloat64() float64 {
	if v.kind == Float {
		return v.Float()
	}
	return float64(v.asInt64())
}

// Hash returns a deterministic hash of the value. Floats hash by bit
// pattern, so two values that Equal reports equal always hash equal; 0.0 and
// -0.0 have different bit patterns and hash differently.
func (v Value) Hash() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	h := uint64(offset64)
	mix := func(x uint64) {
		h ^= x
		h *= prime64
	}

	mix(uint64(v.kind))
	switch v.kind {
	case String:
		for i := 0; i < len(v.str); i++ {
			mix(uint64(v.str[i]))
		}
	default:
		mix(v.num)
	}
	return h
}

// Equal reports whether v and o represent the same value. Values of
// different kinds are never equal, even when numerically equivalent; use
// Cast to coalesce before comparing if cross-kind equality is desired.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == String {
		return v.str == o.str
	}
	return v.num == o.num
}

func (k Kind) numeric() bool {
	return k != String
}

// Compare orders v against o. It returns (cmp, true) when the two values are
// compatible for ordering: both numeric (regardless of specific numeric
// kind), both Char, or the same kind. It returns (0, false) when the values
// cannot be meaningfully ordered against each other.
func (v Value) Compare(o Value) (int, bool) {
	if v.kind == String || o.kind == String {
		if v.kind != o.kind {
			return 0, false
		}
		switch {
		case v.str < o.str:
			return -1, true
		case v.str > o.str:
			return 1, true
		default:
			return 0, true
		}
	}
	if !v.kind.numeric() || !o.kind.numeric() {
		return 0, false
	}

	if v.kind == Float || o.kind == Float {
		x, y := v.asFloat64(), o.asFloat64()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}

	x, y := v.asInt64(), o.asInt64()
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	default:
		return 0, true
	}
}

// Cast reinterprets v toward the target kind, implementing the "coalesce
// toward self" rule used by binary arithmetic: the left operand's kind wins,
// and the right operand is cast into it before the operation executes.
func (v Value) Cast(k Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	switch k {
	case Int8:
		if v.kind == String {
			return Value{}, fmt.Errorf("value: cannot cast string to %s", k)
		}
		n := v.asInt64()
		if n < math.MinInt8 || n > math.MaxInt8 {
			return Value{}, fmt.Errorf("value: cannot cast %d to %s: out of range", n, k)
		}
		return NewInt8(int8(n)), nil
	case Int:
		if v.kind == String {
			return Value{}, fmt.Errorf("value: cannot cast string to %s", k)
		}
		return NewInt(v.asInt64()), nil
	case Float:
		if v.kind == String {
			return Value{}, fmt.Errorf("value: cannot cast string to %s", k)
		}
		return NewFloat(v.asFloat64()), nil
	case Ref:
		if v.kind == String {
			return Value{}, fmt.Errorf("value: cannot cast string to %s", k)
		}
		n := v.asInt64()
		if n < 0 {
			return Value{}, fmt.Errorf("value: cannot cast negative value %d to %s", n, k)
		}
		return NewRef(uint64(n)), nil
	case Bool:
		if v.kind == String {
			return NewBool(v.str != ""), nil
		}
		return NewBool(v.asInt64() != 0), nil
	case Char:
		if v.kind == String {
			return Value{}, fmt.Errorf("value: cannot cast string to %s", k)
		}
		return NewChar(rune(v.asInt64())), nil
	case String:
		return NewString(v.String()), nil
	default:
		return Value{}, fmt.Errorf("value: unknown target kind %s", k)
	}
}

// ParseValue parses the textual form used by the assembler's `#value`
// literals: "true"/"false" parse as Bool, a token containing a '.' parses as
// Float, otherwise the smallest signed integer kind that fits the literal is
// used (Int8 if it fits in 8 bits, Int otherwise).
func ParseValue(s string) (Value, error) {
	switch s {
	case "true":
		return NewBool(true), nil
	case "false":
		return NewBool(false), nil
	}
	for _, r := range s {
		if r == '.' {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, fmt.Errorf("value: invalid float literal %q: %w", s, err)
			}
			return NewFloat(f), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid integer literal %q: %w", s, err)
	}
	if n >= math.MinInt8 && n <= math.MaxInt8 {
		return NewInt8(int8(n)), nil
	}
	return NewInt(n), nil
}
