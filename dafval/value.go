// Package dafval models StorageScalar: the tagged union of value kinds a
// daf-go store can hold for scalars and vector/matrix elements.
//
// A plain Kind tag plus union-of-fields struct: a tagged union over a type
// hierarchy, without unsafe pointer packing.
package dafval

import (
	"fmt"
	"math"

	"github.com/tanaylab/daf-go/internal/daferr"
)

// Kind identifies which StorageScalar alternative a Value holds.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
)

// String names a Kind the way the wire-canonical element types are spelled
// in the external interface.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUint8:
		return "UInt8"
	case KindUint16:
		return "UInt16"
	case KindUint32:
		return "UInt32"
	case KindUint64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	default:
		return "Unknown"
	}
}

// IsNumeric reports whether values of this kind may appear in a matrix.
func (k Kind) IsNumeric() bool {
	return k != KindString
}

// Value is a single StorageScalar instance.
type Value struct {
	kind Kind
	b    bool
	i    int64   // holds Int8..Int64 sign-extended
	u    uint64  // holds UInt8..UInt64
	f32  float32 // holds Float32
	f64  float64 // holds Float64
	s    string
}

func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Int8(v int8) Value     { return Value{kind: KindInt8, i: int64(v)} }
func Int16(v int16) Value   { return Value{kind: KindInt16, i: int64(v)} }
func Int32(v int32) Value   { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value   { return Value{kind: KindInt64, i: v} }
func Uint8(v uint8) Value   { return Value{kind: KindUint8, u: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, u: uint64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, u: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, u: v} }
func Float32(v float32) Value {
	return Value{kind: KindFloat32, f32: v}
}
func Float64(v float64) Value { return Value{kind: KindFloat64, f64: v} }
func String(v string) Value   { return Value{kind: KindString, s: v} }

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// AsFloat64 widens any numeric kind (including bool, as 0/1) to float64 for
// use in element-wise/reduction arithmetic. It panics on String; the
// evaluator must check Kind before calling.
func (v Value) AsFloat64() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return float64(v.i)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return float64(v.u)
	case KindFloat32:
		return float64(v.f32)
	case KindFloat64:
		return v.f64
	default:
		panic(fmt.Sprintf("dafval: AsFloat64 on %s", v.kind))
	}
}

// AsFloat64OrZero widens like AsFloat64 but returns 0 for KindString instead
// of panicking, for backend code that generically packs a mixed batch of
// scalar/vector/matrix elements into a single numeric wire buffer and
// handles the String case separately.
func (v Value) AsFloat64OrZero() float64 {
	if v.kind == KindString {
		return 0
	}
	return v.AsFloat64()
}

// AsString returns the string payload; panics if Kind() != KindString.
func (v Value) AsString() string {
	if v.kind != KindString {
		panic(fmt.Sprintf("dafval: AsString on %s", v.kind))
	}
	return v.s
}

// AsBool returns the bool payload; panics if Kind() != KindBool.
func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic(fmt.Sprintf("dafval: AsBool on %s", v.kind))
	}
	return v.b
}

// FromFloat64 builds a Value of the requested numeric kind from a float64,
// used when materializing element-wise/reduction results. Kind must
// be numeric.
func FromFloat64(k Kind, f float64) Value {
	switch k {
	case KindBool:
		return Bool(f != 0)
	case KindInt8:
		return Int8(int8(f))
	case KindInt16:
		return Int16(int16(f))
	case KindInt32:
		return Int32(int32(f))
	case KindInt64:
		return Int64(int64(f))
	case KindUint8:
		return Uint8(uint8(f))
	case KindUint16:
		return Uint16(uint16(f))
	case KindUint32:
		return Uint32(uint32(f))
	case KindUint64:
		return Uint64(uint64(f))
	case KindFloat32:
		return Float32(float32(f))
	case KindFloat64:
		return Float64(f)
	default:
		panic(fmt.Sprintf("dafval: FromFloat64 on %s", k))
	}
}

// Equal compares two values for logical equality, widening numeric kinds.
func Equal(a, b Value) bool {
	if a.kind == KindString || b.kind == KindString {
		return a.kind == KindString && b.kind == KindString && a.s == b.s
	}
	if a.kind == KindBool || b.kind == KindBool {
		return a.kind == b.kind && a.b == b.b
	}
	return a.AsFloat64() == b.AsFloat64()
}

// Validate checks that v is a value of kind k, returning
// ErrUnsupportedElementType on mismatch. Used by the facade before a set_*
// call persists a scalar/vector/matrix element.
func Validate(k Kind, v Value) error {
	if v.kind != k {
		return fmt.Errorf("%w: expected %s, got %s", daferr.ErrUnsupportedElementType, k, v.kind)
	}
	if v.kind == KindFloat32 && math.IsNaN(float64(v.f32)) {
		return nil // NaN is a legal float32 payload, just flagging the branch is reachable
	}
	return nil
}

// ComputeSize returns the approximate in-memory footprint of v in bytes,
// feeding the facade cache's budget accounting.
func (v Value) ComputeSize() int {
	const header = 24 // tag + widest numeric payload
	if v.kind == KindString {
		return header + len(v.s)
	}
	return header
}

// ZeroValue returns the additive identity of kind k, used to fill sparse
// matrix gaps and "empty" defaults in copy_all!.
func ZeroValue(k Kind) Value {
	if k == KindString {
		return String("")
	}
	return FromFloat64(k, 0)
}
