package abi

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-compiler/wasm"
)

// Value is a typed WebAssembly value. Scalars use Lo; V128 uses both halves.
type Value struct {
	Lo   uint64
	Hi   uint64
	Type wasm.ValType
}

func ValueI32(v int32) Value { return Value{Type: wasm.ValI32, Lo: uint64(uint32(v))} }
func ValueI64(v int64) Value { return Value{Type: wasm.ValI64, Lo: uint64(v)} }
func ValueF32(v float32) Value {
	return Value{Type: wasm.ValF32, Lo: uint64(math.Float32bits(v))}
}
func ValueF64(v float64) Value { return Value{Type: wasm.ValF64, Lo: math.Float64bits(v)} }
func ValueV128(lo, hi uint64) Value {
	return Value{Type: wasm.ValV128, Lo: lo, Hi: hi}
}

// FromBits builds a scalar value of type t from its raw bits.
func FromBits(t wasm.ValType, bits uint64) Value {
	if t == wasm.ValI32 || t == wasm.ValF32 {
		bits &= math.MaxUint32
	}
	return Value{Type: t, Lo: bits}
}

func (v Value) I32() int32   { return int32(uint32(v.Lo)) }
func (v Value) I64() int64   { return int64(v.Lo) }
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.Lo)) }
func (v Value) F64() float64 { return math.Float64frombits(v.Lo) }

// V128 returns the low and high 64-bit lanes.
func (v Value) V128() (lo, hi uint64) { return v.Lo, v.Hi }

func (v Value) String() string {
	switch v.Type {
	case wasm.ValI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case wasm.ValI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case wasm.ValF32:
		return fmt.Sprintf("f32:%g", v.F32())
	case wasm.ValF64:
		return fmt.Sprintf("f64:%g", v.F64())
	case wasm.ValV128:
		return fmt.Sprintf("v128:%016x%016x", v.Hi, v.Lo)
	}
	return fmt.Sprintf("%s:%#x", v.Type, v.Lo)
}

// ParseValue parses the text form of a value of type t. V128 accepts
// "lo:hi" in hexadecimal or decimal.
func ParseValue(t wasm.ValType, s string) (Value, error) {
	switch t {
	case wasm.ValI32:
		var n int64
		if _, err := fmt.Sscan(s, &n); err != nil {
			return Value{}, fmt.Errorf("parse i32 %q: %w", s, err)
		}
		if n < math.MinInt32 || n > math.MaxUint32 {
			return Value{}, fmt.Errorf("parse i32 %q: out of range", s)
		}
		return Value{Type: t, Lo: uint64(uint32(n))}, nil
	case wasm.ValI64:
		var n int64
		if _, err := fmt.Sscan(s, &n); err != nil {
			return Value{}, fmt.Errorf("parse i64 %q: %w", s, err)
		}
		return ValueI64(n), nil
	case wasm.ValF32:
		var f float32
		if _, err := fmt.Sscan(s, &f); err != nil {
			return Value{}, fmt.Errorf("parse f32 %q: %w", s, err)
		}
		return ValueF32(f), nil
	case wasm.ValF64:
		var f float64
		if _, err := fmt.Sscan(s, &f); err != nil {
			return Value{}, fmt.Errorf("parse f64 %q: %w", s, err)
		}
		return ValueF64(f), nil
	case wasm.ValV128:
		var lo, hi uint64
		if _, err := fmt.Sscanf(s, "%v:%v", &lo, &hi); err != nil {
			return Value{}, fmt.Errorf("parse v128 %q: %w", s, err)
		}
		return ValueV128(lo, hi), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %s", t)
}
