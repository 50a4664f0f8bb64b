package abi

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Field is one member of a struct-return aggregate.
type Field struct {
	Type   wasm.ValType
	Offset int
}

// Layout describes a struct-return aggregate: result types packed in
// order with natural alignment.
type Layout struct {
	Fields []Field
	Size   int
	Align  int
}

// LayoutOf computes the aggregate layout for the given result types.
func LayoutOf(types []wasm.ValType) Layout {
	l := Layout{Fields: make([]Field, len(types)), Align: 1}
	off := 0
	for i, t := range types {
		size := BitWidth(t) / 8
		off = alignUp(off, size)
		l.Fields[i] = Field{Type: t, Offset: off}
		off += size
		if size > l.Align {
			l.Align = size
		}
	}
	l.Size = alignUp(off, l.Align)
	return l
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func (l Layout) String() string {
	s := fmt.Sprintf("{size=%d align=%d", l.Size, l.Align)
	for _, f := range l.Fields {
		s += fmt.Sprintf(" %s@%d", f.Type, f.Offset)
	}
	return s + "}"
}

// Aggregate is caller-allocated memory that an indirectly returning
// callee writes its results into.
type Aggregate struct {
	mem    []byte
	layout Layout
}

// NewAggregate allocates zeroed storage for l.
func NewAggregate(l Layout) *Aggregate {
	return &Aggregate{layout: l, mem: make([]byte, l.Size)}
}

// Layout returns the aggregate's layout.
func (a *Aggregate) Layout() Layout {
	return a.layout
}

// Len returns the number of fields.
func (a *Aggregate) Len() int {
	return len(a.layout.Fields)
}

func (a *Aggregate) field(i int) (Field, error) {
	if i < 0 || i >= len(a.layout.Fields) {
		return Field{}, errors.OutOfBounds(errors.PhaseRuntime, []string{"sret"}, i, len(a.layout.Fields))
	}
	return a.layout.Fields[i], nil
}

// Load reads field i.
func (a *Aggregate) Load(i int) (Value, error) {
	f, err := a.field(i)
	if err != nil {
		return Value{}, err
	}
	p := a.mem[f.Offset:]
	switch BitWidth(f.Type) {
	case 32:
		return FromBits(f.Type, uint64(binary.LittleEndian.Uint32(p))), nil
	case 128:
		return ValueV128(binary.LittleEndian.Uint64(p), binary.LittleEndian.Uint64(p[8:])), nil
	}
	return FromBits(f.Type, binary.LittleEndian.Uint64(p)), nil
}

// Store writes field i. The value's type must match the field.
func (a *Aggregate) Store(i int, v Value) error {
	f, err := a.field(i)
	if err != nil {
		return err
	}
	if v.Type != f.Type {
		return errors.TypeMismatch(errors.PhaseRuntime, []string{"sret", fmt.Sprint(i)}, v.Type.String(), f.Type.String())
	}
	p := a.mem[f.Offset:]
	switch BitWidth(f.Type) {
	case 32:
		binary.LittleEndian.PutUint32(p, uint32(v.Lo))
	case 128:
		binary.LittleEndian.PutUint64(p, v.Lo)
		binary.LittleEndian.PutUint64(p[8:], v.Hi)
	default:
		binary.LittleEndian.PutUint64(p, v.Lo)
	}
	return nil
}

// StoreAll writes values into consecutive fields.
func (a *Aggregate) StoreAll(values []Value) error {
	if len(values) != a.Len() {
		return errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("aggregate has %d fields, got %d values", a.Len(), len(values)))
	}
	for i, v := range values {
		if err := a.Store(i, v); err != nil {
			return err
		}
	}
	return nil
}
