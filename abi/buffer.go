package abi

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Buffer is a flat array of 64-bit slots. All access is bounds checked.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a zeroed buffer of n slots.
func NewBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{data: make([]byte, n*SlotSize)}
}

// BufferFor allocates a buffer sized for types.
func BufferFor(types []wasm.ValType) *Buffer {
	return NewBuffer(SlotsOf(types))
}

// WrapBuffer uses data as the slot storage. len(data) must be a multiple of SlotSize.
func WrapBuffer(data []byte) (*Buffer, error) {
	if len(data)%SlotSize != 0 {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("buffer length %d is not a multiple of %d", len(data), SlotSize))
	}
	return &Buffer{data: data}, nil
}

// Slots returns the number of slots.
func (b *Buffer) Slots() int {
	return len(b.data) / SlotSize
}

// Bytes returns the underlying storage.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset zeroes every slot.
func (b *Buffer) Reset() {
	clear(b.data)
}

func (b *Buffer) check(slot, n int) error {
	if slot < 0 || slot+n > b.Slots() {
		return errors.OutOfBounds(errors.PhaseRuntime, []string{"slot"}, slot+n-1, b.Slots())
	}
	return nil
}

// Uint64 returns the raw contents of one slot.
func (b *Buffer) Uint64(slot int) (uint64, error) {
	if err := b.check(slot, 1); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[slot*SlotSize:]), nil
}

// SetUint64 overwrites one slot.
func (b *Buffer) SetUint64(slot int, v uint64) error {
	if err := b.check(slot, 1); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.data[slot*SlotSize:], v)
	return nil
}

// Load reads a value of type t starting at slot.
func (b *Buffer) Load(slot int, t wasm.ValType) (Value, error) {
	if err := b.check(slot, SlotCount(t)); err != nil {
		return Value{}, err
	}
	off := slot * SlotSize
	lo := binary.LittleEndian.Uint64(b.data[off:])
	if t == wasm.ValV128 {
		hi := binary.LittleEndian.Uint64(b.data[off+SlotSize:])
		return ValueV128(lo, hi), nil
	}
	return FromBits(t, lo), nil
}

// Store writes v starting at slot. Narrow values are zero-extended.
func (b *Buffer) Store(slot int, v Value) error {
	if err := b.check(slot, SlotCount(v.Type)); err != nil {
		return err
	}
	off := slot * SlotSize
	lo := v.Lo
	if v.Type == wasm.ValI32 || v.Type == wasm.ValF32 {
		lo &= 0xFFFFFFFF
	}
	binary.LittleEndian.PutUint64(b.data[off:], lo)
	if v.Type == wasm.ValV128 {
		binary.LittleEndian.PutUint64(b.data[off+SlotSize:], v.Hi)
	}
	return nil
}

// EncodeValues packs values into a new buffer following the slot rule.
func EncodeValues(types []wasm.ValType, values []Value) (*Buffer, error) {
	if len(types) != len(values) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("expected %d values, got %d", len(types), len(values)))
	}
	offsets, total := SlotOffsets(types)
	b := NewBuffer(total)
	for i, v := range values {
		if v.Type != types[i] {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, []string{fmt.Sprintf("value[%d]", i)},
				v.Type.String(), types[i].String())
		}
		if err := b.Store(offsets[i], v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// DecodeValues unpacks values of the given types following the slot rule.
func DecodeValues(b *Buffer, types []wasm.ValType) ([]Value, error) {
	offsets, _ := SlotOffsets(types)
	out := make([]Value, len(types))
	for i, t := range types {
		v, err := b.Load(offsets[i], t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
