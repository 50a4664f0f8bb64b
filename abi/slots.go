package abi

import "github.com/wippyai/wasm-compiler/wasm"

// SlotSize is the width in bytes of one generic buffer slot.
const SlotSize = 8

// SlotCount returns how many slots a value of type t occupies. Every
// layout computation in the compiler goes through this function.
func SlotCount(t wasm.ValType) int {
	if t == wasm.ValV128 {
		return 2
	}
	return 1
}

// SlotOffsets returns the slot offset of each type and the total slot count.
func SlotOffsets(types []wasm.ValType) (offsets []int, total int) {
	offsets = make([]int, len(types))
	for i, t := range types {
		offsets[i] = total
		total += SlotCount(t)
	}
	return offsets, total
}

// SlotsOf returns the total slot count of types.
func SlotsOf(types []wasm.ValType) int {
	_, total := SlotOffsets(types)
	return total
}

// BitWidth returns the width of t in bits.
func BitWidth(t wasm.ValType) int {
	switch t {
	case wasm.ValI32, wasm.ValF32:
		return 32
	case wasm.ValV128:
		return 128
	}
	return 64
}

// BitWidths maps each type to its width in bits.
func BitWidths(types []wasm.ValType) []int {
	out := make([]int, len(types))
	for i, t := range types {
		out[i] = BitWidth(t)
	}
	return out
}
