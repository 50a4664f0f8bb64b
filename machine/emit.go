package machine

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/wasm-compiler/wasm"
)

// OpCode is one step of a trampoline program.
type OpCode byte

const (
	OpAllocSRet OpCode = iota + 1
	OpPassSRet
	OpPassContext
	OpLoadArg
	OpCall
	OpCanonNaN
	OpStoreResult
	OpLoadSRetField
	OpReturn
)

var opNames = map[OpCode]string{
	OpAllocSRet:     "alloc.sret",
	OpPassSRet:      "pass.sret",
	OpPassContext:   "pass.ctx",
	OpLoadArg:       "load.arg",
	OpCall:          "call",
	OpCanonNaN:      "canon.nan",
	OpStoreResult:   "store.result",
	OpLoadSRetField: "load.sret",
	OpReturn:        "ret",
}

func (c OpCode) String() string {
	if n, ok := opNames[c]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", byte(c))
}

// Op is a single trampoline instruction.
//
// Slot is a generic buffer slot, Index an argument, result or aggregate
// field index and Imm an op specific immediate (aggregate size, field
// offset or attribute count).
type Op struct {
	Loc   Location
	Slot  int
	Index int
	Imm   int
	Code  OpCode
	Type  wasm.ValType
}

func (o Op) String() string {
	switch o.Code {
	case OpAllocSRet:
		return fmt.Sprintf("%-12s fields=%d size=%d", o.Code, o.Index, o.Imm)
	case OpPassSRet, OpPassContext:
		return fmt.Sprintf("%-12s -> %s", o.Code, o.Loc)
	case OpLoadArg:
		return fmt.Sprintf("%-12s %s args[%d] -> %s", o.Code, o.Type, o.Slot, o.Loc)
	case OpCall:
		return fmt.Sprintf("%-12s attrs=%d", o.Code, o.Imm)
	case OpCanonNaN:
		return fmt.Sprintf("%-12s %s result%d", o.Code, o.Type, o.Index)
	case OpStoreResult:
		return fmt.Sprintf("%-12s %s %s -> returns[%d]", o.Code, o.Type, o.Loc, o.Slot)
	case OpLoadSRetField:
		return fmt.Sprintf("%-12s %s sret+%d -> returns[%d]", o.Code, o.Type, o.Imm, o.Slot)
	}
	return o.Code.String()
}

// Emitter collects the ops of one trampoline. It is not shared between
// goroutines.
type Emitter struct {
	ops []Op
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) AllocSRet(fields, size int) {
	e.ops = append(e.ops, Op{Code: OpAllocSRet, Index: fields, Imm: size})
}

func (e *Emitter) PassSRet(loc Location) {
	e.ops = append(e.ops, Op{Code: OpPassSRet, Loc: loc})
}

func (e *Emitter) PassContext(loc Location) {
	e.ops = append(e.ops, Op{Code: OpPassContext, Loc: loc})
}

func (e *Emitter) LoadArg(index, slot int, t wasm.ValType, loc Location) {
	e.ops = append(e.ops, Op{Code: OpLoadArg, Index: index, Slot: slot, Type: t, Loc: loc})
}

func (e *Emitter) Call(attrs int) {
	e.ops = append(e.ops, Op{Code: OpCall, Imm: attrs})
}

func (e *Emitter) CanonNaN(index int, t wasm.ValType) {
	e.ops = append(e.ops, Op{Code: OpCanonNaN, Index: index, Type: t})
}

func (e *Emitter) StoreResult(index, slot int, t wasm.ValType, loc Location) {
	e.ops = append(e.ops, Op{Code: OpStoreResult, Index: index, Slot: slot, Type: t, Loc: loc})
}

func (e *Emitter) LoadSRetField(index, slot, offset int, t wasm.ValType) {
	e.ops = append(e.ops, Op{Code: OpLoadSRetField, Index: index, Slot: slot, Imm: offset, Type: t})
}

func (e *Emitter) Return() {
	e.ops = append(e.ops, Op{Code: OpReturn})
}

// Ops returns the collected ops.
func (e *Emitter) Ops() []Op {
	return e.ops
}

// Symbol is a named range of a code buffer.
type Symbol struct {
	Name   string
	Offset int
	Size   int
}

// CodeBuffer is the emission context shared by all trampolines of one
// compilation. Appends are serialized by a mutex; readers get copies.
type CodeBuffer struct {
	code    []byte
	symbols []Symbol
	mu      sync.Mutex
	tag     byte
}

func newCodeBuffer(tag byte) *CodeBuffer {
	return &CodeBuffer{tag: tag}
}

// Append encodes ops under name and returns the symbol describing them.
func (b *CodeBuffer) Append(name string, ops []Op) Symbol {
	chunk := EncodeOps(b.tag, ops)

	b.mu.Lock()
	defer b.mu.Unlock()

	sym := Symbol{Name: name, Offset: len(b.code), Size: len(chunk)}
	b.code = append(b.code, chunk...)
	b.symbols = append(b.symbols, sym)
	return sym
}

// Bytes returns a copy of the emitted code.
func (b *CodeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.code)
}

// Len returns the number of emitted bytes.
func (b *CodeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.code)
}

// Symbols returns the emitted symbols ordered by offset.
func (b *CodeBuffer) Symbols() []Symbol {
	b.mu.Lock()
	out := append([]Symbol(nil), b.symbols...)
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// EncodeOps serializes ops: the architecture tag, the op count, then per
// op its code, type, LEB128 operands and location.
func EncodeOps(tag byte, ops []Op) []byte {
	b := []byte{tag}
	b = wasm.AppendLEB128u64(b, uint64(len(ops)))
	for _, op := range ops {
		b = append(b, byte(op.Code), byte(op.Type))
		b = wasm.AppendLEB128s64(b, int64(op.Slot))
		b = wasm.AppendLEB128s64(b, int64(op.Index))
		b = wasm.AppendLEB128s64(b, int64(op.Imm))
		b = wasm.AppendLEB128u64(b, uint64(len(op.Loc.Reg)))
		b = append(b, op.Loc.Reg...)
		b = wasm.AppendLEB128s64(b, int64(op.Loc.Stack))
		b = wasm.AppendLEB128s64(b, int64(op.Loc.Offset))
	}
	return b
}

// DecodeOps parses one chunk produced by EncodeOps and returns the number
// of bytes consumed.
func DecodeOps(code []byte) (tag byte, ops []Op, n int, err error) {
	r := bytes.NewReader(code)
	tag, err = r.ReadByte()
	if err != nil {
		return 0, nil, 0, fmt.Errorf("decode ops: %w", err)
	}
	count, err := wasm.ReadLEB128u64(r)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("decode ops: count: %w", err)
	}
	if count > uint64(len(code)) {
		return 0, nil, 0, fmt.Errorf("decode ops: count %d exceeds input", count)
	}
	ops = make([]Op, 0, count)
	for i := uint64(0); i < count; i++ {
		var op Op
		if op, err = decodeOp(r); err != nil {
			return 0, nil, 0, fmt.Errorf("decode ops: op %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return tag, ops, len(code) - r.Len(), nil
}

func decodeOp(r *bytes.Reader) (Op, error) {
	var op Op
	code, err := r.ReadByte()
	if err != nil {
		return op, err
	}
	typ, err := r.ReadByte()
	if err != nil {
		return op, err
	}
	op.Code, op.Type = OpCode(code), wasm.ValType(typ)
	for _, dst := range []*int{&op.Slot, &op.Index, &op.Imm} {
		v, err := wasm.ReadLEB128s64(r)
		if err != nil {
			return op, err
		}
		*dst = int(v)
	}
	regLen, err := wasm.ReadLEB128u64(r)
	if err != nil {
		return op, err
	}
	if regLen > uint64(r.Len()) {
		return op, fmt.Errorf("register name length %d exceeds input", regLen)
	}
	reg := make([]byte, regLen)
	if _, err := io.ReadFull(r, reg); err != nil {
		return op, err
	}
	op.Loc.Reg = string(reg)
	for _, dst := range []*int{&op.Loc.Stack, &op.Loc.Offset} {
		v, err := wasm.ReadLEB128s64(r)
		if err != nil {
			return op, err
		}
		*dst = int(v)
	}
	return op, nil
}

// Disassemble renders every symbol of a code buffer snapshot.
func Disassemble(code []byte, symbols []Symbol) (string, error) {
	var sb strings.Builder
	for _, sym := range symbols {
		if sym.Offset < 0 || sym.Offset+sym.Size > len(code) {
			return "", fmt.Errorf("symbol %s out of range", sym.Name)
		}
		text, err := DisassembleChunk(code[sym.Offset : sym.Offset+sym.Size])
		if err != nil {
			return "", fmt.Errorf("%s: %w", sym.Name, err)
		}
		fmt.Fprintf(&sb, "%s: ; offset=%d size=%d\n%s", sym.Name, sym.Offset, sym.Size, text)
	}
	return sb.String(), nil
}

// DisassembleChunk renders the ops of one trampoline, one per line.
func DisassembleChunk(chunk []byte) (string, error) {
	tag, ops, _, err := DecodeOps(chunk)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "  ; arch=%s\n", tagArch(tag))
	for _, op := range ops {
		sb.WriteString("  ")
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func tagArch(tag byte) string {
	switch tag {
	case tagX86_64:
		return "x86_64"
	case tagAArch64:
		return "aarch64"
	}
	return fmt.Sprintf("%#x", tag)
}
