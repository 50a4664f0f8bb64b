package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-compiler/wasm"
)

func ptrTo[T any](v T) *T { return &v }

func sampleModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValI64}},
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "log", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}},
			{Module: "env", Name: "mem", Desc: wasm.ImportDesc{
				Kind:   wasm.KindMemory,
				Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1, Max: ptrTo(uint64(4))}},
			}},
		},
		Funcs:  []uint32{0},
		Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 1},
		},
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI64}},
			Code:   []byte{0x20, 0x00, 0x20, 0x01, 0x6a, wasm.OpEnd},
		}},
		Raw: []wasm.RawSection{
			{ID: wasm.SectionGlobal, Data: []byte{0x01, 0x7f, 0x00, 0x41, 0x07, wasm.OpEnd}},
		},
		CustomSections: []wasm.CustomSection{{Name: "name", Data: []byte{1, 2, 3}}},
	}
}

func TestParseMinimalModule(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil module")
	}
}

func TestParseInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"magic", []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
		{"version", []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}},
		{"truncated", []byte{0x00, 0x61, 0x73}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wasm.ParseModule(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	orig := sampleModule()
	data := orig.Encode()

	m, err := wasm.ParseModuleValidate(data)
	if err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}

	if len(m.Types) != 2 || !m.Types[0].Equal(orig.Types[0]) {
		t.Errorf("types = %v", m.Types)
	}
	if len(m.Imports) != 2 || m.Imports[1].Desc.Memory == nil || *m.Imports[1].Desc.Memory.Limits.Max != 4 {
		t.Errorf("imports = %+v", m.Imports)
	}
	if len(m.Tables) != 1 || m.Tables[0].ElemType != wasm.ValFuncRef {
		t.Errorf("tables = %+v", m.Tables)
	}
	if len(m.Code) != 1 || !bytes.Equal(m.Code[0].Code, orig.Code[0].Code) {
		t.Errorf("code = %+v", m.Code)
	}
	if raw, ok := m.RawSection(wasm.SectionGlobal); !ok || !bytes.Equal(raw, orig.Raw[0].Data) {
		t.Errorf("global section not preserved: %v", raw)
	}
	if len(m.CustomSections) != 1 || m.CustomSections[0].Name != "name" {
		t.Errorf("custom sections = %+v", m.CustomSections)
	}
	if !bytes.Equal(m.Encode(), data) {
		t.Error("re-encoding changed the binary")
	}
}

func TestParseSectionOutOfOrder(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	// function section (count 0) followed by type section (count 0)
	data = append(data, wasm.SectionFunction, 0x01, 0x00, wasm.SectionType, 0x01, 0x00)
	if _, err := wasm.ParseModule(data); err == nil {
		t.Error("expected ordering error")
	}
}

func TestParseCodeCountMismatch(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code:  []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
	}
	if _, err := wasm.ParseModule(m.Encode()); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestParseRejectsUnterminatedBody(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x01}}},
	}
	if _, err := wasm.ParseModule(m.Encode()); err == nil {
		t.Error("expected error for body without end")
	}
}

func TestParseSharedMemory(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: ptrTo(uint64(2)), Shared: true}}},
	}
	parsed, err := wasm.ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if !parsed.UsesSharedMemory() {
		t.Error("expected shared memory")
	}
}

func TestModuleFuncType(t *testing.T) {
	m := sampleModule()

	ft, ok := m.FuncType(0)
	if !ok || len(ft.Params) != 1 || ft.Params[0] != wasm.ValI64 {
		t.Errorf("FuncType(0) = %v, %v", ft, ok)
	}
	ft, ok = m.FuncType(1)
	if !ok || ft.String() != "(i32, i32) -> (i32)" {
		t.Errorf("FuncType(1) = %v, %v", ft, ok)
	}
	if _, ok := m.FuncType(2); ok {
		t.Error("FuncType(2) should not exist")
	}
	if idx, ok := m.ExportedFunc("add"); !ok || idx != 1 {
		t.Errorf("ExportedFunc(add) = %d, %v", idx, ok)
	}
	if m.NumFuncs() != 2 {
		t.Errorf("NumFuncs = %d, want 2", m.NumFuncs())
	}
}

func TestModuleFeatureQueries(t *testing.T) {
	m := &wasm.Module{Types: []wasm.FuncType{
		{Params: []wasm.ValType{wasm.ValV128}},
		{Results: []wasm.ValType{wasm.ValI32, wasm.ValI32}},
	}}
	if !m.UsesV128() {
		t.Error("expected UsesV128")
	}
	if !m.UsesMultiValue() {
		t.Error("expected UsesMultiValue")
	}
	if (&wasm.Module{}).UsesV128() {
		t.Error("empty module should not use v128")
	}
}
