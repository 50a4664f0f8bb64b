package wasm

import (
	"sort"

	"github.com/wippyai/wasm-compiler/wasm/internal/binary"
)

type encodedSection struct {
	payload []byte
	id      byte
}

// Encode encodes the module to WebAssembly binary format.
// Raw sections are placed at their canonical position; custom sections
// are appended after all known sections.
func (m *Module) Encode() []byte {
	var sections []encodedSection
	add := func(id byte, sec *binary.Writer) {
		sections = append(sections, encodedSection{id: id, payload: sec.Bytes()})
	}

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		add(SectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				sec.WriteU32(imp.Desc.TypeIdx)
			case KindTable:
				if imp.Desc.Table != nil {
					writeTableType(sec, *imp.Desc.Table)
				}
			case KindMemory:
				if imp.Desc.Memory != nil {
					writeLimits(sec, imp.Desc.Memory.Limits)
				}
			case KindGlobal:
				if imp.Desc.Global != nil {
					writeGlobalType(sec, *imp.Desc.Global)
				}
			case KindTag:
				sec.Byte(0)
				sec.WriteU32(imp.Desc.TypeIdx)
			}
		}
		add(SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		add(SectionFunction, sec)
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		add(SectionTable, sec)
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		add(SectionMemory, sec)
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		add(SectionExport, sec)
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		add(SectionStart, sec)
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			b := binary.NewWriter()
			b.WriteU32(uint32(len(body.Locals)))
			for _, l := range body.Locals {
				b.WriteU32(l.Count)
				b.Byte(byte(l.ValType))
			}
			b.WriteBytes(body.Code)
			sec.WriteU32(uint32(b.Len()))
			sec.WriteBytes(b.Bytes())
		}
		add(SectionCode, sec)
	}

	for _, raw := range m.Raw {
		sections = append(sections, encodedSection{id: raw.ID, payload: raw.Data})
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sectionOrder(sections[i].id) < sectionOrder(sections[j].id)
	})

	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)
	for _, s := range sections {
		w.WriteSection(s.id, s.payload)
	}
	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		w.WriteSection(SectionCustom, sec.Bytes())
	}
	return w.Bytes()
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= limitsHasMax
	}
	if l.Shared {
		flags |= limitsShared
	}
	w.Byte(flags)
	w.WriteU32(uint32(l.Min))
	if l.Max != nil {
		w.WriteU32(uint32(*l.Max))
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
