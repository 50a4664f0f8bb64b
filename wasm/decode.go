package wasm

import (
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-compiler/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule parses a WebAssembly binary module
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}

	// Section ordering follows canonical order, not section IDs.
	var lastSectionOrder int

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData)

		switch sectionID {
		case SectionCustom:
			if err := parseCustomSection(sr, m); err != nil {
				return nil, fmt.Errorf("custom section: %w", err)
			}
		case SectionType:
			if err := parseTypeSection(sr, m); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case SectionImport:
			if err := parseImportSection(sr, m); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case SectionTable:
			if err := parseTableSection(sr, m); err != nil {
				return nil, fmt.Errorf("table section: %w", err)
			}
		case SectionMemory:
			if err := parseMemorySection(sr, m); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case SectionExport:
			if err := parseExportSection(sr, m); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		case SectionStart:
			if err := parseStartSection(sr, m); err != nil {
				return nil, fmt.Errorf("start section: %w", err)
			}
		case SectionCode:
			if err := parseCodeSection(sr, m); err != nil {
				return nil, fmt.Errorf("code section: %w", err)
			}
		case SectionGlobal, SectionElement, SectionData, SectionDataCount, SectionTag:
			m.Raw = append(m.Raw, RawSection{ID: sectionID, Data: sectionData})
		default:
			return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code section counts differ: %d != %d", len(m.Funcs), len(m.Code))
	}

	return m, nil
}

// ParseModuleValidate parses a module and validates its structure.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// sectionOrder returns the canonical ordering for a section ID.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6 // Tag comes after Memory, before Global
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11 // DataCount must come before Code
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 100
	}
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	rest, err := r.ReadRemaining()
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{
		Name: name,
		Data: rest,
	})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("type %d: unsupported type form 0x%02x", i, form)
		}
		ft, err := readFuncType(r)
		if err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	params, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.Len() {
		return nil, fmt.Errorf("value type count %d exceeds remaining bytes", count)
	}
	types := make([]ValType, count)
	for i := range types {
		types[i], err = readValType(r)
		if err != nil {
			return nil, err
		}
	}
	return types, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if !vt.IsNumeric() && !vt.IsRef() {
		return 0, fmt.Errorf("invalid value type 0x%02x", b)
	}
	return vt, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, count)
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}

		imp := Import{Module: module, Name: name, Desc: ImportDesc{Kind: kind}}

		switch kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
		case KindTable:
			table, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &table
		case KindMemory:
			memory, err := readMemoryType(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &memory
		case KindGlobal:
			global, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &global
		case KindTag:
			if _, err := r.ReadByte(); err != nil { // attribute, always 0
				return err
			}
			imp.Desc.TypeIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import kind: %d", kind)
		}

		m.Imports[i] = imp
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		m.Funcs[i], err = r.ReadU32()
		if err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Tables = make([]TableType, count)
	for i := uint32(0); i < count; i++ {
		m.Tables[i], err = readTableType(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Memories = make([]MemoryType, count)
	for i := uint32(0); i < count; i++ {
		m.Memories[i], err = readMemoryType(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindTag {
			return fmt.Errorf("invalid export kind: 0x%02x", kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: kind, Idx: idx}
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.ReadU32()
		if err != nil {
			return err
		}
		bodyData, err := r.ReadBytes(int(bodySize))
		if err != nil {
			return err
		}

		br := binary.NewReader(bodyData)

		localCount, err := br.ReadU32()
		if err != nil {
			return err
		}
		var locals []LocalEntry
		for j := uint32(0); j < localCount; j++ {
			n, err := br.ReadU32()
			if err != nil {
				return err
			}
			t, err := readValType(br)
			if err != nil {
				return err
			}
			locals = append(locals, LocalEntry{Count: n, ValType: t})
		}

		code, err := br.ReadRemaining()
		if err != nil {
			return err
		}
		if len(code) == 0 || code[len(code)-1] != OpEnd {
			return fmt.Errorf("function body %d does not end with end opcode", i)
		}

		m.Code[i] = FuncBody{Locals: locals, Code: code}
	}
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&^(limitsHasMax|limitsShared) != 0 {
		return Limits{}, fmt.Errorf("unsupported limits flags 0x%02x", flags)
	}

	l := Limits{Shared: flags&limitsShared != 0}
	minVal, err := r.ReadU32()
	if err != nil {
		return Limits{}, err
	}
	l.Min = uint64(minVal)
	if flags&limitsHasMax != 0 {
		maxVal, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		max64 := uint64(maxVal)
		l.Max = &max64
	}

	if l.Max != nil && l.Min > *l.Max {
		return Limits{}, fmt.Errorf("limits min (%d) exceeds max (%d)", l.Min, *l.Max)
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	if !elem.IsRef() {
		return TableType{}, fmt.Errorf("table element type must be a reference, got %s", elem)
	}
	limits, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: limits}, nil
}

func readMemoryType(r *binary.Reader) (MemoryType, error) {
	limits, err := readLimits(r)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid global mutability: %d", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}
