package wasm

import "fmt"

// MemoryMaxPages is the page limit of a 32-bit linear memory.
const MemoryMaxPages = 65536

// Validate checks the module for structural validity.
func (m *Module) Validate() error {
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateIndexSpaces(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateCodeCount(); err != nil {
		return err
	}
	if err := m.validateMemoryLimits(); err != nil {
		return err
	}
	return nil
}

func (m *Module) validateTypeIndices() error {
	numTypes := uint32(len(m.Types))

	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			return fmt.Errorf("function %d references invalid type index %d (have %d types)", i, typeIdx, numTypes)
		}
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc && imp.Desc.Kind != KindTag {
			continue
		}
		if imp.Desc.TypeIdx >= numTypes {
			return fmt.Errorf("import %d (%s.%s) references invalid type index %d", i, imp.Module, imp.Name, imp.Desc.TypeIdx)
		}
	}
	return nil
}

func (m *Module) validateIndexSpaces() error {
	limits := map[byte]uint32{
		KindFunc:   uint32(m.NumFuncs()),
		KindTable:  uint32(m.NumImportedTables() + len(m.Tables)),
		KindMemory: uint32(m.NumImportedMemories() + len(m.Memories)),
	}
	for i, exp := range m.Exports {
		limit, ok := limits[exp.Kind]
		if !ok {
			// globals and tags live in raw sections
			continue
		}
		if exp.Idx >= limit {
			return fmt.Errorf("export %d (%s) references invalid index %d", i, exp.Name, exp.Idx)
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	seen := make(map[string]bool)
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			return fmt.Errorf("duplicate export name %q at index %d", exp.Name, i)
		}
		seen[exp.Name] = true
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}

	ft, ok := m.FuncType(*m.Start)
	if !ok {
		return fmt.Errorf("start function %d has no type", *m.Start)
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function must have signature () -> (), got %s", ft)
	}
	return nil
}

func (m *Module) validateCodeCount() error {
	if len(m.Code) != len(m.Funcs) {
		return fmt.Errorf("code section has %d entries but function section has %d",
			len(m.Code), len(m.Funcs))
	}
	return nil
}

func (m *Module) validateMemoryLimits() error {
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory && imp.Desc.Memory != nil {
			if err := validateMemoryType(imp.Desc.Memory, i, true); err != nil {
				return err
			}
		}
	}
	for i := range m.Memories {
		if err := validateMemoryType(&m.Memories[i], i, false); err != nil {
			return err
		}
	}
	return nil
}

func validateMemoryType(mem *MemoryType, idx int, isImport bool) error {
	prefix := "memory"
	if isImport {
		prefix = "imported memory"
	}

	if mem.Limits.Shared && mem.Limits.Max == nil {
		return fmt.Errorf("%s %d: shared memory must have maximum limit", prefix, idx)
	}
	if mem.Limits.Min > MemoryMaxPages {
		return fmt.Errorf("%s %d: min pages %d exceeds maximum %d",
			prefix, idx, mem.Limits.Min, MemoryMaxPages)
	}
	if mem.Limits.Max != nil && *mem.Limits.Max > MemoryMaxPages {
		return fmt.Errorf("%s %d: max pages %d exceeds maximum %d",
			prefix, idx, *mem.Limits.Max, MemoryMaxPages)
	}
	return nil
}
