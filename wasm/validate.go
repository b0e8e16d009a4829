package wasm

import "fmt"

// Validate checks the module for structural validity. It covers index
// spaces, export uniqueness, the start signature, segment counts, memory
// limits and the targets of every direct call; operand typing is left to
// the runtime compiler.
func (m *Module) Validate() error {
	checks := []func() error{
		m.validateTypeIndices,
		m.validateTableIndices,
		m.validateMemoryIndices,
		m.validateExports,
		m.validateStart,
		m.validateDataCount,
		m.validateCodeCount,
		m.validateMemoryLimits,
		m.validateBodies,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
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

func (m *Module) validateTypeIndices() error {
	numTypes := uint32(len(m.Types))
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			return fmt.Errorf("import %d (%s.%s): invalid type index %d", i, imp.Module, imp.Name, imp.Desc.TypeIdx)
		}
	}
	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			return fmt.Errorf("function %d: invalid type index %d", i, typeIdx)
		}
	}
	return nil
}

func (m *Module) validateTableIndices() error {
	numTables := uint32(m.NumImportedTables() + len(m.Tables))
	numFuncs := uint32(m.NumFuncs())
	for i, elem := range m.Elements {
		if !elem.Passive() && !elem.Declarative() && elem.TableIdx >= numTables {
			return fmt.Errorf("element segment %d: invalid table index %d", i, elem.TableIdx)
		}
		for _, fn := range elem.FuncIdxs {
			if fn >= numFuncs {
				return fmt.Errorf("element segment %d: invalid function index %d", i, fn)
			}
		}
	}
	return nil
}

func (m *Module) validateMemoryIndices() error {
	numMems := uint32(m.NumImportedMemories() + len(m.Memories))
	if numMems > 1 {
		return fmt.Errorf("module declares %d memories; at most one is supported", numMems)
	}
	for i, seg := range m.Data {
		if !seg.Passive() && seg.MemIdx >= numMems {
			return fmt.Errorf("data segment %d: invalid memory index %d", i, seg.MemIdx)
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	limits := map[byte]uint32{
		KindFunc:   uint32(m.NumFuncs()),
		KindTable:  uint32(m.NumImportedTables() + len(m.Tables)),
		KindMemory: uint32(m.NumImportedMemories() + len(m.Memories)),
		KindGlobal: uint32(m.NumImportedGlobals() + len(m.Globals)),
	}
	seen := make(map[string]bool)
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			return fmt.Errorf("duplicate export name %q at index %d", exp.Name, i)
		}
		seen[exp.Name] = true
		if exp.Idx >= limits[exp.Kind] {
			return fmt.Errorf("export %q: index %d out of range", exp.Name, exp.Idx)
		}
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	funcType := m.GetFuncType(*m.Start)
	if funcType == nil {
		return fmt.Errorf("start function %d has no type", *m.Start)
	}
	if len(funcType.Params) != 0 || len(funcType.Results) != 0 {
		return fmt.Errorf("start function must have signature [] -> [], got %s", funcType)
	}
	return nil
}

func (m *Module) validateDataCount() error {
	if m.DataCount != nil && *m.DataCount != uint32(len(m.Data)) {
		return fmt.Errorf("data count section declares %d segments, but data section has %d",
			*m.DataCount, len(m.Data))
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
	check := func(lim Limits, what string) error {
		if lim.Min > MaxMemoryPages {
			return fmt.Errorf("%s: min pages %d exceeds maximum %d", what, lim.Min, MaxMemoryPages)
		}
		if lim.Max != nil {
			if *lim.Max > MaxMemoryPages {
				return fmt.Errorf("%s: max pages %d exceeds maximum %d", what, *lim.Max, MaxMemoryPages)
			}
			if *lim.Max < lim.Min {
				return fmt.Errorf("%s: max pages %d below min %d", what, *lim.Max, lim.Min)
			}
		}
		return nil
	}
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory && imp.Desc.Memory != nil {
			if err := check(imp.Desc.Memory.Limits, "imported memory "+imp.Module+"."+imp.Name); err != nil {
				return err
			}
		}
	}
	for i, mem := range m.Memories {
		if err := check(mem.Limits, fmt.Sprintf("memory %d", i)); err != nil {
			return err
		}
	}
	return nil
}

// validateBodies decodes every body and checks the index immediates that
// refer to module-level spaces.
func (m *Module) validateBodies() error {
	numFuncs := uint32(m.NumFuncs())
	numTypes := uint32(len(m.Types))
	numGlobals := uint32(m.NumImportedGlobals() + len(m.Globals))
	imported := uint32(m.NumImportedFuncs())

	for i, body := range m.Code {
		fnIdx := imported + uint32(i)
		instrs, err := DecodeInstructions(body.Code)
		if err != nil {
			return fmt.Errorf("function %d: %w", fnIdx, err)
		}
		ft := m.GetFuncType(fnIdx)
		numLocals := uint64(len(ft.Params)) + body.NumLocals()
		depth := 0
		for _, in := range instrs {
			switch imm := in.Imm.(type) {
			case CallImm:
				if imm.FuncIdx >= numFuncs {
					return fmt.Errorf("function %d: call to undefined function %d", fnIdx, imm.FuncIdx)
				}
			case RefFuncImm:
				if imm.FuncIdx >= numFuncs {
					return fmt.Errorf("function %d: ref.func of undefined function %d", fnIdx, imm.FuncIdx)
				}
			case CallIndirectImm:
				if imm.TypeIdx >= numTypes {
					return fmt.Errorf("function %d: call_indirect with invalid type index %d", fnIdx, imm.TypeIdx)
				}
			case GlobalImm:
				if imm.GlobalIdx >= numGlobals {
					return fmt.Errorf("function %d: invalid global index %d", fnIdx, imm.GlobalIdx)
				}
			case LocalImm:
				if uint64(imm.LocalIdx) >= numLocals {
					return fmt.Errorf("function %d: invalid local index %d", fnIdx, imm.LocalIdx)
				}
			case BlockImm:
				if imm.Type >= 0 && imm.Type >= int64(numTypes) {
					return fmt.Errorf("function %d: invalid block type index %d", fnIdx, imm.Type)
				}
			}
			switch in.Opcode {
			case OpBlock, OpLoop, OpIf:
				depth++
			case OpEnd:
				depth--
			}
			if depth < -1 {
				return fmt.Errorf("function %d: unbalanced end", fnIdx)
			}
		}
		if depth != -1 {
			return fmt.Errorf("function %d: unbalanced block structure", fnIdx)
		}
	}
	return nil
}
