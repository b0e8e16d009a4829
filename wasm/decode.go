package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/watlink/wasm/internal/binary"
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
	var lastOrder int

	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		parse, name := sectionParser(sectionID)
		if err := parse(sr, m); err != nil {
			return nil, fmt.Errorf("%s section: %w", name, err)
		}
		if sectionID != SectionCustom && sr.Len() != 0 {
			return nil, sr.WrapError(name, fmt.Errorf("%d trailing bytes", sr.Len()))
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d", len(m.Funcs), len(m.Code))
	}

	return m, nil
}

type sectionFunc func(r *binary.Reader, m *Module) error

func sectionParser(id byte) (sectionFunc, string) {
	switch id {
	case SectionType:
		return parseTypeSection, "type"
	case SectionImport:
		return parseImportSection, "import"
	case SectionFunction:
		return parseFunctionSection, "function"
	case SectionTable:
		return parseTableSection, "table"
	case SectionMemory:
		return parseMemorySection, "memory"
	case SectionGlobal:
		return parseGlobalSection, "global"
	case SectionExport:
		return parseExportSection, "export"
	case SectionStart:
		return parseStartSection, "start"
	case SectionElement:
		return parseElementSection, "element"
	case SectionDataCount:
		return parseDataCountSection, "data count"
	case SectionCode:
		return parseCodeSection, "code"
	case SectionData:
		return parseDataSection, "data"
	}
	return parseCustomSection, "custom"
}

// sectionOrder returns the canonical position of a section. DataCount sits
// between Element and Code even though its id is larger.
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
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	}
	return 0
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{
		Name: name,
		Data: r.ReadRemaining(),
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
		if form != FuncTypeForm {
			return r.WrapError("type", fmt.Errorf("unsupported type form 0x%02x", form))
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, r.WrapError("value types", fmt.Errorf("count %d exceeds section", n))
	}
	types := make([]ValType, n)
	for i := range types {
		vt, err := readValType(r)
		if err != nil {
			return nil, err
		}
		types[i] = vt
	}
	return types, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch vt := ValType(b); vt {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return vt, nil
	}
	return 0, r.WrapError("value type", fmt.Errorf("unsupported value type 0x%02x", b))
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		modName, err := r.ReadName()
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

		imp := Import{Module: modName, Name: name, Desc: ImportDesc{Kind: kind}}
		switch kind {
		case KindFunc:
			if imp.Desc.TypeIdx, err = r.ReadU32(); err != nil {
				return err
			}
		case KindTable:
			tt, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &tt
		case KindMemory:
			lim, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &MemoryType{Limits: lim}
		case KindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &gt
		default:
			return r.WrapError("import", fmt.Errorf("unknown import kind 0x%02x", kind))
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Funcs = append(m.Funcs, idx)
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tt, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		lim, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, MemoryType{Limits: lim})
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindGlobal {
			return r.WrapError("export", fmt.Errorf("unknown export kind 0x%02x", kind))
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
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

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		if flags > 7 {
			return r.WrapError("element", fmt.Errorf("invalid element flags %d", flags))
		}
		elem := Element{Flags: flags, Type: ValFuncRef}
		active := flags&0x1 == 0
		explicitTable := flags&0x2 != 0
		usesExprs := flags&0x4 != 0

		if active && explicitTable {
			if elem.TableIdx, err = r.ReadU32(); err != nil {
				return err
			}
		}
		if active {
			if elem.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		if !active || explicitTable {
			kind, err := r.ReadByte()
			if err != nil {
				return err
			}
			if usesExprs {
				elem.Type = ValType(kind)
			} else if kind != 0x00 {
				return r.WrapError("element", fmt.Errorf("unsupported elemkind 0x%02x", kind))
			}
		}

		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			if usesExprs {
				expr, err := readInitExpr(r)
				if err != nil {
					return err
				}
				elem.Exprs = append(elem.Exprs, expr)
				continue
			}
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			elem.FuncIdxs = append(elem.FuncIdxs, idx)
		}
		m.Elements = append(m.Elements, elem)
	}
	return nil
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &n
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		br, err := r.Sub(int(size))
		if err != nil {
			return err
		}

		groups, err := br.ReadU32()
		if err != nil {
			return err
		}
		var body FuncBody
		var total uint64
		for j := uint32(0); j < groups; j++ {
			n, err := br.ReadU32()
			if err != nil {
				return err
			}
			vt, err := readValType(br)
			if err != nil {
				return err
			}
			total += uint64(n)
			if total > 50000 {
				return br.WrapError("code", fmt.Errorf("function %d declares too many locals", i))
			}
			body.Locals = append(body.Locals, LocalEntry{Count: n, ValType: vt})
		}
		body.Code = br.ReadRemaining()
		if len(body.Code) == 0 || body.Code[len(body.Code)-1] != OpEnd {
			return br.WrapError("code", fmt.Errorf("function %d body does not end with end opcode", i))
		}
		m.Code = append(m.Code, body)
	}
	return nil
}

func parseDataSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		seg := DataSegment{Flags: flags}
		switch flags {
		case 0:
		case 1:
		case 2:
			if seg.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return r.WrapError("data", fmt.Errorf("invalid data segment flags %d", flags))
		}
		if flags != 1 {
			if seg.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if seg.Init, err = r.ReadBytes(int(n)); err != nil {
			return err
		}
		m.Data = append(m.Data, seg)
	}
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var lim Limits
	switch flag {
	case 0x00, 0x01:
	default:
		return lim, r.WrapError("limits", fmt.Errorf("unsupported limits flag 0x%02x", flag))
	}
	if lim.Min, err = r.ReadU32(); err != nil {
		return lim, err
	}
	if flag == 0x01 {
		maxVal, err := r.ReadU32()
		if err != nil {
			return lim, err
		}
		lim.Max = &maxVal
	}
	return lim, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	et := ValType(b)
	if !et.IsRef() {
		return TableType{}, r.WrapError("table", fmt.Errorf("invalid table element type 0x%02x", b))
	}
	lim, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: et, Limits: lim}, nil
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
		return GlobalType{}, r.WrapError("global", fmt.Errorf("invalid mutability 0x%02x", mut))
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

// readInitExpr returns the raw bytes of a constant expression including its
// terminating end opcode.
func readInitExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	var out []byte
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("init expr", err)
		}
		out = append(out, op)
		var imm []byte
		switch op {
		case OpEnd:
			return out, nil
		case OpI32Const:
			imm, err = rawSLEB(r, 32)
		case OpI64Const:
			imm, err = rawSLEB(r, 64)
		case OpF32Const:
			imm, err = r.ReadBytes(4)
		case OpF64Const:
			imm, err = r.ReadBytes(8)
		case OpGlobalGet, OpRefFunc:
			imm, err = rawULEB(r)
		case OpRefNull:
			imm, err = r.ReadBytes(1)
		default:
			return nil, r.WrapError("init expr", fmt.Errorf("opcode 0x%02x not allowed in constant expression at %d", op, start))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, imm...)
	}
}

func rawULEB(r *binary.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		if b&0x80 == 0 || len(out) >= 10 {
			return out, nil
		}
	}
}

func rawSLEB(r *binary.Reader, bits int) ([]byte, error) {
	limit := (bits + 6) / 7
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		if b&0x80 == 0 {
			return out, nil
		}
		if len(out) >= limit {
			return nil, r.WrapError("init expr", binary.ErrOverflow)
		}
	}
}
