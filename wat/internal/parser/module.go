package parser

import (
	"github.com/wippyai/watlink/wat/internal/ast"
	"github.com/wippyai/watlink/wat/internal/token"
)

// declare walks the module fields once, assigning an index to every item
// and rejecting duplicate identifiers. Type definitions are built here so
// that later type uses can resolve against them.
func (p *Parser) declare() error {
	for p.peek().Type == token.LParen {
		start := p.pos
		p.next()
		kw := p.next()
		if kw.Type != token.Keyword {
			return p.unexpected(kw, "module field")
		}
		f := field{kind: kw.Value, start: start, line: kw.Line}

		var err error
		switch kw.Value {
		case "type":
			err = p.declareType(kw.Line)
		case "import":
			f.imported = true
			f.idx, err = p.declareImport(kw.Line)
		case "func", "table", "memory", "global":
			f.idx, f.imported, err = p.declareItem(kw.Value, kw.Line)
		case "elem":
			f.idx, err = p.elems.define(p.optionalID(), kw.Line)
		case "data":
			f.idx, err = p.datas.define(p.optionalID(), kw.Line)
		case "export", "start":
		default:
			return p.errorAt(kw, "unknown module field %q", kw.Value)
		}
		if err != nil {
			return err
		}

		p.pos = start + 1
		if err := p.skipToClose(); err != nil {
			return err
		}
		p.fields = append(p.fields, f)
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	p.end = p.pos
	return nil
}

func (p *Parser) spaceFor(kind string) *space {
	switch kind {
	case "func":
		return p.funcs
	case "table":
		return p.tables
	case "memory":
		return p.mems
	case "global":
		return p.globals
	}
	return nil
}

func (p *Parser) declareType(line int) error {
	id := p.optionalID()
	if err := p.expectOpen("func"); err != nil {
		return err
	}
	ft, _, _, err := p.signature()
	if err != nil {
		return err
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	if _, err := p.types.define(id, line); err != nil {
		return err
	}
	p.mod.Types = append(p.mod.Types, ft)
	return nil
}

func (p *Parser) declareImport(line int) (uint32, error) {
	for range 2 {
		if _, err := p.expect(token.String); err != nil {
			return 0, err
		}
	}
	if _, err := p.expect(token.LParen); err != nil {
		return 0, err
	}
	kind := p.next()
	s := p.spaceFor(kind.Value)
	if kind.Type != token.Keyword || s == nil {
		return 0, p.unexpected(kind, "import kind")
	}
	return p.declareImported(s, kind.Value, p.optionalID(), line)
}

func (p *Parser) declareImported(s *space, kind, id string, line int) (uint32, error) {
	if s.defined {
		return 0, &Error{Kind: ErrSyntax, Line: line, Msg: "import of " + s.kind + " after " + s.kind + " definition"}
	}
	idx, err := s.define(id, line)
	if err != nil {
		return 0, err
	}
	if kind == "func" {
		p.mod.FuncNames = append(p.mod.FuncNames, trimSigil(id))
	}
	return idx, nil
}

func (p *Parser) declareItem(kind string, line int) (uint32, bool, error) {
	s := p.spaceFor(kind)
	id := p.optionalID()
	for p.isOpen("export") {
		p.next()
		if err := p.skipToClose(); err != nil {
			return 0, false, err
		}
	}
	if p.isOpen("import") {
		idx, err := p.declareImported(s, kind, id, line)
		return idx, true, err
	}

	s.defined = true
	idx, err := s.define(id, line)
	if err != nil {
		return 0, false, err
	}
	switch kind {
	case "func":
		p.mod.FuncNames = append(p.mod.FuncNames, trimSigil(id))
	case "table":
		// (table funcref (elem ...)) carries an anonymous segment
		if p.peek().Type == token.Keyword {
			if t := p.peekAt(2); p.peekAt(1).Type == token.LParen && t.Value == "elem" {
				if _, err := p.elems.define("", line); err != nil {
					return 0, false, err
				}
			}
		}
	}
	return idx, false, nil
}

func trimSigil(id string) string {
	if id == "" {
		return ""
	}
	return id[1:]
}

// build parses every field again with all identifiers known.
func (p *Parser) build() error {
	for _, f := range p.fields {
		p.pos = f.start + 2
		var err error
		switch f.kind {
		case "type":
			continue
		case "import":
			err = p.buildImport()
		case "func":
			err = p.buildFunc(f)
		case "table":
			err = p.buildTable(f)
		case "memory":
			err = p.buildMemory(f)
		case "global":
			err = p.buildGlobal(f)
		case "export":
			err = p.buildExport()
		case "start":
			err = p.buildStart(f)
		case "elem":
			err = p.buildElem()
		case "data":
			err = p.buildData()
		}
		if err != nil {
			return err
		}
	}
	p.pos = p.end
	return nil
}

func (p *Parser) inlineExports(kind byte, idx uint32) error {
	for p.isOpen("export") {
		p.pos += 2
		name, err := p.str()
		if err != nil {
			return err
		}
		if err := p.closeParen(); err != nil {
			return err
		}
		p.mod.Exports = append(p.mod.Exports, ast.Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

// inlineImport parses (import "module" "name") if present.
func (p *Parser) inlineImport() (ast.Import, bool, error) {
	if !p.isOpen("import") {
		return ast.Import{}, false, nil
	}
	p.pos += 2
	var imp ast.Import
	var err error
	if imp.Module, err = p.str(); err != nil {
		return imp, false, err
	}
	if imp.Name, err = p.str(); err != nil {
		return imp, false, err
	}
	return imp, true, p.closeParen()
}

func (p *Parser) buildImport() error {
	var imp ast.Import
	var err error
	if imp.Module, err = p.str(); err != nil {
		return err
	}
	if imp.Name, err = p.str(); err != nil {
		return err
	}
	p.next()
	kind := p.next()
	p.optionalID()
	if err := p.importDesc(kind.Value, &imp); err != nil {
		return err
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	p.mod.Imports = append(p.mod.Imports, imp)
	return p.closeParen()
}

// importDesc fills the kind-specific part of an import.
func (p *Parser) importDesc(kind string, imp *ast.Import) error {
	switch kind {
	case "func":
		imp.Kind = ast.KindFunc
		idx, _, err := p.typeUse(nil)
		if err != nil {
			return err
		}
		imp.TypeIdx = idx
	case "memory":
		imp.Kind = ast.KindMemory
		lim, err := p.limits()
		if err != nil {
			return err
		}
		imp.Memory = &ast.Memory{Limits: lim}
	case "table":
		imp.Kind = ast.KindTable
		tab, err := p.tableType()
		if err != nil {
			return err
		}
		imp.Table = &tab
	case "global":
		imp.Kind = ast.KindGlobal
		gt, err := p.globalType()
		if err != nil {
			return err
		}
		imp.Global = &gt
	}
	return nil
}

func (p *Parser) limits() (ast.Limits, error) {
	lo, err := p.u32()
	if err != nil {
		return ast.Limits{}, err
	}
	lim := ast.Limits{Min: lo}
	if p.peek().Type == token.Number {
		hi, err := p.u32()
		if err != nil {
			return lim, err
		}
		lim.Max = &hi
	}
	return lim, nil
}

func (p *Parser) refType() (byte, error) {
	t := p.next()
	switch t.Value {
	case "funcref", "anyfunc":
		return ast.ValFuncRef, nil
	case "externref":
		return ast.ValExternRef, nil
	}
	return 0, p.unexpected(t, "reference type")
}

func (p *Parser) tableType() (ast.Table, error) {
	lim, err := p.limits()
	if err != nil {
		return ast.Table{}, err
	}
	elem, err := p.refType()
	return ast.Table{Limits: lim, ElemType: elem}, err
}

func (p *Parser) globalType() (ast.GlobalType, error) {
	if p.isOpen("mut") {
		p.pos += 2
		v, err := p.valType()
		if err != nil {
			return ast.GlobalType{}, err
		}
		return ast.GlobalType{Type: v, Mutable: true}, p.closeParen()
	}
	v, err := p.valType()
	return ast.GlobalType{Type: v}, err
}

func (p *Parser) buildTable(f field) error {
	p.optionalID()
	if err := p.inlineExports(ast.KindTable, f.idx); err != nil {
		return err
	}
	imp, ok, err := p.inlineImport()
	if err != nil {
		return err
	}
	if ok {
		if err := p.importDesc("table", &imp); err != nil {
			return err
		}
		p.mod.Imports = append(p.mod.Imports, imp)
		return p.closeParen()
	}

	if p.peek().Type == token.Keyword {
		elemType, err := p.refType()
		if err != nil {
			return err
		}
		if err := p.expectOpen("elem"); err != nil {
			return err
		}
		funcs, err := p.elemItems()
		if err != nil {
			return err
		}
		if err := p.closeParen(); err != nil {
			return err
		}
		n := uint32(len(funcs))
		p.mod.Tables = append(p.mod.Tables, ast.Table{Limits: ast.Limits{Min: n, Max: &n}, ElemType: elemType})
		p.mod.Elems = append(p.mod.Elems, ast.Elem{
			TableIdx: f.idx,
			Offset:   []ast.Instr{{Opcode: 0x41, Imm: int32(0)}},
			FuncIdxs: funcs,
		})
		return p.closeParen()
	}

	tab, err := p.tableType()
	if err != nil {
		return err
	}
	p.mod.Tables = append(p.mod.Tables, tab)
	return p.closeParen()
}

func (p *Parser) buildMemory(f field) error {
	p.optionalID()
	if err := p.inlineExports(ast.KindMemory, f.idx); err != nil {
		return err
	}
	imp, ok, err := p.inlineImport()
	if err != nil {
		return err
	}
	if ok {
		if err := p.importDesc("memory", &imp); err != nil {
			return err
		}
		p.mod.Imports = append(p.mod.Imports, imp)
		return p.closeParen()
	}
	lim, err := p.limits()
	if err != nil {
		return err
	}
	p.mod.Memories = append(p.mod.Memories, ast.Memory{Limits: lim})
	return p.closeParen()
}

func (p *Parser) buildGlobal(f field) error {
	p.optionalID()
	if err := p.inlineExports(ast.KindGlobal, f.idx); err != nil {
		return err
	}
	imp, ok, err := p.inlineImport()
	if err != nil {
		return err
	}
	if ok {
		if err := p.importDesc("global", &imp); err != nil {
			return err
		}
		p.mod.Imports = append(p.mod.Imports, imp)
		return p.closeParen()
	}
	gt, err := p.globalType()
	if err != nil {
		return err
	}
	init, err := p.instrs(newFuncCtx(), nil)
	if err != nil {
		return err
	}
	p.mod.Globals = append(p.mod.Globals, ast.Global{Type: gt, Init: init})
	return p.closeParen()
}

func (p *Parser) buildExport() error {
	name, err := p.str()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw := p.next()
	var kind byte
	switch kw.Value {
	case "func":
		kind = ast.KindFunc
	case "table":
		kind = ast.KindTable
	case "memory":
		kind = ast.KindMemory
	case "global":
		kind = ast.KindGlobal
	default:
		return p.unexpected(kw, "export kind")
	}
	idx, err := p.index(p.spaceFor(kw.Value))
	if err != nil {
		return err
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	p.mod.Exports = append(p.mod.Exports, ast.Export{Name: name, Kind: kind, Idx: idx})
	return p.closeParen()
}

func (p *Parser) buildStart(f field) error {
	if p.mod.Start != nil {
		return &Error{Kind: ErrSyntax, Line: f.line, Msg: "multiple start functions"}
	}
	idx, err := p.index(p.funcs)
	if err != nil {
		return err
	}
	p.mod.Start = &idx
	return p.closeParen()
}

// offset parses (offset instr*) or a single folded instruction.
func (p *Parser) offset() ([]ast.Instr, error) {
	if p.isOpen("offset") {
		p.pos += 2
		out, err := p.instrs(newFuncCtx(), nil)
		if err != nil {
			return nil, err
		}
		return out, p.closeParen()
	}
	return p.folded(newFuncCtx(), nil)
}

func (p *Parser) buildElem() error {
	p.optionalID()
	elem := ast.Elem{Mode: ast.ElemPassive}
	if p.peekKeyword("declare") {
		p.next()
		elem.Mode = ast.ElemDeclarative
	}
	if p.isOpen("table") {
		p.pos += 2
		idx, err := p.index(p.tables)
		if err != nil {
			return err
		}
		elem.TableIdx = idx
		if err := p.closeParen(); err != nil {
			return err
		}
		elem.Mode = ast.ElemActive
	}
	if elem.Mode != ast.ElemDeclarative && p.peek().Type == token.LParen && !p.isOpen("item") && !p.isOpen("ref.func") {
		off, err := p.offset()
		if err != nil {
			return err
		}
		elem.Offset = off
		elem.Mode = ast.ElemActive
	}
	if p.peekKeyword("func") || p.peekKeyword("funcref") {
		p.next()
	}
	funcs, err := p.elemItems()
	if err != nil {
		return err
	}
	elem.FuncIdxs = funcs
	p.mod.Elems = append(p.mod.Elems, elem)
	return p.closeParen()
}

// elemItems parses function indices or ref.func item expressions.
func (p *Parser) elemItems() ([]uint32, error) {
	var funcs []uint32
	for {
		switch p.peek().Type {
		case token.Ident, token.Number:
			idx, err := p.index(p.funcs)
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, idx)
		case token.LParen:
			line := p.peek().Line
			var expr []ast.Instr
			var err error
			if p.isOpen("item") {
				p.pos += 2
				if expr, err = p.instrs(newFuncCtx(), nil); err == nil {
					err = p.closeParen()
				}
			} else {
				expr, err = p.folded(newFuncCtx(), nil)
			}
			if err != nil {
				return nil, err
			}
			if len(expr) != 1 || expr[0].Opcode != 0xD2 {
				return nil, &Error{Kind: ErrSyntax, Line: line, Msg: "element items must be ref.func"}
			}
			funcs = append(funcs, expr[0].Imm.(uint32))
		default:
			return funcs, nil
		}
	}
}

func (p *Parser) buildData() error {
	p.optionalID()
	var d ast.Data
	if p.isOpen("memory") {
		p.pos += 2
		idx, err := p.index(p.mems)
		if err != nil {
			return err
		}
		d.MemIdx = idx
		if err := p.closeParen(); err != nil {
			return err
		}
	}
	if p.peek().Type == token.LParen {
		off, err := p.offset()
		if err != nil {
			return err
		}
		d.Offset = off
	} else {
		d.Passive = true
	}
	for p.peek().Type == token.String {
		t := p.next()
		b, err := DecodeString(t.Value)
		if err != nil {
			return p.errorAt(t, "%v", err)
		}
		d.Init = append(d.Init, b...)
	}
	p.mod.Data = append(p.mod.Data, d)
	return p.closeParen()
}
