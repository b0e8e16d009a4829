package parser

import (
	"math/bits"
	"strings"

	"github.com/wippyai/watlink/wat/internal/ast"
	"github.com/wippyai/watlink/wat/internal/opcode"
	"github.com/wippyai/watlink/wat/internal/token"
)

const (
	opBlock byte = 0x02
	opLoop  byte = 0x03
	opIf    byte = 0x04
	opElse  byte = 0x05
	opEnd   byte = 0x0B
	opSelT  byte = 0x1C
)

// instrs parses instructions in flat or folded form until ")", "end" or
// "else", none of which is consumed.
func (p *Parser) instrs(fc *funcCtx, out []ast.Instr) ([]ast.Instr, error) {
	for {
		t := p.peek()
		var err error
		switch t.Type {
		case token.LParen:
			out, err = p.folded(fc, out)
		case token.Keyword:
			if t.Value == "end" || t.Value == "else" {
				return out, nil
			}
			p.next()
			out, err = p.plain(fc, t, out)
		default:
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) lookup(t token.Token) (opcode.Info, error) {
	if t.Type != token.Keyword {
		return opcode.Info{}, p.unexpected(t, "instruction")
	}
	info, ok := opcode.Lookup(t.Value)
	if !ok || info.Name == "else" || info.Name == "end" {
		return info, p.errorAt(t, "unknown instruction %q", t.Value)
	}
	return info, nil
}

func (p *Parser) plain(fc *funcCtx, t token.Token, out []ast.Instr) ([]ast.Instr, error) {
	info, err := p.lookup(t)
	if err != nil {
		return nil, err
	}
	if !info.Prefixed && (info.Opcode == opBlock || info.Opcode == opLoop || info.Opcode == opIf) {
		return p.plainBlock(fc, info, out)
	}
	in, err := p.immediates(fc, info)
	if err != nil {
		return nil, err
	}
	return append(out, in), nil
}

func (p *Parser) plainBlock(fc *funcCtx, info opcode.Info, out []ast.Instr) ([]ast.Instr, error) {
	label := p.optionalID()
	bt, err := p.blockType()
	if err != nil {
		return nil, err
	}
	out = append(out, ast.Instr{Opcode: info.Opcode, Imm: bt})
	fc.labels = append(fc.labels, label)

	if out, err = p.instrs(fc, out); err != nil {
		return nil, err
	}
	if info.Opcode == opIf && p.peekKeyword("else") {
		p.next()
		if err := p.endLabel(label); err != nil {
			return nil, err
		}
		out = append(out, ast.Instr{Opcode: opElse})
		if out, err = p.instrs(fc, out); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	if err := p.endLabel(label); err != nil {
		return nil, err
	}
	fc.labels = fc.labels[:len(fc.labels)-1]
	return append(out, ast.Instr{Opcode: opEnd}), nil
}

// endLabel consumes the optional identifier after else/end, which must
// repeat the block label.
func (p *Parser) endLabel(label string) error {
	if p.peek().Type != token.Ident {
		return nil
	}
	t := p.next()
	if t.Value != label {
		return p.errorAt(t, "mismatching label %s, expected %q", t.Value, label)
	}
	return nil
}

// folded parses one parenthesized instruction, emitting operands before
// the operator.
func (p *Parser) folded(fc *funcCtx, out []ast.Instr) ([]ast.Instr, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	info, err := p.lookup(p.next())
	if err != nil {
		return nil, err
	}

	if !info.Prefixed {
		switch info.Opcode {
		case opBlock, opLoop:
			label := p.optionalID()
			bt, err := p.blockType()
			if err != nil {
				return nil, err
			}
			out = append(out, ast.Instr{Opcode: info.Opcode, Imm: bt})
			fc.labels = append(fc.labels, label)
			if out, err = p.instrs(fc, out); err != nil {
				return nil, err
			}
			fc.labels = fc.labels[:len(fc.labels)-1]
			out = append(out, ast.Instr{Opcode: opEnd})
			return out, p.closeParen()
		case opIf:
			return p.foldedIf(fc, out)
		}
	}

	in, err := p.immediates(fc, info)
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.LParen {
		if out, err = p.folded(fc, out); err != nil {
			return nil, err
		}
	}
	out = append(out, in)
	return out, p.closeParen()
}

func (p *Parser) foldedIf(fc *funcCtx, out []ast.Instr) ([]ast.Instr, error) {
	label := p.optionalID()
	bt, err := p.blockType()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == token.LParen && !p.isOpen("then") {
		if out, err = p.folded(fc, out); err != nil {
			return nil, err
		}
	}
	out = append(out, ast.Instr{Opcode: opIf, Imm: bt})
	fc.labels = append(fc.labels, label)

	if err := p.expectOpen("then"); err != nil {
		return nil, err
	}
	if out, err = p.instrs(fc, out); err != nil {
		return nil, err
	}
	if err := p.closeParen(); err != nil {
		return nil, err
	}
	if p.isOpen("else") {
		p.pos += 2
		out = append(out, ast.Instr{Opcode: opElse})
		if out, err = p.instrs(fc, out); err != nil {
			return nil, err
		}
		if err := p.closeParen(); err != nil {
			return nil, err
		}
	}
	fc.labels = fc.labels[:len(fc.labels)-1]
	out = append(out, ast.Instr{Opcode: opEnd})
	return out, p.closeParen()
}

// immediates parses the immediates of a non-block instruction.
func (p *Parser) immediates(fc *funcCtx, info opcode.Info) (ast.Instr, error) {
	in := ast.Instr{Opcode: info.Opcode}
	var err error

	switch info.Imm {
	case opcode.ImmNone:
	case opcode.ImmLabel:
		in.Imm, err = fc.label(p.next())
	case opcode.ImmBrTable:
		in.Imm, err = p.brTable(fc)
	case opcode.ImmFunc:
		in.Imm, err = p.index(p.funcs)
	case opcode.ImmCallIndirect:
		var ci ast.CallIndirect
		if p.isIndex() {
			if ci.TableIdx, err = p.index(p.tables); err != nil {
				return in, err
			}
		}
		ci.TypeIdx, _, err = p.typeUse(nil)
		in.Imm = ci
	case opcode.ImmLocal:
		in.Imm, err = p.index(fc.locals)
	case opcode.ImmGlobal:
		in.Imm, err = p.index(p.globals)
	case opcode.ImmTable:
		var idx uint32
		if p.isIndex() {
			idx, err = p.index(p.tables)
		}
		if info.Prefixed {
			in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{idx}}
		} else {
			in.Imm = idx
		}
	case opcode.ImmMemarg:
		in.Imm, err = p.memarg(info.Align)
	case opcode.ImmMemIdx:
		var idx uint32
		if p.isIndex() {
			idx, err = p.index(p.mems)
		}
		in.Imm = idx
	case opcode.ImmI32:
		t := p.next()
		var v int32
		if v, err = parseI32(t.Value); err != nil || t.Type != token.Number {
			return in, p.errorAt(t, "invalid i32 constant %q", t.Value)
		}
		in.Imm = v
	case opcode.ImmI64:
		t := p.next()
		var v int64
		if v, err = parseI64(t.Value); err != nil || t.Type != token.Number {
			return in, p.errorAt(t, "invalid i64 constant %q", t.Value)
		}
		in.Imm = v
	case opcode.ImmF32:
		t := p.next()
		var v uint32
		if v, err = parseF32(t.Value); err != nil || (t.Type != token.Number && t.Type != token.Keyword) {
			return in, p.errorAt(t, "invalid f32 constant %q", t.Value)
		}
		in.Imm = ast.F32Bits(v)
	case opcode.ImmF64:
		t := p.next()
		var v uint64
		if v, err = parseF64(t.Value); err != nil || (t.Type != token.Number && t.Type != token.Keyword) {
			return in, p.errorAt(t, "invalid f64 constant %q", t.Value)
		}
		in.Imm = ast.F64Bits(v)
	case opcode.ImmSelect:
		if p.isOpen("result") {
			ft, _, _, serr := p.signature()
			if serr != nil {
				return in, serr
			}
			in.Opcode = opSelT
			in.Imm = ast.SelectTypes{Types: ft.Results}
		}
	case opcode.ImmRefType:
		t := p.next()
		switch t.Value {
		case "func":
			in.Imm = ast.RefType(ast.ValFuncRef)
		case "extern":
			in.Imm = ast.RefType(ast.ValExternRef)
		default:
			return in, p.unexpected(t, "heap type")
		}
	case opcode.ImmData:
		var idx uint32
		idx, err = p.index(p.datas)
		in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{idx}}
	case opcode.ImmMemoryInit:
		var idx uint32
		idx, err = p.index(p.datas)
		in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{idx, 0}}
	case opcode.ImmMemoryCopy:
		in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{0, 0}}
	case opcode.ImmMemoryFill:
		in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{0}}
	case opcode.ImmElem:
		var idx uint32
		idx, err = p.index(p.elems)
		in.Imm = ast.Misc{Sub: info.Sub, Operands: []uint32{idx}}
	case opcode.ImmTableInit:
		in.Imm, err = p.tableInit(info)
	case opcode.ImmTableCopy:
		ops := []uint32{0, 0}
		if p.isIndex() {
			if ops[0], err = p.index(p.tables); err != nil {
				return in, err
			}
			ops[1], err = p.index(p.tables)
		}
		in.Imm = ast.Misc{Sub: info.Sub, Operands: ops}
	}
	if err != nil {
		return in, err
	}
	if info.Prefixed && in.Imm == nil {
		in.Imm = ast.Misc{Sub: info.Sub}
	}
	return in, nil
}

// tableInit parses "table.init elem" or "table.init table elem"; the binary
// order is elem then table.
func (p *Parser) tableInit(info opcode.Info) (ast.Misc, error) {
	first := p.next()
	if !p.isIndex() {
		elem, err := p.elems.resolve(first)
		return ast.Misc{Sub: info.Sub, Operands: []uint32{elem, 0}}, err
	}
	table, err := p.tables.resolve(first)
	if err != nil {
		return ast.Misc{}, err
	}
	elem, err := p.index(p.elems)
	return ast.Misc{Sub: info.Sub, Operands: []uint32{elem, table}}, err
}

func (p *Parser) brTable(fc *funcCtx) (ast.BrTable, error) {
	var labels []uint32
	for p.isIndex() {
		depth, err := fc.label(p.next())
		if err != nil {
			return ast.BrTable{}, err
		}
		labels = append(labels, depth)
	}
	if len(labels) == 0 {
		return ast.BrTable{}, p.unexpected(p.peek(), "branch label")
	}
	return ast.BrTable{Labels: labels[:len(labels)-1], Default: labels[len(labels)-1]}, nil
}

func (p *Parser) memarg(natural uint32) (ast.Memarg, error) {
	m := ast.Memarg{Align: natural}
	if t := p.peek(); t.Type == token.Keyword && strings.HasPrefix(t.Value, "offset=") {
		p.next()
		v, err := parseUint(strings.TrimPrefix(t.Value, "offset="), 32)
		if err != nil {
			return m, p.errorAt(t, "invalid offset %q", t.Value)
		}
		m.Offset = uint32(v)
	}
	if t := p.peek(); t.Type == token.Keyword && strings.HasPrefix(t.Value, "align=") {
		p.next()
		v, err := parseUint(strings.TrimPrefix(t.Value, "align="), 32)
		if err != nil || v == 0 || v&(v-1) != 0 {
			return m, p.errorAt(t, "alignment must be a power of two, got %q", t.Value)
		}
		m.Align = uint32(bits.TrailingZeros64(v))
	}
	return m, nil
}
