package parser

import (
	"fmt"

	"github.com/wippyai/watlink/wat/internal/ast"
	"github.com/wippyai/watlink/wat/internal/token"
)

type funcCtx struct {
	locals *space
	names  []string
	labels []string
}

func newFuncCtx() *funcCtx {
	return &funcCtx{locals: newSpace("local")}
}

// label resolves a branch target to a relative depth. The function body
// itself is the outermost label.
func (fc *funcCtx) label(t token.Token) (uint32, error) {
	switch t.Type {
	case token.Ident:
		for i := len(fc.labels) - 1; i >= 0; i-- {
			if fc.labels[i] == t.Value {
				return uint32(len(fc.labels) - 1 - i), nil
			}
		}
		return 0, &Error{Kind: ErrUnknown, Name: t.Value, Line: t.Line, Msg: "undefined label " + t.Value}
	case token.Number:
		v, err := parseUint(t.Value, 32)
		if err != nil || v > uint64(len(fc.labels)) {
			return 0, &Error{Kind: ErrUnknown, Line: t.Line, Msg: fmt.Sprintf("invalid branch depth %s", t.Value)}
		}
		return uint32(v), nil
	}
	return 0, &Error{Kind: ErrSyntax, Line: t.Line, Msg: fmt.Sprintf("expected label, got %s %q", t.Type, t.Value)}
}

// signature parses (param ...)* (result ...)*. Named params yield their
// identifier, anonymous ones "".
func (p *Parser) signature() (ast.FuncType, []string, bool, error) {
	var ft ast.FuncType
	var names []string
	inline := false

	for p.isOpen("param") {
		inline = true
		p.pos += 2
		if id := p.optionalID(); id != "" {
			v, err := p.valType()
			if err != nil {
				return ft, nil, false, err
			}
			ft.Params = append(ft.Params, v)
			names = append(names, id)
		} else {
			for p.peek().Type == token.Keyword {
				v, err := p.valType()
				if err != nil {
					return ft, nil, false, err
				}
				ft.Params = append(ft.Params, v)
				names = append(names, "")
			}
		}
		if err := p.closeParen(); err != nil {
			return ft, nil, false, err
		}
	}
	for p.isOpen("result") {
		inline = true
		p.pos += 2
		for p.peek().Type == token.Keyword {
			v, err := p.valType()
			if err != nil {
				return ft, nil, false, err
			}
			ft.Results = append(ft.Results, v)
		}
		if err := p.closeParen(); err != nil {
			return ft, nil, false, err
		}
	}
	return ft, names, inline, nil
}

func (p *Parser) findOrAddType(ft ast.FuncType) uint32 {
	for i, t := range p.mod.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	idx, _ := p.types.define("", 0)
	p.mod.Types = append(p.mod.Types, ft)
	return idx
}

// typeUse parses an optional (type x) followed by an optional inline
// signature. When both are present they must agree. Parameter names are
// bound in fc when fc is non-nil.
func (p *Parser) typeUse(fc *funcCtx) (uint32, ast.FuncType, error) {
	line := p.peek().Line
	explicit := false
	var idx uint32
	if p.isOpen("type") {
		p.pos += 2
		var err error
		if idx, err = p.index(p.types); err != nil {
			return 0, ast.FuncType{}, err
		}
		if err := p.closeParen(); err != nil {
			return 0, ast.FuncType{}, err
		}
		explicit = true
	}

	ft, names, inline, err := p.signature()
	if err != nil {
		return 0, ast.FuncType{}, err
	}

	switch {
	case explicit && inline:
		if want := p.mod.Types[idx]; !ft.Equal(want) {
			return 0, ft, &Error{
				Kind: ErrMismatch,
				Line: line,
				Msg:  fmt.Sprintf("inline signature %s does not match type %d %s", sigString(ft), idx, sigString(want)),
			}
		}
	case explicit:
		ft = p.mod.Types[idx]
		names = make([]string, len(ft.Params))
	default:
		idx = p.findOrAddType(ft)
	}

	if fc != nil {
		for _, name := range names {
			if _, err := fc.locals.define(name, line); err != nil {
				return 0, ft, err
			}
		}
		fc.names = append(fc.names, names...)
	}
	return idx, ft, nil
}

func sigString(ft ast.FuncType) string {
	s := "("
	for i, v := range ft.Params {
		if i > 0 {
			s += " "
		}
		s += ast.ValTypeName(v)
	}
	s += ") -> ("
	for i, v := range ft.Results {
		if i > 0 {
			s += " "
		}
		s += ast.ValTypeName(v)
	}
	return s + ")"
}

// blockType parses the signature of block, loop and if.
func (p *Parser) blockType() (ast.BlockType, error) {
	if p.isOpen("type") {
		idx, _, err := p.typeUse(nil)
		return ast.BlockType{TypeIdx: int64(idx)}, err
	}
	ft, names, _, err := p.signature()
	if err != nil {
		return ast.BlockType{}, err
	}
	for _, n := range names {
		if n != "" {
			return ast.BlockType{}, p.errorAt(p.peek(), "block parameters cannot be named")
		}
	}
	switch {
	case len(ft.Params) == 0 && len(ft.Results) == 0:
		return ast.BlockType{TypeIdx: -1, Value: ast.BlockVoid}, nil
	case len(ft.Params) == 0 && len(ft.Results) == 1:
		return ast.BlockType{TypeIdx: -1, Value: ft.Results[0]}, nil
	}
	return ast.BlockType{TypeIdx: int64(p.findOrAddType(ft))}, nil
}

func (p *Parser) buildFunc(f field) error {
	p.optionalID()
	if err := p.inlineExports(ast.KindFunc, f.idx); err != nil {
		return err
	}
	imp, ok, err := p.inlineImport()
	if err != nil {
		return err
	}
	if ok {
		if err := p.importDesc("func", &imp); err != nil {
			return err
		}
		p.mod.Imports = append(p.mod.Imports, imp)
		return p.closeParen()
	}

	fc := newFuncCtx()
	typeIdx, _, err := p.typeUse(fc)
	if err != nil {
		return err
	}

	fn := ast.Func{TypeIdx: typeIdx}
	for p.isOpen("local") {
		line := p.peek().Line
		p.pos += 2
		if id := p.optionalID(); id != "" {
			v, err := p.valType()
			if err != nil {
				return err
			}
			if _, err := fc.locals.define(id, line); err != nil {
				return err
			}
			fn.Locals = append(fn.Locals, v)
			fc.names = append(fc.names, id)
		} else {
			for p.peek().Type == token.Keyword {
				v, err := p.valType()
				if err != nil {
					return err
				}
				fc.locals.define("", line)
				fn.Locals = append(fn.Locals, v)
				fc.names = append(fc.names, "")
			}
		}
		if err := p.closeParen(); err != nil {
			return err
		}
	}

	if fn.Body, err = p.instrs(fc, nil); err != nil {
		return err
	}
	fn.LocalNames = make([]string, len(fc.names))
	for i, n := range fc.names {
		fn.LocalNames[i] = trimSigil(n)
	}
	p.mod.Funcs = append(p.mod.Funcs, fn)
	return p.closeParen()
}
