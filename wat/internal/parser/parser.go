package parser

import (
	"fmt"
	"strconv"

	"github.com/wippyai/watlink/wat/internal/ast"
	"github.com/wippyai/watlink/wat/internal/token"
)

// ErrorKind classifies parser failures.
type ErrorKind int

const (
	// ErrSyntax is malformed text.
	ErrSyntax ErrorKind = iota
	// ErrUnknown is a reference to an identifier that is never defined.
	ErrUnknown
	// ErrDuplicate is a second definition of an identifier in one index space.
	ErrDuplicate
	// ErrMismatch is a type use that disagrees with its inline signature.
	ErrMismatch
)

// Error is a positioned parser error. Name holds the identifier involved
// for ErrUnknown and ErrDuplicate.
type Error struct {
	Name string
	Msg  string
	Line int
	Kind ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

const eof token.Type = -1

// Parser builds an ast.Module from tokens in two passes: declare assigns
// indices to every named item, build resolves references and fills the
// module.
type Parser struct {
	mod    *ast.Module
	tokens []token.Token
	fields []field
	pos    int
	end    int

	types   *space
	funcs   *space
	tables  *space
	mems    *space
	globals *space
	elems   *space
	datas   *space
}

// field is one top-level module field. idx is its position in the index
// space of its kind.
type field struct {
	kind     string
	start    int
	line     int
	idx      uint32
	imported bool
}

func New(tokens []token.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		mod:     &ast.Module{},
		types:   newSpace("type"),
		funcs:   newSpace("function"),
		tables:  newSpace("table"),
		mems:    newSpace("memory"),
		globals: newSpace("global"),
		elems:   newSpace("elem segment"),
		datas:   newSpace("data segment"),
	}
}

func (p *Parser) Parse() (*ast.Module, error) {
	if err := p.expectOpen("module"); err != nil {
		return nil, err
	}
	if id := p.optionalID(); id != "" {
		p.mod.Name = id[1:]
	}
	if err := p.declare(); err != nil {
		return nil, err
	}
	if err := p.build(); err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != eof {
		return nil, p.errorAt(t, "unexpected %s %q after module", t.Type, t.Value)
	}
	return p.mod, nil
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		line := 1
		if n := len(p.tokens); n > 0 {
			line = p.tokens[n-1].Line
		}
		return token.Token{Type: eof, Line: line}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token.Token {
	if p.pos+offset >= len(p.tokens) {
		return token.Token{Type: eof}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) next() token.Token {
	t := p.peek()
	if t.Type != eof {
		p.pos++
	}
	return t
}

func (p *Parser) errorAt(t token.Token, format string, args ...any) error {
	return &Error{Kind: ErrSyntax, Line: t.Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) unexpected(t token.Token, want string) error {
	if t.Type == eof {
		return p.errorAt(t, "unexpected end of input, expected %s", want)
	}
	return p.errorAt(t, "expected %s, got %s %q", want, t.Type, t.Value)
}

func (p *Parser) expect(typ token.Type) (token.Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, p.unexpected(t, typ.String())
	}
	return t, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t := p.next()
	if t.Type != token.Keyword || t.Value != kw {
		return p.unexpected(t, "'"+kw+"'")
	}
	return nil
}

// expectOpen consumes "(" followed by the keyword kw.
func (p *Parser) expectOpen(kw string) error {
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	return p.expectKeyword(kw)
}

func (p *Parser) closeParen() error {
	_, err := p.expect(token.RParen)
	return err
}

// isOpen reports whether the next tokens are "(" kw.
func (p *Parser) isOpen(kw string) bool {
	if p.peek().Type != token.LParen {
		return false
	}
	t := p.peekAt(1)
	return t.Type == token.Keyword && t.Value == kw
}

func (p *Parser) peekKeyword(kw string) bool {
	t := p.peek()
	return t.Type == token.Keyword && t.Value == kw
}

func (p *Parser) optionalID() string {
	if p.peek().Type == token.Ident {
		return p.next().Value
	}
	return ""
}

func (p *Parser) isIndex() bool {
	t := p.peek().Type
	return t == token.Ident || t == token.Number
}

// skipToClose advances past the ")" that closes the list whose "(" was
// already consumed.
func (p *Parser) skipToClose() error {
	depth := 1
	for depth > 0 {
		t := p.next()
		switch t.Type {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		case eof:
			return p.unexpected(t, "')'")
		}
	}
	return nil
}

func (p *Parser) u32() (uint32, error) {
	t := p.next()
	if t.Type != token.Number {
		return 0, p.unexpected(t, "number")
	}
	v, err := parseUint(t.Value, 32)
	if err != nil {
		return 0, p.errorAt(t, "invalid u32 %q", t.Value)
	}
	return uint32(v), nil
}

func (p *Parser) str() (string, error) {
	t, err := p.expect(token.String)
	if err != nil {
		return "", err
	}
	b, err := DecodeString(t.Value)
	if err != nil {
		return "", p.errorAt(t, "%v", err)
	}
	return string(b), nil
}

func (p *Parser) valType() (byte, error) {
	t := p.next()
	if t.Type == token.Keyword {
		if v, ok := ast.ValType(t.Value); ok {
			return v, nil
		}
	}
	return 0, p.errorAt(t, "unknown value type %q", t.Value)
}

// space is one index space. Names map to indices in definition order.
type space struct {
	names   map[string]uint32
	kind    string
	count   uint32
	defined bool
}

func newSpace(kind string) *space {
	return &space{kind: kind, names: map[string]uint32{}}
}

func (s *space) define(id string, line int) (uint32, error) {
	idx := s.count
	if id != "" {
		if _, dup := s.names[id]; dup {
			return 0, &Error{
				Kind: ErrDuplicate,
				Name: id,
				Line: line,
				Msg:  fmt.Sprintf("redefinition of %s %s", s.kind, id),
			}
		}
		s.names[id] = idx
	}
	s.count++
	return idx, nil
}

func (s *space) resolve(t token.Token) (uint32, error) {
	switch t.Type {
	case token.Ident:
		if idx, ok := s.names[t.Value]; ok {
			return idx, nil
		}
		return 0, &Error{
			Kind: ErrUnknown,
			Name: t.Value,
			Line: t.Line,
			Msg:  fmt.Sprintf("undefined %s %s", s.kind, t.Value),
		}
	case token.Number:
		v, err := strconv.ParseUint(t.Value, 10, 32)
		if err != nil {
			return 0, &Error{Kind: ErrSyntax, Line: t.Line, Msg: fmt.Sprintf("invalid %s index %q", s.kind, t.Value)}
		}
		if uint32(v) >= s.count {
			return 0, &Error{Kind: ErrUnknown, Line: t.Line, Msg: fmt.Sprintf("%s index %d out of range", s.kind, v)}
		}
		return uint32(v), nil
	}
	return 0, &Error{Kind: ErrSyntax, Line: t.Line, Msg: fmt.Sprintf("expected %s index, got %s %q", s.kind, t.Type, t.Value)}
}

func (p *Parser) index(s *space) (uint32, error) {
	return s.resolve(p.next())
}
