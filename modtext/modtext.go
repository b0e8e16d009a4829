// Package modtext models a WebAssembly text module as an ordered list of
// lines. It knows just enough structure to find the module's fields, its
// import block and its closing delimiter; everything else is left to the
// assembler.
package modtext

import (
	"fmt"
	"strings"

	"github.com/wippyai/watlink/errors"
)

// Field keywords reported by Line.Field.
const (
	FieldModule = "module"
	FieldType   = "type"
	FieldImport = "import"
	FieldFunc   = "func"
	FieldData   = "data"
)

// Line is one text line with its structural position.
type Line struct {
	Text string
	// Field is the keyword of the module field that opens on this line, or
	// "" when the line continues a field or holds no code.
	Field string
	// Depth is the parenthesis depth at the start of the line.
	Depth int
}

// Module is a loaded module text. Indices are 0-based line numbers.
type Module struct {
	Lines []Line
	// Open is the line holding "(module".
	Open int
	// Close is the line holding the module's closing parenthesis and
	// CloseCol its byte offset in that line.
	Close    int
	CloseCol int
	// Imports is the contiguous import block, or {-1, -1} when the module
	// has no imports.
	ImportFirst int
	ImportLast  int
}

// Split breaks text into lines, dropping carriage returns.
func Split(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Join is the inverse of Split.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}

func malformed(start, end int, format string, args ...any) *errors.Error {
	return errors.MalformedModule(&errors.LineRange{Start: start + 1, End: end + 1}, fmt.Sprintf(format, args...))
}

// Load classifies text. It fails with a malformed_module error when the
// module declaration or its closing delimiter is missing, when anything
// but comments follows the closing delimiter, or when an import appears
// after a non-import field. Type fields may precede the import block.
func Load(text string) (*Module, error) {
	return LoadLines(Split(text))
}

// LoadLines is Load over already split lines.
func LoadLines(lines []string) (*Module, error) {
	m := &Module{
		Lines:       make([]Line, len(lines)),
		Open:        -1,
		Close:       -1,
		ImportFirst: -1,
		ImportLast:  -1,
	}

	var s scanner
	fieldsDone := false // a non-import field follows the import block
	for i, text := range lines {
		m.Lines[i] = Line{Text: text, Depth: s.depth}
		segs, err := s.split(text)
		if err != nil {
			return nil, malformed(i, i, "%v", err)
		}
		col := 0
		for _, seg := range segs {
			if !seg.code {
				col += len(seg.text)
				continue
			}
			for j := 0; j < len(seg.text); j++ {
				switch seg.text[j] {
				case '(':
					if m.Close >= 0 {
						return nil, malformed(i, i, "content after closing delimiter on line %d", m.Close+1)
					}
					s.depth++
					kw := keyword(seg.text[j+1:])
					switch s.depth {
					case 1:
						if kw != FieldModule {
							return nil, malformed(i, i, "expected (module, got (%s", kw)
						}
						if m.Open >= 0 {
							return nil, malformed(m.Open, i, "more than one module")
						}
						m.Open = i
						m.Lines[i].Field = FieldModule
					case 2:
						if m.Lines[i].Field == "" {
							m.Lines[i].Field = kw
						}
						switch {
						case kw == FieldImport && fieldsDone:
							return nil, malformed(m.ImportFirst, i, "import after non-import field")
						case kw == FieldImport:
							if m.ImportFirst < 0 {
								m.ImportFirst = i
							}
							m.ImportLast = i
						case kw == FieldType && m.ImportFirst < 0:
						default:
							fieldsDone = true
						}
					}
				case ')':
					s.depth--
					switch {
					case s.depth < 0:
						return nil, malformed(i, i, "unbalanced closing parenthesis")
					case s.depth == 0:
						m.Close = i
						m.CloseCol = col + j
					}
				default:
					if m.Close >= 0 && !isSpace(seg.text[j]) {
						return nil, malformed(m.Close, i, "content after closing delimiter")
					}
				}
			}
			col += len(seg.text)
		}
	}

	if m.Open < 0 {
		return nil, malformed(0, max(len(lines)-1, 0), "no module declaration")
	}
	if m.Close < 0 {
		return nil, malformed(m.Open, len(lines)-1, "no closing delimiter")
	}
	return m, nil
}

func keyword(s string) string {
	i := 0
	for i < len(s) && IsIDChar(s[i]) {
		i++
	}
	return s[:i]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

// Text returns the module's lines as plain strings.
func (m *Module) Text() []string {
	out := make([]string, len(m.Lines))
	for i, l := range m.Lines {
		out[i] = l.Text
	}
	return out
}

// String joins the module's lines.
func (m *Module) String() string {
	return Join(m.Text())
}

// Line returns the text of line i, or "" when out of range.
func (m *Module) Line(i int) string {
	if i < 0 || i >= len(m.Lines) {
		return ""
	}
	return m.Lines[i].Text
}

// FieldsOf returns the indices of lines opening a field with keyword kw.
func (m *Module) FieldsOf(kw string) []int {
	var out []int
	for i, l := range m.Lines {
		if l.Depth == 1 && l.Field == kw {
			out = append(out, i)
		}
	}
	return out
}

// CloseOnOwnLine reports whether the closing delimiter stands alone.
func (m *Module) CloseOnOwnLine() bool {
	return strings.TrimSpace(m.Lines[m.Close].Text) == ")"
}

// SpliceBeforeClose inserts lines directly before the module's closing
// delimiter and returns the resulting text. A delimiter that shares its
// line with the last field is first moved to a line of its own.
func (m *Module) SpliceBeforeClose(insert []string) []string {
	lines := m.Text()
	at := m.Close
	if !m.CloseOnOwnLine() {
		last := lines[at]
		lines[at] = last[:m.CloseCol] + last[m.CloseCol+1:]
		lines = append(lines[:at+1], append([]string{")"}, lines[at+1:]...)...)
		at++
	}
	out, _ := SpliceLines(lines, at, insert)
	return out
}

// SpliceLines returns a copy of lines with insert placed before index at.
// at may equal len(lines).
func SpliceLines(lines []string, at int, insert []string) ([]string, error) {
	if at < 0 || at > len(lines) {
		return nil, fmt.Errorf("splice index %d out of range [0, %d]", at, len(lines))
	}
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	return append(out, lines[at:]...), nil
}

// DeleteLine returns a copy of lines without index i.
func DeleteLine(lines []string, i int) ([]string, error) {
	if i < 0 || i >= len(lines) {
		return nil, fmt.Errorf("line index %d out of range [0, %d)", i, len(lines))
	}
	out := make([]string, 0, len(lines)-1)
	out = append(out, lines[:i]...)
	return append(out, lines[i+1:]...), nil
}

// FindFirstMatching returns the first index in [start, end) whose line
// satisfies pred. end is clamped to len(lines).
func FindFirstMatching(lines []string, start, end int, pred func(string) bool) (int, bool) {
	for i := max(start, 0); i < min(end, len(lines)); i++ {
		if pred(lines[i]) {
			return i, true
		}
	}
	return -1, false
}

// FindAll returns every index in [start, end) whose line satisfies pred.
func FindAll(lines []string, start, end int, pred func(string) bool) []int {
	var out []int
	for i := max(start, 0); i < min(end, len(lines)); i++ {
		if pred(lines[i]) {
			out = append(out, i)
		}
	}
	return out
}
