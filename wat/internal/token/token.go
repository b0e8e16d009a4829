package token

import "fmt"

type Type int

const (
	LParen Type = iota
	RParen
	Keyword
	Ident
	Number
	String
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Keyword:
		return "keyword"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	case String:
		return "string"
	}
	return "token"
}

// Token is a lexical unit. String values hold the raw text between the
// quotes; escapes are decoded by the parser.
type Token struct {
	Value string
	Type  Type
	Line  int
}

// Error is a lexical error.
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// IsIDChar reports whether c may appear in a keyword, number or $identifier.
func IsIDChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '/',
		':', '<', '=', '>', '?', '@', '\\', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	line := 1
	i := 0
	n := len(input)

	for i < n {
		c := input[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';' && i+1 < n && input[i+1] == ';':
			for i < n && input[i] != '\n' {
				i++
			}
		case c == '(' && i+1 < n && input[i+1] == ';':
			start := line
			depth := 0
			for {
				if i+1 >= n {
					return nil, &Error{Line: start, Msg: "unterminated block comment"}
				}
				switch {
				case input[i] == '(' && input[i+1] == ';':
					depth++
					i += 2
				case input[i] == ';' && input[i+1] == ')':
					depth--
					i += 2
				default:
					if input[i] == '\n' {
						line++
					}
					i++
				}
				if depth == 0 {
					break
				}
			}
		case c == '(':
			tokens = append(tokens, Token{Value: "(", Type: LParen, Line: line})
			i++
		case c == ')':
			tokens = append(tokens, Token{Value: ")", Type: RParen, Line: line})
			i++
		case c == '"':
			start := line
			j := i + 1
			for j < n && input[j] != '"' {
				if input[j] == '\\' && j+1 < n {
					j++
				}
				if input[j] == '\n' {
					line++
				}
				j++
			}
			if j >= n {
				return nil, &Error{Line: start, Msg: "unterminated string"}
			}
			tokens = append(tokens, Token{Value: input[i+1 : j], Type: String, Line: start})
			i = j + 1
		case IsIDChar(c):
			j := i
			for j < n && IsIDChar(input[j]) {
				j++
			}
			if j < n && !isDelimiter(input[j]) {
				return nil, &Error{Line: line, Msg: fmt.Sprintf("unexpected character %q after %q", input[j], input[i:j])}
			}
			word := input[i:j]
			tokens = append(tokens, Token{Value: word, Type: classify(word), Line: line})
			i = j
		default:
			return nil, &Error{Line: line, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return tokens, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"', ';':
		return true
	}
	return false
}

func classify(word string) Type {
	if word[0] == '$' {
		return Ident
	}
	d := word
	if d[0] == '+' || d[0] == '-' {
		d = d[1:]
	}
	if d != "" && d[0] >= '0' && d[0] <= '9' {
		return Number
	}
	return Keyword
}
