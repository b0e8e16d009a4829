package modtext

import "fmt"

// IsIDChar reports whether c may appear in a text-format identifier.
func IsIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '/',
		':', '<', '=', '>', '?', '@', '\\', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// IdentEnd returns the index just past the identifier starting at s[i],
// which must be '$'.
func IdentEnd(s string, i int) int {
	j := i + 1
	for j < len(s) && IsIDChar(s[j]) {
		j++
	}
	return j
}

// scanner tracks parenthesis depth and block comments across lines.
type scanner struct {
	depth int
	block int // nesting of (; ;) comments
}

// segment is a run of a line that is either code or a string/comment.
type segment struct {
	text string
	code bool
}

// split breaks one line into code and non-code segments, updating the
// block comment state. String literals cannot span lines.
func (s *scanner) split(line string) ([]segment, error) {
	var segs []segment
	start := 0
	code := s.block == 0
	flush := func(end int, nextCode bool) {
		if end > start {
			segs = append(segs, segment{text: line[start:end], code: code})
		}
		start = end
		code = nextCode
	}

	for i := 0; i < len(line); {
		if s.block > 0 {
			switch {
			case i+1 < len(line) && line[i] == '(' && line[i+1] == ';':
				s.block++
				i += 2
			case i+1 < len(line) && line[i] == ';' && line[i+1] == ')':
				s.block--
				i += 2
				if s.block == 0 {
					flush(i, true)
				}
			default:
				i++
			}
			continue
		}
		c := line[i]
		switch {
		case c == ';' && i+1 < len(line) && line[i+1] == ';':
			flush(i, false)
			i = len(line)
		case c == '(' && i+1 < len(line) && line[i+1] == ';':
			flush(i, false)
			s.block = 1
			i += 2
		case c == '"':
			flush(i, false)
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			i = j + 1
			flush(i, true)
		default:
			i++
		}
	}
	flush(len(line), code)
	return segs, nil
}

// EachCode calls fn on every code run of every line, outside string
// literals and comments, and replaces the run with its result. It returns
// the rewritten lines and the number of runs fn changed.
func EachCode(lines []string, fn func(code string) string) ([]string, int, error) {
	var s scanner
	out := make([]string, len(lines))
	changed := 0
	for i, line := range lines {
		segs, err := s.split(line)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		if len(segs) == 1 && !segs[0].code {
			out[i] = line
			continue
		}
		var b []byte
		for _, seg := range segs {
			if !seg.code {
				b = append(b, seg.text...)
				continue
			}
			next := fn(seg.text)
			if next != seg.text {
				changed++
			}
			b = append(b, next...)
		}
		out[i] = string(b)
	}
	return out, changed, nil
}

// FirstUnbalanced returns the position of the first ')' that closes more
// parentheses than lines opened, counting from depth zero.
func FirstUnbalanced(lines []string) (line, col int, found bool, err error) {
	var s scanner
	for i, text := range lines {
		segs, err := s.split(text)
		if err != nil {
			return 0, 0, false, fmt.Errorf("line %d: %w", i+1, err)
		}
		offset := 0
		for _, seg := range segs {
			if seg.code {
				for j := 0; j < len(seg.text); j++ {
					switch seg.text[j] {
					case '(':
						s.depth++
					case ')':
						s.depth--
						if s.depth < 0 {
							return i, offset + j, true, nil
						}
					}
				}
			}
			offset += len(seg.text)
		}
	}
	return 0, 0, false, nil
}
