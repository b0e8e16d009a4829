package linker

import "strings"

// SanitizeIdentifiers removes commas from every $-identifier run outside
// string literals and comments. A run extends from "$" up to whitespace, a
// parenthesis or a quote. It returns the new text and the number of runs
// changed.
//
// The primary compiler emits generic instantiations such as
// $~lib/map/Map<usize,~lib/typedarray/Uint64Array>#get, which are not
// valid identifiers.
func SanitizeIdentifiers(text string) (string, int) {
	var b strings.Builder
	b.Grow(len(text))
	touched := 0
	n := len(text)

	for i := 0; i < n; {
		c := text[i]
		switch {
		case c == ';' && i+1 < n && text[i+1] == ';':
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				j = n - i
			}
			b.WriteString(text[i : i+j])
			i += j
		case c == '(' && i+1 < n && text[i+1] == ';':
			j := blockCommentEnd(text, i)
			b.WriteString(text[i:j])
			i = j
		case c == '"':
			j := i + 1
			for j < n && text[j] != '"' && text[j] != '\n' {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			j = min(j+1, n)
			b.WriteString(text[i:j])
			i = j
		case c == '$':
			j := i + 1
			for j < n && !runEnd(text[j]) {
				j++
			}
			run := text[i:j]
			if strings.IndexByte(run, ',') >= 0 {
				run = strings.ReplaceAll(run, ",", "")
				touched++
			}
			b.WriteString(run)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), touched
}

func runEnd(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"':
		return true
	}
	return false
}

// blockCommentEnd returns the index just past the (; ;) comment at i.
// An unterminated comment runs to the end of text.
func blockCommentEnd(text string, i int) int {
	depth := 0
	for i+1 < len(text) {
		switch {
		case text[i] == '(' && text[i+1] == ';':
			depth++
			i += 2
		case text[i] == ';' && text[i+1] == ')':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(text)
}
