package linker

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

var (
	// typeEntry matches one type section line: (type $t3 (func ...)).
	typeEntry = regexp.MustCompile(`^\s*\(type (\$[^\s()]+) \(func((?:\s*\((?:param|result)[^()]*\))*)\s*\)\)\s*$`)
	typeUse   = regexp.MustCompile(`\(type (\$[^\s()]+)\)`)
	resultUse = regexp.MustCompile(`\(result([^()]*)\)`)
	sigStart  = regexp.MustCompile(`^\s*\((?:param|result)\b`)
	headerMem = regexp.MustCompile(`^\(import "[^"]*" "[^"]*" \(memory\b`)
)

// StripStats counts what StripTypes removed.
type StripStats struct {
	Entries int // type section lines
	Removed int // type uses dropped in favor of an inline signature
	Inlined int // type uses replaced by their signature
}

// StripTypes removes the secondary module's type section and every type
// use. A use that is followed by an inline signature is dropped; any
// other use is replaced by the signature of its entry, so call_indirect
// keeps its type. Entries with more than one result are rejected.
func StripTypes(lines []string) ([]string, StripStats, error) {
	var stats StripStats
	sigs := map[string]string{}
	kept := make([]string, 0, len(lines))

	for i, line := range lines {
		m := typeEntry.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}
		name, sig := m[1], strings.TrimSpace(m[2])
		results := 0
		for _, r := range resultUse.FindAllStringSubmatch(sig, -1) {
			results += len(strings.Fields(r[1]))
		}
		if results > 1 {
			return nil, stats, errors.UnsupportedSignature(i+1, name, results)
		}
		sigs[name] = sig
		stats.Entries++
	}

	var useErr error
	out, _, err := modtext.EachCode(kept, func(code string) string {
		if useErr != nil || !strings.Contains(code, "(type $") {
			return code
		}
		var b strings.Builder
		last := 0
		for _, loc := range typeUse.FindAllStringSubmatchIndex(code, -1) {
			start, end := loc[0], loc[1]
			name := code[loc[2]:loc[3]]
			b.WriteString(code[last:start])
			last = end
			if sigStart.MatchString(code[end:]) {
				trimTrailingSpace(&b)
				stats.Removed++
				continue
			}
			sig, ok := sigs[name]
			if !ok {
				useErr = errors.New(errors.PhaseNormalize, errors.KindUnsupportedSignature).
					Detail("type use %s has no entry and no inline signature", name).
					Value(name).
					Build()
				return code
			}
			if sig == "" {
				trimTrailingSpace(&b)
			} else {
				b.WriteString(sig)
			}
			stats.Inlined++
		}
		b.WriteString(code[last:])
		return b.String()
	})
	if err != nil {
		return nil, stats, errors.Wrap(errors.PhaseNormalize, errors.KindMalformedModule, err, "scan secondary text")
	}
	if useErr != nil {
		return nil, stats, useErr
	}

	Logger().Debug("stripped types",
		zap.Int("entries", stats.Entries),
		zap.Int("removed", stats.Removed),
		zap.Int("inlined", stats.Inlined))
	return out, stats, nil
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	t := strings.TrimRight(s, " \t")
	if len(t) != len(s) {
		b.Reset()
		b.WriteString(t)
	}
}

// StripHeader drops the module declaration and the memory import that
// open the secondary module. Any other shape fails with
// unexpected_header_shape; the header is never guessed.
func StripHeader(lines []string) ([]string, error) {
	if len(lines) < 2 {
		got := ""
		if len(lines) == 1 {
			got = lines[0]
		}
		return nil, errors.UnexpectedHeader(errors.LineRange{Start: 1, End: 2}, got)
	}
	open := strings.TrimSpace(lines[0])
	mem := strings.TrimSpace(lines[1])
	if !isModuleOpen(open) || !headerMem.MatchString(mem) {
		return nil, errors.UnexpectedHeader(errors.LineRange{Start: 1, End: 2}, lines[0]+"\n"+lines[1])
	}
	return append([]string(nil), lines[2:]...), nil
}

func isModuleOpen(s string) bool {
	if s == "(module" {
		return true
	}
	rest, ok := strings.CutPrefix(s, "(module ")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	return strings.HasPrefix(rest, "$") && modtext.IdentEnd(rest, 0) == len(rest)
}

// CollapseClose removes the module's closing parenthesis from a body whose
// module declaration was dropped. In disassembler output it shares the
// last data line, leaving that line with one parenthesis too many. A body
// without an excess parenthesis is returned unchanged.
func CollapseClose(lines []string) ([]string, bool, error) {
	line, col, found, err := modtext.FirstUnbalanced(lines)
	if err != nil {
		return nil, false, errors.Wrap(errors.PhaseNormalize, errors.KindMalformedModule, err, "scan secondary body")
	}
	out := append([]string(nil), lines...)
	if !found {
		return out, false, nil
	}
	text := out[line][:col] + out[line][col+1:]
	if strings.TrimSpace(text) == "" {
		out, _ = modtext.DeleteLine(out, line)
	} else {
		out[line] = strings.TrimRight(text, " \t")
	}
	Logger().Debug("collapsed closing delimiter", zap.Int("line", line+1))
	return out, true, nil
}

// ApplyRenames rewrites every identifier that exactly matches a rule's
// source, outside strings and comments. It returns the number of
// occurrences rewritten per rule source. Renaming is idempotent.
func ApplyRenames(lines []string, rules []RenameRule) ([]string, map[string]int, error) {
	counts := make(map[string]int, len(rules))
	table := make(map[string]string, len(rules))
	for _, r := range rules {
		table["$"+r.From] = "$" + r.To
		counts[r.From] = 0
	}
	out, _, err := modtext.EachCode(lines, func(code string) string {
		return replaceIdents(code, func(id string) (string, bool) {
			to, ok := table[id]
			if ok {
				counts[id[1:]]++
			}
			return to, ok
		})
	})
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseNormalize, errors.KindMalformedModule, err, "rename secondary symbols")
	}
	return out, counts, nil
}

// replaceIdents calls fn for every $identifier in code and substitutes
// the returned name when ok.
func replaceIdents(code string, fn func(id string) (string, bool)) string {
	if strings.IndexByte(code, '$') < 0 {
		return code
	}
	var b strings.Builder
	last := 0
	for i := 0; i < len(code); i++ {
		if code[i] != '$' || (i > 0 && modtext.IsIDChar(code[i-1])) {
			continue
		}
		end := modtext.IdentEnd(code, i)
		if to, ok := fn(code[i:end]); ok {
			b.WriteString(code[last:i])
			b.WriteString(to)
			last = end
		}
		i = end - 1
	}
	if last == 0 {
		return code
	}
	b.WriteString(code[last:])
	return b.String()
}

// NormalizeStats reports what Normalize changed.
type NormalizeStats struct {
	Types     StripStats
	Collapsed bool
	Renames   map[string]int
}

// Normalize runs the secondary steps in order: strip types, strip the
// header, collapse the closing delimiter and apply renames.
func Normalize(text string, rules []RenameRule) ([]string, NormalizeStats, error) {
	var stats NormalizeStats
	lines, types, err := StripTypes(modtext.Split(text))
	if err != nil {
		return nil, stats, err
	}
	stats.Types = types

	if lines, err = StripHeader(lines); err != nil {
		return nil, stats, err
	}
	if lines, stats.Collapsed, err = CollapseClose(lines); err != nil {
		return nil, stats, err
	}
	if lines, stats.Renames, err = ApplyRenames(lines, rules); err != nil {
		return nil, stats, err
	}
	return lines, stats, nil
}
