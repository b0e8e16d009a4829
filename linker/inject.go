package linker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

func isImportLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "(import ")
}

// FindLastImport returns the index of the last line of the first run of
// import lines. The scan stops at the first non-import line that follows
// an import.
func FindLastImport(lines []string) (int, error) {
	last := -1
	for i, line := range lines {
		if isImportLine(line) {
			last = i
			continue
		}
		if last >= 0 {
			break
		}
	}
	if last < 0 {
		return -1, errors.ImportBlockNotFound(len(lines))
	}
	return last, nil
}

// InjectHostImports inserts the declarations of imports directly after the
// primary module's last import line, in catalog order and with that line's
// indentation. It returns the new lines and the 1-based range inserted.
func InjectHostImports(lines []string, imports []HostImport) ([]string, errors.LineRange, error) {
	last, err := FindLastImport(lines)
	if err != nil {
		return nil, errors.LineRange{}, err
	}
	indent := lines[last][:len(lines[last])-len(strings.TrimLeft(lines[last], " \t"))]

	decls := make([]string, len(imports))
	for i, h := range imports {
		decls[i] = indent + h.Line()
	}
	out, err := modtext.SpliceLines(lines, last+1, decls)
	if err != nil {
		return nil, errors.LineRange{}, errors.Wrap(errors.PhaseInject, errors.KindInvalidData, err, "insert host imports")
	}
	inserted := errors.LineRange{Start: last + 2, End: last + 1 + len(decls)}
	Logger().Debug("injected host imports",
		zap.Int("after_line", last+1),
		zap.Int("count", len(decls)))
	return out, inserted, nil
}

// RewriteCalls redirects every direct call to a rule's target to the rule's
// import, in flat (call $f) and folded ((call $f ...)) form. It returns the
// number of call sites rewritten per target. A rule that is not optional
// and matches nothing fails with import_rewrite_mismatch.
func RewriteCalls(lines []string, rules []RewriteRule) ([]string, map[string]int, error) {
	counts := make(map[string]int, len(rules))
	table := make(map[string]string, len(rules))
	for _, r := range rules {
		table["$"+r.Target] = "$" + r.Import
		counts[r.Target] = 0
	}

	out, _, err := modtext.EachCode(lines, func(code string) string {
		return rewriteCallSites(code, func(id string) (string, bool) {
			to, ok := table[id]
			if ok {
				counts[id[1:]]++
			}
			return to, ok
		})
	})
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseInject, errors.KindMalformedModule, err, "rewrite call sites")
	}

	for _, r := range rules {
		Logger().Debug("rewrote calls",
			zap.String("target", r.Target),
			zap.String("import", r.Import),
			zap.Int("sites", counts[r.Target]))
		if counts[r.Target] == 0 && !r.Optional {
			return nil, counts, errors.ImportRewriteMismatch("$"+r.Target, "$"+r.Import)
		}
	}
	return out, counts, nil
}

// rewriteCallSites finds the callee of every "call" keyword in code.
// return_call and call_indirect are different keywords and never match.
func rewriteCallSites(code string, fn func(id string) (string, bool)) string {
	if !strings.Contains(code, "call") {
		return code
	}
	var b strings.Builder
	last := 0
	for i := 0; i+4 < len(code); i++ {
		if code[i:i+4] != "call" || (i > 0 && !callPrefix(code[i-1])) {
			continue
		}
		j := i + 4
		if code[j] != ' ' && code[j] != '\t' {
			continue
		}
		for j < len(code) && (code[j] == ' ' || code[j] == '\t') {
			j++
		}
		if j >= len(code) || code[j] != '$' {
			continue
		}
		end := modtext.IdentEnd(code, j)
		if to, ok := fn(code[j:end]); ok {
			b.WriteString(code[last:j])
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

func callPrefix(c byte) bool {
	return c == '(' || c == ' ' || c == '\t'
}
