package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseLoad      Phase = "load"      // reading and classifying module text
	PhaseSanitize  Phase = "sanitize"  // primary identifier cleanup
	PhaseNormalize Phase = "normalize" // secondary module normalization
	PhaseInject    Phase = "inject"    // host import injection and call rewrites
	PhaseMerge     Phase = "merge"     // splice and placeholder removal
	PhaseParse     Phase = "parse"     // text syntax
	PhaseResolve   Phase = "resolve"   // symbolic name resolution
	PhaseValidate  Phase = "validate"  // structural validation
	PhaseEncode    Phase = "encode"    // binary encoding
	PhaseDecode    Phase = "decode"    // binary decoding
	PhaseConfig    Phase = "config"    // build manifest
	PhaseWrite     Phase = "write"     // artifact output
	PhaseRuntime   Phase = "runtime"   // host instantiation checks
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedModule       Kind = "malformed_module"
	KindUnsupportedSignature  Kind = "unsupported_signature"
	KindUnexpectedHeader      Kind = "unexpected_header_shape"
	KindImportBlockNotFound   Kind = "import_block_not_found"
	KindImportRewriteMismatch Kind = "import_rewrite_mismatch"
	KindPlaceholderMissing    Kind = "placeholder_import_missing"
	KindPlaceholderAmbiguous  Kind = "placeholder_import_ambiguous"
	KindNameCollision         Kind = "name_collision"
	KindUnknownName           Kind = "unknown_name"
	KindSyntax                Kind = "syntax"
	KindInvalidData           Kind = "invalid_data"
	KindInvalidInput          Kind = "invalid_input"
	KindUnsupported           Kind = "unsupported"
	KindNotFound              Kind = "not_found"
	KindMissingImport         Kind = "missing_import"
	KindInstantiation         Kind = "instantiation"
	KindIO                    Kind = "io"
)

// LineRange is an inclusive, 1-based range of text lines.
type LineRange struct {
	Start int
	End   int
}

func (r LineRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("line %d", r.Start)
	}
	return fmt.Sprintf("lines %d-%d", r.Start, r.End)
}

// Error is the structured error type used throughout watlink
type Error struct {
	Value    any
	Cause    error
	Lines    *LineRange
	Phase    Phase
	Kind     Kind
	Expected string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Lines != nil {
		b.WriteString(" (")
		b.WriteString(e.Lines.String())
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Expected != "" {
		b.WriteString("; expected ")
		b.WriteString(e.Expected)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithPath returns a copy of e with prefix prepended to its path.
func (e *Error) WithPath(prefix ...string) *Error {
	c := *e
	c.Path = append(append([]string{}, prefix...), e.Path...)
	return &c
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path (variant, stage, symbol)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Lines sets the scanned line range
func (b *Builder) Lines(start, end int) *Builder {
	b.err.Lines = &LineRange{Start: start, End: end}
	return b
}

// Expected sets the marker that was expected in the scanned range
func (b *Builder) Expected(marker string) *Builder {
	b.err.Expected = marker
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Taxonomy constructors. Each one pins a structural assumption about the
// input texts to a dedicated failure kind.

// MalformedModule reports module text that cannot be classified.
func MalformedModule(lines *LineRange, detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMalformedModule,
		Lines:  lines,
		Detail: detail,
	}
}

// UnsupportedSignature reports a type entry with more than one result.
func UnsupportedSignature(line int, typeName string, results int) *Error {
	return &Error{
		Phase:  PhaseNormalize,
		Kind:   KindUnsupportedSignature,
		Lines:  &LineRange{Start: line, End: line},
		Detail: fmt.Sprintf("type %s declares %d results", typeName, results),
		Value:  typeName,
	}
}

// UnexpectedHeader reports a secondary module that does not open with the
// module declaration followed by the memory import.
func UnexpectedHeader(lines LineRange, got string) *Error {
	return &Error{
		Phase:    PhaseNormalize,
		Kind:     KindUnexpectedHeader,
		Lines:    &lines,
		Detail:   fmt.Sprintf("got %q", got),
		Expected: `"(module" followed by a memory import`,
	}
}

// ImportBlockNotFound reports a primary module without any import line.
func ImportBlockNotFound(scanned int) *Error {
	return &Error{
		Phase:    PhaseInject,
		Kind:     KindImportBlockNotFound,
		Lines:    &LineRange{Start: 1, End: scanned},
		Detail:   "no import line in module",
		Expected: "(import",
	}
}

// ImportRewriteMismatch reports a required call rewrite that matched nothing.
func ImportRewriteMismatch(target, replacement string) *Error {
	return &Error{
		Phase:    PhaseInject,
		Kind:     KindImportRewriteMismatch,
		Detail:   fmt.Sprintf("no call sites to %s to redirect to %s", target, replacement),
		Expected: "call " + target,
		Value:    target,
	}
}

// PlaceholderMissing reports that no placeholder import was found within
// the scanned prefix.
func PlaceholderMissing(module string, scanned int) *Error {
	return &Error{
		Phase:    PhaseMerge,
		Kind:     KindPlaceholderMissing,
		Lines:    &LineRange{Start: 1, End: scanned},
		Detail:   "placeholder import not found",
		Expected: fmt.Sprintf("(import %q", module),
	}
}

// PlaceholderAmbiguous reports more than one placeholder import.
func PlaceholderAmbiguous(module string, first, second int) *Error {
	return &Error{
		Phase:    PhaseMerge,
		Kind:     KindPlaceholderAmbiguous,
		Lines:    &LineRange{Start: first, End: second},
		Detail:   fmt.Sprintf("placeholder import matched at lines %d and %d", first, second),
		Expected: fmt.Sprintf("exactly one (import %q", module),
	}
}

// Assembly wraps a failure of the text assembler. Stage is one of
// PhaseParse, PhaseResolve, PhaseValidate or PhaseEncode.
func Assembly(stage Phase, detail string, cause error) *Error {
	kind := KindInvalidData
	switch stage {
	case PhaseParse:
		kind = KindSyntax
	case PhaseResolve:
		kind = KindUnknownName
	}
	return &Error{
		Phase:  stage,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NameCollision reports two definitions of the same symbol.
func NameCollision(name string, line int, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNameCollision,
		Lines:  &LineRange{Start: line, End: line},
		Detail: fmt.Sprintf("duplicate definition of %s", name),
		Value:  name,
		Cause:  cause,
	}
}

// IsAssembly reports whether err is a failure of the assembly stages.
func IsAssembly(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	switch e.Phase {
	case PhaseParse, PhaseResolve, PhaseValidate, PhaseEncode:
		return true
	}
	return false
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "env"
	Function  string // e.g., "bignum_f1m_mul"
}

// MissingImportsError is returned when a module imports host functions the
// host does not provide
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "namespace#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		ns, fn, found := strings.Cut(imp, "#")
		if !found {
			ns, fn = imp, ""
		}
		result.Imports = append(result.Imports, MissingImport{
			Namespace: ns,
			Function:  fn,
		})
	}
	return result
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[runtime] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):\n", len(e.Imports))

	// Group by namespace
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp.Function)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
