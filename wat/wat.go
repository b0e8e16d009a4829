package wat

import (
	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/wasm"
	"github.com/wippyai/watlink/wat/internal/encoder"
	"github.com/wippyai/watlink/wat/internal/parser"
	"github.com/wippyai/watlink/wat/internal/printer"
	"github.com/wippyai/watlink/wat/internal/token"
)

// Options controls binary output.
type Options struct {
	// ModuleName replaces the module identifier in the name section.
	ModuleName string
	// DebugNames emits the "name" custom section with function and local
	// identifiers.
	DebugNames bool
}

// Compile assembles source without debug names.
func Compile(source string) ([]byte, error) {
	return Assemble(source, Options{})
}

// Assemble parses source, resolves every symbolic reference and encodes
// the module. Errors are *errors.Error values whose phase names the
// failing stage.
func Assemble(source string, opts Options) ([]byte, error) {
	tokens, err := token.Tokenize(source)
	if err != nil {
		var te *token.Error
		if errors.As(err, &te) {
			return nil, withLine(errors.Assembly(errors.PhaseParse, te.Msg, err), te.Line)
		}
		return nil, errors.Assembly(errors.PhaseParse, "tokenize", err)
	}

	mod, err := parser.New(tokens).Parse()
	if err != nil {
		return nil, classify(err)
	}

	bin, err := encoder.Encode(mod, encoder.Options{
		ModuleName: opts.ModuleName,
		DebugNames: opts.DebugNames,
	})
	if err != nil {
		return nil, errors.Assembly(errors.PhaseEncode, "encode module", err)
	}
	return bin, nil
}

func classify(err error) error {
	var pe *parser.Error
	if !errors.As(err, &pe) {
		return errors.Assembly(errors.PhaseParse, "parse", err)
	}
	switch pe.Kind {
	case parser.ErrDuplicate:
		return errors.NameCollision(pe.Name, pe.Line, err)
	case parser.ErrUnknown:
		e := withLine(errors.Assembly(errors.PhaseResolve, pe.Msg, err), pe.Line)
		e.Value = pe.Name
		return e
	case parser.ErrMismatch:
		return withLine(errors.Assembly(errors.PhaseValidate, pe.Msg, err), pe.Line)
	}
	return withLine(errors.Assembly(errors.PhaseParse, pe.Msg, err), pe.Line)
}

func withLine(e *errors.Error, line int) *errors.Error {
	if line > 0 {
		e.Lines = &errors.LineRange{Start: line, End: line}
	}
	return e
}

// Print disassembles a binary module into text that Assemble accepts.
func Print(bin []byte) (string, error) {
	mod, err := wasm.ParseModule(bin)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindMalformedModule, err, "decode module")
	}
	text, err := printer.Print(mod)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "print module")
	}
	return text, nil
}
