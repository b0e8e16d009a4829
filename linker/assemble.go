package linker

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/watlink/engine"
	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/wasm"
	"github.com/wippyai/watlink/wat"
)

// Validator type checks an encoded module. *engine.Engine implements it.
type Validator interface {
	Validate(ctx context.Context, bin []byte) error
}

// Assembled is an encoded module with its decoded form.
type Assembled struct {
	Binary []byte
	Module *wasm.Module
}

// Assemble parses merged text, resolves names, validates and encodes it
// with debug names. Validation is structural, then a full type check by v.
// A nil v type checks with a wazero interpreter created for this call.
// Nothing is returned unless every step succeeds.
func Assemble(ctx context.Context, text string, moduleName string, v Validator) (*Assembled, error) {
	bin, err := wat.Assemble(text, wat.Options{DebugNames: true, ModuleName: moduleName})
	if err != nil {
		return nil, err
	}

	mod, err := wasm.ParseModuleValidate(bin)
	if err != nil {
		return nil, errors.Assembly(errors.PhaseValidate, "structural validation", err)
	}
	if v == nil {
		eng, err := engine.New(ctx, &engine.Config{Interpreter: true})
		if err != nil {
			return nil, errors.Assembly(errors.PhaseValidate, "create validating engine", err)
		}
		defer eng.Close(ctx)
		v = eng
	}
	if err := v.Validate(ctx, bin); err != nil {
		return nil, errors.Assembly(errors.PhaseValidate, "type check", err)
	}

	Logger().Debug("assembled module",
		zap.Int("bytes", len(bin)),
		zap.Int("funcs", mod.NumFuncs()),
		zap.Int("imports", len(mod.Imports)),
		zap.Int("exports", len(mod.Exports)))
	return &Assembled{Binary: bin, Module: mod}, nil
}
