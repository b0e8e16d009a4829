package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/errors"
)

type countingValidator struct {
	calls int
}

func (v *countingValidator) Validate(context.Context, []byte) error {
	v.calls++
	return nil
}

func TestAssembleTypeChecks(t *testing.T) {
	_, err := Assemble(context.Background(), "(module (func $f (result i32) i64.const 1))", "", nil)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errors.PhaseValidate, e.Phase)
	require.Equal(t, errors.KindInvalidData, e.Kind)
	require.True(t, errors.IsAssembly(err))
}

func TestAssembleCustomValidator(t *testing.T) {
	v := &countingValidator{}
	asm, err := Assemble(context.Background(), "(module (func $f (result i32) i32.const 1))", "m", v)
	require.NoError(t, err)
	require.Equal(t, 1, v.calls)
	require.Equal(t, 1, asm.Module.NumFuncs())
}

func TestBuildTypeChecksHostImports(t *testing.T) {
	opts := DefaultOptions()
	for i := range opts.Catalog.HostImports {
		opts.Catalog.HostImports[i].Results = nil
	}

	res, err := Build(context.Background(), watlink.HostFuncs,
		readFixture(t, "primary.wat"), readFixture(t, "secondary.wat"), opts)
	require.Nil(t, res)

	var ve *VariantError
	require.True(t, errors.As(err, &ve), "%v", err)
	require.Equal(t, "assemble", ve.Stage)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errors.PhaseValidate, e.Phase)
	require.Equal(t, errors.KindInvalidData, e.Kind)

	// the plain variant does not use the host imports
	_, err = Build(context.Background(), watlink.Plain,
		readFixture(t, "primary.wat"), readFixture(t, "secondary.wat"), opts)
	require.NoError(t, err)
}
