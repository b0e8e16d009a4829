package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseMerge,
				Kind:     KindPlaceholderMissing,
				Path:     []string{"hostfuncs", "merged"},
				Lines:    &LineRange{Start: 1, End: 40},
				Expected: `(import "watimports"`,
				Detail:   "placeholder import not found",
			},
			contains: []string{"[merge]", "placeholder_import_missing", "hostfuncs.merged", "lines 1-40", `expected (import "watimports"`},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLoad,
				Kind:  KindMalformedModule,
			},
			contains: []string{"[load]", "malformed_module"},
		},
		{
			name: "single line",
			err: &Error{
				Phase: PhaseNormalize,
				Kind:  KindUnsupportedSignature,
				Lines: &LineRange{Start: 7, End: 7},
			},
			contains: []string{"(line 7)"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseWrite,
				Kind:   KindIO,
				Detail: "rename artifact",
				Cause:  errors.New("disk full"),
			},
			contains: []string{"[write]", "io", "rename artifact", "caused by", "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				require.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseParse,
		Kind:  KindSyntax,
		Cause: cause,
	}

	require.Equal(t, cause, err.Unwrap())
	require.ErrorIs(t, err, cause)
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseInject,
		Kind:  KindImportRewriteMismatch,
		Path:  []string{"hostfuncs"},
	}

	require.True(t, err.Is(&Error{Phase: PhaseInject, Kind: KindImportRewriteMismatch}))
	require.False(t, err.Is(&Error{Phase: PhaseMerge, Kind: KindImportRewriteMismatch}), "different phase")
	require.False(t, err.Is(&Error{Phase: PhaseInject, Kind: KindImportBlockNotFound}), "different kind")

	wrapped := fmt.Errorf("variant hostfuncs: %w", err)
	require.True(t, Is(wrapped, &Error{Phase: PhaseInject, Kind: KindImportRewriteMismatch}))
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMerge, KindPlaceholderAmbiguous).
		Path("plain").
		Lines(3, 9).
		Expected("one marker").
		Value(2).
		Cause(cause).
		Detail("matched %d lines", 2).
		Build()

	require.Equal(t, PhaseMerge, err.Phase)
	require.Equal(t, KindPlaceholderAmbiguous, err.Kind)
	require.Equal(t, []string{"plain"}, err.Path)
	require.Equal(t, &LineRange{Start: 3, End: 9}, err.Lines)
	require.Equal(t, "one marker", err.Expected)
	require.Equal(t, 2, err.Value)
	require.ErrorIs(t, err.Cause, cause)
	require.Equal(t, "matched 2 lines", err.Detail)
}

func TestWithPath(t *testing.T) {
	base := New(PhaseLoad, KindMalformedModule).Path("primary").Build()
	scoped := base.WithPath("hostfuncs")

	require.Equal(t, []string{"hostfuncs", "primary"}, scoped.Path)
	require.Len(t, base.Path, 1, "original error unchanged")
}

func TestTaxonomyConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"malformed", MalformedModule(nil, "no closing delimiter"), PhaseLoad, KindMalformedModule},
		{"signature", UnsupportedSignature(4, "$t2", 2), PhaseNormalize, KindUnsupportedSignature},
		{"header", UnexpectedHeader(LineRange{Start: 1, End: 2}, "(module $m"), PhaseNormalize, KindUnexpectedHeader},
		{"import block", ImportBlockNotFound(12), PhaseInject, KindImportBlockNotFound},
		{"rewrite", ImportRewriteMismatch("$f1m_mul", "$main/bignum_f1m_mul"), PhaseInject, KindImportRewriteMismatch},
		{"placeholder missing", PlaceholderMissing("watimports", 40), PhaseMerge, KindPlaceholderMissing},
		{"placeholder ambiguous", PlaceholderAmbiguous("watimports", 3, 5), PhaseMerge, KindPlaceholderAmbiguous},
		{"collision", NameCollision("$helper", 30, nil), PhaseResolve, KindNameCollision},
		{"assembly parse", Assembly(PhaseParse, "unexpected token", nil), PhaseParse, KindSyntax},
		{"assembly resolve", Assembly(PhaseResolve, "unknown identifier", nil), PhaseResolve, KindUnknownName},
		{"assembly validate", Assembly(PhaseValidate, "bad start", nil), PhaseValidate, KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.phase, tt.err.Phase)
			require.Equal(t, tt.kind, tt.err.Kind)
			require.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestIsAssembly(t *testing.T) {
	require.True(t, IsAssembly(Assembly(PhaseValidate, "x", nil)))
	require.True(t, IsAssembly(fmt.Errorf("wrapped: %w", NameCollision("$helper", 1, nil))))
	require.False(t, IsAssembly(PlaceholderMissing("watimports", 40)))
	require.False(t, IsAssembly(errors.New("plain")))
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := NewMissingImportsError([]string{"env#bignum_f1m_mul"})
		require.Len(t, err.Imports, 1)
		require.Equal(t, "env", err.Imports[0].Namespace)
		require.Equal(t, "bignum_f1m_mul", err.Imports[0].Function)
	})

	t.Run("multiple namespaces grouped", func(t *testing.T) {
		err := NewMissingImportsError([]string{
			"env#bignum_f1m_mul",
			"wasi_snapshot_preview1#fd_write",
			"env#bignum_int_add",
		})
		msg := err.Error()
		require.Contains(t, msg, "missing 3")
		require.Contains(t, msg, "env:")
		require.Contains(t, msg, "wasi_snapshot_preview1:")
		require.Less(t, strings.Index(msg, "bignum_int_add"), strings.Index(msg, "wasi_snapshot_preview1"),
			"functions of one namespace are listed together")
	})

	t.Run("empty imports", func(t *testing.T) {
		require.Contains(t, NewMissingImportsError(nil).Error(), "no imports specified")
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingImportsError([]string{"ns#fn"})
		require.ErrorIs(t, err, &MissingImportsError{})
	})
}
