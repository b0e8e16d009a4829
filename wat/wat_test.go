package wat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/wasm"
)

func TestCompile(t *testing.T) {
	t.Run("empty_module", func(t *testing.T) {
		bin, err := Compile("(module)")
		require.NoError(t, err)
		require.Len(t, bin, 8)
		require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6D}, bin[:4])
	})

	t.Run("simple_function", func(t *testing.T) {
		bin, err := Compile(`(module
			(func (export "add") (param i32 i32) (result i32)
				(i32.add (local.get 0) (local.get 1))))`)
		require.NoError(t, err)
		m, err := wasm.ParseModuleValidate(bin)
		require.NoError(t, err)
		require.Len(t, m.Exports, 1)
		require.Equal(t, "add", m.Exports[0].Name)
	})
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		wat     string
		phase   errors.Phase
		kind    errors.Kind
		line    int
		wantMsg string
	}{
		{"missing_module", "(func)", errors.PhaseParse, errors.KindSyntax, 1, "expected 'module'"},
		{"unclosed", "(module", errors.PhaseParse, errors.KindSyntax, 1, "unexpected end"},
		{"unterminated_string", "(module\n(data \"abc", errors.PhaseParse, errors.KindSyntax, 2, "unterminated"},
		{"unknown_instr", "(module (func (bogus)))", errors.PhaseParse, errors.KindSyntax, 1, "unknown instruction"},
		{"unknown_type", "(module (func (param bogus)))", errors.PhaseParse, errors.KindSyntax, 1, "unknown value type"},
		{"unknown_label", "(module (func (block (br $x))))", errors.PhaseResolve, errors.KindUnknownName, 1, "undefined label $x"},
		{"unknown_func", "(module\n  (func\n    call $missing))", errors.PhaseResolve, errors.KindUnknownName, 3, "$missing"},
		{"duplicate_func", "(module\n  (func $f)\n  (func $f))", errors.PhaseResolve, errors.KindNameCollision, 3, "$f"},
		{"signature_mismatch", "(module\n  (type $t (func (param i32)))\n  (func (type $t) (param i64)))", errors.PhaseValidate, errors.KindInvalidData, 3, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.wat, Options{DebugNames: true})
			require.Error(t, err)

			var e *errors.Error
			require.True(t, errors.As(err, &e), "%T", err)
			require.Equal(t, tt.phase, e.Phase)
			require.Equal(t, tt.kind, e.Kind)
			require.NotNil(t, e.Lines)
			require.Equal(t, tt.line, e.Lines.Start)
			require.ErrorContains(t, err, tt.wantMsg)
			require.True(t, errors.IsAssembly(err))
		})
	}
}

// TestWasmValidation validates compiled output by parsing it back.
func TestWasmValidation(t *testing.T) {
	tests := []struct {
		name string
		wat  string
	}{
		{"memory", "(module (memory 1 10))"},
		{"table", "(module (table 10 funcref))"},
		{"global", "(module (global (mut i32) (i32.const 0)))"},
		{"start", "(module (func $main) (start $main))"},

		{"func_params", "(module (func (param i32 i64 f32 f64)))"},
		{"func_locals", "(module (func (local i32) (local.set 0 (i32.const 1))))"},
		{"named_locals", "(module (func (param $a i32) (local $b i32) (local.set $b (local.get $a))))"},

		{"import_func", "(module (import \"m\" \"f\" (func)))"},
		{"import_memory", "(module (import \"env\" \"memory\" (memory $env.memory 1000)))"},
		{"import_global", "(module (import \"m\" \"g\" (global i32)))"},
		{"export_func", "(module (func $f) (export \"f\" (func $f)))"},
		{"inline_export", "(module (func (export \"f\") (export \"g\")))"},

		{"block", "(module (func (result i32) (block (result i32) (i32.const 1))))"},
		{"loop", "(module (func (loop $l (br $l))))"},
		{"if_else", "(module (func (result i32) (if (result i32) (i32.const 1) (then (i32.const 2)) (else (i32.const 3)))))"},
		{"br_table", "(module (func (param i32) (block $a (block $b (br_table $a $b (local.get 0))))))"},
		{"flat_if_else", "(module (func i32.const 1 if nop else nop end))"},
		{"flat_labels", "(module (func block $B0 loop $L1 i32.const 0 br_if $B0 br $L1 end end))"},

		{"call", "(module (func $f) (func (call $f)))"},
		{"call_indirect", "(module (type $t (func)) (table 1 funcref) (func (call_indirect (type $t) (i32.const 0))))"},

		{"load_store", "(module (memory 1) (func (i32.store (i32.const 0) (i32.const 42))))"},
		{"memory_grow", "(module (memory 1) (func (result i32) (memory.grow (i32.const 1))))"},
		{"memory_fill", "(module (memory 1) (func (memory.fill (i32.const 0) (i32.const 0) (i32.const 10))))"},
		{"memory_init", "(module (memory 1) (data $d \"hello\") (func (memory.init $d (i32.const 0) (i32.const 0) (i32.const 5))))"},
		{"load_offset_align", "(module (memory 1) (func (result i32) (i32.load offset=4 align=4 (i32.const 0))))"},

		{"ref_func", "(module (func $f) (elem declare func $f) (func (result funcref) (ref.func $f)))"},
		{"select_typed", "(module (func (result i32) (select (result i32) (i32.const 1) (i32.const 2) (i32.const 1))))"},

		{"data_active", "(module (memory 1) (data (i32.const 0) \"hello\" \"\\00\\ff\"))"},
		{"elem_active", "(module (table 1 funcref) (func $f) (elem (i32.const 0) $f))"},
		{"inline_table", "(module (func $f) (table funcref (elem $f)))"},

		{"trunc_sat", "(module (func (result i32) (i32.trunc_sat_f32_s (f32.const 1.5))))"},
		{"extend8_s", "(module (func (result i32) (i32.extend8_s (i32.const 255))))"},
		{"i64_min", "(module (func (drop (i64.const -9223372036854775808))))"},
		{"hex_numbers", "(module (func (drop (i32.const 0xFFFF_FFFF))))"},
		{"f64_inf", "(module (func (drop (f64.const inf))))"},
		{"hex_float", "(module (func (drop (f32.const 0x1.0p0))))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, err := Compile(tt.wat)
			require.NoError(t, err)
			_, err = wasm.ParseModuleValidate(bin)
			require.NoError(t, err)
		})
	}
}

func TestPrintRoundTrip(t *testing.T) {
	src := `(module
  (import "env" "memory" (memory $env.memory 1))
  (func $main/bignum_f1m_mul (import "env" "bignum_f1m_mul") (param i32 i32 i32))
  (func $run (export "run") (param $x i32)
    local.get $x
    local.get $x
    local.get $x
    call $main/bignum_f1m_mul))`
	bin, err := Assemble(src, Options{DebugNames: true})
	require.NoError(t, err)
	text, err := Print(bin)
	require.NoError(t, err)
	require.Contains(t, text, "call $main/bignum_f1m_mul")

	again, err := Assemble(text, Options{DebugNames: true})
	require.NoError(t, err, text)
	require.Equal(t, bin, again)
}

func TestPrintRejectsGarbage(t *testing.T) {
	_, err := Print([]byte("not wasm"))
	var e *errors.Error
	require.True(t, errors.As(err, &e), "%v", err)
	require.Equal(t, errors.PhaseDecode, e.Phase)
}
