package printer

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wasm"
	"github.com/wippyai/watlink/wat/internal/encoder"
	"github.com/wippyai/watlink/wat/internal/parser"
	"github.com/wippyai/watlink/wat/internal/token"
)

func assemble(t *testing.T, src string, names bool) *wasm.Module {
	t.Helper()
	toks, err := token.Tokenize(src)
	require.NoError(t, err)
	mod, err := parser.New(toks).Parse()
	require.NoError(t, err)
	bin, err := encoder.Encode(mod, encoder.Options{DebugNames: names})
	require.NoError(t, err)
	m, err := wasm.ParseModuleValidate(bin)
	require.NoError(t, err)
	return m
}

const sample = `(module
  (type $t0 (func (param i32 i32) (result i32)))
  (import "env" "memory" (memory $env.memory 1))
  (func $add (export "add") (type $t0) (param $a i32) (param $b i32) (result i32)
    (local $sum i32)
    block $B0
      local.get $a
      local.get $b
      i32.add
      local.set $sum
      local.get $sum
      i32.eqz
      br_if $B0
    end
    local.get $sum
    i32.load offset=8 align=1)
  (global $counter (mut i32) (i32.const 7))
  (data (i32.const 16) "ab\n\"")
)`

func TestPrintNamed(t *testing.T) {
	out, err := Print(assemble(t, sample, true))
	require.NoError(t, err)
	for _, want := range []string{
		`  (type $t0 (func (param i32 i32) (result i32)))`,
		`  (import "env" "memory" (memory $env.memory 1))`,
		`  (func $add (export "add") (type $t0) (param $a i32) (param $b i32) (result i32)`,
		`    (local $sum i32)`,
		`    block`,
		`      br_if 0`,
		`    end`,
		`    i32.load offset=8 align=1)`,
		`  (global $g0 (mut i32) (i32.const 7))`,
		`  (data $d0 (i32.const 16) "ab\0a\22"))`,
	} {
		require.Contains(t, out, want+"\n")
	}
	require.True(t, strings.HasPrefix(out, "(module\n"), out)
}

func TestPrintReassembles(t *testing.T) {
	first, err := Print(assemble(t, sample, true))
	require.NoError(t, err)
	second, err := Print(assemble(t, first, true))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPrintGeneratedNames(t *testing.T) {
	out, err := Print(assemble(t, sample, false))
	require.NoError(t, err)
	for _, want := range []string{
		`(func $f0 (export "add") (type $t0) (param $p0 i32) (param $p1 i32) (result i32)`,
		`(local $l2 i32)`,
		`local.get $p0`,
	} {
		require.Contains(t, out, want)
	}
}

func TestPrintEmpty(t *testing.T) {
	out, err := Print(&wasm.Module{})
	require.NoError(t, err)
	require.Equal(t, "(module)\n", out)
}

func TestPrintElemsAndStart(t *testing.T) {
	src := `(module
  (type $v (func))
  (func $a (type $v))
  (func $b (type $v)
    i32.const 0
    call_indirect (type $v))
  (table $tbl 2 funcref)
  (elem (i32.const 0) $a $b)
  (start $a))`
	out, err := Print(assemble(t, src, true))
	require.NoError(t, err)
	for _, want := range []string{
		`  (table $T0 2 funcref)`,
		`    call_indirect (type $t0))`,
		`  (start $a)`,
		`  (elem $e0 (i32.const 0) func $a $b))`,
	} {
		require.Contains(t, out, want)
	}
}

func TestFormatFloats(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{formatF32(math.Float32bits(float32(math.Inf(-1)))), "-inf"},
		{formatF32(0x7fc00000), "nan"},
		{formatF32(0x7f800001), "nan:0x1"},
		{formatF64(math.Float64bits(1)), "0x1p+00"},
		{formatF64(0xfff8000000000000), "-nan"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.got)
	}
}

func TestQuote(t *testing.T) {
	require.Equal(t, `"a\00\5cz"`, quote([]byte("a\x00\\z")))
}
