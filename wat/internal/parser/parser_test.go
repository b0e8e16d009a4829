package parser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wat/internal/ast"
	"github.com/wippyai/watlink/wat/internal/token"
)

func parse(t *testing.T, src string) (*ast.Module, error) {
	t.Helper()
	tokens, err := token.Tokenize(src)
	require.NoError(t, err)
	return New(tokens).Parse()
}

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := parse(t, src)
	require.NoError(t, err)
	return mod
}

func parseErr(t *testing.T, src string) *Error {
	t.Helper()
	_, err := parse(t, src)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	return perr
}

const compilerShaped = `(module
 (type $i32_=>_none (func (param i32)))
 (type $none_=>_none (func))
 (import "env" "abort" (func $~lib/builtins/abort (param i32 i32 i32 i32)))
 (import "watimports" "$websnark_bls12/bls12_g1m_neg" (func $websnark_bls12/bls12_g1m_neg (param i32 i32)))
 (global $~lib/rt/stub/offset (mut i32) (i32.const 0))
 (memory $0 1)
 (data (i32.const 1036) "\1c\00\00\00")
 (table $0 1 funcref)
 (elem $0 (i32.const 1))
 (export "memory" (memory $0))
 (export "main" (func $main/main))
 (start $~start)
 (func $main/store (type $i32_=>_none) (param $0 i32)
  (i32.store offset=4 align=4
   (global.get $~lib/rt/stub/offset)
   (local.get $0)
  )
 )
 (func $main/main (type $none_=>_none)
  (local $1 i32)
  (local.set $1 (i32.const 8))
  (call $websnark_bls12/bls12_g1m_neg (local.get $1) (local.get $1))
  (block $label$1
   (br_if $label$1 (i32.eqz (local.get $1)))
   (call $main/store (local.get $1))
  )
 )
 (func $~start
  call $main/main
 )
)`

func TestParseCompilerShapedModule(t *testing.T) {
	mod := mustParse(t, compilerShaped)

	require.Len(t, mod.Types, 4, "two explicit, two implicit")
	require.Len(t, mod.Imports, 2)
	require.Equal(t, "$websnark_bls12/bls12_g1m_neg", mod.Imports[1].Name)
	require.Len(t, mod.FuncNames, 5)
	require.Equal(t, "websnark_bls12/bls12_g1m_neg", mod.FuncNames[1])
	require.Equal(t, "~start", mod.FuncNames[4])
	require.NotNil(t, mod.Start)
	require.EqualValues(t, 4, *mod.Start)
	require.Len(t, mod.Exports, 2)
	require.EqualValues(t, 3, mod.Exports[1].Idx)

	store := mod.Funcs[0]
	require.EqualValues(t, 0, store.TypeIdx)
	require.Equal(t, []string{"0"}, store.LocalNames, "type use plus inline params must not double")
	last := store.Body[len(store.Body)-1]
	require.EqualValues(t, 0x36, last.Opcode)
	m, ok := last.Imm.(ast.Memarg)
	require.True(t, ok)
	require.EqualValues(t, 4, m.Offset)
	require.EqualValues(t, 2, m.Align)

	main := mod.Funcs[1]
	var brIf ast.Instr
	for _, in := range main.Body {
		if in.Opcode == 0x0D {
			brIf = in
		}
	}
	require.Equal(t, uint32(0), brIf.Imm)
	require.EqualValues(t, 0x0B, main.Body[len(main.Body)-1].Opcode, "block closes with end")
}

func opcodes(body []ast.Instr) []byte {
	out := make([]byte, len(body))
	for i, in := range body {
		out[i] = in.Opcode
	}
	return out
}

func TestParseFlatBlocks(t *testing.T) {
	mod := mustParse(t, `(module
  (func $f (param $p0 i32) (result i32)
    block $B0
      loop $L1
        local.get $p0
        br_if $B0
        br $L1
      end
    end
    local.get 0
    if (result i32)
      i32.const 1
    else
      i32.const 2
    end))`)

	body := mod.Funcs[0].Body
	require.Equal(t, []byte{0x02, 0x03, 0x20, 0x0D, 0x0C, 0x0B, 0x0B, 0x20, 0x04, 0x41, 0x05, 0x41, 0x0B}, opcodes(body))
	require.Equal(t, uint32(1), body[3].Imm)
	require.Equal(t, uint32(0), body[4].Imm)

	bt := body[8].Imm.(ast.BlockType)
	require.EqualValues(t, -1, bt.TypeIdx)
	require.Equal(t, ast.ValI32, bt.Value)
}

func TestParseFoldedIf(t *testing.T) {
	mod := mustParse(t, `(module
  (func (param i32) (result i32)
    (if $I0 (result i32) (local.get 0)
      (then (i32.const 1))
      (else (i32.const 2)))))`)
	require.Equal(t, []byte{0x20, 0x04, 0x41, 0x05, 0x41, 0x0B}, opcodes(mod.Funcs[0].Body))
}

func TestParseMismatchedTypeUse(t *testing.T) {
	perr := parseErr(t, `(module
  (type $t (func (param i32)))
  (func $f (type $t) (param i32 i32)))`)
	require.Equal(t, ErrMismatch, perr.Kind)
	require.Equal(t, 3, perr.Line)
}

func TestParseDuplicateFunction(t *testing.T) {
	perr := parseErr(t, `(module
  (func $websnark_bls12/bls12_g1m_neg)
  (func $other)
  (func $websnark_bls12/bls12_g1m_neg))`)
	require.Equal(t, ErrDuplicate, perr.Kind)
	require.Equal(t, "$websnark_bls12/bls12_g1m_neg", perr.Name)
	require.Equal(t, 4, perr.Line)
}

func TestParseDuplicateImportAndDefinition(t *testing.T) {
	perr := parseErr(t, `(module
  (import "env" "f" (func $f))
  (func $f))`)
	require.Equal(t, ErrDuplicate, perr.Kind)
}

func TestParseUnknownReferences(t *testing.T) {
	tests := []struct {
		name string
		src  string
		id   string
	}{
		{"call", `(module (func (call $missing)))`, "$missing"},
		{"local", `(module (func (local.get $x) drop))`, "$x"},
		{"global", `(module (func (global.get $g) drop))`, "$g"},
		{"label", `(module (func (block (br $out))))`, "$out"},
		{"type", `(module (func (type $t)))`, "$t"},
		{"start", `(module (start $main))`, "$main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.src)
			require.Equal(t, ErrUnknown, perr.Kind)
			require.Equal(t, tt.id, perr.Name)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"missing module", "(func)", 1},
		{"unclosed", "(module\n(func", 2},
		{"unknown instruction", "(module\n(func\nbogus))", 3},
		{"unknown field", "(module (bogus))", 1},
		{"import after definition", "(module\n(func $a)\n(import \"env\" \"b\" (func $b)))", 3},
		{"unterminated block", "(module (func block nop))", 1},
		{"mismatching label", "(module (func block $a end $b))", 1},
		{"trailing tokens", "(module) (module)", 1},
		{"bad alignment", "(module (func (i32.load align=3 (i32.const 0)) drop))", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.src)
			require.Equal(t, ErrSyntax, perr.Kind, "%v", perr)
			require.Equal(t, tt.line, perr.Line, "%v", perr)
		})
	}
}

func TestParseSegments(t *testing.T) {
	mod := mustParse(t, `(module
  (memory (export "mem") 1 2)
  (table 2 funcref)
  (func $a) (func $b)
  (elem (i32.const 0) func $a $b)
  (elem $p func $b)
  (elem declare func $a)
  (data $d "abc" "\64")
  (data (offset (i32.const 16)) "\u{263a}")
  (func (memory.init $d (i32.const 0) (i32.const 0) (i32.const 4)) (data.drop $d)))`)

	require.Len(t, mod.Elems, 3)
	require.Equal(t, ast.ElemActive, mod.Elems[0].Mode)
	require.Len(t, mod.Elems[0].FuncIdxs, 2)
	require.Equal(t, ast.ElemPassive, mod.Elems[1].Mode)
	require.Equal(t, ast.ElemDeclarative, mod.Elems[2].Mode)

	require.True(t, mod.Data[0].Passive)
	require.Equal(t, "abcd", string(mod.Data[0].Init))
	require.Equal(t, "☺", string(mod.Data[1].Init))

	lim := mod.Memories[0].Limits
	require.EqualValues(t, 1, lim.Min)
	require.NotNil(t, lim.Max)
	require.EqualValues(t, 2, *lim.Max)

	m := mod.Funcs[2].Body[3].Imm.(ast.Misc)
	require.EqualValues(t, 0x08, m.Sub)
	require.EqualValues(t, 0, m.Operands[0])
}

func TestParseInlineTableElem(t *testing.T) {
	mod := mustParse(t, `(module (func $f) (table funcref (elem $f $f)))`)
	lim := mod.Tables[0].Limits
	require.EqualValues(t, 2, lim.Min)
	require.NotNil(t, lim.Max)
	require.EqualValues(t, 2, *lim.Max)
	require.Len(t, mod.Elems, 1)
	require.Len(t, mod.Elems[0].FuncIdxs, 2)
}

func TestParseCallIndirect(t *testing.T) {
	mod := mustParse(t, `(module
  (type $t (func (param i32) (result i32)))
  (table 1 funcref)
  (func (result i32)
    (call_indirect (type $t) (i32.const 1) (i32.const 0))
    (call_indirect (param i64) (result i32) (i64.const 1) (i32.const 0))
    drop))`)
	body := mod.Funcs[0].Body
	require.EqualValues(t, 0, body[2].Imm.(ast.CallIndirect).TypeIdx)
	require.EqualValues(t, 2, body[5].Imm.(ast.CallIndirect).TypeIdx, "inline signature adds a type")
}

func TestParseNumbers(t *testing.T) {
	i32s := []struct {
		in   string
		want int32
	}{
		{"0", 0},
		{"-1", -1},
		{"0xffffffff", -1},
		{"-2147483648", math.MinInt32},
		{"1_000", 1000},
	}
	for _, tt := range i32s {
		got, err := parseI32(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"4294967296", "-2147483649", "abc"} {
		_, err := parseI32(bad)
		require.Error(t, err, bad)
	}

	f32s := []struct {
		in   string
		want uint32
	}{
		{"1.5", math.Float32bits(1.5)},
		{"-0x1.8p+1", math.Float32bits(-3)},
		{"0x10", math.Float32bits(16)},
		{"inf", 0x7f800000},
		{"-inf", 0xff800000},
		{"nan", 0x7fc00000},
		{"nan:0x200000", 0x7fa00000},
		{"-0", 0x80000000},
	}
	for _, tt := range f32s {
		got, err := parseF32(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	got, err := parseF64("-nan")
	require.NoError(t, err)
	require.Equal(t, uint64(0xfff8000000000000), got)
	got, err = parseF64("3.141592653589793")
	require.NoError(t, err)
	require.Equal(t, math.Float64bits(math.Pi), got)
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`plain`, "plain"},
		{`\00\ff`, "\x00\xff"},
		{`\n\t\\\"`, "\n\t\\\""},
		{`\u{41}`, "A"},
	}
	for _, tt := range tests {
		got, err := DecodeString(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, string(got))
	}
	for _, bad := range []string{`\`, `\zz`, `\u{110000}`, `\u41`} {
		_, err := DecodeString(bad)
		require.Error(t, err, bad)
	}
}
