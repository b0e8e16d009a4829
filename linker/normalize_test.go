package linker

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestStripTypes(t *testing.T) {
	lines := []string{
		"(module",
		"  (type $t0 (func (param i32 i32 i32)))",
		"  (type $t1 (func (param i32) (result i32)))",
		"  (type $t2 (func))",
		`  (func $a (export "a") (type $t0) (param $p0 i32) (param $p1 i32) (param $p2 i32)`,
		"    nop)",
		"  (func $b (type $t1) (param $p0 i32) (result i32)",
		"    local.get $p0",
		"    i32.const 0",
		"    call_indirect (type $t1))",
		"  (func $c (type $t2)",
		"    nop)",
		`  (data (i32.const 0) "(type $t0)"))`,
	}
	out, stats, err := StripTypes(lines)
	require.NoError(t, err)
	require.Equal(t, StripStats{Entries: 3, Removed: 2, Inlined: 2}, stats)
	require.Equal(t, []string{
		"(module",
		`  (func $a (export "a") (param $p0 i32) (param $p1 i32) (param $p2 i32)`,
		"    nop)",
		"  (func $b (param $p0 i32) (result i32)",
		"    local.get $p0",
		"    i32.const 0",
		"    call_indirect (param i32) (result i32))",
		"  (func $c",
		"    nop)",
		`  (data (i32.const 0) "(type $t0)"))`,
	}, out)
}

func TestStripTypesMultiResult(t *testing.T) {
	lines := []string{
		"(module",
		"  (type $t0 (func (param i32)))",
		"  (type $t1 (func (param i32) (result i32 i64)))",
	}
	_, _, err := StripTypes(lines)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errors.KindUnsupportedSignature, e.Kind)
	require.Equal(t, 3, e.Lines.Start)
	require.Contains(t, err.Error(), "$t1")

	_, _, err = StripTypes([]string{
		"  (type $t1 (func (result i32) (result f32)))",
	})
	require.Error(t, err)
}

func TestStripTypesUnknownUse(t *testing.T) {
	_, _, err := StripTypes([]string{"(module", "  (func $f (type $t9)", "    nop))"})
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errors.KindUnsupportedSignature, e.Kind)
	require.Equal(t, "$t9", e.Value)
}

func TestStripHeader(t *testing.T) {
	out, err := StripHeader([]string{
		"(module",
		`  (import "env" "memory" (memory $env.memory 1000))`,
		"  (func $f)",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"  (func $f)"}, out)

	out, err = StripHeader([]string{
		"(module $websnark",
		`(import "env" "memory" (memory 1))`,
	})
	require.NoError(t, err)
	require.Empty(t, out)

	bad := [][]string{
		{"(module"},
		{"(module", "  (func $f)"},
		{"(func $f)", `  (import "env" "memory" (memory 1))`},
		{"(module $a $b", `  (import "env" "memory" (memory 1))`},
		{"(module", `  (import "env" "table" (table 1 funcref))`},
	}
	for _, lines := range bad {
		_, err := StripHeader(lines)
		var e *errors.Error
		require.True(t, errors.As(err, &e), "lines %q", lines)
		require.Equal(t, errors.KindUnexpectedHeader, e.Kind)
	}
}

func TestCollapseClose(t *testing.T) {
	out, collapsed, err := CollapseClose([]string{
		"  (func $f)",
		`  (data $d0 (i32.const 8) "))"))`,
	})
	require.NoError(t, err)
	require.True(t, collapsed)
	require.Equal(t, `  (data $d0 (i32.const 8) "))")`, out[1])

	out, collapsed, err = CollapseClose([]string{"  (func $f)", ")", ""})
	require.NoError(t, err)
	require.True(t, collapsed)
	require.Equal(t, []string{"  (func $f)", ""}, out)

	in := []string{"  (func $f)", "  (func $g)"}
	out, collapsed, err = CollapseClose(in)
	require.NoError(t, err)
	require.False(t, collapsed)
	require.Equal(t, in, out)
}

func TestApplyRenames(t *testing.T) {
	rules := []RenameRule{
		{From: "g1m_neg", To: "websnark_bls12/bls12_g1m_neg"},
		{From: "ftm_one", To: "websnark_bls12/bls12_ftm_one"},
	}
	lines := []string{
		`  (func $g1m_neg (export "g1m_neg") (param $p0 i32)`,
		"    call $g1m_neg_x",
		"    call $g1m_neg)",
		";; call $ftm_one",
		"  (elem (i32.const 0) func $ftm_one $g1m_neg)",
	}
	out, counts, err := ApplyRenames(lines, rules)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"g1m_neg": 3, "ftm_one": 1}, counts)
	require.Equal(t, []string{
		`  (func $websnark_bls12/bls12_g1m_neg (export "g1m_neg") (param $p0 i32)`,
		"    call $g1m_neg_x",
		"    call $websnark_bls12/bls12_g1m_neg)",
		";; call $ftm_one",
		"  (elem (i32.const 0) func $websnark_bls12/bls12_ftm_one $websnark_bls12/bls12_g1m_neg)",
	}, out)

	again, counts, err := ApplyRenames(out, rules)
	require.NoError(t, err)
	require.Equal(t, out, again)
	require.Zero(t, counts["g1m_neg"])
}

func TestNormalizeFixture(t *testing.T) {
	body, stats, err := Normalize(readFixture(t, "secondary.wat"), DefaultCatalog().Renames)
	require.NoError(t, err)

	require.Equal(t, StripStats{Entries: 5, Removed: 10}, stats.Types)
	require.True(t, stats.Collapsed)
	require.Equal(t, 2, stats.Renames["g1m_toMontgomery"])
	require.Equal(t, 2, stats.Renames["g1m_neg"])
	require.Equal(t, 2, stats.Renames["ftm_one"])
	require.Equal(t, 1, stats.Renames["bls12381_pairingEq2"])
	require.Zero(t, stats.Renames["g2m_affine"])

	text := modtext.Join(body)
	require.NotContains(t, text, "(module")
	require.NotContains(t, text, "(type $t")
	require.NotContains(t, text, `"memory"`)
	require.Contains(t, text, "(func $websnark_bls12/bls12_pairingEq2 (export \"bls12381_pairingEq2\")")
	require.True(t, strings.HasSuffix(strings.TrimSpace(text), `"\01\00\00\00\00\00\00\00")`))

	_, _, found, err := modtext.FirstUnbalanced(body)
	require.NoError(t, err)
	require.False(t, found)
}
