package wasm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wasm"
)

func TestDecodeInstructions(t *testing.T) {
	code := []byte{
		0x02, 0x40, // block
		0x20, 0x00, // local.get 0
		0x0d, 0x00, // br_if 0
		0x0e, 0x02, 0x00, 0x01, 0x00, // br_table 0 1 0
		0x0b,       // end
		0x41, 0x7f, // i32.const -1
		0x28, 0x02, 0x08, // i32.load align=2 offset=8
		0x43, 0x00, 0x00, 0xc0, 0x7f, // f32.const nan
		0x11, 0x03, 0x00, // call_indirect type 3
		0xfc, 0x0a, 0x00, 0x00, // memory.copy
		0xfc, 0x02, // i32.trunc_sat_f64_s
		0xc0,       // i32.extend8_s
		0x10, 0x07, // call 7
		0x0b,
	}

	instrs, err := wasm.DecodeInstructions(code)
	require.NoError(t, err)
	require.Len(t, instrs, 14)

	require.Equal(t, wasm.BlockTypeVoid, instrs[0].Imm.(wasm.BlockImm).Type)

	bt := instrs[3].Imm.(wasm.BrTableImm)
	require.Len(t, bt.Labels, 2)
	require.EqualValues(t, 1, bt.Labels[1])
	require.EqualValues(t, 0, bt.Default)

	require.EqualValues(t, -1, instrs[5].Imm.(wasm.I32Imm).Value)

	mem := instrs[6].Imm.(wasm.MemoryImm)
	require.EqualValues(t, 2, mem.Align)
	require.EqualValues(t, 8, mem.Offset)

	f := instrs[7].Imm.(wasm.F32Imm)
	require.True(t, math.IsNaN(float64(math.Float32frombits(f.Bits))))
	require.EqualValues(t, 0x7fc00000, f.Bits)

	ci := instrs[8].Imm.(wasm.CallIndirectImm)
	require.EqualValues(t, 3, ci.TypeIdx)
	require.EqualValues(t, 0, ci.TableIdx)

	misc := instrs[9].Imm.(wasm.MiscImm)
	require.Equal(t, wasm.MiscMemoryCopy, misc.SubOpcode)
	require.Len(t, misc.Operands, 2)

	misc = instrs[10].Imm.(wasm.MiscImm)
	require.EqualValues(t, 2, misc.SubOpcode)
	require.Empty(t, misc.Operands)

	require.EqualValues(t, 0xc0, instrs[11].Opcode)
	require.Nil(t, instrs[11].Imm)

	target, ok := instrs[12].CallTarget()
	require.True(t, ok)
	require.EqualValues(t, 7, target)
	_, ok = instrs[0].CallTarget()
	require.False(t, ok, "block is not a call")
}

func TestDecodeF64Bits(t *testing.T) {
	v := math.Pi
	bits := math.Float64bits(v)
	code := []byte{wasm.OpF64Const}
	for i := 0; i < 8; i++ {
		code = append(code, byte(bits>>(8*i)))
	}
	instrs, err := wasm.DecodeInstructions(code)
	require.NoError(t, err)
	require.Equal(t, bits, instrs[0].Imm.(wasm.F64Imm).Bits)
}

func TestDecodeInstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xfd, 0x00}},
		{"truncated call", []byte{0x10}},
		{"truncated f64", []byte{0x44, 0x00, 0x00}},
		{"bad misc", []byte{0xfc, 0x40}},
		{"bad ref.null", []byte{0xd0, 0x7f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.DecodeInstructions(tt.code)
			require.Error(t, err)
		})
	}
}
