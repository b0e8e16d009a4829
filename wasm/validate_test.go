package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wasm"
)

func validModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{},
		},
		Funcs:    []uint32{0, 1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Code: []wasm.FuncBody{
			{Code: []byte{wasm.OpLocalGet, 0x00, wasm.OpEnd}},
			{Code: []byte{wasm.OpI32Const, 0x01, wasm.OpCall, 0x00, wasm.OpDrop, wasm.OpEnd}},
		},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 0},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validModule().Validate())
}

func TestValidate_Failures(t *testing.T) {
	u32 := func(v uint32) *uint32 { return &v }

	tests := []struct {
		name   string
		mutate func(m *wasm.Module)
		want   string
	}{
		{
			name:   "invalid type index",
			mutate: func(m *wasm.Module) { m.Funcs[1] = 5 },
			want:   "invalid type index",
		},
		{
			name:   "duplicate export",
			mutate: func(m *wasm.Module) { m.Exports[1].Name = "add" },
			want:   "duplicate export name",
		},
		{
			name:   "export out of range",
			mutate: func(m *wasm.Module) { m.Exports[0].Idx = 9 },
			want:   "out of range",
		},
		{
			name:   "start with params",
			mutate: func(m *wasm.Module) { m.Start = u32(0) },
			want:   "start function must have signature",
		},
		{
			name:   "data count mismatch",
			mutate: func(m *wasm.Module) { m.DataCount = u32(3) },
			want:   "data count section",
		},
		{
			name:   "code count mismatch",
			mutate: func(m *wasm.Module) { m.Code = m.Code[:1] },
			want:   "code section has 1 entries",
		},
		{
			name:   "memory max below min",
			mutate: func(m *wasm.Module) { m.Memories[0].Limits = wasm.Limits{Min: 4, Max: u32(2)} },
			want:   "below min",
		},
		{
			name: "call to undefined function",
			mutate: func(m *wasm.Module) {
				m.Code[1].Code = []byte{wasm.OpI32Const, 0x01, wasm.OpCall, 0x09, wasm.OpDrop, wasm.OpEnd}
			},
			want: "call to undefined function 9",
		},
		{
			name:   "local out of range",
			mutate: func(m *wasm.Module) { m.Code[0].Code = []byte{wasm.OpLocalGet, 0x04, wasm.OpEnd} },
			want:   "invalid local index 4",
		},
		{
			name:   "unbalanced blocks",
			mutate: func(m *wasm.Module) { m.Code[0].Code = []byte{wasm.OpBlock, 0x40, wasm.OpLocalGet, 0x00, wasm.OpEnd} },
			want:   "unbalanced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModule()
			tt.mutate(m)
			require.ErrorContains(t, m.Validate(), tt.want)
		})
	}
}
