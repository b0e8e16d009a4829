package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wasm"
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// sec frames a section payload; payloads in these tests stay below 128 bytes.
func sec(id byte, payload ...byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

func str(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func body(code ...byte) []byte {
	return append([]byte{byte(len(code))}, code...)
}

// sampleModule imports env.memory, defines $inc (i32)->i32 and $start which
// calls it, exports "inc", starts $start and carries a name section.
func sampleModule() []byte {
	types := sec(wasm.SectionType, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00)
	imports := sec(wasm.SectionImport, cat([]byte{0x01}, str("env"), str("memory"), []byte{0x02, 0x00, 0x01})...)
	funcs := sec(wasm.SectionFunction, 0x02, 0x00, 0x01)
	exports := sec(wasm.SectionExport, cat([]byte{0x01}, str("inc"), []byte{0x00, 0x00})...)
	start := sec(wasm.SectionStart, 0x01)
	code := sec(wasm.SectionCode, cat(
		[]byte{0x02},
		body(0x00, 0x20, 0x00, 0x41, 0x01, 0x6a, 0x0b),
		body(0x00, 0x41, 0x05, 0x10, 0x00, 0x1a, 0x0b),
	)...)
	data := sec(wasm.SectionData, cat([]byte{0x01, 0x00, 0x41, 0x08, 0x0b}, str("hi"))...)

	funcNames := cat([]byte{0x02, 0x00}, str("$inc"), []byte{0x01}, str("$start"))
	nameSec := sec(wasm.SectionCustom, cat(
		str("name"),
		sec(wasm.NameSubsectionModule, str("m")...),
		sec(wasm.NameSubsectionFunctions, funcNames...),
	)...)

	return cat(header, types, imports, funcs, exports, start, code, data, nameSec)
}

func TestParseMinimalModule(t *testing.T) {
	m, err := wasm.ParseModule(header)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestParseInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"magic", []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
		{"version", []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}},
		{"truncated", []byte{0x00, 0x61, 0x73}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.ParseModule(tt.data)
			require.Error(t, err)
		})
	}
}

func TestParseSampleModule(t *testing.T) {
	m, err := wasm.ParseModuleValidate(sampleModule())
	require.NoError(t, err)

	require.Len(t, m.Types, 2)
	require.Len(t, m.Imports, 1)
	require.Equal(t, "env", m.Imports[0].Module)
	require.Equal(t, "memory", m.Imports[0].Name)
	require.NotNil(t, m.Imports[0].Desc.Memory)
	require.EqualValues(t, 1, m.Imports[0].Desc.Memory.Limits.Min)
	require.Equal(t, 2, m.NumFuncs())
	require.NotNil(t, m.Start)
	require.EqualValues(t, 1, *m.Start)
	require.Len(t, m.Data, 1)
	require.Equal(t, "hi", string(m.Data[0].Init))

	ft := m.GetFuncType(0)
	require.NotNil(t, ft)
	require.Equal(t, "(i32) -> (i32)", ft.String())
}

func TestParseSectionOrdering(t *testing.T) {
	funcs := sec(wasm.SectionFunction, 0x00)
	types := sec(wasm.SectionType, 0x00)
	_, err := wasm.ParseModule(cat(header, funcs, types))
	require.ErrorContains(t, err, "out of order")
}

func TestParseTrailingBytes(t *testing.T) {
	types := sec(wasm.SectionType, 0x00, 0xff)
	_, err := wasm.ParseModule(cat(header, types))
	require.Error(t, err)
}

func TestParseFunctionCodeMismatch(t *testing.T) {
	types := sec(wasm.SectionType, 0x01, 0x60, 0x00, 0x00)
	funcs := sec(wasm.SectionFunction, 0x01, 0x00)
	_, err := wasm.ParseModule(cat(header, types, funcs))
	require.ErrorContains(t, err, "inconsistent")
}

func TestParseDataCountAndPassive(t *testing.T) {
	mem := sec(wasm.SectionMemory, 0x01, 0x00, 0x01)
	count := sec(wasm.SectionDataCount, 0x02)
	data := sec(wasm.SectionData, cat([]byte{0x02, 0x01}, str("ab"), []byte{0x01}, str("cd"))...)

	m, err := wasm.ParseModuleValidate(cat(header, mem, count, data))
	require.NoError(t, err)
	require.NotNil(t, m.DataCount)
	require.EqualValues(t, 2, *m.DataCount)
	require.True(t, m.Data[0].Passive())
	require.True(t, m.Data[1].Passive())
}

func TestParseElementSegment(t *testing.T) {
	types := sec(wasm.SectionType, 0x01, 0x60, 0x00, 0x00)
	funcs := sec(wasm.SectionFunction, 0x01, 0x00)
	table := sec(wasm.SectionTable, 0x01, 0x70, 0x00, 0x01)
	elems := sec(wasm.SectionElement, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x01, 0x00)
	code := sec(wasm.SectionCode, cat([]byte{0x01}, body(0x00, 0x0b))...)

	m, err := wasm.ParseModuleValidate(cat(header, types, funcs, table, elems, code))
	require.NoError(t, err)
	require.Len(t, m.Elements, 1)
	require.Len(t, m.Elements[0].FuncIdxs, 1)
	require.Equal(t, wasm.ValFuncRef, m.Tables[0].ElemType)
}

func TestParseRejectsMultiValueForms(t *testing.T) {
	// 0x5f is not a function type form
	types := sec(wasm.SectionType, 0x01, 0x5f, 0x00)
	_, err := wasm.ParseModule(cat(header, types))
	require.Error(t, err)
}
