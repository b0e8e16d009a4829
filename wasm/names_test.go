package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/watlink/wasm"
)

func TestNames(t *testing.T) {
	m, err := wasm.ParseModule(sampleModule())
	require.NoError(t, err)
	names, err := m.Names()
	require.NoError(t, err)

	require.Equal(t, "m", names.Module)
	require.Equal(t, "$inc", names.Functions[0])
	require.Equal(t, "$start", names.Functions[1])

	idx, ok := names.FuncIndex("$start")
	require.True(t, ok)
	require.Equal(t, uint32(1), idx)
	_, ok = names.FuncIndex("$missing")
	require.False(t, ok)
}

func TestNamesAbsent(t *testing.T) {
	m, err := wasm.ParseModule(header)
	require.NoError(t, err)
	names, err := m.Names()
	require.NoError(t, err)
	require.Empty(t, names.Module)
	require.Empty(t, names.Functions)
}

func TestNamesTruncated(t *testing.T) {
	m := &wasm.Module{CustomSections: []wasm.CustomSection{{Name: "name", Data: []byte{0x01, 0x05, 0x01}}}}
	_, err := m.Names()
	require.Error(t, err)
}
