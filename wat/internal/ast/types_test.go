package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuncTypeEqual(t *testing.T) {
	a := FuncType{Params: []byte{ValI32, ValI32}, Results: []byte{ValI32}}
	b := FuncType{Params: []byte{ValI32, ValI32}, Results: []byte{ValI32}}
	c := FuncType{Params: []byte{ValI32, ValI32, ValI32}}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.True(t, (FuncType{}).Equal(FuncType{Params: []byte{}}), "nil and empty param lists")
}

func TestValTypeRoundTrip(t *testing.T) {
	for _, name := range []string{"i32", "i64", "f32", "f64", "funcref", "externref"} {
		v, ok := ValType(name)
		require.True(t, ok, name)
		require.Equal(t, name, ValTypeName(v))
	}
	_, ok := ValType("v128")
	require.False(t, ok)
}
