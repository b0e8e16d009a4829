package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/wat"
)

// badResult declares a function returning i32 whose body is empty.
var badResult = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

const importer = `(module $importer
  (import "env" "log" (func $log (param i32)))
  (import "env" "now" (func $now (result i64)))
  (import "math" "sqrt" (func $sqrt (param f64) (result f64)))
  (memory (export "memory") 1)
  (func (export "run") (param i32) (result i64)
    local.get 0
    call $log
    call $now)
  (func (export "answer") (result i32)
    i32.const 42))`

func compile(t *testing.T, src string) []byte {
	t.Helper()
	bin, err := wat.Assemble(src, wat.Options{DebugNames: true})
	require.NoError(t, err)
	return bin
}

func newEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	ctx := context.Background()
	eng, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{Interpreter: true}, "interpreter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := newEngine(t, tc.cfg)
			require.NotNil(t, eng.runtime)
			require.NoError(t, eng.Validate(context.Background(), compile(t, "(module)")))
		})
	}
}

func TestValidate(t *testing.T) {
	eng := newEngine(t, &Config{Interpreter: true})
	ctx := context.Background()

	require.NoError(t, eng.Validate(ctx, compile(t, importer)))

	err := eng.Validate(ctx, badResult)
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errors.PhaseValidate, e.Phase)

	require.Error(t, eng.Validate(ctx, []byte("not wasm")))
}

func TestInspect(t *testing.T) {
	eng := newEngine(t, &Config{Interpreter: true})
	info, err := eng.Inspect(context.Background(), compile(t, importer))
	require.NoError(t, err)

	require.Equal(t, "importer", info.Name)
	require.Equal(t, 1, info.Memories)
	require.Equal(t, []Func{
		{Module: "env", Name: "log", Params: []string{"i32"}, Results: []string{}},
		{Module: "env", Name: "now", Params: []string{}, Results: []string{"i64"}},
		{Module: "math", Name: "sqrt", Params: []string{"f64"}, Results: []string{"f64"}},
	}, info.Imports)
	require.Len(t, info.Exports, 2)
	require.Equal(t, "answer", info.Exports[0].Name)
	require.Equal(t, []string{"i32"}, info.Exports[0].Results)
	require.Equal(t, "run", info.Exports[1].Name)
}

func TestInstantiateMissingImports(t *testing.T) {
	eng := newEngine(t, &Config{Interpreter: true})
	log, err := Stub("env", "log", []string{"i32"}, nil, nil)
	require.NoError(t, err)

	_, err = eng.Instantiate(context.Background(), compile(t, importer), []HostFunc{log})
	var missing *errors.MissingImportsError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, []errors.MissingImport{
		{Namespace: "env", Function: "now"},
		{Namespace: "math", Function: "sqrt"},
	}, missing.Imports)
}

func TestInstantiateAndCall(t *testing.T) {
	eng := newEngine(t, &Config{Interpreter: true})
	ctx := context.Background()
	bin := compile(t, importer)

	info, err := eng.Inspect(ctx, bin)
	require.NoError(t, err)
	calls := &Counter{}
	hosts, err := StubImports(info.Imports, calls)
	require.NoError(t, err)

	// twice, so host modules of the first instance must be released
	for range 2 {
		inst, err := eng.Instantiate(ctx, bin, hosts)
		require.NoError(t, err)

		res, err := inst.Call(ctx, "answer")
		require.NoError(t, err)
		require.Equal(t, []uint64{42}, res)

		res, err = inst.Call(ctx, "run", 7)
		require.NoError(t, err)
		require.Equal(t, []uint64{0}, res)

		_, err = inst.Call(ctx, "missing")
		require.Error(t, err)

		mem := inst.Memory()
		require.NotNil(t, mem)
		require.Equal(t, uint32(65536), mem.Size())
		require.NoError(t, mem.WriteU32(8, 0xdeadbeef))
		v, err := mem.ReadU32(8)
		require.NoError(t, err)
		require.Equal(t, uint32(0xdeadbeef), v)
		_, err = mem.ReadU64(65535)
		require.Error(t, err)

		require.NoError(t, inst.Close(ctx))
	}
	require.Equal(t, 2, calls.Get("env.log"))
	require.Equal(t, 2, calls.Get("env.now"))
	require.Zero(t, calls.Get("math.sqrt"))
}

func TestGroupByNamespace(t *testing.T) {
	fn := api.GoModuleFunc(func(context.Context, api.Module, []uint64) {})
	groups := groupByNamespace([]HostFunc{
		{Module: "env", Name: "a", Fn: fn},
		{Module: "math", Name: "b", Fn: fn},
		{Module: "env", Name: "c", Fn: fn},
		{Module: "env", Name: "a", Params: []api.ValueType{api.ValueTypeI32}, Fn: fn},
	})
	require.Len(t, groups, 2)
	require.Equal(t, "env", groups[0].namespace)
	require.Len(t, groups[0].funcs, 2)
	require.Equal(t, []api.ValueType{api.ValueTypeI32}, groups[0].funcs[0].Params)
	require.Equal(t, "math", groups[1].namespace)
}

func TestParseValueTypes(t *testing.T) {
	got, err := ParseValueTypes([]string{"i32", "i64", "f32", "f64"})
	require.NoError(t, err)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64}, got)

	_, err = ParseValueTypes([]string{"v128"})
	require.Error(t, err)
	_, err = Stub("env", "x", []string{"i8"}, nil, nil)
	require.ErrorContains(t, err, "env.x")
}
