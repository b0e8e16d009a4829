package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/watlink/errors"
)

// Engine compiles and instantiates linked modules with wazero.
type Engine struct {
	runtime wazero.Runtime
	cfg     Config
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Interpreter selects the wazero interpreter instead of the compiler.
	// Validation results are the same; the interpreter starts faster.
	Interpreter bool
}

// New creates an engine. A nil cfg uses the defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if c.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	runtimeCfg = runtimeCfg.WithCustomSections(true)

	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg), cfg: c}, nil
}

// Close releases the runtime and every instance created by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Engine) compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "compile module")
	}
	return compiled, nil
}

// Validate compiles bin, which type checks every function body, and
// discards the result. It satisfies linker.Validator.
func (e *Engine) Validate(ctx context.Context, bin []byte) error {
	compiled, err := e.compile(ctx, bin)
	if err != nil {
		return err
	}
	return compiled.Close(ctx)
}

// Func is the signature of an imported or exported function.
type Func struct {
	Module  string // empty for exports
	Name    string
	Params  []string
	Results []string
}

func (f Func) String() string {
	name := f.Name
	if f.Module != "" {
		name = f.Module + "." + f.Name
	}
	return fmt.Sprintf("%s (param %v) (result %v)", name, f.Params, f.Results)
}

// Info lists the function imports and exports of a compiled module.
type Info struct {
	Name    string
	Imports []Func
	Exports []Func
	// Memories is the number of exported memories.
	Memories int
}

func valueTypeNames(ts []api.ValueType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = api.ValueTypeName(t)
	}
	return out
}

// Inspect compiles bin and returns its function imports in index order and
// its function exports sorted by name.
func (e *Engine) Inspect(ctx context.Context, bin []byte) (*Info, error) {
	compiled, err := e.compile(ctx, bin)
	if err != nil {
		return nil, err
	}
	defer compiled.Close(ctx)

	info := &Info{Name: compiled.Name(), Memories: len(compiled.ExportedMemories())}
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		info.Imports = append(info.Imports, Func{
			Module:  mod,
			Name:    name,
			Params:  valueTypeNames(def.ParamTypes()),
			Results: valueTypeNames(def.ResultTypes()),
		})
	}
	for name, def := range compiled.ExportedFunctions() {
		info.Exports = append(info.Exports, Func{
			Name:    name,
			Params:  valueTypeNames(def.ParamTypes()),
			Results: valueTypeNames(def.ResultTypes()),
		})
	}
	sort.Slice(info.Exports, func(i, j int) bool { return info.Exports[i].Name < info.Exports[j].Name })
	return info, nil
}

// Instance is an instantiated module with the host modules it imports from.
type Instance struct {
	module api.Module
	hosts  []api.Module
}

// Instantiate links bin against hosts and instantiates it. Function
// imports without a matching host function are reported together as an
// errors.MissingImportsError before anything is instantiated. Host modules
// are private to the instance and closed with it.
func (e *Engine) Instantiate(ctx context.Context, bin []byte, hosts []HostFunc) (*Instance, error) {
	compiled, err := e.compile(ctx, bin)
	if err != nil {
		return nil, err
	}
	defer compiled.Close(ctx)

	provided := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		provided[h.key()] = true
	}
	var missing []string
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		if !provided[mod+"#"+name] {
			missing = append(missing, mod+"#"+name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingImportsError(missing)
	}

	inst := &Instance{}
	for _, group := range groupByNamespace(hosts) {
		b := e.runtime.NewHostModuleBuilder(group.namespace)
		for _, h := range group.funcs {
			b.NewFunctionBuilder().
				WithGoModuleFunction(h.Fn, h.Params, h.Results).
				WithName(h.Name).
				Export(h.Name)
		}
		host, err := b.Instantiate(ctx)
		if err != nil {
			_ = inst.Close(ctx)
			return nil, errors.Instantiation(fmt.Errorf("host module %q: %w", group.namespace, err))
		}
		inst.hosts = append(inst.hosts, host)
		Logger().Debug("instantiated host module",
			zap.String("namespace", group.namespace),
			zap.Int("functions", len(group.funcs)))
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		_ = inst.Close(ctx)
		return nil, errors.Instantiation(err)
	}
	inst.module = mod
	return inst, nil
}

// Call invokes the exported function name.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	return fn.Call(ctx, args...)
}

// Memory returns the instance's first memory, or nil if it has none.
func (i *Instance) Memory() *Memory {
	if i.module == nil || i.module.Memory() == nil {
		return nil
	}
	return &Memory{mem: i.module.Memory()}
}

// Close closes the module and then its host modules.
func (i *Instance) Close(ctx context.Context) error {
	var firstErr error
	if i.module != nil {
		if err := i.module.Close(ctx); err != nil {
			firstErr = err
		}
		i.module = nil
	}
	for _, h := range i.hosts {
		if err := h.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	i.hosts = nil
	return firstErr
}
