// Package engine runs linked modules under wazero.
//
// The linker only checks what it can see in the text and the binary
// structure. The engine adds the checks that need a runtime:
//
//	Validate    - compile the module, which type checks every body
//	Inspect     - list function imports and exports with signatures
//	Instantiate - link against Go host functions and instantiate
//
// Host functions are grouped into one host module per import namespace.
// Instantiate reports every import without a host function at once, as an
// errors.MissingImportsError, so a host-functions build can be checked
// against the import catalog in one pass:
//
//	eng, _ := engine.New(ctx, nil)
//	defer eng.Close(ctx)
//	info, _ := eng.Inspect(ctx, bin)
//	hosts, _ := engine.StubImports(info.Imports, nil)
//	inst, err := eng.Instantiate(ctx, bin, hosts)
package engine
