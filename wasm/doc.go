// Package wasm reads WebAssembly core modules.
//
// It decodes the sections produced by the text assembler and by the
// toolchains watlink consumes: MVP sections plus bulk memory, reference
// types, saturating truncation and sign extension. The "name" custom
// section is decoded on demand so assembled output can be checked symbol by
// symbol.
//
//	m, err := wasm.ParseModuleValidate(bin)
//	names, err := m.Names()
//	idx, ok := names.FuncIndex("$websnark_bls12/bls12_pairingEq2")
//
// Function bodies are kept as raw bytes; DecodeInstructions turns one into
// a flat instruction list with typed immediates.
package wasm
