// Package wat assembles WebAssembly text into binary modules and prints
// binary modules back as text.
//
// The assembler covers what compiler and disassembler output uses: folded
// and flat instructions, symbolic identifiers for every index space, type
// uses with inline signatures, inline imports and exports, and active or
// passive segments.
//
//	bin, err := wat.Assemble(src, wat.Options{DebugNames: true})
//
// Failures are *errors.Error values. A second definition of a name is a
// name_collision; a reference to a name that is never defined is an
// unknown_name error in the resolve phase.
//
// Not supported: SIMD, threads, exception handling, GC types.
package wat
