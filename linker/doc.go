// Package linker merges a library module into a primary module at the
// text level.
//
// Both inputs are WebAssembly text. The primary module comes from the
// AssemblyScript compiler and declares one placeholder import where the
// library belongs. The library (the secondary module) comes from a
// disassembler. A build runs these stages:
//
//  1. SanitizeIdentifiers removes commas from primary identifiers.
//  2. Normalize strips the library's type section, module header and
//     closing delimiter and applies the rename table.
//  3. For the host-functions variant, RewriteCalls redirects library calls
//     to host imports and InjectHostImports declares them in the primary.
//  4. Merge splices the library before the primary's closing delimiter and
//     deletes the placeholder import.
//  5. Assemble encodes the merged text with debug names, validates its
//     structure and type checks it with a wazero engine.
//
// Every step is a pure function over lines, so Build and BuildAll never
// modify their inputs and variants can build concurrently. Each step
// fails with a structured *errors.Error naming the violated assumption;
// Build wraps it in a VariantError.
//
//	results, err := linker.BuildAll(ctx, watlink.Variants, primary, secondary,
//		linker.DefaultOptions(), true)
package linker
