// Package watlink links two independently compiled WebAssembly text
// modules into one loadable module.
//
// The primary module comes from a managed-language compiler and leaves a
// placeholder import where the arithmetic library belongs. The secondary
// module is that library, precompiled and disassembled with debug names.
// watlink rewrites both texts line by line, splices the library into the
// primary module and reassembles the result.
//
// # Architecture Overview
//
//	watlink/             Root package with the build Variant type
//	├── linker/          Normalize, inject, merge and assemble pipeline
//	├── modtext/         Line model of module text
//	├── wat/             Text assembler and disassembler
//	├── wasm/            Core binary reader and validator
//	├── engine/          wazero compilation and host-function checks
//	├── config/          watlink.toml build manifest
//	├── errors/          Structured error types for diagnostics
//	└── cmd/watlink/     Command-line interface
//
// # Quick Start
//
//	res, err := linker.Build(ctx, watlink.HostFuncs, primaryText, secondaryText,
//	    linker.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = linker.WriteArtifact("out/"+watlink.HostFuncs.ArtifactName(), res.Binary)
//
// # Variants
//
// Every build produces up to two artifacts from the same sources. The
// plain variant keeps the library's own arithmetic. The host-functions
// variant imports a fixed catalog of env.bignum_* functions and redirects
// the library's calls to them, so the host must provide those functions.
//
// # Failure Model
//
// Each stage checks the structural assumptions it relies on and fails
// with an *errors.Error naming the stage, the violated assumption and the
// scanned line range. A failed variant never writes its artifact.
package watlink
