// Package errors provides the structured error type shared by the watlink
// packages.
//
// Errors are categorized by Phase (the pipeline stage that failed) and Kind
// (the structural assumption that was violated). An Error can also carry the
// line range that was scanned and the marker that was expected there, which
// is usually enough to locate a toolchain drift without re-running the
// pipeline by hand.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMerge, errors.KindPlaceholderMissing).
//		Path("hostfuncs").
//		Lines(1, 40).
//		Expected(`(import "watimports"`).
//		Detail("no placeholder import in scanned prefix").
//		Build()
//
// Or use convenience constructors for the fixed failure kinds:
//
//	err := errors.UnsupportedSignature(12, "$t3", 2)
//	err := errors.Assembly(errors.PhaseResolve, "unknown identifier $helper", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
