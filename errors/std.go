package errors

import stderrors "errors"

// Is, As and Unwrap forward to the standard library so callers only need
// this package.

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join forwards to the standard library errors.Join.
func Join(errs ...error) error { return stderrors.Join(errs...) }
