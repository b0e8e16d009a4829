package linker

import (
	"strings"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/errors"
)

// VariantError reports which variant build failed and in which stage.
type VariantError struct {
	Cause   error
	Stage   string
	Variant watlink.Variant
}

func (e *VariantError) Error() string {
	var b strings.Builder
	b.WriteString("build ")
	b.WriteString(e.Variant.String())
	b.WriteString(" failed")

	if e.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(e.Stage)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *VariantError) Unwrap() error {
	return e.Cause
}

// variantError wraps cause, adding the variant and stage to the path of a
// structured error.
func variantError(v watlink.Variant, stage string, cause error) *VariantError {
	var e *errors.Error
	if errors.As(cause, &e) {
		cause = e.WithPath(v.String(), stage)
	}
	return &VariantError{Variant: v, Stage: stage, Cause: cause}
}
