package watlink

import (
	"fmt"
	"strings"
)

// Variant selects which artifact a build produces.
type Variant int

const (
	// Plain merges the library as is.
	Plain Variant = iota
	// HostFuncs additionally wires the host-function import catalog.
	HostFuncs
)

// Variants lists every variant in build order.
var Variants = []Variant{HostFuncs, Plain}

func (v Variant) String() string {
	switch v {
	case Plain:
		return "plain"
	case HostFuncs:
		return "hostfuncs"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// UsesHostFuncs reports whether the variant injects host imports.
func (v Variant) UsesHostFuncs() bool {
	return v == HostFuncs
}

// ArtifactName is the default output file name of the variant.
func (v Variant) ArtifactName() string {
	if v == HostFuncs {
		return "main_with_websnark_bignum_hostfuncs.wasm"
	}
	return "main_with_websnark.wasm"
}

// ParseVariant parses "plain", "hostfuncs" or "all". "all" yields every
// variant.
func ParseVariant(s string) ([]Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain":
		return []Variant{Plain}, nil
	case "hostfuncs", "host":
		return []Variant{HostFuncs}, nil
	case "", "all":
		return append([]Variant(nil), Variants...), nil
	}
	return nil, fmt.Errorf("unknown variant %q (want plain, hostfuncs or all)", s)
}
