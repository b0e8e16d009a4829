package linker

import (
	"fmt"
	"strings"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

// RenameRule renames a secondary symbol to the name the primary module
// calls it by. Names are given without the "$" sigil.
type RenameRule struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// HostImport is one host function the host-functions variant imports.
type HostImport struct {
	Module  string   `toml:"module"`
	Field   string   `toml:"field"`
	Func    string   `toml:"func"`
	Params  []string `toml:"params"`
	Results []string `toml:"results"`
}

// Line renders the import declaration.
func (h HostImport) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(import %q %q (func $%s", h.Module, h.Field, h.Func)
	if len(h.Params) > 0 {
		b.WriteString(" (param " + strings.Join(h.Params, " ") + ")")
	}
	if len(h.Results) > 0 {
		b.WriteString(" (result " + strings.Join(h.Results, " ") + ")")
	}
	b.WriteString("))")
	return b.String()
}

// RewriteRule redirects calls to a secondary routine to a host import.
// A rule that matches no call site fails the build unless Optional is set.
type RewriteRule struct {
	Target   string `toml:"target"`
	Import   string `toml:"import"`
	Optional bool   `toml:"optional"`
}

// Catalog holds the fixed rename, host import and rewrite tables.
type Catalog struct {
	Renames     []RenameRule
	HostImports []HostImport
	Rewrites    []RewriteRule
}

var defaultRenames = []RenameRule{
	{From: "g1m_toMontgomery", To: "websnark_bls12/bls12_g1m_toMontgomery"},
	{From: "g2m_toMontgomery", To: "websnark_bls12/bls12_g2m_toMontgomery"},
	{From: "g2m_timesScalar", To: "websnark_bls12/bls12_g2m_timesScalar"},
	{From: "g2m_affine", To: "websnark_bls12/bls12_g2m_affine"},
	{From: "g1m_fromMontgomery", To: "websnark_bls12/bls12_g1m_fromMontgomery"},
	{From: "g1m_affine", To: "websnark_bls12/bls12_g1m_affine"},
	{From: "g1m_timesScalar", To: "websnark_bls12/bls12_g1m_timesScalar"},
	{From: "g1m_neg", To: "websnark_bls12/bls12_g1m_neg"},
	{From: "ftm_one", To: "websnark_bls12/bls12_ftm_one"},
	{From: "bls12381_pairingEq2", To: "websnark_bls12/bls12_pairingEq2"},
}

func bignum(field string, results ...string) HostImport {
	return HostImport{
		Module:  "env",
		Field:   field,
		Func:    "main/" + field,
		Params:  []string{"i32", "i32", "i32"},
		Results: results,
	}
}

var defaultHostImports = []HostImport{
	bignum("bignum_f1m_mul"),
	bignum("bignum_f1m_add"),
	bignum("bignum_f1m_sub"),
	bignum("bignum_int_mul"),
	bignum("bignum_int_add", "i32"),
	bignum("bignum_int_sub", "i32"),
}

var defaultRewrites = []RewriteRule{
	{Target: "f1m_mul", Import: "main/bignum_f1m_mul"},
	{Target: "f1m_add", Import: "main/bignum_f1m_add"},
	{Target: "f1m_sub", Import: "main/bignum_f1m_sub"},
	{Target: "int_mul", Import: "main/bignum_int_mul"},
	{Target: "int_add", Import: "main/bignum_int_add"},
	{Target: "int_sub", Import: "main/bignum_int_sub"},
}

// DefaultCatalog returns a copy of the versioned built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Renames:     append([]RenameRule(nil), defaultRenames...),
		HostImports: append([]HostImport(nil), defaultHostImports...),
		Rewrites:    append([]RewriteRule(nil), defaultRewrites...),
	}
}

var valTypes = map[string]bool{"i32": true, "i64": true, "f32": true, "f64": true}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !modtext.IsIDChar(name[i]) {
			return false
		}
	}
	return true
}

// Validate checks the tables for consistency: identifiers must be valid,
// sources unique, and every rewrite must target a catalog import.
func (c Catalog) Validate() error {
	bad := func(format string, args ...any) error {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
	}

	seen := map[string]bool{}
	for _, r := range c.Renames {
		if !validName(r.From) || !validName(r.To) {
			return bad("rename %q -> %q: invalid identifier", r.From, r.To)
		}
		if seen[r.From] {
			return bad("rename %q listed twice", r.From)
		}
		seen[r.From] = true
	}

	imports := map[string]bool{}
	for _, h := range c.HostImports {
		if h.Module == "" || h.Field == "" || !validName(h.Func) {
			return bad("host import %s.%s ($%s): module, field and func are required", h.Module, h.Field, h.Func)
		}
		if imports[h.Func] {
			return bad("host import func $%s listed twice", h.Func)
		}
		for _, v := range append(append([]string(nil), h.Params...), h.Results...) {
			if !valTypes[v] {
				return bad("host import $%s: unknown value type %q", h.Func, v)
			}
		}
		if len(h.Results) > 1 {
			return bad("host import $%s: more than one result", h.Func)
		}
		imports[h.Func] = true
	}

	targets := map[string]bool{}
	for _, r := range c.Rewrites {
		if !validName(r.Target) {
			return bad("rewrite %q: invalid identifier", r.Target)
		}
		if !imports[r.Import] {
			return bad("rewrite %q -> %q: no host import declares $%s", r.Target, r.Import, r.Import)
		}
		if targets[r.Target] {
			return bad("rewrite %q listed twice", r.Target)
		}
		targets[r.Target] = true
	}
	return nil
}

// Placeholder identifies the marker import the primary compiler emits in
// place of the merged library.
type Placeholder struct {
	Module    string
	ScanLimit int
}

// DefaultPlaceholder matches `(import "watimports"` within the first 40
// lines.
func DefaultPlaceholder() Placeholder {
	return Placeholder{Module: "watimports", ScanLimit: 40}
}
