package linker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

// Options configures a build.
type Options struct {
	Catalog     Catalog
	Placeholder Placeholder
	// ModuleName is recorded in the name section. Empty omits it.
	ModuleName string
	// Dumper, when set, receives every intermediate text.
	Dumper Dumper
	// Validator type checks the assembled binary. Nil creates a wazero
	// interpreter per build; set it to share one engine across builds.
	Validator Validator
	// KeepStages retains intermediate texts on the result.
	KeepStages bool
}

// DefaultOptions returns options carrying the built-in catalog and
// placeholder.
func DefaultOptions() Options {
	return Options{
		Catalog:     DefaultCatalog(),
		Placeholder: DefaultPlaceholder(),
	}
}

// Stage is one intermediate text of a build.
type Stage struct {
	Name  string
	Text  string
	Lines int
}

// Result describes a successful variant build.
type Result struct {
	Variant watlink.Variant
	Binary  []byte
	Stages  []Stage

	Sanitized int
	Types     StripStats
	Collapsed bool
	Renames   map[string]int
	Rewrites  map[string]int
	// Injected is the 1-based line range of the host imports in the
	// primary text. Nil for the plain variant.
	Injected *errors.LineRange
	// Placeholder is the 1-based line of the deleted placeholder import.
	Placeholder int

	Funcs   int
	Imports int
	Exports int
	Data    int

	Elapsed time.Duration
}

type build struct {
	opts    Options
	variant watlink.Variant
	res     *Result
}

func (b *build) stage(name string, lines []string) error {
	text := modtext.Join(lines)
	if b.opts.KeepStages {
		b.res.Stages = append(b.res.Stages, Stage{Name: name, Text: text, Lines: len(lines)})
	}
	if b.opts.Dumper == nil {
		return nil
	}
	if err := b.opts.Dumper.Dump(b.variant, name, text); err != nil {
		return variantError(b.variant, name, err)
	}
	return nil
}

// Build links secondary into primary and returns the assembled binary of
// variant. Inputs are never modified; on failure no binary is returned.
func Build(ctx context.Context, v watlink.Variant, primary, secondary string, opts Options) (*Result, error) {
	start := time.Now()
	log := Logger().With(zap.Stringer("variant", v))
	b := &build{opts: opts, variant: v, res: &Result{Variant: v}}

	if err := opts.Catalog.Validate(); err != nil {
		return nil, variantError(v, "catalog", err)
	}
	if opts.Placeholder.Module == "" {
		opts.Placeholder.Module = DefaultPlaceholder().Module
	}
	if opts.Placeholder.ScanLimit <= 0 {
		opts.Placeholder.ScanLimit = DefaultPlaceholder().ScanLimit
	}
	b.opts = opts

	sanitized, n := SanitizeIdentifiers(primary)
	b.res.Sanitized = n
	primaryLines := modtext.Split(sanitized)
	if _, err := modtext.LoadLines(primaryLines); err != nil {
		return nil, variantError(v, StagePrimarySanitized, err)
	}
	if err := b.stage(StagePrimarySanitized, primaryLines); err != nil {
		return nil, err
	}
	log.Debug("sanitized primary", zap.Int("identifiers", n))

	body, norm, err := Normalize(secondary, opts.Catalog.Renames)
	if err != nil {
		return nil, variantError(v, StageSecondaryNormalized, err)
	}
	b.res.Types = norm.Types
	b.res.Collapsed = norm.Collapsed
	b.res.Renames = norm.Renames
	if err := b.stage(StageSecondaryNormalized, body); err != nil {
		return nil, err
	}

	if v.UsesHostFuncs() {
		if body, b.res.Rewrites, err = RewriteCalls(body, opts.Catalog.Rewrites); err != nil {
			return nil, variantError(v, StageSecondaryRewritten, err)
		}
		if err := b.stage(StageSecondaryRewritten, body); err != nil {
			return nil, err
		}

		var inserted errors.LineRange
		if primaryLines, inserted, err = InjectHostImports(primaryLines, opts.Catalog.HostImports); err != nil {
			return nil, variantError(v, StagePrimaryInjected, err)
		}
		b.res.Injected = &inserted
		if err := b.stage(StagePrimaryInjected, primaryLines); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, variantError(v, StageMerged, err)
	}
	merged, err := Merge(primaryLines, body, opts.Placeholder)
	if err != nil {
		return nil, variantError(v, StageMerged, err)
	}
	b.res.Placeholder = merged.Placeholder
	if err := b.stage(StageMerged, merged.Lines); err != nil {
		return nil, err
	}

	asm, err := Assemble(ctx, modtext.Join(merged.Lines), opts.ModuleName, opts.Validator)
	if err != nil {
		return nil, variantError(v, "assemble", err)
	}
	b.res.Binary = asm.Binary
	b.res.Funcs = asm.Module.NumFuncs()
	b.res.Imports = len(asm.Module.Imports)
	b.res.Exports = len(asm.Module.Exports)
	b.res.Data = len(asm.Module.Data)
	b.res.Elapsed = time.Since(start)

	log.Info("built variant",
		zap.Int("bytes", len(asm.Binary)),
		zap.Int("funcs", b.res.Funcs),
		zap.Int("imports", b.res.Imports),
		zap.Int("placeholder_line", b.res.Placeholder),
		zap.Duration("elapsed", b.res.Elapsed))
	return b.res, nil
}

// BuildAll builds every variant in variants. The variants share only the
// read-only inputs, so with parallel set they build concurrently. Results
// are returned in the order of variants. The first failure cancels the
// remaining builds and is returned.
func BuildAll(ctx context.Context, variants []watlink.Variant, primary, secondary string, opts Options, parallel bool) ([]*Result, error) {
	results := make([]*Result, len(variants))
	if !parallel {
		for i, v := range variants {
			res, err := Build(ctx, v, primary, secondary, opts)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range variants {
		g.Go(func() error {
			res, err := Build(gctx, v, primary, secondary, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
