package linker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/modtext"
)

// FindPlaceholder returns the index of the single placeholder import
// within the first p.ScanLimit lines. Only a line that opens with the
// import counts, so a commented-out declaration is ignored. No match is
// placeholder_import_missing and a second match is
// placeholder_import_ambiguous.
func FindPlaceholder(lines []string, p Placeholder) (int, error) {
	marker := `(import "` + p.Module + `"`
	limit := min(p.ScanLimit, len(lines))
	matches := modtext.FindAll(lines, 0, limit, func(line string) bool {
		return strings.HasPrefix(strings.TrimSpace(line), marker)
	})
	switch len(matches) {
	case 0:
		return -1, errors.PlaceholderMissing(p.Module, limit)
	case 1:
		return matches[0], nil
	}
	return -1, errors.PlaceholderAmbiguous(p.Module, matches[0]+1, matches[1]+1)
}

// MergeResult is the merged text and the placeholder line removed from it.
type MergeResult struct {
	Lines []string
	// Placeholder is the 1-based line of the deleted import, counted in
	// the text before deletion.
	Placeholder int
	Removed     string
}

// Merge splices body into primary directly before its closing delimiter,
// then deletes the placeholder import.
func Merge(primary []string, body []string, p Placeholder) (*MergeResult, error) {
	mod, err := modtext.LoadLines(primary)
	if err != nil {
		return nil, err
	}
	merged := mod.SpliceBeforeClose(body)

	idx, err := FindPlaceholder(merged, p)
	if err != nil {
		return nil, err
	}
	removed := merged[idx]
	if merged, err = modtext.DeleteLine(merged, idx); err != nil {
		return nil, errors.Wrap(errors.PhaseMerge, errors.KindInvalidData, err, "delete placeholder import")
	}
	Logger().Debug("merged modules",
		zap.Int("body_lines", len(body)),
		zap.Int("placeholder_line", idx+1),
		zap.Int("lines", len(merged)))
	return &MergeResult{Lines: merged, Placeholder: idx + 1, Removed: removed}, nil
}
