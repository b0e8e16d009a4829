package linker

import (
	"fmt"
	"os"
	"path/filepath"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/errors"
)

// Stage names of the intermediate texts.
const (
	StagePrimarySanitized    = "primary.sanitized"
	StageSecondaryNormalized = "secondary.normalized"
	StageSecondaryRewritten  = "secondary.rewritten"
	StagePrimaryInjected     = "primary.injected"
	StageMerged              = "merged"
)

// Dumper receives the intermediate text of every stage.
type Dumper interface {
	Dump(v watlink.Variant, stage, text string) error
}

// DirDumper writes stages to <Dir>/<variant>.<stage>.wat.
type DirDumper struct {
	Dir string
}

// Path returns the file a stage is written to.
func (d DirDumper) Path(v watlink.Variant, stage string) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%s.%s.wat", v, stage))
}

func (d DirDumper) Dump(v watlink.Variant, stage, text string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "create dump directory")
	}
	if err := os.WriteFile(d.Path(v, stage), []byte(text), 0o644); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "write stage "+stage)
	}
	return nil
}

// WriteArtifact writes bin to path through a temporary file in the same
// directory and renames it into place, so a reader never observes a
// partial module.
func WriteArtifact(path string, bin []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "create output directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "create temporary file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(bin); err != nil {
		_ = tmp.Close()
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "write "+path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "close "+path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "chmod "+path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindIO, err, "rename into "+path)
	}
	return nil
}
