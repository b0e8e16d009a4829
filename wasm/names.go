package wasm

import (
	"fmt"

	"github.com/wippyai/watlink/wasm/internal/binary"
)

// Names holds the debug symbols of the "name" custom section.
type Names struct {
	Functions map[uint32]string
	Locals    map[uint32]map[uint32]string
	Module    string
}

// Names decodes the "name" custom section. A module without one yields an
// empty, non-nil result.
func (m *Module) Names() (*Names, error) {
	names := &Names{
		Functions: map[uint32]string{},
		Locals:    map[uint32]map[uint32]string{},
	}
	cs, ok := m.Custom("name")
	if !ok {
		return names, nil
	}

	r := binary.NewReader(cs.Data)
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, fmt.Errorf("name subsection %d: %w", id, err)
		}
		switch id {
		case NameSubsectionModule:
			if names.Module, err = sr.ReadName(); err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
		case NameSubsectionFunctions:
			if names.Functions, err = readNameMap(sr); err != nil {
				return nil, fmt.Errorf("function names: %w", err)
			}
		case NameSubsectionLocals:
			n, err := sr.ReadU32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				fn, err := sr.ReadU32()
				if err != nil {
					return nil, err
				}
				locals, err := readNameMap(sr)
				if err != nil {
					return nil, fmt.Errorf("local names of function %d: %w", fn, err)
				}
				names.Locals[fn] = locals
			}
		}
		// other subsections are skipped
	}
	return names, nil
}

func readNameMap(r *binary.Reader) (map[uint32]string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]string, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		out[idx] = name
	}
	return out, nil
}

// FuncIndex returns the index of the function carrying the given debug name.
func (n *Names) FuncIndex(name string) (uint32, bool) {
	for idx, fn := range n.Functions {
		if fn == name {
			return idx, true
		}
	}
	return 0, false
}
