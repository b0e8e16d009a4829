package linker

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/wat"
)

// Format is the encoding of a secondary module source.
type Format int

const (
	// FormatAuto detects binary modules by their magic number.
	FormatAuto Format = iota
	FormatWAT
	FormatWasm
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// ParseFormat parses "auto", "wat" or "wasm".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "wat":
		return FormatWAT, nil
	case "wasm":
		return FormatWasm, nil
	}
	return FormatAuto, fmt.Errorf("unknown secondary format %q (want auto, wat or wasm)", s)
}

func (f Format) String() string {
	switch f {
	case FormatWAT:
		return "wat"
	case FormatWasm:
		return "wasm"
	}
	return "auto"
}

// LoadSecondary returns the text of the secondary module. Binary modules
// are disassembled with their debug names.
func LoadSecondary(src []byte, format Format) (string, error) {
	if format == FormatAuto {
		format = FormatWAT
		if bytes.HasPrefix(src, wasmMagic) {
			format = FormatWasm
		}
	}
	if format == FormatWAT {
		return string(src), nil
	}
	text, err := wat.Print(src)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			return "", e.WithPath("secondary")
		}
		return "", err
	}
	return text, nil
}
