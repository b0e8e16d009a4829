package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// parseUint parses a decimal or 0x-prefixed unsigned literal with optional
// underscores.
func parseUint(s string, bitSize int) (uint64, error) {
	s = strings.ReplaceAll(s, "_", "")
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(rest, 16, bitSize)
	}
	return strconv.ParseUint(s, 10, bitSize)
}

// parseInt accepts the union of the signed and unsigned ranges, so both
// -1 and 0xffffffff are valid i32 literals.
func parseInt(s string, bitSize int) (uint64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	v, err := parseUint(s, bitSize)
	if err != nil {
		return 0, err
	}
	if neg {
		if v > 1<<(bitSize-1) {
			return 0, fmt.Errorf("constant out of range")
		}
		return -v, nil
	}
	return v, nil
}

func parseI32(s string) (int32, error) {
	v, err := parseInt(s, 32)
	return int32(uint32(v)), err
}

func parseI64(s string) (int64, error) {
	v, err := parseInt(s, 64)
	return int64(v), err
}

func parseF32(s string) (uint32, error) {
	v, err := parseFloat(s, 32)
	return uint32(v), err
}

func parseF64(s string) (uint64, error) {
	return parseFloat(s, 64)
}

// parseFloat returns the IEEE bits of a float literal, including inf,
// nan and nan:0xPAYLOAD.
func parseFloat(s string, bitSize int) (uint64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	mantBits := 52
	expMask := uint64(0x7FF) << 52
	signBit := uint64(1) << 63
	if bitSize == 32 {
		mantBits = 23
		expMask = uint64(0xFF) << 23
		signBit = 1 << 31
	}

	var bits uint64
	switch {
	case s == "inf":
		bits = expMask
	case s == "nan":
		bits = expMask | 1<<(mantBits-1)
	case strings.HasPrefix(s, "nan:0x"):
		payload, err := strconv.ParseUint(strings.ReplaceAll(s[6:], "_", ""), 16, 64)
		if err != nil || payload == 0 || payload >= 1<<mantBits {
			return 0, fmt.Errorf("invalid nan payload %q", s)
		}
		bits = expMask | payload
	default:
		s = strings.ReplaceAll(s, "_", "")
		if strings.HasPrefix(s, "0x") && !strings.ContainsAny(s, "pP") {
			s += "p0"
		}
		v, err := strconv.ParseFloat(s, bitSize)
		if err != nil {
			return 0, err
		}
		if bitSize == 32 {
			bits = uint64(math.Float32bits(float32(v)))
		} else {
			bits = math.Float64bits(v)
		}
	}
	if neg {
		bits |= signBit
	}
	return bits, nil
}

// DecodeString decodes the escapes of a string literal body.
func DecodeString(raw string) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(raw) {
			return nil, fmt.Errorf("trailing backslash in string")
		}
		switch c = raw[i]; c {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '"', '\'', '\\':
			out = append(out, c)
		case 'u':
			end := strings.IndexByte(raw[i:], '}')
			if i+1 >= len(raw) || raw[i+1] != '{' || end < 0 {
				return nil, fmt.Errorf("malformed unicode escape")
			}
			cp, err := strconv.ParseUint(raw[i+2:i+end], 16, 32)
			if err != nil || !utf8.ValidRune(rune(cp)) {
				return nil, fmt.Errorf("invalid unicode escape %q", raw[i-1:i+end+1])
			}
			out = utf8.AppendRune(out, rune(cp))
			i += end
		default:
			if i+1 >= len(raw) || !isHex(c) || !isHex(raw[i+1]) {
				return nil, fmt.Errorf("invalid escape \\%c", c)
			}
			out = append(out, unhex(c)<<4|unhex(raw[i+1]))
			i++
		}
	}
	return out, nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}
