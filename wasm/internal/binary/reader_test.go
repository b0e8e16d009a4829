package binary

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadU32(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    uint32
		wantErr error
	}{
		{"zero", []byte{0x00}, 0, nil},
		{"single byte", []byte{0x7f}, 127, nil},
		{"two bytes", []byte{0x80, 0x01}, 128, nil},
		{"max", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, math.MaxUint32, nil},
		{"padded", []byte{0x85, 0x80, 0x80, 0x80, 0x00}, 5, nil},
		{"too many bits", []byte{0xff, 0xff, 0xff, 0xff, 0x1f}, 0, ErrOverflow},
		{"too long", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, 0, ErrOverflow},
		{"truncated", []byte{0x80}, 0, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewReader(tt.input).ReadU32()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReadSigned(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  int64
	}{
		{"zero", []byte{0x00}, 0},
		{"minus one", []byte{0x7f}, -1},
		{"minus 64", []byte{0x40}, -64},
		{"positive 64", []byte{0xc0, 0x00}, 64},
		{"min i32", []byte{0x80, 0x80, 0x80, 0x80, 0x78}, math.MinInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewReader(tt.input).ReadS64()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	v, err := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x78}).ReadS32()
	require.NoError(t, err)
	require.EqualValues(t, math.MinInt32, v)
}

func TestReadS33BlockType(t *testing.T) {
	v, err := NewReader([]byte{0x40}).ReadS33()
	require.NoError(t, err)
	require.EqualValues(t, -64, v)

	v, err = NewReader([]byte{0x03}).ReadS33()
	require.NoError(t, err)
	require.EqualValues(t, 3, v)
}

func TestSubReaderPositions(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x80})
	_, err := r.ReadByte()
	require.NoError(t, err)
	sub, err := r.Sub(3)
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())

	_, err = sub.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, 3, sub.Position())
	_, err = sub.ReadU32()
	require.Error(t, err, "truncated")
}

func TestReadName(t *testing.T) {
	name, err := NewReader([]byte{0x04, 'n', 'a', 'm', 'e'}).ReadName()
	require.NoError(t, err)
	require.Equal(t, "name", name)

	_, err = NewReader([]byte{0x01, 0xff}).ReadName()
	require.Error(t, err, "invalid UTF-8")
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, _ = r.ReadByte()
	err := r.WrapError("code", io.ErrUnexpectedEOF)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 1, pe.Position)
	require.Equal(t, "code", pe.Section)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
