package encoder

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// Buffer accumulates encoded bytes. The first length that does not fit a
// u32 is recorded and reported by Err.
type Buffer struct {
	err   error
	Bytes []byte
}

func (b *Buffer) Err() error {
	return b.err
}

func (b *Buffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Buffer) AppendByte(v byte) {
	b.Bytes = append(b.Bytes, v)
}

func (b *Buffer) WriteBytes(v []byte) {
	b.Bytes = append(b.Bytes, v...)
}

// WriteU32 writes unsigned LEB128.
func (b *Buffer) WriteU32(v uint32) {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.AppendByte(c)
		if v == 0 {
			return
		}
	}
}

// WriteS64 writes signed LEB128. i32 and s33 values use the same encoding
// once sign-extended.
func (b *Buffer) WriteS64(v int64) {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			b.AppendByte(c)
			return
		}
		b.AppendByte(c | 0x80)
	}
}

func (b *Buffer) WriteLen(n int) {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		b.fail(fmt.Errorf("length %d: %w", n, err))
	}
	b.WriteU32(v)
}

func (b *Buffer) WriteF32Bits(bits uint32) {
	b.Bytes = binary.LittleEndian.AppendUint32(b.Bytes, bits)
}

func (b *Buffer) WriteF64Bits(bits uint64) {
	b.Bytes = binary.LittleEndian.AppendUint64(b.Bytes, bits)
}

func (b *Buffer) WriteString(s string) {
	b.WriteLen(len(s))
	b.Bytes = append(b.Bytes, s...)
}

// WriteSection frames content as section id.
func (b *Buffer) WriteSection(id byte, content *Buffer) {
	if content.err != nil {
		b.fail(content.err)
	}
	b.AppendByte(id)
	b.WriteLen(len(content.Bytes))
	b.WriteBytes(content.Bytes)
}
