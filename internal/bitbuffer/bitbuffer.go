// Package bitbuffer implements a little-endian seekable byte cursor over an
// immutable slice, used by the instruction codec to pull bytes off the
// executable region of memory without caring where those bytes came from.
package bitbuffer

import "fmt"

// ErrOutOfBounds is returned whenever a read or seek would move the cursor
// past the end of the underlying slice.
var ErrOutOfBounds = fmt.Errorf("bitbuffer: out of bounds")

// ByteOrder selects how multi-byte reads are assembled.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// BitBuffer is a cursor over an immutable byte slice. The zero value is not
// usable; construct one with New.
type BitBuffer struct {
	data      []byte
	pos       uint64
	order     ByteOrder
	alignment uint64
}

// New creates a little-endian BitBuffer over data with alignment 1.
func New(data []byte) *BitBuffer {
	return &BitBuffer{data: data, order: LittleEndian, alignment: 1}
}

// SetByteOrder changes the endianness used by multi-byte reads.
func (b *BitBuffer) SetByteOrder(order ByteOrder) {
	b.order = order
}

// SetAlignment sets the alignment (>=1) that Align rounds the position up to.
func (b *BitBuffer) SetAlignment(alignment uint64) {
	if alignment == 0 {
		alignment = 1
	}
	b.alignment = alignment
}

// Len returns the number of bytes in the underlying slice.
func (b *BitBuffer) Len() uint64 {
	return uint64(len(b.data))
}

// Position returns the current cursor position.
func (b *BitBuffer) Position() uint64 {
	return b.pos
}

// SetPosition seeks to an absolute position. It does not validate p against
// the slice length; an out-of-bounds seek only fails on the next read.
func (b *BitBuffer) SetPosition(p uint64) {
	b.pos = p
}

// GoBack rewinds the cursor by n bytes. It fails if that would move the
// position before the start of the buffer.
func (b *BitBuffer) GoBack(n uint64) error {
	if n > b.pos {
		return ErrOutOfBounds
	}
	b.pos -= n
	return nil
}

// Align rounds the cursor position up to the next multiple of the configured
// alignment. A no-op when alignment is 1.
func (b *BitBuffer) Align() {
	if b.alignment <= 1 {
		return
	}
	rem := b.pos % b.alignment
	if rem != 0 {
		b.pos += b.alignment - rem
	}
}

// Remaining reports whether at least n bytes are available from the current
// position.
func (b *BitBuffer) Remaining(n uint64) bool {
	return b.pos+n <= uint64(len(b.data))
}

func (b *BitBuffer) checkRemaining(n uint64) error {
	if !b.Remaining(n) {
		return ErrOutOfBounds
	}
	return nil
}

// Read1 reads a single byte and advances the cursor by 1.
func (b *BitBuffer) Read1() (byte, error) {
	if err := b.checkRemaining(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// Read2 reads a 16-bit value respecting the configured byte order.
func (b *BitBuffer) Read2() (uint16, error) {
	if err := b.checkRemaining(2); err != nil {
		return 0, err
	}
	d := b.data[b.pos : b.pos+2]
	b.pos += 2
	if b.order == BigEndian {
		return uint16(d[0])<<8 | uint16(d[1]), nil
	}
	return uint16(d[0]) | uint16(d[1])<<8, nil
}

// Read4 reads a 32-bit value respecting the configured byte order.
func (b *BitBuffer) Read4() (uint32, error) {
	if err := b.checkRemaining(4); err != nil {
		return 0, err
	}
	d := b.data[b.pos : b.pos+4]
	b.pos += 4
	if b.order == BigEndian {
		return uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3]), nil
	}
	return uint32(d[0]) | uint32(d[1])<<8 | uint32(d[2])<<16 | uint32(d[3])<<24, nil
}

// Read4BE reads a 32-bit big-endian value regardless of the configured byte
// order. Exists for the ELF magic number, which reads as 0x7f454c46 in
// big-endian order whatever byte order the rest of the file uses.
func (b *BitBuffer) Read4BE() (uint32, error) {
	if err := b.checkRemaining(4); err != nil {
		return 0, err
	}
	d := b.data[b.pos : b.pos+4]
	b.pos += 4
	return uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3]), nil
}

// Read8 reads a 64-bit value respecting the configured byte order.
func (b *BitBuffer) Read8() (uint64, error) {
	if err := b.checkRemaining(8); err != nil {
		return 0, err
	}
	d := b.data[b.pos : b.pos+8]
	b.pos += 8
	if b.order == BigEndian {
		return uint64(d[0])<<56 | uint64(d[1])<<48 | uint64(d[2])<<40 | uint64(d[3])<<32 |
			uint64(d[4])<<24 | uint64(d[5])<<16 | uint64(d[6])<<8 | uint64(d[7]), nil
	}
	return uint64(d[0]) | uint64(d[1])<<8 | uint64(d[2])<<16 | uint64(d[3])<<24 |
		uint64(d[4])<<32 | uint64(d[5])<<40 | uint64(d[6])<<48 | uint64(d[7])<<56, nil
}

// Read1Signed reads a byte and sign-extends it to int8.
func (b *BitBuffer) Read1Signed() (int8, error) {
	v, err := b.Read1()
	return int8(v), err
}

// Read2Signed reads a 16-bit value and sign-extends it to int16.
func (b *BitBuffer) Read2Signed() (int16, error) {
	v, err := b.Read2()
	return int16(v), err
}

// Read4Signed reads a 32-bit value and sign-extends it to int32.
func (b *BitBuffer) Read4Signed() (int32, error) {
	v, err := b.Read4()
	return int32(v), err
}
