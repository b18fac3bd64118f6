package cpu

import "github.com/ledmington/x86emu/internal/isa"

// RegisterFile holds the 17 aliased general-purpose/RIP slots, the six
// independent segment slots, and the RFLAGS word. Accessors are
// width-suffixed the way the opcode dispatch table is, so a caller that
// already knows an operand's isa.Width never needs a type switch to read or
// write it.
type RegisterFile struct {
	slots [17]uint64
	segs  [6]uint16
	flags uint32
}

// NewRegisterFile returns a register file with every register zeroed and
// only the default reserved RFLAGS bit set.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{flags: reservedFlags}
}

func (f *RegisterFile) Get8(r isa.Register) uint8 {
	v := f.slots[r.Slot()]
	if r.HighByte() {
		return uint8(v >> 8)
	}
	return uint8(v)
}

func (f *RegisterFile) Get16(r isa.Register) uint16 {
	return uint16(f.slots[r.Slot()])
}

func (f *RegisterFile) Get32(r isa.Register) uint32 {
	return uint32(f.slots[r.Slot()])
}

func (f *RegisterFile) Get64(r isa.Register) uint64 {
	return f.slots[r.Slot()]
}

func (f *RegisterFile) GetSeg(r isa.Register) uint16 {
	return f.segs[r.Slot()]
}

// Get reads r at its own declared width, returning the value zero-extended
// into a uint64. Callers that already branch on isa.Width should prefer the
// width-specific accessor instead.
func (f *RegisterFile) Get(r isa.Register) uint64 {
	if r.IsSegment() {
		return uint64(f.GetSeg(r))
	}
	switch r.Width() {
	case isa.W8:
		return uint64(f.Get8(r))
	case isa.W16:
		return uint64(f.Get16(r))
	case isa.W32:
		return uint64(f.Get32(r))
	default:
		return f.Get64(r)
	}
}

// Set8 writes the low (or, for AH/CH/DH/BH, second) byte of r's slot,
// leaving every other bit of the slot untouched.
func (f *RegisterFile) Set8(r isa.Register, v uint8) {
	slot := r.Slot()
	if r.HighByte() {
		f.slots[slot] = f.slots[slot]&^0xFF00 | uint64(v)<<8
		return
	}
	f.slots[slot] = f.slots[slot]&^0xFF | uint64(v)
}

// Set16 writes the low 16 bits of r's slot, preserving the rest.
func (f *RegisterFile) Set16(r isa.Register, v uint16) {
	slot := r.Slot()
	f.slots[slot] = f.slots[slot]&^0xFFFF | uint64(v)
}

// Set32 writes the low 32 bits of r's slot and zero-extends, clearing the
// upper 32 bits of the enclosing 64-bit register per the x86-64 rule.
func (f *RegisterFile) Set32(r isa.Register, v uint32) {
	f.slots[r.Slot()] = uint64(v)
}

func (f *RegisterFile) Set64(r isa.Register, v uint64) {
	f.slots[r.Slot()] = v
}

func (f *RegisterFile) SetSeg(r isa.Register, v uint16) {
	f.segs[r.Slot()] = v
}

// Set writes v into r at r's own declared width, applying the same
// zero-extension / preserve-upper-bits rule the width-specific setters do.
func (f *RegisterFile) Set(r isa.Register, v uint64) {
	if r.IsSegment() {
		f.SetSeg(r, uint16(v))
		return
	}
	switch r.Width() {
	case isa.W8:
		f.Set8(r, uint8(v))
	case isa.W16:
		f.Set16(r, uint16(v))
	case isa.W32:
		f.Set32(r, uint32(v))
	default:
		f.Set64(r, v)
	}
}

func (f *RegisterFile) IsSet(flag Flag) bool {
	return f.flags&uint32(flag) != 0
}

func (f *RegisterFile) SetFlag(flag Flag, v bool) {
	if v {
		f.flags |= uint32(flag)
	} else {
		f.flags &^= uint32(flag)
	}
}

// ResetFlags clears RFLAGS back to its default reserved-bit-only value.
func (f *RegisterFile) ResetFlags() {
	f.flags = reservedFlags
}

// Equal compares every register slot, segment slot and flag bit.
func (f *RegisterFile) Equal(other *RegisterFile) bool {
	if f.flags != other.flags || f.segs != other.segs {
		return false
	}
	return f.slots == other.slots
}

// Clone deep-copies the register file.
func (f *RegisterFile) Clone() *RegisterFile {
	clone := *f
	return &clone
}
