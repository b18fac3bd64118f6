// Package isa holds the data types shared by the codec and the CPU: the
// closed set of register names, the opcode enum, immediates, indirect
// (memory) operands and the Instruction type they compose into.
package isa

// Width tags the bit-width of a register, immediate or displacement.
type Width int

const (
	W8 Width = iota
	W16
	W32
	W64
)

// Bits returns the width in bits.
func (w Width) Bits() int {
	switch w {
	case W8:
		return 8
	case W16:
		return 16
	case W32:
		return 32
	case W64:
		return 64
	}
	return 0
}

func (w Width) String() string {
	switch w {
	case W8:
		return "8"
	case W16:
		return "16"
	case W32:
		return "32"
	case W64:
		return "64"
	}
	return "?"
}

// Register is a member of the closed set of named x86-64 registers: general
// purpose registers at every width, the instruction pointer, and the six
// segment registers. The zero value RegNone means "absent".
type Register uint8

const (
	RegNone Register = iota

	// 8-bit
	AL
	CL
	DL
	BL
	AH
	CH
	DH
	BH
	SPL
	BPL
	SIL
	DIL
	R8B
	R9B
	R10B
	R11B
	R12B
	R13B
	R14B
	R15B

	// 16-bit
	AX
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	R8W
	R9W
	R10W
	R11W
	R12W
	R13W
	R14W
	R15W

	// 32-bit
	EAX
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D
	EIP

	// 64-bit
	RAX
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RIP

	// Segment registers (16-bit, independent storage)
	CS
	DS
	ES
	FS
	GS
	SS
)

// regInfo describes how a Register maps onto RegisterFile storage: which of
// the 17 64-bit slots (0-15 = RAX..R15, 16 = RIP) it aliases, its width, and
// whether it is one of the legacy AH/CH/DH/BH high-byte views.
type regInfo struct {
	slot     int
	width    Width
	highByte bool
	name     string
}

var registerTable = map[Register]regInfo{
	RegNone: {-1, W8, false, ""},

	AL: {0, W8, false, "al"}, CL: {1, W8, false, "cl"}, DL: {2, W8, false, "dl"}, BL: {3, W8, false, "bl"},
	AH: {0, W8, true, "ah"}, CH: {1, W8, true, "ch"}, DH: {2, W8, true, "dh"}, BH: {3, W8, true, "bh"},
	SPL: {4, W8, false, "spl"}, BPL: {5, W8, false, "bpl"}, SIL: {6, W8, false, "sil"}, DIL: {7, W8, false, "dil"},
	R8B: {8, W8, false, "r8b"}, R9B: {9, W8, false, "r9b"}, R10B: {10, W8, false, "r10b"}, R11B: {11, W8, false, "r11b"},
	R12B: {12, W8, false, "r12b"}, R13B: {13, W8, false, "r13b"}, R14B: {14, W8, false, "r14b"}, R15B: {15, W8, false, "r15b"},

	AX: {0, W16, false, "ax"}, CX: {1, W16, false, "cx"}, DX: {2, W16, false, "dx"}, BX: {3, W16, false, "bx"},
	SP: {4, W16, false, "sp"}, BP: {5, W16, false, "bp"}, SI: {6, W16, false, "si"}, DI: {7, W16, false, "di"},
	R8W: {8, W16, false, "r8w"}, R9W: {9, W16, false, "r9w"}, R10W: {10, W16, false, "r10w"}, R11W: {11, W16, false, "r11w"},
	R12W: {12, W16, false, "r12w"}, R13W: {13, W16, false, "r13w"}, R14W: {14, W16, false, "r14w"}, R15W: {15, W16, false, "r15w"},

	EAX: {0, W32, false, "eax"}, ECX: {1, W32, false, "ecx"}, EDX: {2, W32, false, "edx"}, EBX: {3, W32, false, "ebx"},
	ESP: {4, W32, false, "esp"}, EBP: {5, W32, false, "ebp"}, ESI: {6, W32, false, "esi"}, EDI: {7, W32, false, "edi"},
	R8D: {8, W32, false, "r8d"}, R9D: {9, W32, false, "r9d"}, R10D: {10, W32, false, "r10d"}, R11D: {11, W32, false, "r11d"},
	R12D: {12, W32, false, "r12d"}, R13D: {13, W32, false, "r13d"}, R14D: {14, W32, false, "r14d"}, R15D: {15, W32, false, "r15d"},
	EIP: {16, W32, false, "eip"},

	RAX: {0, W64, false, "rax"}, RCX: {1, W64, false, "rcx"}, RDX: {2, W64, false, "rdx"}, RBX: {3, W64, false, "rbx"},
	RSP: {4, W64, false, "rsp"}, RBP: {5, W64, false, "rbp"}, RSI: {6, W64, false, "rsi"}, RDI: {7, W64, false, "rdi"},
	R8: {8, W64, false, "r8"}, R9: {9, W64, false, "r9"}, R10: {10, W64, false, "r10"}, R11: {11, W64, false, "r11"},
	R12: {12, W64, false, "r12"}, R13: {13, W64, false, "r13"}, R14: {14, W64, false, "r14"}, R15: {15, W64, false, "r15"},
	RIP: {16, W64, false, "rip"},

	CS: {0, W16, false, "cs"}, DS: {1, W16, false, "ds"}, ES: {2, W16, false, "es"},
	FS: {3, W16, false, "fs"}, GS: {4, W16, false, "gs"}, SS: {5, W16, false, "ss"},
}

// segmentSlot maps a segment Register to its independent storage slot.
var segmentSlot = map[Register]int{CS: 0, DS: 1, ES: 2, FS: 3, GS: 4, SS: 5}

// IsSegment reports whether r is one of CS/DS/ES/FS/GS/SS.
func (r Register) IsSegment() bool {
	_, ok := segmentSlot[r]
	return ok
}

// Width returns the bit-width of the register.
func (r Register) Width() Width {
	return registerTable[r].width
}

// Slot returns the aliasing slot (0-15 general purpose, 16 = RIP/EIP) for a
// non-segment register, or the independent segment slot for a segment
// register. IsSegment distinguishes which table applies.
func (r Register) Slot() int {
	if r.IsSegment() {
		return segmentSlot[r]
	}
	return registerTable[r].slot
}

// HighByte reports whether r is one of the legacy AH/CH/DH/BH high-byte
// views, which alias a different 8 bits of the parent register than the
// other 8-bit sub-registers.
func (r Register) HighByte() bool {
	return registerTable[r].highByte
}

// String returns the lowercase Intel-syntax register name.
func (r Register) String() string {
	return registerTable[r].name
}

// gpr8Legacy indexes AL/CL/DL/BL/AH/CH/DH/BH in ModR/M-field order, used when no
// REX prefix is present.
var gpr8Legacy = [8]Register{AL, CL, DL, BL, AH, CH, DH, BH}

// gpr8REX indexes AL..DIL/R8B..R15B in ModR/M-field order, used once a REX
// prefix (of any kind) is present: the high-byte registers become
// unaddressable and SPL/BPL/SIL/DIL take their slots instead.
var gpr8REX = [16]Register{AL, CL, DL, BL, SPL, BPL, SIL, DIL, R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B}

var gpr16 = [16]Register{AX, CX, DX, BX, SP, BP, SI, DI, R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W}
var gpr32 = [16]Register{EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D}
var gpr64 = [16]Register{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

// segRegsByIndex indexes ES/CS/SS/DS/FS/GS the way ModR/M.reg does in an
// MOV Sw instruction (Intel's canonical segment-register encoding order,
// which differs from this package's CS/DS/ES/FS/GS/SS declaration order).
var segRegsByIndex = [6]Register{ES, CS, SS, DS, FS, GS}

// SelectGPR returns the register named by a 4-bit index (3-bit ModR/M or
// opcode field plus a 1-bit REX extension) at the given width. hasREX
// controls 8-bit selection between the legacy AH/CH/DH/BH quartet and the
// SPL/BPL/SIL/DIL quartet, which become addressable only once any REX
// prefix is present.
func SelectGPR(index uint8, width Width, hasREX bool) Register {
	idx := index & 0xF
	switch width {
	case W8:
		if !hasREX && idx < 8 {
			return gpr8Legacy[idx]
		}
		return gpr8REX[idx]
	case W16:
		return gpr16[idx]
	case W32:
		return gpr32[idx]
	case W64:
		return gpr64[idx]
	}
	return RegNone
}

// SelectSegment returns the segment register named by a 3-bit ModR/M.reg
// field, in Intel's ES/CS/SS/DS/FS/GS encoding order.
func SelectSegment(index uint8) Register {
	if int(index) >= len(segRegsByIndex) {
		return RegNone
	}
	return segRegsByIndex[index]
}
