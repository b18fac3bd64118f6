// Package codec implements the pure decode_one/encode_one pair that turns
// raw bytes into isa.Instruction values and back, plus an Intel-syntax
// pretty-printer. Decode and Encode never touch memory or CPU state; the
// CPU package is the only thing that interprets what they produce.
package codec

import (
	"github.com/ledmington/x86emu/internal/bitbuffer"
	"github.com/ledmington/x86emu/internal/isa"
)

// aluFamily describes one of the eight classic 8086 ALU opcode groups
// (ADD/OR/ADC/SBB/AND/SUB/XOR/CMP), which all share the same six-opcode
// layout: Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev / AL,Ib / eAX,Iz.
type aluFamily struct {
	base byte // opcode of the "Eb, Gb" form
	op   isa.Opcode
}

var aluFamilies = []aluFamily{
	{0x00, isa.OpADD},
	{0x08, isa.OpOR},
	{0x20, isa.OpAND},
	{0x28, isa.OpSUB},
	{0x30, isa.OpXOR},
	{0x38, isa.OpCMP},
}

func aluFamilyFor(opcodeByte byte) (aluFamily, bool) {
	base := opcodeByte &^ 0x07
	for _, f := range aluFamilies {
		if f.base == base {
			return f, true
		}
	}
	return aluFamily{}, false
}

// Decode decodes a single instruction starting at buf's current position.
// It returns the decoded instruction and the number of bytes consumed. buf
// is left positioned just past the instruction on success, and is rewound
// to its starting position on error.
func Decode(buf *bitbuffer.BitBuffer) (isa.Instruction, int, error) {
	start := buf.Position()
	insn, err := decodeOne(buf)
	if err != nil {
		buf.SetPosition(start)
		return isa.Instruction{}, 0, err
	}
	return insn, int(buf.Position() - start), nil
}

func decodeOne(buf *bitbuffer.BitBuffer) (isa.Instruction, error) {
	var p isa.Prefixes

legacyPrefixes:
	for {
		b, err := buf.Read1()
		if err != nil {
			return isa.Instruction{}, err
		}
		switch b {
		case 0xF0:
			p.Lock = true
		case 0xF2:
			p.RepNE = true
		case 0xF3:
			p.Rep = true
		case 0x2E:
			p.Segment = isa.SegCS
		case 0x36:
			p.Segment = isa.SegSS
		case 0x3E:
			p.Segment = isa.SegDS
		case 0x26:
			p.Segment = isa.SegES
		case 0x64:
			p.Segment = isa.SegFS
		case 0x65:
			p.Segment = isa.SegGS
		case 0x66:
			p.OpSize = true
		case 0x67:
			p.AddrSize = true
		default:
			if err := buf.GoBack(1); err != nil {
				return isa.Instruction{}, err
			}
			break legacyPrefixes
		}
	}

	if b, err := buf.Read1(); err != nil {
		return isa.Instruction{}, err
	} else if b&0xF0 == 0x40 {
		p.HasREX = true
		p.REXW = b&0x8 != 0
		p.REXR = b&0x4 != 0
		p.REXX = b&0x2 != 0
		p.REXB = b&0x1 != 0
	} else if err := buf.GoBack(1); err != nil {
		return isa.Instruction{}, err
	}

	opcodeByte, err := buf.Read1()
	if err != nil {
		return isa.Instruction{}, err
	}

	if opcodeByte == 0x0F {
		ext, err := buf.Read1()
		if err != nil {
			return isa.Instruction{}, err
		}
		return decodeTwoByte(buf, p, ext)
	}

	return decodeOneByte(buf, p, opcodeByte)
}

// operandWidth returns the default integer operand width given REX.W and
// the 0x66 operand-size override.
func operandWidth(p isa.Prefixes) isa.Width {
	switch {
	case p.REXW:
		return isa.W64
	case p.OpSize:
		return isa.W16
	default:
		return isa.W32
	}
}

func decodeOneByte(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	if fam, ok := aluFamilyFor(op); ok {
		return decodeALU(buf, p, fam, op)
	}

	switch {
	case op == 0x84 || op == 0x85:
		return decodeTEST(buf, p, op)
	case op == 0xA8 || op == 0xA9:
		return decodeTESTAcc(buf, p, op)
	case op >= 0x88 && op <= 0x8B:
		return decodeMOV(buf, p, op)
	case op == 0x8D:
		return decodeLEA(buf, p)
	case op >= 0xB0 && op <= 0xB7:
		return decodeMOVImm8(buf, p, op)
	case op >= 0xB8 && op <= 0xBF:
		return decodeMOVImmFull(buf, p, op)
	case op >= 0x50 && op <= 0x57:
		return simpleReg64(isa.OpPUSH, p, op-0x50), nil
	case op >= 0x58 && op <= 0x5F:
		return simpleReg64(isa.OpPOP, p, op-0x58), nil
	case op == 0x68:
		return decodePushImm(buf, isa.W32)
	case op == 0x6A:
		return decodePushImm(buf, isa.W8)
	case op == 0x63:
		return decodeMOVSXD(buf, p)
	case op == 0xE8:
		return decodeRel(buf, isa.OpCALL, isa.W32)
	case op == 0xC3:
		return isa.Instruction{Opcode: isa.OpRET}, nil
	case op == 0xE9:
		return decodeRel(buf, isa.OpJMP, isa.W32)
	case op == 0xEB:
		return decodeRel(buf, isa.OpJMP, isa.W8)
	case op >= 0x70 && op <= 0x7F:
		return decodeRel(buf, isa.JccFromCondition(int(op-0x70)), isa.W8)
	case op == 0x90:
		return isa.Instruction{Opcode: isa.OpNOP}, nil
	case op == 0xF4:
		return isa.Instruction{Opcode: isa.OpHLT}, nil
	case op == 0xCC:
		return isa.Instruction{Opcode: isa.OpINT}.WithOperands(isa.ImmOperand(3, isa.W8)), nil
	case op == 0xCD:
		return decodeINT(buf)
	case op == 0xFE:
		return decodeIncDecGroup(buf, p, isa.W8)
	case op == 0xFF:
		return decodeGroupFF(buf, p)
	case op == 0x80:
		return decodeALUImm(buf, p, isa.W8, immI8)
	case op == 0x81:
		return decodeALUImm(buf, p, operandWidth(p), immIz)
	case op == 0x83:
		return decodeALUImm(buf, p, operandWidth(p), immI8)
	case op == 0xF6:
		return decodeTESTImm(buf, p, isa.W8)
	case op == 0xF7:
		return decodeTESTImm(buf, p, operandWidth(p))
	}

	return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{op}}
}

func decodeTwoByte(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	switch {
	case op >= 0x80 && op <= 0x8F:
		return decodeRel(buf, isa.JccFromCondition(int(op-0x80)), isa.W32)
	case op >= 0x40 && op <= 0x4F:
		return decodeCMOV(buf, p, op)
	case op == 0xB6 || op == 0xB7:
		return decodeMOVZX(buf, p, op)
	}
	return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{0x0F, op}}
}

func decodeALU(buf *bitbuffer.BitBuffer, p isa.Prefixes, fam aluFamily, op byte) (isa.Instruction, error) {
	form := op - fam.base
	switch form {
	case 0, 1, 2, 3: // Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev
		width := isa.W32
		if form == 0 || form == 2 {
			width = isa.W8
		} else {
			width = operandWidth(p)
		}
		mm, err := readModRM(buf)
		if err != nil {
			return isa.Instruction{}, err
		}
		rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
		if err != nil {
			return isa.Instruction{}, err
		}
		reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), width, p.HasREX))
		if form == 0 || form == 1 {
			return isa.Instruction{Opcode: fam.op}.WithOperands(rm, reg), nil
		}
		return isa.Instruction{Opcode: fam.op}.WithOperands(reg, rm), nil
	case 4: // AL, Ib
		imm, err := buf.Read1()
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Opcode: fam.op}.WithOperands(isa.RegOperand(isa.AL), isa.ImmOperand(int64(imm), isa.W8)), nil
	case 5: // eAX, Iz
		width := operandWidth(p)
		imm, err := readImmZ(buf, width)
		if err != nil {
			return isa.Instruction{}, err
		}
		acc := isa.SelectGPR(0, width, false)
		return isa.Instruction{Opcode: fam.op}.WithOperands(isa.RegOperand(acc), isa.ImmOperand(imm, width)), nil
	}
	return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{op}}
}

func decodeTEST(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	width := isa.W32
	if op == 0x84 {
		width = isa.W8
	} else {
		width = operandWidth(p)
	}
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), width, p.HasREX))
	return isa.Instruction{Opcode: isa.OpTEST}.WithOperands(rm, reg), nil
}

func decodeTESTAcc(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	if op == 0xA8 {
		imm, err := buf.Read1()
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Opcode: isa.OpTEST}.WithOperands(isa.RegOperand(isa.AL), isa.ImmOperand(int64(imm), isa.W8)), nil
	}
	width := operandWidth(p)
	imm, err := readImmZ(buf, width)
	if err != nil {
		return isa.Instruction{}, err
	}
	acc := isa.SelectGPR(0, width, false)
	return isa.Instruction{Opcode: isa.OpTEST}.WithOperands(isa.RegOperand(acc), isa.ImmOperand(imm, width)), nil
}

func decodeMOV(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	width := isa.W32
	toReg := false
	switch op {
	case 0x88:
		width = isa.W8
	case 0x89:
		width = operandWidth(p)
	case 0x8A:
		width, toReg = isa.W8, true
	case 0x8B:
		width, toReg = operandWidth(p), true
	}
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), width, p.HasREX))
	if toReg {
		return isa.Instruction{Opcode: isa.OpMOV}.WithOperands(reg, rm), nil
	}
	return isa.Instruction{Opcode: isa.OpMOV}.WithOperands(rm, reg), nil
}

func decodeLEA(buf *bitbuffer.BitBuffer, p isa.Prefixes) (isa.Instruction, error) {
	width := operandWidth(p)
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	if mm.mod == 3 {
		return isa.Instruction{}, &ReservedOpcodeError{Bytes: []byte{0x8D}}
	}
	mem, err := decodeRM(buf, p, mm, width, isa.PtrNone)
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), width, p.HasREX))
	return isa.Instruction{Opcode: isa.OpLEA}.WithOperands(reg, mem), nil
}

func decodeMOVImm8(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	idx := op - 0xB0
	if p.REXB {
		idx |= 0x8
	}
	imm, err := buf.Read1()
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.SelectGPR(idx, isa.W8, p.HasREX)
	return isa.Instruction{Opcode: isa.OpMOV}.WithOperands(isa.RegOperand(reg), isa.ImmOperand(int64(imm), isa.W8)), nil
}

func decodeMOVImmFull(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	idx := op - 0xB8
	if p.REXB {
		idx |= 0x8
	}
	width := operandWidth(p)
	reg := isa.SelectGPR(idx, width, p.HasREX)

	if width == isa.W64 {
		imm, err := buf.Read8()
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Opcode: isa.OpMOVABS}.WithOperands(isa.RegOperand(reg), isa.ImmOperand(int64(imm), isa.W64)), nil
	}
	imm, err := readImmZ(buf, width)
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: isa.OpMOV}.WithOperands(isa.RegOperand(reg), isa.ImmOperand(imm, width)), nil
}

func decodeMOVSXD(buf *bitbuffer.BitBuffer, p isa.Prefixes) (isa.Instruction, error) {
	destWidth := operandWidth(p)
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	src, err := decodeRM(buf, p, mm, isa.W32, isa.DwordPtr)
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), destWidth, p.HasREX))
	return isa.Instruction{Opcode: isa.OpMOVSXD}.WithOperands(reg, src), nil
}

func decodeMOVZX(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	srcWidth := isa.W8
	if op == 0xB7 {
		srcWidth = isa.W16
	}
	destWidth := operandWidth(p)
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	src, err := decodeRM(buf, p, mm, srcWidth, ptrSizeOf(srcWidth))
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), destWidth, p.HasREX))
	return isa.Instruction{Opcode: isa.OpMOVZX}.WithOperands(reg, src), nil
}

func decodeCMOV(buf *bitbuffer.BitBuffer, p isa.Prefixes, op byte) (isa.Instruction, error) {
	width := operandWidth(p)
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	src, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	reg := isa.RegOperand(isa.SelectGPR(regField(p, mm), width, p.HasREX))
	opcode := isa.CMOVFromCondition(int(op - 0x40))
	return isa.Instruction{Opcode: opcode}.WithOperands(reg, src), nil
}

func decodeIncDecGroup(buf *bitbuffer.BitBuffer, p isa.Prefixes, width isa.Width) (isa.Instruction, error) {
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	switch mm.reg {
	case 0:
		return isa.Instruction{Opcode: isa.OpINC}.WithOperands(rm), nil
	case 1:
		return isa.Instruction{Opcode: isa.OpDEC}.WithOperands(rm), nil
	}
	return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{0xFE, mm.reg}}
}

// decodeGroupFF decodes the 0xFF opcode group: INC/DEC/CALL/JMP/PUSH on a
// 32- or 64-bit operand, selected by ModR/M.reg.
func decodeGroupFF(buf *bitbuffer.BitBuffer, p isa.Prefixes) (isa.Instruction, error) {
	width := operandWidth(p)
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	switch mm.reg {
	case 0:
		return isa.Instruction{Opcode: isa.OpINC}.WithOperands(rm), nil
	case 1:
		return isa.Instruction{Opcode: isa.OpDEC}.WithOperands(rm), nil
	case 2:
		return isa.Instruction{Opcode: isa.OpCALL}.WithOperands(rm), nil
	case 4:
		return isa.Instruction{Opcode: isa.OpJMP}.WithOperands(rm), nil
	case 6:
		return isa.Instruction{Opcode: isa.OpPUSH}.WithOperands(rm), nil
	}
	return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{0xFF, mm.reg}}
}

// immKind distinguishes how an immediate in an ALU-immediate group is sized
// and sign-extended relative to the operation's width.
type immKind int

const (
	immI8 immKind = iota // always one byte, sign-extended to the operand width
	immIz                // Intel's Iz: 16 bits if operand width is 16, else 32
)

// groupOpByReg maps a Grp1 ModR/M.reg field to its ALU opcode. ADC and SBB
// (reg 2 and 3) are outside this decoder's supported opcode set.
var groupOpByReg = [8]isa.Opcode{
	0: isa.OpADD, 1: isa.OpOR, 2: isa.OpInvalid, 3: isa.OpInvalid,
	4: isa.OpAND, 5: isa.OpSUB, 6: isa.OpXOR, 7: isa.OpCMP,
}

func decodeALUImm(buf *bitbuffer.BitBuffer, p isa.Prefixes, width isa.Width, kind immKind) (isa.Instruction, error) {
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	op := groupOpByReg[mm.reg]
	if op == isa.OpInvalid {
		return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{0x80, mm.reg}}
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	imm, err := readGroupImm(buf, width, kind)
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: op}.WithOperands(rm, isa.ImmOperand(imm, width)), nil
}

func decodeTESTImm(buf *bitbuffer.BitBuffer, p isa.Prefixes, width isa.Width) (isa.Instruction, error) {
	mm, err := readModRM(buf)
	if err != nil {
		return isa.Instruction{}, err
	}
	if mm.reg != 0 && mm.reg != 1 {
		return isa.Instruction{}, &UnknownOpcodeError{Bytes: []byte{0xF7, mm.reg}}
	}
	rm, err := decodeRM(buf, p, mm, width, ptrSizeOf(width))
	if err != nil {
		return isa.Instruction{}, err
	}
	kind := immI8
	if width != isa.W8 {
		kind = immIz
	}
	imm, err := readGroupImm(buf, width, kind)
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: isa.OpTEST}.WithOperands(rm, isa.ImmOperand(imm, width)), nil
}

func readGroupImm(buf *bitbuffer.BitBuffer, width isa.Width, kind immKind) (int64, error) {
	if kind == immI8 {
		v, err := buf.Read1Signed()
		return int64(v), err
	}
	if width == isa.W8 {
		v, err := buf.Read1Signed()
		return int64(v), err
	}
	return readImmZ(buf, width)
}

func decodeINT(buf *bitbuffer.BitBuffer) (isa.Instruction, error) {
	imm, err := buf.Read1()
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: isa.OpINT}.WithOperands(isa.ImmOperand(int64(imm), isa.W8)), nil
}

func decodePushImm(buf *bitbuffer.BitBuffer, width isa.Width) (isa.Instruction, error) {
	if width == isa.W8 {
		imm, err := buf.Read1Signed()
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Opcode: isa.OpPUSH}.WithOperands(isa.ImmOperand(int64(imm), isa.W8)), nil
	}
	imm, err := buf.Read4Signed()
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: isa.OpPUSH}.WithOperands(isa.ImmOperand(int64(imm), isa.W32)), nil
}

func decodeRel(buf *bitbuffer.BitBuffer, op isa.Opcode, width isa.Width) (isa.Instruction, error) {
	if width == isa.W8 {
		rel, err := buf.Read1Signed()
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Opcode: op}.WithOperands(isa.RelOperand(int64(rel), isa.W8)), nil
	}
	rel, err := buf.Read4Signed()
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.Instruction{Opcode: op}.WithOperands(isa.RelOperand(int64(rel), isa.W32)), nil
}

// simpleReg64 builds a one-operand instruction (PUSH/POP) on a GPR named by
// a 3-bit opcode-embedded index, extended by REX.B. PUSH/POP always operate
// on a 64-bit register in long mode regardless of REX.W.
func simpleReg64(op isa.Opcode, p isa.Prefixes, idx byte) isa.Instruction {
	if p.REXB {
		idx |= 0x8
	}
	reg := isa.SelectGPR(idx, isa.W64, true)
	return isa.Instruction{Opcode: op}.WithOperands(isa.RegOperand(reg))
}

// readImmZ reads an immediate of Intel's "Iz" size: 16 bits if width is
// W16, otherwise always 32 bits (even for 64-bit destinations, which then
// sign-extend it).
func readImmZ(buf *bitbuffer.BitBuffer, width isa.Width) (int64, error) {
	if width == isa.W16 {
		v, err := buf.Read2Signed()
		return int64(v), err
	}
	v, err := buf.Read4Signed()
	return int64(v), err
}
