package codec

import (
	"github.com/ledmington/x86emu/internal/bitbuffer"
	"github.com/ledmington/x86emu/internal/isa"
)

// modrm holds the decoded fields of a ModR/M byte plus whatever SIB and
// displacement bytes it pulled in, before the reg/rm fields are turned into
// isa operands.
type modrm struct {
	mod byte
	reg byte // extended by REX.R by the caller
	rm  byte // extended by REX.B by the caller
}

func readModRM(buf *bitbuffer.BitBuffer) (modrm, error) {
	b, err := buf.Read1()
	if err != nil {
		return modrm{}, err
	}
	return modrm{mod: b >> 6 & 3, reg: b >> 3 & 7, rm: b & 7}, nil
}

// decodeRM decodes the r/m operand of a ModR/M byte into either a register
// operand (mod == 3) or a memory operand, consuming any SIB and
// displacement bytes it implies. width is the operand's access width;
// ptrSize is what a disassembler would print in front of a memory operand
// of that width.
func decodeRM(buf *bitbuffer.BitBuffer, p isa.Prefixes, mm modrm, width isa.Width, ptrSize isa.PointerSize) (isa.Operand, error) {
	rm := mm.rm
	if p.REXB {
		rm |= 0x8
	}

	if mm.mod == 3 {
		return isa.RegOperand(isa.SelectGPR(rm, width, p.HasREX)), nil
	}

	if mm.rm == 4 {
		return decodeSIB(buf, p, mm, ptrSize)
	}

	if mm.mod == 0 && mm.rm == 5 {
		disp, err := buf.Read4Signed()
		if err != nil {
			return isa.Operand{}, err
		}
		mem, err := isa.NewIndirectOperand(ptrSize).WithRIPRelative(disp).Build()
		if err != nil {
			return isa.Operand{}, err
		}
		return isa.MemOperand(mem), nil
	}

	builder := isa.NewIndirectOperand(ptrSize).WithBase(isa.SelectGPR(rm, isa.W64, true))
	return finishMemOperand(buf, builder, mm.mod)
}

func decodeSIB(buf *bitbuffer.BitBuffer, p isa.Prefixes, mm modrm, ptrSize isa.PointerSize) (isa.Operand, error) {
	sib, err := buf.Read1()
	if err != nil {
		return isa.Operand{}, err
	}
	scale := byte(1) << (sib >> 6 & 3)
	index := sib >> 3 & 7
	base := sib & 7
	if p.REXX {
		index |= 0x8
	}
	if p.REXB {
		base |= 0x8
	}

	builder := isa.NewIndirectOperand(ptrSize)
	if index != 4 { // index == RSP encodes "no index"
		builder = builder.WithIndex(isa.SelectGPR(index, isa.W64, true), scale)
	}

	if mm.mod == 0 && (base&0x7) == 5 {
		disp, err := buf.Read4Signed()
		if err != nil {
			return isa.Operand{}, err
		}
		builder = builder.WithDisplacement(int64(disp), isa.W32)
		return finishBuiltOperand(builder)
	}

	builder = builder.WithBase(isa.SelectGPR(base, isa.W64, true))
	return finishMemOperand(buf, builder, mm.mod)
}

func finishMemOperand(buf *bitbuffer.BitBuffer, builder isa.IndirectOperandBuilder, mod byte) (isa.Operand, error) {
	switch mod {
	case 1:
		disp, err := buf.Read1Signed()
		if err != nil {
			return isa.Operand{}, err
		}
		builder = builder.WithDisplacement(int64(disp), isa.W8)
	case 2:
		disp, err := buf.Read4Signed()
		if err != nil {
			return isa.Operand{}, err
		}
		builder = builder.WithDisplacement(int64(disp), isa.W32)
	}
	return finishBuiltOperand(builder)
}

func finishBuiltOperand(builder isa.IndirectOperandBuilder) (isa.Operand, error) {
	mem, err := builder.Build()
	if err != nil {
		return isa.Operand{}, err
	}
	return isa.MemOperand(mem), nil
}

// regField returns the reg field of a ModR/M byte as a full 4-bit register
// index, extended by REX.R.
func regField(p isa.Prefixes, mm modrm) byte {
	reg := mm.reg
	if p.REXR {
		reg |= 0x8
	}
	return reg
}

func ptrSizeOf(w isa.Width) isa.PointerSize {
	switch w {
	case isa.W8:
		return isa.BytePtr
	case isa.W16:
		return isa.WordPtr
	case isa.W32:
		return isa.DwordPtr
	case isa.W64:
		return isa.QwordPtr
	}
	return isa.PtrNone
}
