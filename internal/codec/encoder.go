package codec

import (
	"encoding/binary"

	"github.com/ledmington/x86emu/internal/isa"
)

// Encode is the inverse of Decode: it renders an Instruction back into the
// byte sequence an x86-64 CPU would fetch. decode(encode(i)) == i holds for
// the instructions in testdata/corpus.txt, but not for every Instruction
// Decode can produce: displacement size is chosen from the value, so a
// displacement decoded wider than it needs comes back narrower (or absent
// when zero); a negative 8-bit immediate on AL from 80 /r or F6 /0 is
// re-encoded in the accumulator short form, which decodes it as unsigned;
// and a 32-bit PUSH from FF /6 with a register operand re-encodes as the
// 64-bit 50+r form.
func Encode(insn isa.Instruction) ([]byte, error) {
	enc := &encoding{}
	if err := enc.emit(insn); err != nil {
		return nil, err
	}
	return enc.bytes(), nil
}

// encoding accumulates prefix bytes, a REX byte, the opcode, and the
// ModR/M/SIB/displacement/immediate tail as they're produced, so REX can be
// patched in once every operand has reported whether it needs an
// extension bit.
type encoding struct {
	legacy []byte
	rex    byte
	hasRex bool
	tail   []byte
}

func (e *encoding) bytes() []byte {
	out := append([]byte{}, e.legacy...)
	if e.hasRex {
		out = append(out, e.rex)
	}
	out = append(out, e.tail...)
	return out
}

func (e *encoding) setREXW()      { e.hasRex, e.rex = true, e.rex|0x40|0x8 }
func (e *encoding) setREXR()      { e.hasRex, e.rex = true, e.rex|0x40|0x4 }
func (e *encoding) setREXX()      { e.hasRex, e.rex = true, e.rex|0x40|0x2 }
func (e *encoding) setREXB()      { e.hasRex, e.rex = true, e.rex|0x40|0x1 }
func (e *encoding) forceREX()     { e.hasRex, e.rex = true, e.rex|0x40 }
func (e *encoding) put(b ...byte) { e.tail = append(e.tail, b...) }

func (e *encoding) emit(insn isa.Instruction) error {
	if cond, ok := insn.Opcode.Condition(); ok {
		if insn.Opcode >= isa.OpJO && insn.Opcode <= isa.OpJG {
			return e.emitJcc(cond, insn.Operand1())
		}
		return e.emitCMOVcc(cond, insn.Operand1(), insn.Operand2())
	}

	switch insn.Opcode {
	case isa.OpADD, isa.OpOR, isa.OpAND, isa.OpSUB, isa.OpXOR, isa.OpCMP:
		return e.emitALU(insn.Opcode, insn.Operand1(), insn.Operand2())
	case isa.OpTEST:
		return e.emitTEST(insn.Operand1(), insn.Operand2())
	case isa.OpMOV:
		return e.emitMOV(insn.Operand1(), insn.Operand2())
	case isa.OpMOVABS:
		return e.emitMOVABS(insn.Operand1(), insn.Operand2())
	case isa.OpMOVSXD:
		return e.emitMOVSXD(insn.Operand1(), insn.Operand2())
	case isa.OpMOVZX:
		return e.emitMOVZX(insn.Operand1(), insn.Operand2())
	case isa.OpLEA:
		return e.emitLEA(insn.Operand1(), insn.Operand2())
	case isa.OpPUSH:
		return e.emitPUSH(insn.Operand1())
	case isa.OpPOP:
		return e.emitSimpleReg(0x58, insn.Operand1())
	case isa.OpCALL:
		return e.emitCallJmp(insn.Operand1(), 0xE8, 2)
	case isa.OpJMP:
		return e.emitJMP(insn.Operand1())
	case isa.OpRET:
		e.put(0xC3)
		return nil
	case isa.OpNOP:
		e.put(0x90)
		return nil
	case isa.OpHLT:
		e.put(0xF4)
		return nil
	case isa.OpINT:
		op1 := insn.Operand1()
		e.put(0xCD, byte(op1.ImmValue))
		return nil
	case isa.OpINC:
		return e.emitIncDec(insn.Operand1(), 0)
	case isa.OpDEC:
		return e.emitIncDec(insn.Operand1(), 1)
	}
	return &EncodeError{Reason: "opcode " + insn.Opcode.String() + " has no encoding"}
}

// regExt returns the low 3 bits of a register's selector and whether it
// requires a REX extension bit (slot >= 8). SPL/BPL/SIL/DIL additionally
// force a bare REX prefix even when ext is false, since decode only selects
// them instead of AH/CH/DH/BH once any REX byte is present.
func (e *encoding) regExt(r isa.Register) (low3 byte, ext bool) {
	if needsBareREX(r) {
		e.forceREX()
	}
	slot := r.Slot()
	return byte(slot) & 0x7, slot >= 8
}

func needsBareREX(r isa.Register) bool {
	switch r {
	case isa.SPL, isa.BPL, isa.SIL, isa.DIL:
		return true
	}
	return false
}

func (e *encoding) emitModRMOperand(mod byte, reg byte, op isa.Operand) error {
	switch op.Kind {
	case isa.OperandRegister:
		rmLow, ext := e.regExt(op.Reg)
		if ext {
			e.setREXB()
		}
		e.put(mod<<6 | reg<<3 | rmLow)
		return nil
	case isa.OperandMemory:
		return e.emitMemOperand(reg, op.Mem)
	}
	return &EncodeError{Reason: "operand is not encodable as r/m"}
}

func (e *encoding) emitMemOperand(reg byte, mem isa.IndirectOperand) error {
	if mem.RIPRelative {
		e.put(0<<6 | reg<<3 | 5)
		e.put(le32(int32(mem.Disp))...)
		return nil
	}

	needsSIB := mem.HasIndex
	var baseLow byte
	var baseExt bool
	if mem.HasBase {
		baseLow, baseExt = e.regExt(mem.Base)
		if baseLow == 4 {
			needsSIB = true
		}
	}

	if !mem.HasBase && !mem.HasIndex {
		e.put(0<<6|reg<<3|4, 0<<6|4<<3|5)
		e.put(le32(int32(mem.Disp))...)
		return nil
	}

	if needsSIB {
		return e.emitSIBOperand(reg, mem)
	}

	mod, dispBytes := dispMode(mem, baseLow == 5)
	if baseExt {
		e.setREXB()
	}
	e.put(mod<<6 | reg<<3 | baseLow)
	e.put(dispBytes...)
	return nil
}

func (e *encoding) emitSIBOperand(reg byte, mem isa.IndirectOperand) error {
	var baseLow byte = 5
	var baseExt bool
	hasBase := mem.HasBase
	if hasBase {
		baseLow, baseExt = e.regExt(mem.Base)
	}

	var indexLow byte = 4
	var indexExt bool
	if mem.HasIndex {
		indexLow, indexExt = e.regExt(mem.Index)
	}

	scaleBits, err := scaleToBits(mem.Scale)
	if err != nil {
		return err
	}

	mod, dispBytes := dispMode(mem, baseLow == 5 && hasBase)
	if !hasBase {
		mod, dispBytes = 0, le32(int32(mem.Disp))
	}

	if baseExt {
		e.setREXB()
	}
	if indexExt {
		e.setREXX()
	}

	e.put(mod<<6|reg<<3|4, scaleBits<<6|indexLow<<3|baseLow)
	e.put(dispBytes...)
	return nil
}

func scaleToBits(scale uint8) (byte, error) {
	switch scale {
	case 0, 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	}
	return 0, &EncodeError{Reason: "invalid SIB scale"}
}

// dispMode picks mod and the displacement bytes for a base+disp (no SIB, or
// SIB-with-base) encoding. rbpLike forces mod=1 disp8=0 when there would
// otherwise be no displacement, because mod=0 with that r/m or SIB-base
// encoding is reserved for RIP-relative/disp32-only addressing.
func dispMode(mem isa.IndirectOperand, rbpLike bool) (byte, []byte) {
	if !mem.HasDisp || mem.Disp == 0 {
		if rbpLike {
			return 1, []byte{0}
		}
		return 0, nil
	}
	if mem.Disp >= -128 && mem.Disp <= 127 {
		return 1, []byte{byte(int8(mem.Disp))}
	}
	return 2, le32(int32(mem.Disp))
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func le16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func widthPrefix(e *encoding, w isa.Width) {
	switch w {
	case isa.W64:
		e.setREXW()
	case isa.W16:
		e.legacy = append(e.legacy, 0x66)
	}
}

func (e *encoding) emitALU(op isa.Opcode, dst, src isa.Operand) error {
	base := map[isa.Opcode]byte{isa.OpADD: 0x00, isa.OpOR: 0x08, isa.OpAND: 0x20, isa.OpSUB: 0x28, isa.OpXOR: 0x30, isa.OpCMP: 0x38}[op]

	if dst.Kind == isa.OperandRegister && dst.Reg == isa.AL && src.Kind == isa.OperandImmediate {
		e.put(base+4, byte(src.ImmValue))
		return nil
	}
	if dst.Kind == isa.OperandRegister && isAccumulator(dst.Reg) && src.Kind == isa.OperandImmediate {
		widthPrefix(e, dst.Reg.Width())
		e.put(base + 5)
		e.put(immZBytes(dst.Reg.Width(), src.ImmValue)...)
		return nil
	}
	if src.Kind == isa.OperandImmediate {
		return e.emitALUImm(op, dst, src)
	}

	width := widthOf(dst, src)
	widthPrefix(e, width)
	if src.Kind == isa.OperandRegister || dst.Kind == isa.OperandMemory {
		regOp, rmOp := src, dst
		opcode := base + 1
		if width == isa.W8 {
			opcode = base
		}
		e.put(opcode)
		regLow, ext := e.regExt(regOp.Reg)
		if ext {
			e.setREXR()
		}
		return e.emitModRMOperand(3, regLow, rmOp)
	}
	opcode := base + 3
	if width == isa.W8 {
		opcode = base + 2
	}
	e.put(opcode)
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, src)
}

// emitModRMOperandGeneric emits reg,rm where rm may itself be a register
// (mod=3) or memory; it differs from emitModRMOperand only in not assuming
// mod=3 up front.
func (e *encoding) emitModRMOperandGeneric(reg byte, rm isa.Operand) error {
	if rm.Kind == isa.OperandRegister {
		return e.emitModRMOperand(3, reg, rm)
	}
	return e.emitMemOperand(reg, rm.Mem)
}

func (e *encoding) emitALUImm(op isa.Opcode, dst, src isa.Operand) error {
	regField := map[isa.Opcode]byte{isa.OpADD: 0, isa.OpOR: 1, isa.OpAND: 4, isa.OpSUB: 5, isa.OpXOR: 6, isa.OpCMP: 7}[op]
	width := dst.Width()
	widthPrefix(e, width)

	if width != isa.W8 && src.ImmValue >= -128 && src.ImmValue <= 127 {
		e.put(0x83)
		if err := e.emitModRMOperandGeneric(regField, dst); err != nil {
			return err
		}
		e.put(byte(int8(src.ImmValue)))
		return nil
	}
	if width == isa.W8 {
		e.put(0x80)
		if err := e.emitModRMOperandGeneric(regField, dst); err != nil {
			return err
		}
		e.put(byte(src.ImmValue))
		return nil
	}
	e.put(0x81)
	if err := e.emitModRMOperandGeneric(regField, dst); err != nil {
		return err
	}
	e.put(immZBytes(width, src.ImmValue)...)
	return nil
}

func (e *encoding) emitTEST(dst, src isa.Operand) error {
	width := dst.Width()
	if dst.Kind == isa.OperandRegister && dst.Reg == isa.AL && src.Kind == isa.OperandImmediate {
		e.put(0xA8, byte(src.ImmValue))
		return nil
	}
	if dst.Kind == isa.OperandRegister && isAccumulator(dst.Reg) && src.Kind == isa.OperandImmediate {
		widthPrefix(e, width)
		e.put(0xA9)
		e.put(immZBytes(width, src.ImmValue)...)
		return nil
	}
	if src.Kind == isa.OperandImmediate {
		widthPrefix(e, width)
		op := byte(0xF7)
		if width == isa.W8 {
			op = 0xF6
		}
		e.put(op)
		if err := e.emitModRMOperandGeneric(0, dst); err != nil {
			return err
		}
		if width == isa.W8 {
			e.put(byte(src.ImmValue))
		} else {
			e.put(immZBytes(width, src.ImmValue)...)
		}
		return nil
	}
	widthPrefix(e, width)
	opcode := byte(0x85)
	if width == isa.W8 {
		opcode = 0x84
	}
	e.put(opcode)
	regLow, ext := e.regExt(src.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, dst)
}

func (e *encoding) emitMOV(dst, src isa.Operand) error {
	if src.Kind == isa.OperandImmediate {
		width := dst.Width()
		if dst.Kind == isa.OperandRegister {
			widthPrefix(e, width)
			low, ext := e.regExt(dst.Reg)
			if ext {
				e.setREXB()
			}
			if width == isa.W8 {
				e.put(0xB0 + low)
				e.put(byte(src.ImmValue))
				return nil
			}
			e.put(0xB8 + low)
			e.put(immZBytes(width, src.ImmValue)...)
			return nil
		}
		widthPrefix(e, width)
		op := byte(0xC7)
		if width == isa.W8 {
			op = 0xC6
		}
		e.put(op)
		if err := e.emitModRMOperandGeneric(0, dst); err != nil {
			return err
		}
		if width == isa.W8 {
			e.put(byte(src.ImmValue))
		} else {
			e.put(immZBytes(width, src.ImmValue)...)
		}
		return nil
	}

	width := widthOf(dst, src)
	widthPrefix(e, width)
	if src.Kind == isa.OperandRegister && dst.Kind != isa.OperandRegister {
		opcode := byte(0x89)
		if width == isa.W8 {
			opcode = 0x88
		}
		e.put(opcode)
		regLow, ext := e.regExt(src.Reg)
		if ext {
			e.setREXR()
		}
		return e.emitModRMOperandGeneric(regLow, dst)
	}
	opcode := byte(0x8B)
	if width == isa.W8 {
		opcode = 0x8A
	}
	e.put(opcode)
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, src)
}

func (e *encoding) emitMOVABS(dst, src isa.Operand) error {
	e.setREXW()
	low, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXB()
	}
	e.put(0xB8 + low)
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(src.ImmValue))
	e.put(b...)
	return nil
}

func (e *encoding) emitMOVSXD(dst, src isa.Operand) error {
	widthPrefix(e, dst.Reg.Width())
	e.put(0x63)
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, src)
}

func (e *encoding) emitMOVZX(dst, src isa.Operand) error {
	widthPrefix(e, dst.Reg.Width())
	e.put(0x0F)
	if src.Width() == isa.W16 {
		e.put(0xB7)
	} else {
		e.put(0xB6)
	}
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, src)
}

func (e *encoding) emitLEA(dst, src isa.Operand) error {
	widthPrefix(e, dst.Reg.Width())
	e.put(0x8D)
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitMemOperand(regLow, src.Mem)
}

func (e *encoding) emitPUSH(op isa.Operand) error {
	switch op.Kind {
	case isa.OperandRegister:
		return e.emitSimpleReg(0x50, op)
	case isa.OperandImmediate:
		if op.ImmWidth == isa.W8 {
			e.put(0x6A, byte(int8(op.ImmValue)))
			return nil
		}
		e.put(0x68)
		e.put(le32(int32(op.ImmValue))...)
		return nil
	case isa.OperandMemory:
		e.put(0xFF)
		return e.emitMemOperand(6, op.Mem)
	}
	return &EncodeError{Reason: "push operand not encodable"}
}

func (e *encoding) emitSimpleReg(base byte, op isa.Operand) error {
	low, ext := e.regExt(op.Reg)
	if ext {
		e.setREXB()
	}
	e.put(base + low)
	return nil
}

func (e *encoding) emitIncDec(op isa.Operand, regField byte) error {
	width := op.Width()
	opcode := byte(0xFF)
	if width == isa.W8 {
		opcode = 0xFE
	}
	widthPrefix(e, width)
	e.put(opcode)
	return e.emitModRMOperandGeneric(regField, op)
}

func (e *encoding) emitCallJmp(op isa.Operand, relOpcode byte, width isa.Width) error {
	if op.Kind == isa.OperandRelative {
		e.put(relOpcode)
		e.put(le32(int32(op.RelValue))...)
		return nil
	}
	e.put(0xFF)
	regField := byte(2)
	if relOpcode == 0xE9 {
		regField = 4
	}
	return e.emitModRMOperandGeneric(regField, op)
}

func (e *encoding) emitJMP(op isa.Operand) error {
	if op.Kind == isa.OperandRelative && op.RelWidth == isa.W8 {
		e.put(0xEB, byte(int8(op.RelValue)))
		return nil
	}
	return e.emitCallJmp(op, 0xE9, isa.W32)
}

func (e *encoding) emitJcc(cond int, op isa.Operand) error {
	if op.RelWidth == isa.W8 {
		e.put(0x70+byte(cond), byte(int8(op.RelValue)))
		return nil
	}
	e.put(0x0F, 0x80+byte(cond))
	e.put(le32(int32(op.RelValue))...)
	return nil
}

func (e *encoding) emitCMOVcc(cond int, dst, src isa.Operand) error {
	widthPrefix(e, dst.Reg.Width())
	e.put(0x0F, 0x40+byte(cond))
	regLow, ext := e.regExt(dst.Reg)
	if ext {
		e.setREXR()
	}
	return e.emitModRMOperandGeneric(regLow, src)
}

func isAccumulator(r isa.Register) bool {
	switch r {
	case isa.AX, isa.EAX, isa.RAX:
		return true
	}
	return false
}

func widthOf(a, b isa.Operand) isa.Width {
	if a.Kind == isa.OperandRegister {
		return a.Reg.Width()
	}
	if b.Kind == isa.OperandRegister {
		return b.Reg.Width()
	}
	return a.Mem.PointerSize.Width()
}

func immZBytes(w isa.Width, v int64) []byte {
	if w == isa.W16 {
		return le16(int16(v))
	}
	return le32(int32(v))
}
