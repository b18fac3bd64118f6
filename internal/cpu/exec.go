package cpu

import (
	"fmt"

	"github.com/ledmington/x86emu/internal/isa"
)

func (c *Cpu) effectiveAddress(mem isa.IndirectOperand, nextRIP uint64) uint64 {
	if mem.RIPRelative {
		return nextRIP + uint64(mem.Disp)
	}
	var addr uint64
	if mem.HasBase {
		addr += c.regs.Get(mem.Base)
	}
	if mem.HasIndex {
		addr += c.regs.Get(mem.Index) * uint64(mem.Scale)
	}
	if mem.HasDisp {
		addr += uint64(mem.Disp)
	}
	return addr
}

func (c *Cpu) readMem(addr uint64, w isa.Width) (uint64, error) {
	switch w {
	case isa.W8:
		v, err := c.mem.ReadByte(addr)
		return uint64(v), err
	case isa.W16:
		v, err := c.mem.Read2(addr)
		return uint64(v), err
	case isa.W32:
		v, err := c.mem.Read4(addr)
		return uint64(v), err
	default:
		return c.mem.Read8(addr)
	}
}

func (c *Cpu) writeMem(addr uint64, w isa.Width, value uint64) error {
	switch w {
	case isa.W8:
		return c.mem.WriteByte(addr, byte(value))
	case isa.W16:
		return c.mem.Write2(addr, uint16(value))
	case isa.W32:
		return c.mem.Write4(addr, uint32(value))
	default:
		return c.mem.Write8(addr, value)
	}
}

// readOperand reads the current value of a register, immediate or memory
// operand. It never reads a Relative operand; callers needing a branch
// target use op.RelValue directly.
func (c *Cpu) readOperand(op isa.Operand, nextRIP uint64) (uint64, error) {
	switch op.Kind {
	case isa.OperandRegister:
		return c.regs.Get(op.Reg), nil
	case isa.OperandImmediate:
		return uint64(op.ImmValue), nil
	case isa.OperandMemory:
		addr := c.effectiveAddress(op.Mem, nextRIP)
		return c.readMem(addr, op.Mem.PointerSize.Width())
	}
	return 0, fmt.Errorf("cannot read operand of kind %v", op.Kind)
}

// writeOperand stores value into a register or memory destination,
// selecting the destination's own width (a register write goes through
// RegisterFile.Set, which already knows its register's width; a memory
// write uses the operand's pointer size).
func (c *Cpu) writeOperand(op isa.Operand, nextRIP uint64, value uint64) error {
	switch op.Kind {
	case isa.OperandRegister:
		c.regs.Set(op.Reg, value)
		return nil
	case isa.OperandMemory:
		addr := c.effectiveAddress(op.Mem, nextRIP)
		return c.writeMem(addr, op.Mem.PointerSize.Width(), value)
	}
	return fmt.Errorf("cannot write operand of kind %v", op.Kind)
}

func (c *Cpu) pushQword(value uint64) (*Event, error) {
	rsp := c.regs.Get64(isa.RSP)
	newRSP := rsp - 8
	if c.config.stackConfigured && newRSP < c.config.StackTop-c.config.StackSize {
		return &Event{Kind: StackOverflow}, nil
	}
	if err := c.writeMem(newRSP, isa.W64, value); err != nil {
		return illegalAccessEvent(newRSP, err), nil
	}
	c.regs.Set64(isa.RSP, newRSP)
	return nil, nil
}

func (c *Cpu) popQword() (uint64, *Event, error) {
	rsp := c.regs.Get64(isa.RSP)
	if c.config.stackConfigured && rsp == c.config.StackTop {
		return 0, &Event{Kind: StackUnderflow}, nil
	}
	v, err := c.readMem(rsp, isa.W64)
	if err != nil {
		return 0, illegalAccessEvent(rsp, err), nil
	}
	c.regs.Set64(isa.RSP, rsp+8)
	return v, nil, nil
}

// branchTarget resolves a CALL/JMP/Jcc operand to an absolute RIP: a
// Relative operand is added to nextRIP (the address of the instruction
// following this one, per the "use instruction_length, not a hard-coded
// constant" rule), otherwise the operand is read as an r/m value.
func (c *Cpu) branchTarget(op isa.Operand, nextRIP uint64) (uint64, error) {
	if op.Kind == isa.OperandRelative {
		return uint64(int64(nextRIP) + op.RelValue), nil
	}
	return c.readOperand(op, nextRIP)
}

// dispatch executes insn's semantic effect. nextRIP is the fetch address
// plus bytes_consumed, already written into RIP by the caller, and is what
// every non-branching opcode leaves in place.
func (c *Cpu) dispatch(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	if idx, ok := insn.Opcode.Condition(); ok {
		return c.dispatchConditional(insn, idx, nextRIP)
	}

	switch insn.Opcode {
	case isa.OpNOP:
		return nil, nil

	case isa.OpHLT:
		c.halted = true
		return &Event{Kind: Halted}, nil

	case isa.OpINT:
		return nil, nil

	case isa.OpMOV, isa.OpMOVABS:
		return c.execMove(insn, nextRIP)

	case isa.OpMOVSXD:
		return c.execMovsxd(insn, nextRIP)

	case isa.OpMOVZX:
		return c.execMove(insn, nextRIP)

	case isa.OpLEA:
		addr := c.effectiveAddress(insn.Operand2().Mem, nextRIP)
		if err := c.writeOperand(insn.Operand1(), nextRIP, addr); err != nil {
			return nil, err
		}
		return nil, nil

	case isa.OpADD, isa.OpSUB, isa.OpAND, isa.OpOR, isa.OpXOR:
		return c.execALU(insn, nextRIP)

	case isa.OpCMP:
		return c.execCompare(insn, nextRIP)

	case isa.OpTEST:
		return c.execTest(insn, nextRIP)

	case isa.OpINC, isa.OpDEC:
		return c.execIncDec(insn, nextRIP)

	case isa.OpPUSH:
		v, err := c.readOperand(insn.Operand1(), nextRIP)
		if err != nil {
			return nil, err
		}
		return c.pushQword(v)

	case isa.OpPOP:
		v, event, err := c.popQword()
		if event != nil || err != nil {
			return event, err
		}
		if err := c.writeOperand(insn.Operand1(), nextRIP, v); err != nil {
			return nil, err
		}
		return nil, nil

	case isa.OpCALL:
		target, err := c.branchTarget(insn.Operand1(), nextRIP)
		if err != nil {
			return nil, err
		}
		if event, err := c.pushQword(nextRIP); event != nil || err != nil {
			return event, err
		}
		c.regs.Set64(isa.RIP, target)
		return nil, nil

	case isa.OpRET:
		target, event, err := c.popQword()
		if event != nil || err != nil {
			return event, err
		}
		c.regs.Set64(isa.RIP, target)
		return nil, nil

	case isa.OpJMP:
		target, err := c.branchTarget(insn.Operand1(), nextRIP)
		if err != nil {
			return nil, err
		}
		c.regs.Set64(isa.RIP, target)
		return nil, nil
	}

	return nil, fmt.Errorf("cpu: no semantic handler for opcode %v", insn.Opcode)
}

func (c *Cpu) dispatchConditional(insn isa.Instruction, idx int, nextRIP uint64) (*Event, error) {
	taken := evalCondition(idx, c.regs)
	isJcc := insn.Opcode >= isa.OpJO && insn.Opcode <= isa.OpJG
	if isJcc {
		if !taken {
			return nil, nil
		}
		target, err := c.branchTarget(insn.Operand1(), nextRIP)
		if err != nil {
			return nil, err
		}
		c.regs.Set64(isa.RIP, target)
		return nil, nil
	}
	// CMOVcc
	if !taken {
		return nil, nil
	}
	v, err := c.readOperand(insn.Operand2(), nextRIP)
	if err != nil {
		return nil, err
	}
	if err := c.writeOperand(insn.Operand1(), nextRIP, v); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Cpu) execMove(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	v, err := c.readOperand(insn.Operand2(), nextRIP)
	if err != nil {
		return nil, err
	}
	if err := c.writeOperand(insn.Operand1(), nextRIP, v); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Cpu) execMovsxd(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	v, err := c.readOperand(insn.Operand2(), nextRIP)
	if err != nil {
		return nil, err
	}
	extended := uint64(int64(int32(uint32(v))))
	if err := c.writeOperand(insn.Operand1(), nextRIP, extended); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Cpu) aluOp(opcode isa.Opcode) (sub bool, isAnd bool, isOr bool, isXor bool) {
	switch opcode {
	case isa.OpSUB:
		return true, false, false, false
	case isa.OpAND:
		return false, true, false, false
	case isa.OpOR:
		return false, false, true, false
	case isa.OpXOR:
		return false, false, false, true
	default: // OpADD
		return false, false, false, false
	}
}

func (c *Cpu) execALU(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	dst, src := insn.Operand1(), insn.Operand2()
	a, err := c.readOperand(dst, nextRIP)
	if err != nil {
		return nil, err
	}
	b, err := c.readOperand(src, nextRIP)
	if err != nil {
		return nil, err
	}
	width := dst.Width()

	sub, isAnd, isOr, isXor := c.aluOp(insn.Opcode)
	var result uint64
	switch {
	case isAnd:
		result = c.regs.setFlagsLogic(a&b, width)
	case isOr:
		result = c.regs.setFlagsLogic(a|b, width)
	case isXor:
		result = c.regs.setFlagsLogic(a^b, width)
	default:
		result = c.regs.setFlagsArith(a, b, width, sub, true)
	}
	if err := c.writeOperand(dst, nextRIP, result); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Cpu) execCompare(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	a, err := c.readOperand(insn.Operand1(), nextRIP)
	if err != nil {
		return nil, err
	}
	b, err := c.readOperand(insn.Operand2(), nextRIP)
	if err != nil {
		return nil, err
	}
	c.regs.setFlagsArith(a, b, insn.Operand1().Width(), true, true)
	return nil, nil
}

func (c *Cpu) execTest(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	a, err := c.readOperand(insn.Operand1(), nextRIP)
	if err != nil {
		return nil, err
	}
	b, err := c.readOperand(insn.Operand2(), nextRIP)
	if err != nil {
		return nil, err
	}
	c.regs.setFlagsLogic(a&b, insn.Operand1().Width())
	return nil, nil
}

func (c *Cpu) execIncDec(insn isa.Instruction, nextRIP uint64) (*Event, error) {
	dst := insn.Operand1()
	a, err := c.readOperand(dst, nextRIP)
	if err != nil {
		return nil, err
	}
	sub := insn.Opcode == isa.OpDEC
	result := c.regs.setFlagsArith(a, 1, dst.Width(), sub, false)
	if err := c.writeOperand(dst, nextRIP, result); err != nil {
		return nil, err
	}
	return nil, nil
}
