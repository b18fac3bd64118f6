package codec

import (
	"fmt"
	"strings"

	"github.com/ledmington/x86emu/internal/isa"
)

// ToIntelSyntax renders insn in a disassembler-corpus-style format:
// lowercase mnemonic, one space after the mnemonic, a single comma between
// operands, and relative branch targets printed as the absolute address
// they'd disassemble to at addr (addr is the address of insn's first byte,
// not the address of the following instruction — matching the corpus's
// printed style rather than the address ExecuteOne would actually jump to).
func ToIntelSyntax(insn isa.Instruction, addr uint64) string {
	var ops []string
	for i := 0; i < insn.OperandCount; i++ {
		ops = append(ops, formatOperand(insn.Operands[i], addr))
	}
	if len(ops) == 0 {
		return insn.Opcode.String()
	}
	return insn.Opcode.String() + " " + strings.Join(ops, ",")
}

func formatOperand(op isa.Operand, addr uint64) string {
	switch op.Kind {
	case isa.OperandRegister:
		return op.Reg.String()
	case isa.OperandImmediate:
		return hexSigned(op.ImmValue)
	case isa.OperandMemory:
		return formatMemory(op.Mem)
	case isa.OperandRelative:
		target := addr + uint64(op.RelValue)
		return hexUnsigned(target)
	}
	return "?"
}

func formatMemory(m isa.IndirectOperand) string {
	var sb strings.Builder
	if m.PointerSize != isa.PtrNone {
		sb.WriteString(m.PointerSize.String())
		sb.WriteString(" ")
	}
	sb.WriteString("[")
	if m.RIPRelative {
		sb.WriteString("rip")
		writeDisp(&sb, m.Disp, true)
		sb.WriteString("]")
		return sb.String()
	}

	wrote := false
	if m.HasBase {
		sb.WriteString(m.Base.String())
		wrote = true
	}
	if m.HasIndex {
		if wrote {
			sb.WriteString("+")
		}
		fmt.Fprintf(&sb, "%s*%d", m.Index.String(), m.Scale)
		wrote = true
	}
	writeDisp(&sb, m.Disp, wrote)
	sb.WriteString("]")
	return sb.String()
}

func writeDisp(sb *strings.Builder, disp int64, afterOperand bool) {
	if disp == 0 && afterOperand {
		return
	}
	if disp < 0 {
		fmt.Fprintf(sb, "-0x%x", -disp)
		return
	}
	if afterOperand {
		fmt.Fprintf(sb, "+0x%x", disp)
		return
	}
	fmt.Fprintf(sb, "0x%x", disp)
}

func hexSigned(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", -v)
	}
	return fmt.Sprintf("0x%x", v)
}

func hexUnsigned(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
