package isa

// Opcode names the mnemonic of a decoded Instruction. Values are grouped by
// functional family, with the full 16-way condition-code families spelled
// out for both Jcc and CMOVcc.
type Opcode int

const (
	OpInvalid Opcode = iota

	OpADD
	OpSUB
	OpXOR
	OpAND
	OpOR
	OpCMP
	OpTEST

	OpMOV
	OpMOVABS
	OpMOVSXD
	OpMOVZX
	OpLEA

	OpPUSH
	OpPOP

	OpCALL
	OpRET
	OpJMP

	// Jcc, one member per x86 condition code.
	OpJO
	OpJNO
	OpJB
	OpJAE
	OpJE
	OpJNE
	OpJBE
	OpJA
	OpJS
	OpJNS
	OpJP
	OpJNP
	OpJL
	OpJGE
	OpJLE
	OpJG

	// CMOVcc, same condition ordering as Jcc.
	OpCMOVO
	OpCMOVNO
	OpCMOVB
	OpCMOVAE
	OpCMOVE
	OpCMOVNE
	OpCMOVBE
	OpCMOVA
	OpCMOVS
	OpCMOVNS
	OpCMOVP
	OpCMOVNP
	OpCMOVL
	OpCMOVGE
	OpCMOVLE
	OpCMOVG

	OpNOP
	OpHLT
	OpINT
	OpINC
	OpDEC
)

var opcodeNames = map[Opcode]string{
	OpInvalid: "(invalid)",
	OpADD:     "add", OpSUB: "sub", OpXOR: "xor", OpAND: "and", OpOR: "or", OpCMP: "cmp", OpTEST: "test",
	OpMOV: "mov", OpMOVABS: "movabs", OpMOVSXD: "movsxd", OpMOVZX: "movzx", OpLEA: "lea",
	OpPUSH: "push", OpPOP: "pop",
	OpCALL: "call", OpRET: "ret", OpJMP: "jmp",
	OpJO: "jo", OpJNO: "jno", OpJB: "jb", OpJAE: "jae", OpJE: "je", OpJNE: "jne", OpJBE: "jbe", OpJA: "ja",
	OpJS: "js", OpJNS: "jns", OpJP: "jp", OpJNP: "jnp", OpJL: "jl", OpJGE: "jge", OpJLE: "jle", OpJG: "jg",
	OpCMOVO: "cmovo", OpCMOVNO: "cmovno", OpCMOVB: "cmovb", OpCMOVAE: "cmovae", OpCMOVE: "cmove", OpCMOVNE: "cmovne",
	OpCMOVBE: "cmovbe", OpCMOVA: "cmova", OpCMOVS: "cmovs", OpCMOVNS: "cmovns", OpCMOVP: "cmovp", OpCMOVNP: "cmovnp",
	OpCMOVL: "cmovl", OpCMOVGE: "cmovge", OpCMOVLE: "cmovle", OpCMOVG: "cmovg",
	OpNOP: "nop", OpHLT: "hlt", OpINT: "int", OpINC: "inc", OpDEC: "dec",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "(unknown)"
}

// jccBase and cmovBase anchor the contiguous 16-entry condition-code
// families so Condition, JccFromCondition and CMOVFromCondition can do
// arithmetic instead of a 16-case switch.
const (
	jccBase  = OpJO
	cmovBase = OpCMOVO
)

// Condition extracts the 0-15 x86 condition-code index from a Jcc or CMOVcc
// opcode. ok is false for any other opcode.
func (o Opcode) Condition() (idx int, ok bool) {
	switch {
	case o >= jccBase && o <= OpJG:
		return int(o - jccBase), true
	case o >= cmovBase && o <= OpCMOVG:
		return int(o - cmovBase), true
	}
	return 0, false
}

// JccFromCondition returns the Jcc opcode for condition index 0-15.
func JccFromCondition(idx int) Opcode {
	return jccBase + Opcode(idx)
}

// CMOVFromCondition returns the CMOVcc opcode for condition index 0-15.
func CMOVFromCondition(idx int) Opcode {
	return cmovBase + Opcode(idx)
}

// ConditionName returns the one/two-letter x86 condition mnemonic suffix
// for condition index 0-15 (the same ordering Intel assigns 0x0-0xF in the
// Jcc/SETcc/CMOVcc opcode maps).
func ConditionName(idx int) string {
	names := [16]string{"o", "no", "b", "ae", "e", "ne", "be", "a", "s", "ns", "p", "np", "l", "ge", "le", "g"}
	if idx < 0 || idx >= len(names) {
		return "?"
	}
	return names[idx]
}
