package codec

import (
	"testing"

	"github.com/ledmington/x86emu/internal/isa"
)

func TestEncodeUnsupportedOpcode(t *testing.T) {
	_, err := Encode(isa.Instruction{Opcode: isa.OpInvalid})
	if err == nil {
		t.Fatalf("expected error encoding OpInvalid")
	}
}

func TestEncodeMovRegRegChoosesToRegForm(t *testing.T) {
	insn := isa.Instruction{Opcode: isa.OpMOV}.WithOperands(isa.RegOperand(isa.ECX), isa.RegOperand(isa.EDX))
	encoded, err := Encode(insn)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) == 0 || encoded[0] != 0x8B {
		t.Fatalf("Encode(mov ecx, edx) = % x, want the 0x8B (to-reg) opcode", encoded)
	}
	decoded, _, err := Decode(bitbufferFromBytes(encoded))
	if err != nil {
		t.Fatalf("Decode(encode(i)): %v", err)
	}
	if decoded != insn {
		t.Fatalf("decoded = %+v, want %+v", decoded, insn)
	}
}

func TestEncodeMovRmLowByteForcesBareREX(t *testing.T) {
	for _, r := range []isa.Register{isa.SPL, isa.BPL, isa.SIL, isa.DIL} {
		insn := isa.Instruction{Opcode: isa.OpMOV}.WithOperands(isa.RegOperand(isa.CL), isa.RegOperand(r))
		encoded, err := Encode(insn)
		if err != nil {
			t.Fatalf("Encode(%s): %v", r, err)
		}
		if len(encoded) == 0 || encoded[0] != 0x40 {
			t.Fatalf("Encode(mov cl, %s) = % x, want a bare 0x40 REX prefix", r, encoded)
		}
		decoded, _, err := Decode(bitbufferFromBytes(encoded))
		if err != nil {
			t.Fatalf("Decode(encode(mov cl, %s)): %v", r, err)
		}
		if decoded != insn {
			t.Fatalf("decoded = %+v, want %+v", decoded, insn)
		}
	}
}

func TestEncodeMovRegLowByteForcesBareREX(t *testing.T) {
	for _, r := range []isa.Register{isa.SPL, isa.BPL, isa.SIL, isa.DIL} {
		insn := isa.Instruction{Opcode: isa.OpMOV}.WithOperands(isa.RegOperand(r), isa.RegOperand(isa.CL))
		encoded, err := Encode(insn)
		if err != nil {
			t.Fatalf("Encode(%s): %v", r, err)
		}
		if len(encoded) == 0 || encoded[0] != 0x40 {
			t.Fatalf("Encode(mov %s, cl) = % x, want a bare 0x40 REX prefix", r, encoded)
		}
		decoded, _, err := Decode(bitbufferFromBytes(encoded))
		if err != nil {
			t.Fatalf("Decode(encode(mov %s, cl)): %v", r, err)
		}
		if decoded != insn {
			t.Fatalf("decoded = %+v, want %+v", decoded, insn)
		}
	}
}

func TestEncodeMovabsUsesFullImm64(t *testing.T) {
	insn := isa.Instruction{Opcode: isa.OpMOVABS}.WithOperands(isa.RegOperand(isa.RAX), isa.ImmOperand(int64(-1), isa.W64))
	encoded, err := Encode(insn)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 10 {
		t.Fatalf("len(encoded) = %d, want 10 (REX+opcode+8 imm bytes)", len(encoded))
	}
	decoded, _, err := Decode(bitbufferFromBytes(encoded))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != insn {
		t.Fatalf("decoded = %+v, want %+v", decoded, insn)
	}
}
