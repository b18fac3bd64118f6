package codec

import (
	"errors"
	"testing"

	"github.com/ledmington/x86emu/internal/bitbuffer"
)

func TestDecodeUnknownOpcode(t *testing.T) {
	_, _, err := Decode(bitbufferFromBytes([]byte{0x0F, 0xFF}))
	var unk *UnknownOpcodeError
	if !errors.As(err, &unk) {
		t.Fatalf("err = %v, want *UnknownOpcodeError", err)
	}
}

func TestDecodeLEAWithRegisterOperandIsReserved(t *testing.T) {
	// 8d c0 = lea eax, eax -- ModR/M.mod == 3 has no memory operand to
	// compute an address from.
	_, _, err := Decode(bitbufferFromBytes([]byte{0x8d, 0xc0}))
	var reserved *ReservedOpcodeError
	if !errors.As(err, &reserved) {
		t.Fatalf("err = %v, want *ReservedOpcodeError", err)
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	_, _, err := Decode(bitbufferFromBytes([]byte{0xb8, 0x01}))
	if !errors.Is(err, bitbuffer.ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestDecodeRewindsOnError(t *testing.T) {
	buf := bitbufferFromBytes([]byte{0x0F, 0xFF})
	start := buf.Position()
	if _, _, err := Decode(buf); err == nil {
		t.Fatalf("expected error")
	}
	if buf.Position() != start {
		t.Fatalf("Position() = %d after failed decode, want %d", buf.Position(), start)
	}
}

func TestDecodeREXSelectsExtendedRegisters(t *testing.T) {
	// 49 89 c7 = mov r15, rax (REX.W+REX.B, ModR/M c7: mod3 reg0 rm7)
	insn, _, err := Decode(bitbufferFromBytes([]byte{0x49, 0x89, 0xc7}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := ToIntelSyntax(insn, 0); got != "mov r15,rax" {
		t.Fatalf("syntax = %q, want %q", got, "mov r15,rax")
	}
}

func TestDecodeSIBNoIndex(t *testing.T) {
	// ff 00 style base-only addressing already covered by corpus; verify a
	// SIB byte with index field 100 (no index) and base field 101 under
	// mod 00 decodes to a displacement-only operand.
	// 48 8b 04 25 78 56 34 12 = mov rax, [0x12345678] (mod00, rm=100 (SIB), sib base=101,index=100 => disp32 only, no base/index)
	insn, n, err := Decode(bitbufferFromBytes([]byte{0x48, 0x8b, 0x04, 0x25, 0x78, 0x56, 0x34, 0x12}))
	if err != nil || n != 8 {
		t.Fatalf("Decode: n=%d err=%v", n, err)
	}
	mem := insn.Operand2().Mem
	if mem.HasBase || mem.HasIndex {
		t.Fatalf("mem = %+v, want no base and no index", mem)
	}
	if mem.Disp != 0x12345678 {
		t.Fatalf("mem.Disp = %#x, want 0x12345678", mem.Disp)
	}
}
