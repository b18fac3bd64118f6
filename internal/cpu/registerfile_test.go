package cpu

import (
	"testing"

	"github.com/ledmington/x86emu/internal/isa"
)

func TestSet32ZeroExtends(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 0xffffffffffffffff)
	f.Set32(isa.EAX, 0x12345678)
	if got := f.Get64(isa.RAX); got != 0x12345678 {
		t.Fatalf("RAX = %#x, want 0x12345678", got)
	}
}

func TestSet16PreservesUpperBits(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 0x1122334455667788)
	f.Set16(isa.AX, 0xbeef)
	if got := f.Get64(isa.RAX); got != 0x112233445566beef {
		t.Fatalf("RAX = %#x, want 0x112233445566beef", got)
	}
}

func TestSet8PreservesUpperBits(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 0x1122334455667788)
	f.Set8(isa.AL, 0xff)
	if got := f.Get64(isa.RAX); got != 0x11223344556677ff {
		t.Fatalf("RAX = %#x, want 0x11223344556677ff", got)
	}
}

func TestHighByteRegisterTargetsSecondByte(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 0)
	f.Set8(isa.AH, 0x42)
	if got := f.Get16(isa.AX); got != 0x4200 {
		t.Fatalf("AX = %#x, want 0x4200", got)
	}
	if got := f.Get8(isa.AL); got != 0 {
		t.Fatalf("AL = %#x, want 0 (AH write must not touch AL)", got)
	}
}

func TestFlagsIndependent(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(ZF, true)
	f.SetFlag(CF, true)
	f.SetFlag(ZF, false)
	if f.IsSet(ZF) {
		t.Fatalf("ZF should be clear")
	}
	if !f.IsSet(CF) {
		t.Fatalf("CF should remain set after clearing ZF")
	}
}

func TestResetFlagsRestoresReservedBit(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(ZF, true)
	f.SetFlag(CF, true)
	f.ResetFlags()
	if f.IsSet(ZF) || f.IsSet(CF) {
		t.Fatalf("expected all flags clear after ResetFlags")
	}
	if f.flags != reservedFlags {
		t.Fatalf("flags = %#x, want reserved-only %#x", f.flags, reservedFlags)
	}
}

func TestEqualAndClone(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 1)
	f.SetFlag(ZF, true)
	clone := f.Clone()
	if !f.Equal(clone) {
		t.Fatalf("clone should be equal to original")
	}
	clone.Set64(isa.RBX, 2)
	if f.Equal(clone) {
		t.Fatalf("mutating clone must not affect original's Equal result")
	}
}

func TestSegmentSlotsIndependentOfGPRSlots(t *testing.T) {
	f := NewRegisterFile()
	f.Set64(isa.RAX, 0xffffffffffffffff)
	f.SetSeg(isa.CS, 0x33)
	if f.GetSeg(isa.CS) != 0x33 {
		t.Fatalf("CS = %#x, want 0x33", f.GetSeg(isa.CS))
	}
	if f.Get64(isa.RAX) != 0xffffffffffffffff {
		t.Fatalf("writing CS must not disturb RAX")
	}
}
