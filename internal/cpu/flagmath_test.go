package cpu

import (
	"testing"

	"github.com/ledmington/x86emu/internal/isa"
)

func TestSetFlagsArithZeroAndSign(t *testing.T) {
	f := NewRegisterFile()
	f.setFlagsArith(5, 5, isa.W32, true, true)
	if !f.IsSet(ZF) {
		t.Fatalf("expected ZF set for 5-5")
	}
	f.setFlagsArith(0, 1, isa.W8, true, true)
	if !f.IsSet(SF) {
		t.Fatalf("expected SF set for 0-1 at 8 bits (result 0xff)")
	}
	if !f.IsSet(CF) {
		t.Fatalf("expected CF (borrow) set for 0-1")
	}
}

func TestSetFlagsArithAddCarry8Bit(t *testing.T) {
	f := NewRegisterFile()
	result := f.setFlagsArith(0xff, 0x01, isa.W8, false, true)
	if result != 0 {
		t.Fatalf("result = %#x, want 0", result)
	}
	if !f.IsSet(CF) {
		t.Fatalf("expected CF set for 0xff+0x01 at 8 bits")
	}
	if !f.IsSet(ZF) {
		t.Fatalf("expected ZF set")
	}
}

func TestSetFlagsArithAddCarry64Bit(t *testing.T) {
	f := NewRegisterFile()
	result := f.setFlagsArith(^uint64(0), 1, isa.W64, false, true)
	if result != 0 {
		t.Fatalf("result = %#x, want 0", result)
	}
	if !f.IsSet(CF) {
		t.Fatalf("expected CF set for max uint64 + 1")
	}
}

func TestSetFlagsArithIncDecDoesNotTouchCF(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(CF, true)
	f.setFlagsArith(5, 1, isa.W32, false, false)
	if !f.IsSet(CF) {
		t.Fatalf("expected INC-style call (affectCF=false) to leave CF untouched")
	}
}

func TestSetFlagsLogicClearsCFAndOF(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(CF, true)
	f.SetFlag(OF, true)
	f.setFlagsLogic(0xf0, isa.W8)
	if f.IsSet(CF) || f.IsSet(OF) {
		t.Fatalf("expected CF and OF clear after a logic op")
	}
	if f.IsSet(ZF) {
		t.Fatalf("expected ZF clear for nonzero result")
	}
}

func TestOverflowSignedAddition(t *testing.T) {
	f := NewRegisterFile()
	// 0x7f + 0x01 = 0x80 at 8 bits: signed overflow (127+1 wraps to -128).
	f.setFlagsArith(0x7f, 0x01, isa.W8, false, true)
	if !f.IsSet(OF) {
		t.Fatalf("expected OF set for signed 8-bit overflow")
	}
}
