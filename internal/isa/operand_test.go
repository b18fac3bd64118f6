package isa

import "testing"

func TestIndirectOperandRequiresBaseIndexOrDisp(t *testing.T) {
	if _, err := NewIndirectOperand(QwordPtr).Build(); err != errMissingDisplacement {
		t.Fatalf("Build() err = %v, want errMissingDisplacement", err)
	}
}

func TestIndirectOperandWithBase(t *testing.T) {
	op, err := NewIndirectOperand(QwordPtr).WithBase(RAX).Build()
	if err != nil {
		t.Fatalf("Build(): %v", err)
	}
	if !op.HasBase || op.Base != RAX {
		t.Fatalf("op = %+v, want HasBase=true Base=RAX", op)
	}
}

func TestIndirectOperandWithDisplacement(t *testing.T) {
	op, err := NewIndirectOperand(QwordPtr).WithBase(RAX).WithDisplacement(-0xd8, W32).Build()
	if err != nil {
		t.Fatalf("Build(): %v", err)
	}
	if op.Disp != -0xd8 {
		t.Fatalf("op.Disp = %#x, want -0xd8", op.Disp)
	}
}

func TestIndirectOperandInvalidScale(t *testing.T) {
	if _, err := NewIndirectOperand(DwordPtr).WithBase(RAX).WithIndex(RCX, 3).Build(); err != errInvalidScale {
		t.Fatalf("Build() err = %v, want errInvalidScale", err)
	}
}

func TestIndirectOperandRIPRelative(t *testing.T) {
	op, err := NewIndirectOperand(DwordPtr).WithRIPRelative(-16).Build()
	if err != nil {
		t.Fatalf("Build(): %v", err)
	}
	if !op.RIPRelative || op.Disp != -16 {
		t.Fatalf("op = %+v, want RIPRelative=true Disp=-16", op)
	}
}

func TestOperandConstructorsSetKind(t *testing.T) {
	if RegOperand(EAX).Kind != OperandRegister {
		t.Fatalf("RegOperand Kind mismatch")
	}
	if ImmOperand(1, W8).Kind != OperandImmediate {
		t.Fatalf("ImmOperand Kind mismatch")
	}
	if RelOperand(1, W32).Kind != OperandRelative {
		t.Fatalf("RelOperand Kind mismatch")
	}
	mem, _ := NewIndirectOperand(QwordPtr).WithBase(RAX).Build()
	if MemOperand(mem).Kind != OperandMemory {
		t.Fatalf("MemOperand Kind mismatch")
	}
}
