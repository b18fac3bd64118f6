package cpu

import "testing"

func TestEvalConditionEquality(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(ZF, true)
	if !evalCondition(4, f) { // E/Z
		t.Fatalf("expected E condition true when ZF set")
	}
	if evalCondition(5, f) { // NE/NZ
		t.Fatalf("expected NE condition false when ZF set")
	}
}

func TestEvalConditionSignedCompare(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(SF, true)
	f.SetFlag(OF, false)
	if !evalCondition(12, f) { // L: SF != OF
		t.Fatalf("expected L true when SF!=OF")
	}
	if evalCondition(13, f) { // GE: SF == OF
		t.Fatalf("expected GE false when SF!=OF")
	}
}

func TestEvalConditionBelowOrEqual(t *testing.T) {
	f := NewRegisterFile()
	f.SetFlag(CF, false)
	f.SetFlag(ZF, false)
	if evalCondition(6, f) { // BE: CF || ZF
		t.Fatalf("expected BE false when neither CF nor ZF set")
	}
	if !evalCondition(7, f) { // A: !CF && !ZF
		t.Fatalf("expected A true when neither CF nor ZF set")
	}
}
