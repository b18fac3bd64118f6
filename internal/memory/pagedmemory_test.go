package memory

import "testing"

func TestPagedMemoryUnwrittenByteIsZeroAndUninitialized(t *testing.T) {
	m := NewPagedMemory()
	if got := m.ReadByte(0x1234); got != 0 {
		t.Fatalf("ReadByte on untouched address = %d, want 0", got)
	}
	if m.IsInitialized(0x1234) {
		t.Fatalf("expected untouched address to be uninitialized")
	}
}

func TestPagedMemoryWriteThenRead(t *testing.T) {
	m := NewPagedMemory()
	m.WriteByte(0x1000, 0x42)
	if got := m.ReadByte(0x1000); got != 0x42 {
		t.Fatalf("ReadByte = %#x, want 0x42", got)
	}
	if !m.IsInitialized(0x1000) {
		t.Fatalf("expected written address to be initialized")
	}
	if m.IsInitialized(0x1001) {
		t.Fatalf("expected neighboring address to remain uninitialized")
	}
}

func TestPagedMemoryCrossesPageBoundary(t *testing.T) {
	m := NewPagedMemory()
	addr := uint64(pageSize - 2)
	m.Write4(addr, 0xdeadbeef)
	if got := m.Read4(addr); got != 0xdeadbeef {
		t.Fatalf("Read4 across page boundary = %#x, want 0xdeadbeef", got)
	}
}

func TestPagedMemoryWidthRoundTrips(t *testing.T) {
	m := NewPagedMemory()
	m.Write2(0x10, 0xbeef)
	m.Write4(0x20, 0xcafebabe)
	m.Write8(0x30, 0x0102030405060708)
	if got := m.Read2(0x10); got != 0xbeef {
		t.Fatalf("Read2 = %#x", got)
	}
	if got := m.Read4(0x20); got != 0xcafebabe {
		t.Fatalf("Read4 = %#x", got)
	}
	if got := m.Read8(0x30); got != 0x0102030405060708 {
		t.Fatalf("Read8 = %#x", got)
	}
}
