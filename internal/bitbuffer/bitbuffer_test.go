package bitbuffer

import "testing"

func TestRead1(t *testing.T) {
	b := New([]byte{0x12, 0x34})
	v, err := b.Read1()
	if err != nil || v != 0x12 {
		t.Fatalf("Read1() = %#x, %v; want 0x12, nil", v, err)
	}
	if b.Position() != 1 {
		t.Fatalf("Position() = %d, want 1", b.Position())
	}
}

func TestReadLittleEndian(t *testing.T) {
	b := New([]byte{0x78, 0x56, 0x34, 0x12, 0, 0, 0, 0})
	v4, err := b.Read4()
	if err != nil || v4 != 0x12345678 {
		t.Fatalf("Read4() = %#x, %v; want 0x12345678, nil", v4, err)
	}
}

func TestReadBigEndian(t *testing.T) {
	b := New([]byte{0x7f, 0x45, 0x4c, 0x46})
	b.SetByteOrder(BigEndian)
	v, err := b.Read4()
	if err != nil || v != 0x7f454c46 {
		t.Fatalf("Read4() BE = %#x, %v; want 0x7f454c46, nil", v, err)
	}
}

func TestRead4BEIgnoresByteOrder(t *testing.T) {
	b := New([]byte{0x7f, 0x45, 0x4c, 0x46})
	v, err := b.Read4BE()
	if err != nil || v != 0x7f454c46 {
		t.Fatalf("Read4BE() = %#x, %v; want 0x7f454c46, nil", v, err)
	}
}

func TestOutOfBounds(t *testing.T) {
	b := New([]byte{0x01})
	if _, err := b.Read2(); err != ErrOutOfBounds {
		t.Fatalf("Read2() err = %v, want ErrOutOfBounds", err)
	}
}

func TestGoBack(t *testing.T) {
	b := New([]byte{1, 2, 3, 4})
	_, _ = b.Read4()
	if err := b.GoBack(2); err != nil {
		t.Fatalf("GoBack: %v", err)
	}
	if b.Position() != 2 {
		t.Fatalf("Position() = %d, want 2", b.Position())
	}
	v, _ := b.Read2()
	if v != 0x0403 {
		t.Fatalf("Read2() after GoBack = %#x, want 0x0403", v)
	}
}

func TestGoBackPastStart(t *testing.T) {
	b := New([]byte{1, 2, 3})
	if err := b.GoBack(1); err != ErrOutOfBounds {
		t.Fatalf("GoBack past start err = %v, want ErrOutOfBounds", err)
	}
}

func TestAlignment(t *testing.T) {
	b := New(make([]byte, 16))
	b.SetAlignment(4)
	_, _ = b.Read1()
	b.Align()
	if b.Position() != 4 {
		t.Fatalf("Position() after Align = %d, want 4", b.Position())
	}
	b.Align()
	if b.Position() != 4 {
		t.Fatalf("Align should be a no-op when already aligned, got %d", b.Position())
	}
}

func TestSignExtension(t *testing.T) {
	b := New([]byte{0xFF})
	v, err := b.Read1Signed()
	if err != nil || v != -1 {
		t.Fatalf("Read1Signed() = %d, %v; want -1, nil", v, err)
	}
}

func TestSetPosition(t *testing.T) {
	b := New([]byte{0xAA, 0xBB, 0xCC})
	b.SetPosition(2)
	v, err := b.Read1()
	if err != nil || v != 0xCC {
		t.Fatalf("Read1() after SetPosition = %#x, %v; want 0xCC, nil", v, err)
	}
}
