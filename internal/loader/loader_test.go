package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ledmington/x86emu/internal/memory"
)

// buildMinimalELF64 hand-assembles a one-segment, no-section-header ELF64
// executable: an Elf64_Ehdr, one Elf64_Phdr (PT_LOAD, R|X), then code.
func buildMinimalELF64(t *testing.T, vaddr uint64, code []byte) []byte {
	t.Helper()
	const (
		ehdrSize = 64
		phdrSize = 56
	)
	dataOffset := uint64(ehdrSize + phdrSize)

	var buf bytes.Buffer

	ident := [16]byte{0x7f, 'E', 'L', 'F', 2 /* ELFCLASS64 */, 1 /* ELFDATA2LSB */, 1 /* EV_CURRENT */}
	buf.Write(ident[:])
	binary.Write(&buf, binary.LittleEndian, uint16(2))       // e_type = ET_EXEC
	binary.Write(&buf, binary.LittleEndian, uint16(0x3e))    // e_machine = EM_X86_64
	binary.Write(&buf, binary.LittleEndian, uint32(1))       // e_version
	binary.Write(&buf, binary.LittleEndian, vaddr)           // e_entry
	binary.Write(&buf, binary.LittleEndian, uint64(ehdrSize))// e_phoff
	binary.Write(&buf, binary.LittleEndian, uint64(0))       // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))       // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehdrSize))// e_ehsize
	binary.Write(&buf, binary.LittleEndian, uint16(phdrSize))// e_phentsize
	binary.Write(&buf, binary.LittleEndian, uint16(1))       // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // e_shentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // e_shnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // e_shstrndx

	binary.Write(&buf, binary.LittleEndian, uint32(1))          // p_type = PT_LOAD
	binary.Write(&buf, binary.LittleEndian, uint32(5))          // p_flags = R|X
	binary.Write(&buf, binary.LittleEndian, dataOffset)         // p_offset
	binary.Write(&buf, binary.LittleEndian, vaddr)              // p_vaddr
	binary.Write(&buf, binary.LittleEndian, vaddr)              // p_paddr
	binary.Write(&buf, binary.LittleEndian, uint64(len(code)))  // p_filesz
	binary.Write(&buf, binary.LittleEndian, uint64(len(code)))  // p_memsz
	binary.Write(&buf, binary.LittleEndian, uint64(0x1000))     // p_align

	buf.Write(code)
	return buf.Bytes()
}

func TestLoadPlacesCodeAndSetsPermissions(t *testing.T) {
	const vaddr = 0x400000
	code := []byte{0x31, 0xc0, 0xc3} // xor eax,eax; ret
	raw := buildMinimalELF64(t, vaddr, code)

	mc := memory.NewMemoryController()
	mc.SetBreakOnWrongPermissions(true)

	loaded, err := Load(bytes.NewReader(raw), mc, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.EntryPoint != vaddr {
		t.Fatalf("EntryPoint = %#x, want %#x", loaded.EntryPoint, vaddr)
	}

	got, err := mc.ReadCode(vaddr, len(code))
	if err != nil {
		t.Fatalf("ReadCode: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Fatalf("loaded code = % x, want % x", got, code)
	}

	if err := mc.WriteByte(vaddr, 0x90); err == nil {
		t.Fatalf("expected write to a read+execute segment to be denied")
	}
}

func TestLoadReservesStackWindow(t *testing.T) {
	raw := buildMinimalELF64(t, 0x400000, []byte{0xc3})
	mc := memory.NewMemoryController()
	mc.SetBreakOnWrongPermissions(true)

	loaded, err := Load(bytes.NewReader(raw), mc, Options{StackTop: 0x800000, StackSize: 0x1000})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	stackAddr := loaded.StackTop - 8
	if err := mc.WriteByte(stackAddr, 1); err != nil {
		t.Fatalf("expected stack window to be writable: %v", err)
	}
	if _, err := mc.ReadCode(stackAddr, 1); err == nil {
		t.Fatalf("expected stack window to be non-executable")
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	raw := buildMinimalELF64(t, 0x400000, []byte{0xc3})
	raw[18] = 0x03 // overwrite e_machine low byte with EM_386
	mc := memory.NewMemoryController()
	if _, err := Load(bytes.NewReader(raw), mc, Options{}); err == nil {
		t.Fatalf("expected error loading a non-x86-64 ELF")
	}
}
