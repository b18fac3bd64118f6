// Package loader turns an ELF executable into calls against a
// memory.MemoryController: segment bytes via Initialize, segment
// permissions via SetPermissions, and a stack window whose placement
// Options controls.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/ledmington/x86emu/internal/memory"
)

// DefaultStackTop and DefaultStackSize give a new process a modest stack
// when the caller doesn't need to control its placement.
const (
	DefaultStackTop  = 0x7ffffffff000
	DefaultStackSize = 0x100000
)

// Loaded describes the outcome of loading an ELF file: where execution
// should start and where its stack was placed.
type Loaded struct {
	EntryPoint uint64
	StackTop   uint64
	StackSize  uint64
}

// Options controls stack placement; the zero value uses the defaults.
type Options struct {
	StackTop  uint64
	StackSize uint64
}

func (o Options) withDefaults() Options {
	if o.StackTop == 0 {
		o.StackTop = DefaultStackTop
	}
	if o.StackSize == 0 {
		o.StackSize = DefaultStackSize
	}
	return o
}

// Load reads a 64-bit ELF executable from r, writes each PT_LOAD segment
// into mc via Initialize, opens up the permissions its program header
// requests via SetPermissions, and reserves a read/write, non-executable
// stack window zeroed ahead of use.
func Load(r io.ReaderAt, mc *memory.MemoryController, opts Options) (Loaded, error) {
	opts = opts.withDefaults()

	f, err := elf.NewFile(r)
	if err != nil {
		return Loaded{}, fmt.Errorf("loader: parsing ELF: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return Loaded{}, fmt.Errorf("loader: only 64-bit ELF executables are supported, got %v", f.Class)
	}
	if f.Machine != elf.EM_X86_64 {
		return Loaded{}, fmt.Errorf("loader: only EM_X86_64 executables are supported, got %v", f.Machine)
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(mc, prog); err != nil {
			return Loaded{}, err
		}
	}

	stackLo := opts.StackTop - opts.StackSize
	mc.Initialize(stackLo, make([]byte, opts.StackSize))
	mc.SetPermissions(stackLo, opts.StackTop, true, true, false)

	return Loaded{
		EntryPoint: f.Entry,
		StackTop:   opts.StackTop,
		StackSize:  opts.StackSize,
	}, nil
}

func loadSegment(mc *memory.MemoryController, prog *elf.Prog) error {
	data := make([]byte, prog.Filesz)
	if _, err := io.ReadFull(prog.Open(), data); err != nil {
		return fmt.Errorf("loader: reading segment at %#x: %w", prog.Vaddr, err)
	}
	mc.Initialize(prog.Vaddr, data)

	if prog.Memsz > prog.Filesz {
		bssStart := prog.Vaddr + prog.Filesz
		mc.Initialize(bssStart, make([]byte, prog.Memsz-prog.Filesz))
	}

	r := prog.Flags&elf.PF_R != 0
	w := prog.Flags&elf.PF_W != 0
	x := prog.Flags&elf.PF_X != 0
	mc.SetPermissions(prog.Vaddr, prog.Vaddr+prog.Memsz, r, w, x)
	return nil
}
