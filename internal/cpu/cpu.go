package cpu

import (
	"github.com/ledmington/x86emu/internal/bitbuffer"
	"github.com/ledmington/x86emu/internal/codec"
	"github.com/ledmington/x86emu/internal/isa"
	"github.com/ledmington/x86emu/internal/memory"
)

// maxInstructionLength bounds a single x86-64 instruction per Intel's own
// architectural limit; used to size the decode window fetched each step.
const maxInstructionLength = 15

// Hook is a pre-step callback consulted by Execute before dispatching the
// instruction at rip. Returning true stops the loop.
type Hook func(rip uint64) bool

// Config configures optional CPU behavior beyond the bare register/memory
// pairing: the bounds of an optional stack window. CheckInstructions is
// carried in the configuration but the Cpu does not read it; execute
// permission on fetched bytes is enforced by the MemoryBus.
type Config struct {
	CheckInstructions bool
	StackTop          uint64
	StackSize         uint64
	stackConfigured   bool
}

// WithStack returns a copy of cfg with a stack window configured: PUSH/POP
// are bounds-checked against [stackTop-stackSize, stackTop] in addition to
// ordinary memory permissions.
func (cfg Config) WithStack(stackTop, stackSize uint64) Config {
	cfg.StackTop, cfg.StackSize, cfg.stackConfigured = stackTop, stackSize, true
	return cfg
}

// Cpu steps a decoded instruction stream against a register file and a
// memory bus, dispatching each decoded opcode through a switch over its
// semantic handlers.
type Cpu struct {
	mem    MemoryBus
	regs   *RegisterFile
	config Config
	hooks  []Hook

	lastStartAddr uint64
	halted        bool
}

// NewCpu wires a memory bus and a register file into a Cpu. registers must
// not be nil; pass a fresh NewRegisterFile() for a cold-start emulation.
func NewCpu(mem MemoryBus, registers *RegisterFile, config Config) *Cpu {
	return &Cpu{mem: mem, regs: registers, config: config}
}

// SetInstructionPointer sets RIP directly, bypassing normal execution.
func (c *Cpu) SetInstructionPointer(addr uint64) {
	c.regs.Set64(isa.RIP, addr)
}

// GetRegisters returns the live register file. Mutations through it are
// visible to subsequent ExecuteOne calls.
func (c *Cpu) GetRegisters() *RegisterFile {
	return c.regs
}

// AddHook registers a pre-step hook consulted by Execute.
func (c *Cpu) AddHook(h Hook) {
	c.hooks = append(c.hooks, h)
}

// ExecuteOne decodes and executes a single instruction at the current RIP.
// A non-nil Event means the CPU has stopped: event.Kind == Halted is the
// only normal terminator, every other kind is a fault. A non-nil error is
// an invariant violation in the driver itself, never something emulated
// program data alone should be able to trigger.
func (c *Cpu) ExecuteOne() (*Event, error) {
	if c.halted {
		return &Event{Kind: Halted}, nil
	}

	rip := c.regs.Get64(isa.RIP)
	window := c.mem.ExecutableRunLength(rip, maxInstructionLength)
	if window == 0 {
		window = maxInstructionLength
	}
	raw, err := c.mem.ReadCode(rip, window)
	if err != nil {
		return illegalAccessEvent(rip, err), nil
	}

	buf := bitbuffer.New(raw)
	insn, n, err := codec.Decode(buf)
	if err != nil {
		return decodeErrorEvent(raw, err), nil
	}

	c.lastStartAddr = rip
	nextRIP := rip + uint64(n)
	c.regs.Set64(isa.RIP, nextRIP)

	event, err := c.dispatch(insn, nextRIP)
	if err != nil {
		switch e := err.(type) {
		case *memory.IllegalReadError:
			return illegalAccessEvent(e.Addr, err), nil
		case *memory.IllegalWriteError:
			return illegalAccessEvent(e.Addr, err), nil
		case *memory.AccessToUninitializedError:
			return illegalAccessEvent(e.Addr, err), nil
		}
		return nil, err
	}
	return event, nil
}

// Execute runs ExecuteOne in a loop, consulting pre-step hooks before each
// instruction, until a terminating Event is produced.
func (c *Cpu) Execute() (*Event, error) {
	for {
		rip := c.regs.Get64(isa.RIP)
		for _, h := range c.hooks {
			if rip != c.lastStartAddr && h(rip) {
				return &Event{Kind: BreakpointHit, Addr: rip}, nil
			}
		}
		event, err := c.ExecuteOne()
		if err != nil {
			return event, err
		}
		if event != nil {
			return event, nil
		}
	}
}

func illegalAccessEvent(addr uint64, err error) *Event {
	switch err.(type) {
	case *memory.IllegalExecutionError:
		return &Event{Kind: IllegalMemoryAccess, Addr: addr, Cause: err}
	case *memory.AccessToUninitializedError:
		return &Event{Kind: IllegalMemoryAccess, Addr: addr, Cause: err}
	default:
		return &Event{Kind: IllegalMemoryAccess, Addr: addr, Cause: err}
	}
}

func decodeErrorEvent(raw []byte, err error) *Event {
	switch e := err.(type) {
	case *codec.ReservedOpcodeError:
		return &Event{Kind: ReservedOpcode, Bytes: e.Bytes}
	case *codec.UnknownOpcodeError:
		return &Event{Kind: UnknownOpcode, Bytes: e.Bytes}
	default:
		return &Event{Kind: UnknownOpcode, Bytes: raw, Cause: err}
	}
}
