// Command x86emu is a batch driver over the emulator core: it loads an
// ELF executable, either runs it to a terminating event or prints an
// Intel-syntax disassembly of part of it. It is not the interactive
// debugger — no REPL, no breakpoints, no stepping.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ledmington/x86emu/internal/bitbuffer"
	"github.com/ledmington/x86emu/internal/codec"
	"github.com/ledmington/x86emu/internal/cpu"
	"github.com/ledmington/x86emu/internal/isa"
	"github.com/ledmington/x86emu/internal/loader"
	"github.com/ledmington/x86emu/internal/memory"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "x86emu",
		Short: "x86-64 user-space ELF emulator core",
	}

	var stackTop, stackSize uint64
	var maxSteps int

	runCmd := &cobra.Command{
		Use:   "run [executable]",
		Short: "Load an ELF executable and run it to a terminating event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecutable(args[0], stackTop, stackSize, maxSteps)
		},
	}
	runCmd.Flags().Uint64Var(&stackTop, "stack-top", 0, "Top of the stack window (0 = loader default)")
	runCmd.Flags().Uint64Var(&stackSize, "stack-size", 0, "Size of the stack window (0 = loader default)")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 10_000_000, "Abort after this many instructions")

	var disasmAddr string
	var disasmCount int

	disasmCmd := &cobra.Command{
		Use:   "disasm [executable]",
		Short: "Print an Intel-syntax listing starting at an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassemble(args[0], disasmAddr, disasmCount)
		},
	}
	disasmCmd.Flags().StringVar(&disasmAddr, "addr", "", "Address to start disassembling at (default: entry point)")
	disasmCmd.Flags().IntVar(&disasmCount, "count", 20, "Number of instructions to print")

	rootCmd.AddCommand(runCmd, disasmCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openAndLoad(path string) (*memory.MemoryController, loader.Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, loader.Loaded{}, err
	}
	defer f.Close()

	mc := memory.NewMemoryController()
	mc.SetBreakOnWrongPermissions(true)
	loaded, err := loader.Load(f, mc, loader.Options{})
	if err != nil {
		return nil, loader.Loaded{}, err
	}
	return mc, loaded, nil
}

func runExecutable(path string, stackTop, stackSize uint64, maxSteps int) error {
	mc, loaded, err := openAndLoad(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	config := cpu.Config{CheckInstructions: true}
	top, size := loaded.StackTop, loaded.StackSize
	if stackTop != 0 {
		top = stackTop
	}
	if stackSize != 0 {
		size = stackSize
	}
	if top != loaded.StackTop || size != loaded.StackSize {
		mc.Initialize(top-size, make([]byte, size))
		mc.SetPermissions(top-size, top, true, true, false)
	}
	config = config.WithStack(top, size)

	regs := cpu.NewRegisterFile()
	regs.Set64(isa.RSP, top)
	c := cpu.NewCpu(mc, regs, config)
	c.SetInstructionPointer(loaded.EntryPoint)

	var event *cpu.Event
	for steps := 0; steps < maxSteps; steps++ {
		event, err = c.ExecuteOne()
		if err != nil {
			return fmt.Errorf("emulation aborted: %w", err)
		}
		if event != nil {
			break
		}
	}

	if event == nil {
		fmt.Printf("stopped after %d instructions without a terminating event\n", maxSteps)
	} else {
		fmt.Printf("stopped: %v\n", event)
	}
	printRegisters(regs)
	return nil
}

func printRegisters(regs *cpu.RegisterFile) {
	order := []isa.Register{isa.RAX, isa.RBX, isa.RCX, isa.RDX, isa.RSI, isa.RDI, isa.RSP, isa.RBP, isa.RIP}
	for _, r := range order {
		fmt.Printf("%-4s = %#018x\n", r, regs.Get64(r))
	}
	fmt.Printf("flags: cf=%v zf=%v sf=%v of=%v\n",
		regs.IsSet(cpu.CF), regs.IsSet(cpu.ZF), regs.IsSet(cpu.SF), regs.IsSet(cpu.OF))
}

func disassemble(path, addrFlag string, count int) error {
	mc, loaded, err := openAndLoad(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	addr := loaded.EntryPoint
	if addrFlag != "" {
		addr, err = parseAddress(addrFlag)
		if err != nil {
			return err
		}
	}

	for i := 0; i < count; i++ {
		window := mc.ExecutableRunLength(addr, 15)
		if window == 0 {
			return fmt.Errorf("disasm: %#x is not executable", addr)
		}
		raw, err := mc.ReadCode(addr, window)
		if err != nil {
			return fmt.Errorf("disasm: reading at %#x: %w", addr, err)
		}
		insn, n, err := codec.Decode(bitbuffer.New(raw))
		if err != nil {
			fmt.Printf("%#x: <decode error: %v>\n", addr, err)
			return nil
		}
		fmt.Printf("%#x: %s\n", addr, codec.ToIntelSyntax(insn, addr))
		addr += uint64(n)
	}
	return nil
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}
