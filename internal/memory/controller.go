package memory

// MemoryController mediates every access to a PagedMemory through three
// independent permission sets (read, write, execute), the way a real MMU
// enforces page protection bits. A loader uses Initialize to populate
// backing storage before any permission is granted; SetPermissions is then
// called once per ELF segment to open up exactly the access the segment
// header requested.
type MemoryController struct {
	backing *PagedMemory
	read    intervalSet
	write   intervalSet
	exec    intervalSet

	breakOnWrongPermissions  bool
	breakOnUninitializedRead bool
}

// NewMemoryController returns a controller over a fresh, empty address
// space with no permissions granted anywhere.
func NewMemoryController() *MemoryController {
	return &MemoryController{backing: NewPagedMemory()}
}

// SetBreakOnWrongPermissions controls whether Read/Write/ReadCode return an
// error on a permission violation (true, the default-recommended mode for
// an emulator driving untrusted code) or silently allow the access.
func (c *MemoryController) SetBreakOnWrongPermissions(v bool) {
	c.breakOnWrongPermissions = v
}

// SetBreakOnUninitializedRead controls whether reading a readable-but-never
// -written byte is treated as an error.
func (c *MemoryController) SetBreakOnUninitializedRead(v bool) {
	c.breakOnUninitializedRead = v
}

// SetPermissions grants the given access rights over [lo, hi). Any of
// canRead/canWrite/canExecute left false for an already-granted range
// revokes that right over the range instead.
func (c *MemoryController) SetPermissions(lo, hi uint64, canRead, canWrite, canExecute bool) {
	applyPermission(&c.read, lo, hi, canRead)
	applyPermission(&c.write, lo, hi, canWrite)
	applyPermission(&c.exec, lo, hi, canExecute)
}

func applyPermission(s *intervalSet, lo, hi uint64, grant bool) {
	if grant {
		s.Set(lo, hi)
	} else {
		s.Reset(lo, hi)
	}
}

// Initialize writes data at addr without any permission check, bypassing
// the read/write/execute interval sets entirely. Only the loader should
// call this, before SetPermissions has opened up the segment.
func (c *MemoryController) Initialize(addr uint64, data []byte) {
	c.backing.WriteN(addr, data)
}

func (c *MemoryController) checkRead(addr uint64, n int) error {
	if c.breakOnWrongPermissions && !c.read.ContainsRange(addr, addr+uint64(n)) {
		return &IllegalReadError{Addr: addr}
	}
	if c.breakOnUninitializedRead {
		for i := 0; i < n; i++ {
			if !c.backing.IsInitialized(addr + uint64(i)) {
				return &AccessToUninitializedError{Addr: addr + uint64(i)}
			}
		}
	}
	return nil
}

func (c *MemoryController) checkWrite(addr uint64, n int) error {
	if c.breakOnWrongPermissions && !c.write.ContainsRange(addr, addr+uint64(n)) {
		return &IllegalWriteError{Addr: addr}
	}
	return nil
}

// ReadByte reads one byte at addr, honoring read permission and the
// uninitialized-access policy.
func (c *MemoryController) ReadByte(addr uint64) (byte, error) {
	if err := c.checkRead(addr, 1); err != nil {
		return 0, err
	}
	return c.backing.ReadByte(addr), nil
}

// WriteByte writes one byte at addr, honoring write permission.
func (c *MemoryController) WriteByte(addr uint64, value byte) error {
	if err := c.checkWrite(addr, 1); err != nil {
		return err
	}
	c.backing.WriteByte(addr, value)
	return nil
}

// ReadN reads n bytes starting at addr, honoring read permission over the
// whole range.
func (c *MemoryController) ReadN(addr uint64, n int) ([]byte, error) {
	if err := c.checkRead(addr, n); err != nil {
		return nil, err
	}
	return c.backing.ReadN(addr, n), nil
}

// WriteN writes value starting at addr, honoring write permission over the
// whole range.
func (c *MemoryController) WriteN(addr uint64, value []byte) error {
	if err := c.checkWrite(addr, len(value)); err != nil {
		return err
	}
	c.backing.WriteN(addr, value)
	return nil
}

// ReadCode fetches n instruction bytes starting at addr for the decoder,
// honoring execute permission rather than read permission.
func (c *MemoryController) ReadCode(addr uint64, n int) ([]byte, error) {
	if c.breakOnWrongPermissions && !c.exec.ContainsRange(addr, addr+uint64(n)) {
		return nil, &IllegalExecutionError{Addr: addr}
	}
	return c.backing.ReadN(addr, n), nil
}

// ExecutableRunLength returns how many contiguous bytes starting at addr
// are currently executable, capped at max. A CPU fetch path uses this to
// size its decode window so ReadCode never fails on the tail of a short
// executable region.
func (c *MemoryController) ExecutableRunLength(addr uint64, max int) int {
	if !c.breakOnWrongPermissions {
		return max
	}
	return c.exec.RunLength(addr, max)
}

// IsInitialized reports whether addr has ever been written, independent of
// any permission check.
func (c *MemoryController) IsInitialized(addr uint64) bool {
	return c.backing.IsInitialized(addr)
}

// Read2/Read4/Read8 and Write2/Write4/Write8 are permission-checked,
// little-endian fixed-width accessors used by the CPU for operand access.

func (c *MemoryController) Read2(addr uint64) (uint16, error) {
	b, err := c.ReadN(addr, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (c *MemoryController) Read4(addr uint64) (uint32, error) {
	b, err := c.ReadN(addr, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (c *MemoryController) Read8(addr uint64) (uint64, error) {
	b, err := c.ReadN(addr, 8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (c *MemoryController) Write2(addr uint64, v uint16) error {
	return c.WriteN(addr, []byte{byte(v), byte(v >> 8)})
}

func (c *MemoryController) Write4(addr uint64, v uint32) error {
	return c.WriteN(addr, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (c *MemoryController) Write8(addr uint64, v uint64) error {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> uint(8*i))
	}
	return c.WriteN(addr, buf)
}
