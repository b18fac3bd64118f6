package memory

// pageSize is the granularity at which PagedMemory allocates backing
// storage. Chosen to match the host's native page size so that a process
// touching a handful of scattered addresses doesn't pay for a flat
// multi-gigabyte byte slice up front.
const pageSize = 4096

// page holds one pageSize-byte chunk of backing storage plus a bit per byte
// recording whether that byte has ever been written. Pages are allocated
// lazily by PagedMemory on first touch.
type page struct {
	data        [pageSize]byte
	initialized [pageSize / 8]byte
}

func (p *page) isInitialized(off int) bool {
	return p.initialized[off/8]&(1<<uint(off%8)) != 0
}

func (p *page) markInitialized(off int) {
	p.initialized[off/8] |= 1 << uint(off%8)
}

// PagedMemory is a sparse byte-addressable address space backed by lazily
// allocated pages. It tracks, independently of any permission model, which
// bytes have actually been written versus merely reserved.
type PagedMemory struct {
	pages map[uint64]*page
}

// NewPagedMemory returns an empty address space with no pages allocated.
func NewPagedMemory() *PagedMemory {
	return &PagedMemory{pages: make(map[uint64]*page)}
}

func pageOf(addr uint64) (pageNum uint64, off int) {
	return addr / pageSize, int(addr % pageSize)
}

func (m *PagedMemory) pageAt(pageNum uint64, alloc bool) *page {
	p, ok := m.pages[pageNum]
	if !ok {
		if !alloc {
			return nil
		}
		p = &page{}
		m.pages[pageNum] = p
	}
	return p
}

// ReadByte returns the byte at addr, or 0 if the page has never been
// touched.
func (m *PagedMemory) ReadByte(addr uint64) byte {
	pageNum, off := pageOf(addr)
	p := m.pageAt(pageNum, false)
	if p == nil {
		return 0
	}
	return p.data[off]
}

// WriteByte stores value at addr, allocating its page if necessary, and
// marks the byte initialized.
func (m *PagedMemory) WriteByte(addr uint64, value byte) {
	pageNum, off := pageOf(addr)
	p := m.pageAt(pageNum, true)
	p.data[off] = value
	p.markInitialized(off)
}

// IsInitialized reports whether addr has ever been written.
func (m *PagedMemory) IsInitialized(addr uint64) bool {
	pageNum, off := pageOf(addr)
	p := m.pageAt(pageNum, false)
	if p == nil {
		return false
	}
	return p.isInitialized(off)
}

// ReadN returns n little-endian bytes starting at addr.
func (m *PagedMemory) ReadN(addr uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = m.ReadByte(addr + uint64(i))
	}
	return out
}

// WriteN stores the bytes of value at addr, little-endian.
func (m *PagedMemory) WriteN(addr uint64, value []byte) {
	for i, b := range value {
		m.WriteByte(addr+uint64(i), b)
	}
}

// Read2/Read4/Read8 and Write2/Write4/Write8 are little-endian fixed-width
// convenience wrappers around ReadN/WriteN, mirroring the width-suffixed
// accessor style used throughout the register file.

func (m *PagedMemory) Read2(addr uint64) uint16 {
	b := m.ReadN(addr, 2)
	return uint16(b[0]) | uint16(b[1])<<8
}

func (m *PagedMemory) Read4(addr uint64) uint32 {
	b := m.ReadN(addr, 4)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (m *PagedMemory) Read8(addr uint64) uint64 {
	b := m.ReadN(addr, 8)
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (m *PagedMemory) Write2(addr uint64, v uint16) {
	m.WriteN(addr, []byte{byte(v), byte(v >> 8)})
}

func (m *PagedMemory) Write4(addr uint64, v uint32) {
	m.WriteN(addr, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (m *PagedMemory) Write8(addr uint64, v uint64) {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> uint(8*i))
	}
	m.WriteN(addr, buf)
}
