package memory

import "fmt"

// IllegalReadError is returned when a read targets an address not marked
// readable.
type IllegalReadError struct {
	Addr uint64
}

func (e *IllegalReadError) Error() string {
	return fmt.Sprintf("illegal read at %#x: address not readable", e.Addr)
}

// IllegalWriteError is returned when a write targets an address not marked
// writable.
type IllegalWriteError struct {
	Addr  uint64
	Value uint64
}

func (e *IllegalWriteError) Error() string {
	return fmt.Sprintf("illegal write of %#x at %#x: address not writable", e.Value, e.Addr)
}

// IllegalExecutionError is returned when the fetch path reads an
// instruction byte from an address not marked executable.
type IllegalExecutionError struct {
	Addr uint64
}

func (e *IllegalExecutionError) Error() string {
	return fmt.Sprintf("illegal execution at %#x: address not executable", e.Addr)
}

// AccessToUninitializedError is returned when a read targets a readable
// byte that has never been written, and the controller has been asked to
// treat that as an error rather than returning zero.
type AccessToUninitializedError struct {
	Addr uint64
}

func (e *AccessToUninitializedError) Error() string {
	return fmt.Sprintf("access to uninitialized memory at %#x", e.Addr)
}
