// Package pageprovider supplies the page-granular memory primitive that
// github.com/halloc/heap subdivides into allocator regions. A Provider
// is the only thing the heap asks of its host: a contiguous, page-aligned
// address range, and a way to give it back.
package pageprovider

import "github.com/pkg/errors"

// PageSize is the fixed page granularity every Provider allocates in.
const PageSize = 4096

// ErrUnsupported is returned by a Provider when the host platform has no
// implementation available (see mmap_other.go).
var ErrUnsupported = errors.New("pageprovider: no page provider available for this platform")

// Provider acquires and releases contiguous ranges of page-granular memory.
// Implementations must not call back into the heap that consumes them -
// the heap's critical section treats Acquire/Release as its only
// suspension point and assumes no reentrancy.
type Provider interface {
	// Acquire reserves pageCount contiguous, page-aligned pages and returns
	// the address of the first byte. It returns an error if the platform
	// could not satisfy the request; callers must treat that identically to
	// a null return; no partial state is retained either way.
	Acquire(pageCount int) (uintptr, error)
	// Release returns a range previously obtained from Acquire, identified
	// by the same address and page count. Implementations should treat a
	// mismatched address/count pair as a programmer error.
	Release(addr uintptr, pageCount int) error
}
