package heap

import (
	"github.com/halloc/heap/pageprovider"
	"golang.org/x/exp/slog"
)

// defaultInitialBlockPages is how many pages the first block (and any block
// grown for a request smaller than this) reserves, absent WithInitialBlockPages.
const defaultInitialBlockPages = 16

// Allocator is a general-purpose heap allocator over memory obtained from a
// pageprovider.Provider. The zero value is not usable - construct one with
// NewAllocator. All exported methods are safe for concurrent use unless the
// Allocator was built with WithLocker(noopLocker{}) or an equivalent.
type Allocator struct {
	provider pageprovider.Provider
	locker   Locker
	logger   *slog.Logger

	blocks            blockList
	baseline          uintptr
	baselineSet       bool
	initialBlockPages int
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithLogger sets the structured logger the allocator reports block
// lifecycle events and diagnostics through. Absent this option, log output
// is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

// WithLocker overrides the allocator's mutual exclusion primitive. Absent
// this option a real sync.Mutex is used. Pass a no-op Locker only if the
// caller already guarantees the allocator is never used from more than one
// goroutine at a time.
func WithLocker(l Locker) Option {
	return func(a *Allocator) { a.locker = l }
}

// WithInitialBlockPages sets how many pages a freshly grown block reserves
// when the request it's being grown for doesn't itself demand more.
func WithInitialBlockPages(pages int) Option {
	return func(a *Allocator) {
		if pages > 0 {
			a.initialBlockPages = pages
		}
	}
}

// NewAllocator constructs an Allocator drawing pages from provider. No block
// is created and no memory is acquired from provider until the first
// Allocate or ZeroAllocate call.
func NewAllocator(provider pageprovider.Provider, opts ...Option) *Allocator {
	a := &Allocator{
		provider:          provider,
		locker:            &optionalMutex{enabled: true},
		logger:            discardLogger(),
		initialBlockPages: defaultInitialBlockPages,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func regionSizeFor(payloadSize uintptr) uintptr {
	return payloadSize + headerSize + footerSize
}

// Allocate reserves payloadSize bytes and returns the address of the first
// byte, 16-byte aligned, or 0 if the request could not be satisfied. A
// negative payloadSize is reported as a failure (address 0) rather than a
// panic, since this API has no error return by design - see spec §4.5/§7.
func (a *Allocator) Allocate(payloadSize int) uintptr {
	if payloadSize < 0 {
		return 0
	}

	regionSize := regionSizeFor(uintptr(payloadSize))
	if regionSize > maxRegionSize {
		return 0
	}

	a.locker.Lock()
	defer a.locker.Unlock()

	b := a.findBlockFor(regionSize)
	if b == nil {
		grown, err := a.growBlock(regionSize)
		if err != nil {
			a.logOOM(pageCount(regionSize), err)
			return 0
		}
		b = grown
	}

	addr := b.canAllocate(regionSize)
	if addr == 0 {
		// The block we just grew should always have room; this only fires
		// if an existing block reported false room via findBlockFor's
		// usedSize<size filter racing with a concurrent caller under a
		// no-op locker. Treat it the same as OOM.
		return 0
	}

	header, refused := b.allocate(addr, regionSize)
	if refused != nil {
		a.logSplitRefused(addr, regionSize)
	}
	a.debugLogAllocate(header, payloadSize)
	return payloadAt(header)
}

// ZeroAllocate reserves count*size bytes, all zeroed, or returns 0 if count
// or size is zero or the request could not be satisfied.
func (a *Allocator) ZeroAllocate(count, size int) uintptr {
	if count <= 0 || size <= 0 {
		return 0
	}

	total := count * size
	if total/count != size {
		return 0
	}

	addr := a.Allocate(total)
	if addr == 0 {
		return 0
	}

	zeroRange(addr, uintptr(total))
	return addr
}

func zeroRange(addr, n uintptr) {
	for i := uintptr(0); i < n; i++ {
		storeByte(addr+i, 0)
	}
}

// Free releases the allocation at addr. Freeing 0, freeing a pointer this
// allocator did not hand out, or freeing an already-free region are all
// silent no-ops, matching spec §4.6/§7 - this API never panics on bad input.
func (a *Allocator) Free(addr uintptr) {
	if addr == 0 {
		return
	}

	header := addr - headerSize

	a.locker.Lock()
	defer a.locker.Unlock()

	b := a.blocks.find(header)
	if b == nil {
		a.logForeignPointer(header)
		return
	}

	if !loadWord(header).used() {
		a.logDoubleFree(header)
		return
	}

	a.debugLogFree(header)
	b.markRegionFree(header)
	b.coalesce(header)

	if !b.hasUserAllocations(a.baseline) {
		a.blocks.remove(b)
		if err := a.provider.Release(b.start, b.pages); err != nil {
			a.logOOM(b.pages, err)
			return
		}
		a.logBlockReclaimed(b.start, b.pages)
	}
}

// Resize changes the allocation at addr to hold newSize bytes, preserving
// the lesser of the old and new sizes' worth of content, and returns the
// (possibly different) address of the resized allocation, or 0 on failure -
// in which case the original allocation at addr is left untouched. Passing
// addr == 0 behaves like Allocate(newSize); passing newSize == 0 behaves
// like Free(addr) followed by returning 0.
func (a *Allocator) Resize(addr uintptr, newSize int) uintptr {
	if addr == 0 {
		return a.Allocate(newSize)
	}
	if newSize <= 0 {
		a.Free(addr)
		return 0
	}

	header := addr - headerSize
	oldRegionSize := loadWord(header).size()
	oldPayload := oldRegionSize - headerSize - footerSize

	if uintptr(newSize) == oldPayload {
		return addr
	}

	newAddr := a.Allocate(newSize)
	if newAddr == 0 {
		return 0
	}

	copyLen := oldPayload
	if uintptr(newSize) < copyLen {
		copyLen = uintptr(newSize)
	}
	copyRange(newAddr, addr, copyLen)

	a.Free(addr)
	return newAddr
}

func copyRange(dst, src, n uintptr) {
	for i := uintptr(0); i < n; i++ {
		storeByte(dst+i, loadByte(src+i))
	}
}

// findBlockFor walks the block list for the first non-full block that can
// satisfy regionSize, per spec §4.5 step 3.
func (a *Allocator) findBlockFor(regionSize uintptr) *block {
	var found *block
	a.blocks.forEach(func(b *block) {
		if found != nil {
			return
		}
		if b.usedSize >= b.size {
			return
		}
		if b.canAllocate(regionSize) != 0 {
			found = b
		}
	})
	return found
}

// growBlock creates a new block sized for regionSize, appends it to the
// block list, and - on the very first block ever created - captures the
// process-wide usedSize baseline used to decide when a block is empty.
func (a *Allocator) growBlock(regionSize uintptr) (*block, error) {
	size := regionSize
	minSize := uintptr(a.initialBlockPages)*pageprovider.PageSize - blockHeaderSize - freeRegionMinSize
	if size < minSize {
		size = minSize
	}

	b, err := createBlock(a.provider, size)
	if err != nil {
		return nil, err
	}

	a.blocks.insert(b)
	a.logBlockCreated(b.start, b.pages, b.size)

	if !a.baselineSet {
		a.baseline = b.usedSize
		a.baselineSet = true
	}

	return b, nil
}
