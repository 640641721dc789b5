package heap

import (
	"github.com/dolthub/swiss"
	"github.com/halloc/heap/pageprovider"
	"github.com/pkg/errors"
)

// block is one page-aligned span of provider memory, subdivided into
// variable-sized regions. All of its bookkeeping - size, usedSize, its
// position in the block list, and the six free-list class heads - is kept
// in this ordinary Go struct rather than written into the arena itself.
// Only the regions themselves (their headers, footers, and free-list link
// fields) live in raw memory, because header/footer parity and pointer
// exclusivity are externally observable invariants; which block a region
// belongs to and how full that block is are not.
type block struct {
	start uintptr
	pages int
	size  uintptr

	usedSize uintptr

	next, prev *block

	heads [numClasses]uintptr

	// freeAddrs indexes every header and footer address currently resident
	// in one of this block's free lists, so coalesce can test neighbor
	// liveness in O(1) without walking a list. It is the thing that
	// justifies pulling in a swiss map here rather than a plain Go map:
	// this is on the hot path of every free.
	freeAddrs *swiss.Map[uintptr, struct{}]
}

// createBlock acquires enough pages from provider to hold requestedSize
// bytes of region (header-to-footer, inclusive of overhead) plus the
// block's own reserved header footprint, lays down a single free region
// spanning the whole thing, and performs the zero-observable initial
// alignment reservation described in spec §4.4: a synthetic allocation of
// 2*ptrSize bytes, consumed and never returned to the caller, whose sole
// purpose is to push every subsequent real allocation's payload onto a
// 16-byte boundary.
func createBlock(provider pageprovider.Provider, requestedSize uintptr) (*block, error) {
	requiredBytes := requestedSize + blockHeaderSize + freeRegionMinSize
	pages := pageCount(requiredBytes)

	addr, err := provider.Acquire(pages)
	if err != nil {
		return nil, errors.Wrap(err, "heap: failed to acquire pages for a new block")
	}

	totalSize := uintptr(pages) * pageprovider.PageSize
	regionStart := addr + blockHeaderSize
	regionSize := totalSize - blockHeaderSize

	b := &block{
		start:     addr,
		pages:     pages,
		size:      totalSize,
		usedSize:  blockHeaderSize,
		freeAddrs: swiss.NewMap[uintptr, struct{}](8),
	}

	createFreeRegion(regionStart, regionSize)
	b.addFree(regionStart)

	// Synthetic reservation (spec §4.4): burn the smallest possible region
	// right away so real allocations that follow this one start aligned.
	// The result is discarded; only its effect on usedSize matters.
	_, _ = b.allocate(regionStart, freeRegionMinSize)

	return b, nil
}

func pageCount(bytes uintptr) int {
	n := int(bytes / pageprovider.PageSize)
	if bytes%pageprovider.PageSize != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// addFree inserts the free region at addr into this block's class list and
// liveness index, classifying it by the size currently stored in its header.
func (b *block) addFree(addr uintptr) {
	size := loadWord(addr).size()
	class := classOf(size)
	freeListInsert(&b.heads[class], addr)
	b.freeAddrs.Put(addr, struct{}{})
	b.freeAddrs.Put(footerAt(addr, size), struct{}{})
}

// removeFree detaches the free region at addr from this block's class list
// and liveness index.
func (b *block) removeFree(addr uintptr) {
	size := loadWord(addr).size()
	class := classOf(size)
	freeListRemove(&b.heads[class], addr)
	b.freeAddrs.Delete(addr)
	b.freeAddrs.Delete(footerAt(addr, size))
}

// canAllocate scans this block's class lists, in class order and then in
// each list's address order, for the first free region whose aligned split
// size is strictly less than its current size - i.e. the first region a
// split would actually shrink rather than consume whole. It returns that
// region's header address, or 0 if nothing in this block qualifies.
func (b *block) canAllocate(regionSize uintptr) uintptr {
	startClass := classOf(regionSize)
	for class := startClass; class < numClasses; class++ {
		addr := b.heads[class]
		for addr != 0 {
			size := loadWord(addr).size()
			if alignedSplitSize(addr, regionSize) < size {
				return addr
			}
			addr = loadPtr(linksAt(addr))
		}
	}
	return 0
}

// allocate removes the free region at addr from its list, splits it down to
// regionSize, marks the leading fragment allocated, reinstalls whatever
// remainder the split produced, and returns the leading fragment's header
// address. The caller (canAllocate, or createBlock's synthetic reservation)
// is responsible for having found addr and for addr actually being free.
// The returned error is non-nil only when the split's safety check refused
// a remainder (ErrSplitWouldCorrupt) - the allocation itself still succeeds,
// using the whole region.
func (b *block) allocate(addr uintptr, regionSize uintptr) (uintptr, error) {
	originalSize := loadWord(addr).size()
	b.removeFree(addr)

	remainder, split, err := splitFreeRegion(addr, originalSize, regionSize)
	if split {
		b.addFree(remainder)
	}

	leadingSize := loadWord(addr).size()
	markAllocated(addr)
	b.usedSize += leadingSize
	return addr, err
}

// markRegionFree flips the region at header back to free and subtracts its
// size from usedSize. It does not insert the region into any list or
// attempt coalescing - see coalesce.
func (b *block) markRegionFree(header uintptr) {
	size := loadWord(header).size()
	markFree(header)
	b.usedSize -= size
}

// coalesce merges the just-freed region at header with whichever immediate
// neighbors are themselves free, handling the four combinations (neither,
// left only, right only, both) and the block-boundary edge cases where a
// neighbor address would fall outside this block's region-bearing range.
// It returns the address of the resulting (possibly merged) free region.
func (b *block) coalesce(header uintptr) uintptr {
	size := loadWord(header).size()
	regionStart := b.start + blockHeaderSize
	regionEnd := b.start + b.size

	var leftHeader uintptr
	if header > regionStart {
		leftFooter := header - footerSize
		if _, ok := b.freeAddrs.Get(leftFooter); ok {
			leftSize := loadWord(leftFooter).size()
			leftHeader = leftFooter - leftSize + footerSize
		}
	}

	var rightHeader uintptr
	if header+size < regionEnd {
		candidate := header + size
		if _, ok := b.freeAddrs.Get(candidate); ok {
			rightHeader = candidate
		}
	}

	switch {
	case leftHeader == 0 && rightHeader == 0:
		b.addFree(header)
		return header
	case leftHeader != 0 && rightHeader == 0:
		b.removeFree(leftHeader)
		mergedSize := size + loadWord(leftHeader).size()
		createFreeRegion(leftHeader, mergedSize)
		b.addFree(leftHeader)
		return leftHeader
	case leftHeader == 0 && rightHeader != 0:
		b.removeFree(rightHeader)
		mergedSize := size + loadWord(rightHeader).size()
		createFreeRegion(header, mergedSize)
		b.addFree(header)
		return header
	default:
		b.removeFree(leftHeader)
		b.removeFree(rightHeader)
		mergedSize := loadWord(leftHeader).size() + size + loadWord(rightHeader).size()
		createFreeRegion(leftHeader, mergedSize)
		b.addFree(leftHeader)
		return leftHeader
	}
}

// hasUserAllocations reports whether this block holds anything beyond its
// own initial alignment reservation - i.e. whether usedSize has fallen back
// to the post-init baseline captured when the very first block was created.
func (b *block) hasUserAllocations(baseline uintptr) bool {
	return b.usedSize > baseline
}

// owns reports whether addr falls within this block's region-bearing range.
func (b *block) owns(addr uintptr) bool {
	return addr >= b.start+blockHeaderSize && addr < b.start+b.size
}
