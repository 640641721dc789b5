package heap

import "github.com/pkg/errors"

// createFreeRegion writes a free region's header, footer, and zeroed link
// fields at addr, covering [addr, addr+size). It returns addr back for
// convenience at call sites that immediately need the region's address.
func createFreeRegion(addr, size uintptr) uintptr {
	word := packMeta(false, size)
	storeWord(addr, word)
	storePtr(linksAt(addr), 0)
	storePtr(linksAt(addr)+ptrSize, 0)
	storeWord(footerAt(addr, size), word)
	return addr
}

// markAllocated flips a free region's header and footer to allocated in
// place. It does not touch the free-list membership of the region - the
// caller must have already removed it.
func markAllocated(addr uintptr) {
	size := loadWord(addr).size()
	word := packMeta(true, size)
	storeWord(addr, word)
	storeWord(footerAt(addr, size), word)
}

// markFree flips an allocated region's header and footer back to free and
// zeroes what will become its link fields. It does not insert the region
// into any free list.
func markFree(addr uintptr) {
	size := loadWord(addr).size()
	word := packMeta(false, size)
	storeWord(addr, word)
	storePtr(linksAt(addr), 0)
	storePtr(linksAt(addr)+ptrSize, 0)
	storeWord(footerAt(addr, size), word)
}

// alignedSplitSize computes the size of the leading fragment of a split
// such that the trailing remainder (if any) begins with a 16-byte-aligned
// payload. regionStart is the address of the free region being split;
// requestedSize is the requested total region size (header + payload/links
// + footer). All arithmetic is done in uintptr, which is what fixes the
// 32-bit-intermediate truncation bug noted in spec §9 - on a 64-bit host a
// uint32 intermediate can wrap long before addresses do.
//
// The padding target is the remainder's *payload* address
// (regionStart + requestedSize + headerSize, before padding; requestedSize
// already counts this region's own footer), not merely its header address -
// the header carries the reserved alignment slot, so aligning only the
// header leaves the payload eight bytes short on a 64-bit host. Padding to the payload address is what the next region's
// "header-then-payload" actually needs, and it holds unconditionally
// regardless of this region's own alignment: every remainder a split
// produces starts the next free region with a guaranteed-aligned payload,
// which is what the synthetic reservation in createBlock (spec §4.4)
// depends on for a block's very first real allocation.
func alignedSplitSize(regionStart, requestedSize uintptr) uintptr {
	if requestedSize < freeRegionMinSize {
		requestedSize = freeRegionMinSize
	}

	end := regionStart + requestedSize + headerSize
	padding := alignment - end%alignment

	return requestedSize + padding
}

// ErrSplitWouldCorrupt is returned internally when the computed remainder
// of a split lands on top of a region that is already marked allocated.
// Per spec §4.1/§7 this is not a failure of the allocation itself - the
// caller absorbs the slack into the leading fragment instead.
var ErrSplitWouldCorrupt = errors.New("heap: split remainder would overlap an allocated region")

// splitFreeRegion rewrites the free region at addr (of size originalSize) as
// a free region of the size alignedSplitSize(addr, requestedSize) computes,
// and - if what's left over is large enough to hold its own metadata and the
// candidate remainder address does not already show as allocated - creates a
// second free region covering the remainder. It returns the remainder's
// address and true if a remainder was created, or false if the full region
// was consumed (either because there wasn't enough slack, or because the
// safety check refused to write over what looks like allocated memory).
func splitFreeRegion(addr, originalSize, requestedSize uintptr) (remainder uintptr, ok bool, err error) {
	leadingSize := alignedSplitSize(addr, requestedSize)

	if leadingSize >= originalSize {
		return 0, false, nil
	}

	remainderSize := originalSize - leadingSize
	remainderAddr := addr + leadingSize

	if remainderSize < freeRegionMinSize {
		return 0, false, nil
	}

	// Safety check (spec §4.1): if the candidate remainder's header
	// already reads as allocated, something upstream miscalculated a
	// size and writing here would corrupt live user data. Refuse the
	// remainder; the allocation still succeeds using the whole region.
	if loadWord(remainderAddr).used() {
		return 0, false, ErrSplitWouldCorrupt
	}

	createFreeRegion(addr, leadingSize)
	createFreeRegion(remainderAddr, remainderSize)
	return remainderAddr, true, nil
}
