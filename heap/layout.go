package heap

import "unsafe"

const (
	// alignment is the byte alignment every caller-visible payload pointer
	// must satisfy.
	alignment = 16

	// metaWordSize is the size in bytes of a single header or footer
	// metadata word.
	metaWordSize = 4

	// usedShift/sizeMask split the 32-bit metadata word into a 4-bit used
	// tag and a 28-bit size, per spec. The used tag is only ever written
	// as 0 or 1; the remaining 3 bits are reserved for future tagging and
	// must stay zero (spec §9).
	usedShift = 28
	sizeMask  = uint32(1)<<usedShift - 1

	// maxRegionSize is the largest total region size the 28-bit size field
	// can represent.
	maxRegionSize = uintptr(sizeMask)
)

// ptrSize is the width of a single free-list link field. Using uintptr
// throughout (rather than a fixed 32-bit intermediate) is what fixes the
// pointer-width truncation bug noted in spec §9.
const ptrSize = uintptr(unsafe.Sizeof(uintptr(0)))

// reservedSize is the padding inserted after a region's header so that the
// payload (or, for a free region, the link fields) starts on a multiple of
// metaWordSize equal to the pointer width - on 64-bit hosts that's a 4-byte
// reserved slot, exactly as spec §3 describes; on 32-bit hosts there's
// nothing to reserve.
var reservedSize = func() uintptr {
	if ptrSize > metaWordSize {
		return ptrSize - metaWordSize
	}
	return 0
}()

// headerSize is the number of bytes from a region's start to its payload
// (or free-list links): the metadata word plus the alignment reservation.
var headerSize = metaWordSize + reservedSize

// footerSize is the size of the trailing metadata word every region carries.
const footerSize = metaWordSize

// freeRegionMinSize is the smallest total size a free region can have: a
// header, both link fields, and a footer. Any split that would leave a
// remainder smaller than this must not produce one (spec §4.1).
var freeRegionMinSize = headerSize + 2*ptrSize + footerSize

// blockHeaderSize mirrors the footprint the original block header
// (page count, size, usedSize, list links, six free-list heads) would have
// occupied in memory. This repository keeps that bookkeeping in the Go
// block struct rather than serialized into the arena - see DESIGN.md - but
// still reserves this many bytes of every block's address range so the
// region-tiling invariant (spec §3 invariant 5) and the usedSize baseline
// (spec §4.4) match the reference layout exactly.
var blockHeaderSize = 3*uintptr(unsafe.Sizeof(uint32(0))) + 8*ptrSize

// metaWord is the packed (used, size) pair stored in every header and
// footer.
type metaWord uint32

func packMeta(used bool, size uintptr) metaWord {
	var u uint32
	if used {
		u = 1
	}
	return metaWord(u<<usedShift | uint32(size)&sizeMask)
}

func (w metaWord) used() bool    { return uint32(w)>>usedShift != 0 }
func (w metaWord) size() uintptr { return uintptr(uint32(w) & sizeMask) }

// loadWord/storeWord/loadPtr/storePtr/loadByte/storeByte are the only places in this package
// that dereference a raw address. Every region, free or allocated, lives in
// memory obtained from a pageprovider.Provider - never in Go-GC-managed
// memory - so holding these as uintptr (rather than unsafe.Pointer) across
// calls does not confuse the garbage collector.
func loadWord(addr uintptr) metaWord {
	return metaWord(*(*uint32)(unsafe.Pointer(addr)))
}

func storeWord(addr uintptr, w metaWord) {
	*(*uint32)(unsafe.Pointer(addr)) = uint32(w)
}

func loadPtr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func storePtr(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func loadByte(addr uintptr) byte {
	return *(*byte)(unsafe.Pointer(addr))
}

func storeByte(addr uintptr, v byte) {
	*(*byte)(unsafe.Pointer(addr)) = v
}

// footerAt/linksAt/payloadAt compute the addresses of a region's
// parts given its header address and total size.
func footerAt(header, size uintptr) uintptr { return header + size - footerSize }
func linksAt(header uintptr) uintptr        { return header + headerSize }
func payloadAt(header uintptr) uintptr      { return header + headerSize }

// classBoundaries are the inclusive upper bounds of free-list classes 0-4;
// class 5 holds every region larger than the last boundary.
var classBoundaries = [5]uintptr{32, 64, 128, 256, 512}

// numClasses is the number of segregated free-list size classes per block.
const numClasses = 6

// classOf returns the free-list class index for a region of the given total
// size. It must be called with the region's size read before any mutation,
// since class membership is determined by size (spec §4.2).
func classOf(size uintptr) int {
	for i, bound := range classBoundaries {
		if size <= bound {
			return i
		}
	}
	return numClasses - 1
}
