package heap_test

import (
	"testing"
	"unsafe"

	"github.com/halloc/heap/heap"
	"github.com/halloc/heap/pageprovider"
	"github.com/stretchr/testify/require"
)

func ptrAt(addr uintptr, offset int) unsafe.Pointer {
	return unsafe.Pointer(addr + uintptr(offset))
}

func newTestAllocator() *heap.Allocator {
	return heap.NewAllocator(pageprovider.NewArenaProvider(), heap.WithInitialBlockPages(1))
}

func TestAllocateSingleSmallAllocation(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(64)
	require.NotZero(t, addr)
	require.Zero(t, addr%16, "payload address must be 16-byte aligned")

	a.Free(addr)
}

func TestAllocateBurstOfFive(t *testing.T) {
	a := newTestAllocator()

	var addrs [5]uintptr
	for i := range addrs {
		addrs[i] = a.Allocate(48)
		require.NotZero(t, addrs[i])
	}

	seen := map[uintptr]bool{}
	for _, addr := range addrs {
		require.False(t, seen[addr], "every allocation must return a distinct address")
		seen[addr] = true
	}

	for _, addr := range addrs {
		a.Free(addr)
	}
}

func TestAllocateWritesAreIsolated(t *testing.T) {
	a := newTestAllocator()

	small := a.Allocate(16)
	large := a.Allocate(4096)
	require.NotZero(t, small)
	require.NotZero(t, large)

	writeBytes(small, 16, 0xAA)
	writeBytes(large, 4096, 0xBB)

	require.True(t, allBytesEqual(small, 16, 0xAA))
	require.True(t, allBytesEqual(large, 4096, 0xBB))

	a.Free(small)
	a.Free(large)
}

func TestFreeThenReallocateSucceeds(t *testing.T) {
	a := newTestAllocator()

	first := a.Allocate(128)
	require.NotZero(t, first)
	a.Free(first)

	second := a.Allocate(128)
	require.NotZero(t, second)
}

func TestFreeIsANoOpForForeignPointer(t *testing.T) {
	a := newTestAllocator()
	require.NotPanics(t, func() { a.Free(0xdeadbeef) })
}

func TestFreeIsANoOpForNilPointer(t *testing.T) {
	a := newTestAllocator()
	require.NotPanics(t, func() { a.Free(0) })
}

func TestDoubleFreeIsANoOp(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(32)
	require.NotZero(t, addr)

	a.Free(addr)
	require.NotPanics(t, func() { a.Free(addr) })
}

func TestZeroAllocateZeroesMemory(t *testing.T) {
	a := newTestAllocator()

	addr := a.ZeroAllocate(8, 32)
	require.NotZero(t, addr)
	require.True(t, allBytesEqual(addr, 256, 0x00))

	a.Free(addr)
}

func TestZeroAllocateRejectsZeroArguments(t *testing.T) {
	a := newTestAllocator()

	require.Zero(t, a.ZeroAllocate(0, 32))
	require.Zero(t, a.ZeroAllocate(8, 0))
}

func TestResizeGrowPreservesContent(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(16)
	require.NotZero(t, addr)
	writeBytes(addr, 16, 0x42)

	grown := a.Resize(addr, 256)
	require.NotZero(t, grown)
	require.True(t, allBytesEqual(grown, 16, 0x42))

	a.Free(grown)
}

func TestResizeToZeroFreesAndReturnsZero(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(64)
	require.NotZero(t, addr)

	require.Zero(t, a.Resize(addr, 0))
}

func TestResizeFromZeroBehavesLikeAllocate(t *testing.T) {
	a := newTestAllocator()

	addr := a.Resize(0, 64)
	require.NotZero(t, addr)

	a.Free(addr)
}

func TestOOMFromExhaustedProviderReturnsZero(t *testing.T) {
	a := heap.NewAllocator(pageprovider.FailingProvider{})

	require.Zero(t, a.Allocate(64))
}

func TestStatsReflectsOutstandingAllocations(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(64)
	require.NotZero(t, addr)

	stats := a.Stats()
	require.Len(t, stats, 1)
	require.Greater(t, stats[0].UsedSize, uintptr(0))

	a.Free(addr)
}

func TestStatsJSONProducesValidDocumentPerBlock(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(64)
	require.NotZero(t, addr)
	defer a.Free(addr)

	out, err := a.StatsJSON()
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestStatsStringIncludesFreeListMembersAndFreeHeapSpace(t *testing.T) {
	a := newTestAllocator()

	addr := a.Allocate(64)
	require.NotZero(t, addr)
	defer a.Free(addr)

	out := a.StatsString()
	require.Contains(t, out, "Free Heap Space")
	require.Contains(t, out, "FreeRegion[0]:")
	require.Contains(t, out, "0x")
}

func writeBytes(addr uintptr, n int, v byte) {
	for i := 0; i < n; i++ {
		*(*byte)(ptrAt(addr, i)) = v
	}
}

func allBytesEqual(addr uintptr, n int, v byte) bool {
	for i := 0; i < n; i++ {
		if *(*byte)(ptrAt(addr, i)) != v {
			return false
		}
	}
	return true
}
