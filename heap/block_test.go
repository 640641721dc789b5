package heap

import (
	"testing"

	"github.com/halloc/heap/pageprovider"
	"github.com/stretchr/testify/require"
)

func newTestBlock(t *testing.T, payload uintptr) *block {
	t.Helper()
	b, err := createBlock(pageprovider.NewArenaProvider(), payload)
	require.NoError(t, err)
	return b
}

func mustAllocate(t *testing.T, b *block, addr, regionSize uintptr) uintptr {
	t.Helper()
	header, err := b.allocate(addr, regionSize)
	require.NoError(t, err)
	return header
}

func TestCreateBlockReservesInitialAlignmentAllocation(t *testing.T) {
	b := newTestBlock(t, 256)
	require.Greater(t, b.usedSize, uintptr(0))
}

func TestBlockAllocateAndFreeRoundTrip(t *testing.T) {
	b := newTestBlock(t, 4096)

	regionSize := regionSizeFor(64)
	addr := b.canAllocate(regionSize)
	require.NotZero(t, addr)

	header := mustAllocate(t, b, addr, regionSize)
	require.True(t, loadWord(header).used())

	usedAfterAlloc := b.usedSize
	b.markRegionFree(header)
	require.Less(t, b.usedSize, usedAfterAlloc)
}

func TestBlockCoalesceMergesLeftNeighbor(t *testing.T) {
	b := newTestBlock(t, 4096)

	regionSize := regionSizeFor(64)
	a1 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	a2 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)

	b.markRegionFree(a1)
	b.coalesce(a1)

	b.markRegionFree(a2)
	merged := b.coalesce(a2)

	require.Equal(t, a1, merged)
	require.False(t, loadWord(merged).used())
}

func TestBlockCoalesceMergesRightNeighbor(t *testing.T) {
	b := newTestBlock(t, 4096)

	regionSize := regionSizeFor(64)
	a1 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	a2 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)

	b.markRegionFree(a2)
	b.coalesce(a2)

	b.markRegionFree(a1)
	merged := b.coalesce(a1)

	require.Equal(t, a1, merged)
	require.False(t, loadWord(merged).used())
}

func TestBlockCoalesceMergesBothNeighbors(t *testing.T) {
	b := newTestBlock(t, 4096)

	regionSize := regionSizeFor(64)
	a1 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	a2 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	a3 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)

	b.markRegionFree(a1)
	b.coalesce(a1)

	b.markRegionFree(a3)
	b.coalesce(a3)

	b.markRegionFree(a2)
	merged := b.coalesce(a2)

	require.Equal(t, a1, merged)
	require.False(t, loadWord(merged).used())
}

func TestBlockCoalesceAtLargeRegionSize(t *testing.T) {
	b := newTestBlock(t, 3*4096)

	regionSize := regionSizeFor(4096)
	a1 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	a2 := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)

	b.markRegionFree(a1)
	b.coalesce(a1)

	b.markRegionFree(a2)
	merged := b.coalesce(a2)

	require.Equal(t, a1, merged)
}

func TestBlockAllocateReturnsSplitRefusedWhenRemainderLooksAllocated(t *testing.T) {
	b := newTestBlock(t, 4096)

	regionSize := regionSizeFor(64)
	addr := b.canAllocate(regionSize)
	require.NotZero(t, addr)

	originalSize := loadWord(addr).size()
	leadingSize := alignedSplitSize(addr, regionSize)
	remainderAddr := addr + leadingSize
	markAllocated_forTest(remainderAddr, originalSize-leadingSize)

	header, err := b.allocate(addr, regionSize)
	require.ErrorIs(t, err, ErrSplitWouldCorrupt)
	require.Equal(t, addr, header)
	require.True(t, loadWord(header).used())
	require.EqualValues(t, originalSize, loadWord(header).size())
}

func TestBlockHasUserAllocationsReflectsBaseline(t *testing.T) {
	b := newTestBlock(t, 4096)
	baseline := b.usedSize

	require.False(t, b.hasUserAllocations(baseline))

	regionSize := regionSizeFor(64)
	addr := mustAllocate(t, b, b.canAllocate(regionSize), regionSize)
	require.True(t, b.hasUserAllocations(baseline))

	b.markRegionFree(addr)
	b.coalesce(addr)
	require.False(t, b.hasUserAllocations(baseline))
}
