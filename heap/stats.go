package heap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BlockStats summarizes one block's occupancy, gathered by walking its six
// free lists.
type BlockStats struct {
	Start                  uintptr
	Pages                  int
	Size                   uintptr
	UsedSize               uintptr
	FreeRegionCount        int
	FreeHeapSpace          uintptr
	LargestFreeRegionSize  uintptr
	SmallestFreeRegionSize uintptr
}

func gatherBlockStats(b *block) BlockStats {
	s := BlockStats{
		Start:    b.start,
		Pages:    b.pages,
		Size:     b.size,
		UsedSize: b.usedSize,
	}

	for class := 0; class < numClasses; class++ {
		for addr := b.heads[class]; addr != 0; addr = loadPtr(linksAt(addr)) {
			size := loadWord(addr).size()
			s.FreeRegionCount++
			s.FreeHeapSpace += size
			if size > s.LargestFreeRegionSize {
				s.LargestFreeRegionSize = size
			}
			if s.SmallestFreeRegionSize == 0 || size < s.SmallestFreeRegionSize {
				s.SmallestFreeRegionSize = size
			}
		}
	}

	return s
}

// Stats walks every block this allocator owns and returns a snapshot of
// each one's occupancy, in block-list (ascending address) order. Callers
// must not call Allocate/Free/Resize concurrently with Stats without
// relying on the allocator's own locking, same as any other public method.
func (a *Allocator) Stats() []BlockStats {
	a.locker.Lock()
	defer a.locker.Unlock()

	var out []BlockStats
	a.blocks.forEach(func(b *block) {
		out = append(out, gatherBlockStats(b))
	})
	return out
}

// StatsString renders Stats() as the same human-readable report the
// allocator this package is descended from produced, including the
// per-class free-list membership and total free heap space it printed
// alongside the summary counters.
func (a *Allocator) StatsString() string {
	var sb strings.Builder

	a.locker.Lock()
	defer a.locker.Unlock()

	blocks := make([]*block, 0)
	a.blocks.forEach(func(b *block) { blocks = append(blocks, b) })

	for i, b := range blocks {
		s := gatherBlockStats(b)

		fmt.Fprintf(&sb, "Block[%d] (Start Addr: %#x):\n", i, s.Start)
		fmt.Fprintf(&sb, "  Pages (allocated from provider) : %d\n", s.Pages)
		fmt.Fprintf(&sb, "  Size  (allocated from provider) : %d bytes\n", s.Size)
		fmt.Fprintf(&sb, "  Used Size (allocated to app)     : %d bytes\n", s.UsedSize)
		fmt.Fprintf(&sb, "  Free statistics:\n")
		fmt.Fprintf(&sb, "    Free Regions Count : %d\n", s.FreeRegionCount)
		fmt.Fprintf(&sb, "    Largest Free Space : %d bytes\n", s.LargestFreeRegionSize)
		fmt.Fprintf(&sb, "    Smallest Free Space: %d bytes\n", s.SmallestFreeRegionSize)
		fmt.Fprintf(&sb, "    Free Heap Space    : %d bytes\n", s.FreeHeapSpace)

		for class := 0; class < numClasses; class++ {
			fmt.Fprintf(&sb, "      FreeRegion[%d]: ", class)
			members := make([]string, 0)
			for addr := b.heads[class]; addr != 0; addr = loadPtr(linksAt(addr)) {
				members = append(members, fmt.Sprintf("%#x (%d bytes)", addr, loadWord(addr).size()))
			}
			fmt.Fprintf(&sb, "%s\n", strings.Join(members, ", "))
		}
	}
	return sb.String()
}

// StatsJSON renders Stats() as a JSON document, one object per block keyed
// by its index in block-list order.
func (a *Allocator) StatsJSON() ([]byte, error) {
	stats := a.Stats()

	w := jwriter.NewWriter()
	root := w.Object()

	for i, s := range stats {
		blockObj := root.Name(strconv.Itoa(i)).Object()
		blockObj.Name("Start").String(fmt.Sprintf("%#x", s.Start))
		blockObj.Name("Pages").Int(s.Pages)
		blockObj.Name("Size").Int(int(s.Size))
		blockObj.Name("UsedSize").Int(int(s.UsedSize))
		blockObj.Name("FreeRegionCount").Int(s.FreeRegionCount)
		blockObj.Name("FreeHeapSpace").Int(int(s.FreeHeapSpace))
		blockObj.Name("LargestFreeRegionSize").Int(int(s.LargestFreeRegionSize))
		blockObj.Name("SmallestFreeRegionSize").Int(int(s.SmallestFreeRegionSize))
		blockObj.End()
	}

	root.End()

	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
