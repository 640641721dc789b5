package heap

import "github.com/cockroachdb/errors"

// Validate walks every block this allocator owns and checks the invariants
// spec.md §3 states: header/footer parity on every region, the block list
// and each block's regions tiling the block's address range with no gaps
// or overlaps, and the ascending-address order of the block list and of
// every free-list class. It returns the first violation found, wrapped
// with enough context to say which block and address it was at. Validate
// is not on the hot path of any public method - it exists for tests and
// debug tooling to assert on, the way memutils.Validatable's Validate()
// does for the teacher's metadata types.
func (a *Allocator) Validate() error {
	a.locker.Lock()
	defer a.locker.Unlock()

	prevStart := uintptr(0)
	first := true

	var result error
	a.blocks.forEach(func(b *block) {
		if result != nil {
			return
		}
		if !first && b.start <= prevStart {
			result = errors.Newf("heap: block list out of order at block starting %#x", b.start)
			return
		}
		first = false
		prevStart = b.start

		if err := validateBlock(b); err != nil {
			result = errors.Wrapf(err, "heap: block starting %#x failed validation", b.start)
		}
	})

	return result
}

func validateBlock(b *block) error {
	regionStart := b.start + blockHeaderSize
	regionEnd := b.start + b.size

	tiled := uintptr(0)
	for addr := regionStart; addr < regionEnd; {
		header := loadWord(addr)
		footer := loadWord(footerAt(addr, header.size()))
		if header != footer {
			return errors.Newf("header/footer mismatch at %#x", addr)
		}
		if header.size() == 0 {
			return errors.Newf("zero-size region at %#x", addr)
		}
		tiled += header.size()
		addr += header.size()
	}
	if tiled != regionEnd-regionStart {
		return errors.Newf("regions do not exactly tile the block: tiled %d, expected %d", tiled, regionEnd-regionStart)
	}

	for class := 0; class < numClasses; class++ {
		prev := uintptr(0)
		for addr := b.heads[class]; addr != 0; addr = loadPtr(linksAt(addr)) {
			if addr <= prev && prev != 0 {
				return errors.Newf("class %d free list out of order at %#x", class, addr)
			}
			if loadWord(addr).used() {
				return errors.Newf("class %d free list contains an allocated region at %#x", class, addr)
			}
			if classOf(loadWord(addr).size()) != class {
				return errors.Newf("region at %#x of size %d is in the wrong class list %d", addr, loadWord(addr).size(), class)
			}
			prev = addr
		}
	}

	return nil
}
