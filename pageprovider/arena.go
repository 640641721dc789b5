package pageprovider

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// ArenaProvider is a Provider backed by ordinary Go byte slices instead of
// a real mmap call. It exists so the heap package (and any freestanding
// embedding that wants to exercise the allocator before wiring a physical
// page allocator) can be tested without depending on the host OS. Each
// acquired range is kept alive by the ArenaProvider until it is released, so
// the Go garbage collector never reclaims memory the heap still thinks it owns.
type ArenaProvider struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

// NewArenaProvider returns an in-process Provider suitable for tests.
func NewArenaProvider() *ArenaProvider {
	return &ArenaProvider{
		regions: make(map[uintptr][]byte),
	}
}

func (p *ArenaProvider) Acquire(pageCount int) (uintptr, error) {
	if pageCount <= 0 {
		return 0, errors.Errorf("pageprovider: invalid page count %d", pageCount)
	}

	buf := make([]byte, pageCount*PageSize)
	addr := uintptr(unsafe.Pointer(&buf[0]))

	p.mu.Lock()
	p.regions[addr] = buf
	p.mu.Unlock()

	return addr, nil
}

func (p *ArenaProvider) Release(addr uintptr, pageCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.regions[addr]
	if !ok {
		return errors.Errorf("pageprovider: address %#x was not acquired from this provider", addr)
	}
	if len(buf) != pageCount*PageSize {
		return errors.Errorf("pageprovider: release of %d pages does not match the %d pages acquired at %#x", pageCount, len(buf)/PageSize, addr)
	}

	delete(p.regions, addr)
	return nil
}

// FailingProvider is a Provider that always fails Acquire, used to exercise
// the out-of-memory paths described in spec §7.
type FailingProvider struct{}

func (FailingProvider) Acquire(pageCount int) (uintptr, error) {
	return 0, errors.New("pageprovider: simulated exhaustion")
}

func (FailingProvider) Release(addr uintptr, pageCount int) error {
	return errors.New("pageprovider: simulated exhaustion provider cannot release anything")
}
