//go:build unix

package pageprovider

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// HostedProvider is the hosted-OS Provider: it backs every acquired range
// with an anonymous, zero-filled memory mapping. It is safe for concurrent
// use, but the heap built on top of it never calls it concurrently - the
// mutex in heap.sync.go already serializes that.
type HostedProvider struct {
	mu       sync.Mutex
	mappings map[uintptr][]byte
}

// NewHostedProvider returns a Provider backed by mmap(2).
func NewHostedProvider() *HostedProvider {
	return &HostedProvider{
		mappings: make(map[uintptr][]byte),
	}
}

func (p *HostedProvider) Acquire(pageCount int) (uintptr, error) {
	if pageCount <= 0 {
		return 0, errors.Errorf("pageprovider: invalid page count %d", pageCount)
	}

	size := pageCount * PageSize
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, errors.Wrap(err, "pageprovider: mmap failed")
	}

	addr := uintptr(unsafe.Pointer(&data[0]))

	p.mu.Lock()
	p.mappings[addr] = data
	p.mu.Unlock()

	return addr, nil
}

func (p *HostedProvider) Release(addr uintptr, pageCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.mappings[addr]
	if !ok {
		return errors.Errorf("pageprovider: address %#x was not acquired from this provider", addr)
	}
	if len(data) != pageCount*PageSize {
		return errors.Errorf("pageprovider: release of %d pages does not match the %d pages acquired at %#x", pageCount, len(data)/PageSize, addr)
	}

	if err := unix.Munmap(data); err != nil {
		return err
	}
	delete(p.mappings, addr)
	return nil
}
