//go:build !debug_heap

package heap

// debugLogAllocate and debugLogFree no-op unless the debug_heap build tag
// is present, matching memutils/validate_prod.go's no-op counterparts.
func (a *Allocator) debugLogAllocate(header uintptr, payload int) {}
func (a *Allocator) debugLogFree(header uintptr)                  {}
