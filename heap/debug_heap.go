//go:build debug_heap

package heap

import (
	"context"

	"golang.org/x/exp/slog"
)

// debugLogAllocate and debugLogFree are only compiled in with the
// debug_heap build tag, mirroring memutils/validate_debug.go's
// build-tag-gated debug instrumentation. They exist so a caller chasing a
// corruption or leak can get per-call visibility without paying for it
// (or risking the log volume) in normal builds.
func (a *Allocator) debugLogAllocate(header uintptr, payload int) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocate",
		slog.Uint64("header", uint64(header)),
		slog.Int("payload", payload))
}

func (a *Allocator) debugLogFree(header uintptr) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "free",
		slog.Uint64("header", uint64(header)))
}
