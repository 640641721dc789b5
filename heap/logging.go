package heap

import (
	"context"
	"io"

	"golang.org/x/exp/slog"
)

// discardLogger is what NewAllocator uses when the caller doesn't supply
// one via WithLogger.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func (a *Allocator) logBlockCreated(start uintptr, pages int, size uintptr) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "block created",
		slog.Uint64("start", uint64(start)),
		slog.Int("pages", pages),
		slog.Uint64("size", uint64(size)))
}

func (a *Allocator) logBlockReclaimed(start uintptr, pages int) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "block reclaimed",
		slog.Uint64("start", uint64(start)),
		slog.Int("pages", pages))
}

func (a *Allocator) logSplitRefused(addr uintptr, size uintptr) {
	a.logger.LogAttrs(context.Background(), slog.LevelWarn, "split safety check refused a remainder",
		slog.Uint64("addr", uint64(addr)),
		slog.Uint64("size", uint64(size)))
}

func (a *Allocator) logForeignPointer(addr uintptr) {
	a.logger.LogAttrs(context.Background(), slog.LevelWarn, "free called with a pointer this allocator did not hand out",
		slog.Uint64("addr", uint64(addr)))
}

func (a *Allocator) logDoubleFree(addr uintptr) {
	a.logger.LogAttrs(context.Background(), slog.LevelWarn, "free called on an already-free region",
		slog.Uint64("addr", uint64(addr)))
}

func (a *Allocator) logOOM(pages int, err error) {
	a.logger.LogAttrs(context.Background(), slog.LevelError, "page provider failed to satisfy a block growth request",
		slog.Int("pages", pages),
		slog.Any("error", err))
}
