// Package heap implements a general-purpose heap memory allocator: a
// classic malloc/free/resize/zero-allocate interface on top of page-granular
// memory obtained from a pageprovider.Provider.
//
// The allocator subdivides each page-aligned heap block it owns into
// variable-sized regions using six segregated free-list size classes, first-fit
// search within a class, and boundary-tag coalescing on free. Allocated
// addresses never move once returned - there is no compaction, no
// thread-caching, and no fragmentation bound beyond first-fit-within-class.
package heap
