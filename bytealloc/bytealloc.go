// Package bytealloc provides byte-granularity allocators that serve
// arbitrary-size, arbitrary-alignment requests from one or more donated
// memory pools. Allocators in this package never dereference the memory they
// manage; pools are opaque numeric ranges handed in by the caller.
package bytealloc

import (
	"github.com/osdevkit/kmem/memutils"
)

// Allocator is the capability boundary for a byte-granularity allocator.
// Implementations manage suballocations within donated pools, allow
// allocations to be requested and freed, and report usage accounting.
type Allocator interface {
	// AddPool donates a region to the allocator's managed set. Donation is
	// one-way: the allocator owns the region for the rest of its lifetime.
	// Returns an error wrapping memutils.ErrMemoryOverlap if the region
	// overlaps a pool already under management.
	AddPool(region memutils.Region) error

	// Alloc reserves layout.Size bytes at an address aligned to
	// layout.Alignment and returns that address. Returns an error wrapping
	// memutils.ErrNoMemory when no free run in any pool can satisfy the
	// layout.
	Alloc(layout memutils.Layout) (uint64, error)

	// Dealloc releases an allocation made by a prior Alloc call. The layout
	// must match the one passed to that call; the allocator detects unknown
	// addresses (memutils.ErrNotAllocated) but a mismatched layout on a live
	// address is an unchecked caller precondition.
	Dealloc(addr uint64, layout memutils.Layout) error

	// UsedBytes reports the number of pool bytes held by live allocations.
	UsedBytes() int
	// AvailableBytes reports the number of pool bytes free for allocation.
	AvailableBytes() int

	// AddStatistics sums this allocator's pool and allocation counters into
	// the provided statistics.
	AddStatistics(stats *memutils.Statistics)
}
