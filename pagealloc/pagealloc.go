// Package pagealloc provides page-granularity allocators over a single
// managed address range. Pages are fixed-size units of memutils.PageSize
// bytes; allocators here hand out runs of whole pages and never dereference
// the memory they index.
package pagealloc

import (
	"github.com/osdevkit/kmem/memutils"
)

// Allocator is the capability boundary for a page-granularity allocator.
type Allocator interface {
	// ManageRange hands the allocator the address range it indexes. The range
	// is trimmed inward to page boundaries. ManageRange is called exactly
	// once; a second call returns an error wrapping memutils.ErrInvalidParam.
	ManageRange(region memutils.Region) error

	// AllocPages reserves a contiguous run of count pages whose starting page
	// index is a multiple of alignPages (a power of two) and returns the run's
	// byte address. Returns an error wrapping memutils.ErrNoMemory when no
	// such run exists.
	AllocPages(count int, alignPages uint) (uint64, error)

	// DeallocPages releases a run previously returned by AllocPages. The
	// address and count must match the allocating call; runs containing pages
	// not currently allocated are rejected with memutils.ErrNotAllocated.
	DeallocPages(addr uint64, count int) error

	// UsedPages reports the number of pages currently allocated.
	UsedPages() int
	// AvailablePages reports the number of pages currently free.
	AvailablePages() int
	// TotalPages reports the number of pages in the managed range.
	TotalPages() int
}
