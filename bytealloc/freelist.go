package bytealloc

import (
	"math/bits"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/osdevkit/kmem/memutils"
)

const (
	// freeListCount is the number of size classes. Class i holds free blocks
	// whose size s satisfies 2^i <= s < 2^(i+1); the last class holds
	// everything larger.
	freeListCount = 48

	// minSplitSize is the smallest remainder worth carving into its own free
	// block. Smaller trailing remainders stay inside the allocation and are
	// recovered when it is freed.
	minSplitSize = 16
)

var blockPool = sync.Pool{
	New: func() any {
		return &block{}
	},
}

// block is one contiguous span within a pool, either taken or free. Blocks
// form a doubly linked physical chain per pool, ordered by address, and free
// blocks additionally sit in the size-class free list.
type block struct {
	addr uint64
	size int

	parent   *pool
	prevPhys *block
	nextPhys *block

	prevFree *block
	nextFree *block

	taken bool
}

type pool struct {
	region memutils.Region
	head   *block
}

// FreeList is a segregated free-list, best-fit-leaning byte allocator over
// one or more absolute-addressed pools. Free blocks are indexed by
// power-of-two size class with a class-occupancy bitmap, and live allocations
// are tracked in a hash map keyed by address so frees of unknown addresses
// are detected rather than corrupting the chain.
//
// FreeList is not safe for concurrent use; callers serialize access.
type FreeList struct {
	pools     []*pool
	freeLists [freeListCount]*block

	// freeClassBits has bit i set when freeLists[i] is non-empty.
	freeClassBits uint64

	live *swiss.Map[uint64, *block]

	usedBytes  int
	freeBytes  int
	poolBytes  int
	allocCount int
}

var _ Allocator = (*FreeList)(nil)

func NewFreeList() *FreeList {
	return &FreeList{
		live: swiss.NewMap[uint64, *block](64),
	}
}

func (f *FreeList) allocateBlock() *block {
	b := blockPool.Get().(*block)
	b.addr = 0
	b.size = 0
	b.parent = nil
	b.prevPhys = nil
	b.nextPhys = nil
	b.prevFree = nil
	b.nextFree = nil
	b.taken = false
	return b
}

func (f *FreeList) recycleBlock(b *block) {
	blockPool.Put(b)
}

func sizeClass(size int) int {
	class := bits.Len64(uint64(size)) - 1
	if class >= freeListCount {
		class = freeListCount - 1
	}
	return class
}

func (f *FreeList) insertFreeBlock(b *block) {
	if b.taken {
		panic("cannot insert a taken block into the free list")
	}

	class := sizeClass(b.size)
	b.prevFree = nil
	b.nextFree = f.freeLists[class]
	if b.nextFree != nil {
		b.nextFree.prevFree = b
	}
	f.freeLists[class] = b
	f.freeClassBits |= 1 << class
}

func (f *FreeList) removeFreeBlock(b *block) {
	class := sizeClass(b.size)

	if b.prevFree != nil {
		b.prevFree.nextFree = b.nextFree
	} else {
		if f.freeLists[class] != b {
			panic("block was not in the free list at the expected location")
		}
		f.freeLists[class] = b.nextFree
		if b.nextFree == nil {
			f.freeClassBits &= ^(uint64(1) << class)
		}
	}
	if b.nextFree != nil {
		b.nextFree.prevFree = b.prevFree
	}

	b.prevFree = nil
	b.nextFree = nil
}

// AddPool donates region to the allocator. The region becomes a new physical
// chain consisting of a single free block.
func (f *FreeList) AddPool(region memutils.Region) error {
	if region.Size < 1 {
		return cerrors.Wrapf(memutils.ErrInvalidParam, "pool size is %d", region.Size)
	}
	for _, p := range f.pools {
		if p.region.Overlaps(region) {
			return cerrors.Wrapf(memutils.ErrMemoryOverlap,
				"donated region [%#x, %#x) overlaps managed pool [%#x, %#x)",
				region.Base, region.End(), p.region.Base, p.region.End())
		}
	}

	p := &pool{region: region}
	b := f.allocateBlock()
	b.addr = region.Base
	b.size = region.Size
	b.parent = p
	p.head = b

	f.pools = append(f.pools, p)
	f.poolBytes += region.Size
	f.freeBytes += region.Size
	f.insertFreeBlock(b)

	return nil
}

// fitOffset returns the aligned address at which layout would fit inside b,
// if it fits at all.
func fitOffset(b *block, layout memutils.Layout) (uint64, bool) {
	aligned := memutils.AlignUp(b.addr, layout.Alignment)
	if aligned+uint64(layout.Size) > b.addr+uint64(b.size) {
		return 0, false
	}
	return aligned, true
}

// findFreeBlock scans the free lists for the lowest size class that could
// hold layout and walks upward through occupied classes until a block with
// room for the aligned request turns up.
func (f *FreeList) findFreeBlock(layout memutils.Layout) (*block, uint64, bool) {
	classMask := f.freeClassBits & (^uint64(0) << sizeClass(layout.Size))
	for classMask != 0 {
		class := bits.TrailingZeros64(classMask)
		classMask &= classMask - 1

		for b := f.freeLists[class]; b != nil; b = b.nextFree {
			if aligned, ok := fitOffset(b, layout); ok {
				return b, aligned, true
			}
		}
	}
	return nil, 0, false
}

// Alloc reserves layout.Size bytes at a layout.Alignment-aligned address.
func (f *FreeList) Alloc(layout memutils.Layout) (uint64, error) {
	if err := layout.Validate(); err != nil {
		return 0, err
	}

	memutils.DebugValidate(f)

	b, aligned, ok := f.findFreeBlock(layout)
	if !ok {
		return 0, cerrors.Wrapf(memutils.ErrNoMemory,
			"no free block holds %d bytes at alignment %d", layout.Size, layout.Alignment)
	}

	f.removeFreeBlock(b)

	// Peel the alignment slack off the front, either by growing a free
	// physical neighbor or by carving a new free block.
	leading := int(aligned - b.addr)
	if leading > 0 {
		prev := b.prevPhys
		if prev != nil && !prev.taken {
			f.removeFreeBlock(prev)
			prev.size += leading
			f.insertFreeBlock(prev)
		} else {
			lead := f.allocateBlock()
			lead.addr = b.addr
			lead.size = leading
			lead.parent = b.parent
			lead.prevPhys = b.prevPhys
			lead.nextPhys = b
			if lead.prevPhys != nil {
				lead.prevPhys.nextPhys = lead
			} else {
				b.parent.head = lead
			}
			b.prevPhys = lead
			f.insertFreeBlock(lead)
		}
		b.addr = aligned
		b.size -= leading
	}

	// Carve off a worthwhile trailing remainder; a sliver stays with the
	// allocation and comes back on free.
	trailing := b.size - layout.Size
	if trailing >= minSplitSize {
		tail := f.allocateBlock()
		tail.addr = b.addr + uint64(layout.Size)
		tail.size = trailing
		tail.parent = b.parent
		tail.prevPhys = b
		tail.nextPhys = b.nextPhys
		if tail.nextPhys != nil {
			tail.nextPhys.prevPhys = tail
		}
		b.nextPhys = tail
		b.size = layout.Size
		f.insertFreeBlock(tail)
	}

	b.taken = true
	f.live.Put(b.addr, b)
	f.usedBytes += b.size
	f.freeBytes -= b.size
	f.allocCount++

	return b.addr, nil
}

// Dealloc releases the allocation at addr, merging it with free physical
// neighbors. The layout must match the allocating call; beyond recognizing
// the address, mismatches are not detectable here.
func (f *FreeList) Dealloc(addr uint64, layout memutils.Layout) error {
	b, ok := f.live.Get(addr)
	if !ok {
		return cerrors.Wrapf(memutils.ErrNotAllocated, "address %#x", addr)
	}

	f.live.Delete(addr)
	f.usedBytes -= b.size
	f.freeBytes += b.size
	f.allocCount--
	b.taken = false

	if prev := b.prevPhys; prev != nil && !prev.taken {
		f.removeFreeBlock(prev)
		prev.size += b.size
		prev.nextPhys = b.nextPhys
		if b.nextPhys != nil {
			b.nextPhys.prevPhys = prev
		}
		f.recycleBlock(b)
		b = prev
	}

	if next := b.nextPhys; next != nil && !next.taken {
		f.removeFreeBlock(next)
		b.size += next.size
		b.nextPhys = next.nextPhys
		if next.nextPhys != nil {
			next.nextPhys.prevPhys = b
		}
		f.recycleBlock(next)
	}

	f.insertFreeBlock(b)

	memutils.DebugValidate(f)
	return nil
}

func (f *FreeList) UsedBytes() int {
	return f.usedBytes
}

func (f *FreeList) AvailableBytes() int {
	return f.freeBytes
}

func (f *FreeList) AddStatistics(stats *memutils.Statistics) {
	stats.PoolCount += len(f.pools)
	stats.PoolBytes += f.poolBytes
	stats.AllocationCount += f.allocCount
	stats.AllocationBytes += f.usedBytes
}

// Validate performs internal consistency checks on the physical chains, the
// free lists and the accounting counters. When the allocator is functioning
// correctly it cannot return an error; it exists to diagnose implementation
// bugs under the debug_mem_utils build tag.
func (f *FreeList) Validate() error {
	var calcUsed, calcFree, calcPoolBytes, calcAllocs int

	for _, p := range f.pools {
		cursor := p.region.Base
		for b := p.head; b != nil; b = b.nextPhys {
			if b.addr != cursor {
				return errors.Errorf("block at %#x does not start where the previous block ended (%#x)", b.addr, cursor)
			}
			if b.size < 1 {
				return errors.Errorf("block at %#x has size %d", b.addr, b.size)
			}
			if b.parent != p {
				return errors.Errorf("block at %#x is chained into the wrong pool", b.addr)
			}
			if b.nextPhys != nil && b.nextPhys.prevPhys != b {
				return errors.Errorf("block at %#x has a broken reverse physical link", b.addr)
			}

			if b.taken {
				live, ok := f.live.Get(b.addr)
				if !ok || live != b {
					return errors.Errorf("taken block at %#x is not tracked as live", b.addr)
				}
				calcUsed += b.size
				calcAllocs++
			} else {
				if !f.freeListContains(b) {
					return errors.Errorf("free block at %#x is missing from its free list", b.addr)
				}
				calcFree += b.size
			}

			cursor += uint64(b.size)
		}
		if cursor != p.region.End() {
			return errors.Errorf("pool [%#x, %#x) blocks end at %#x", p.region.Base, p.region.End(), cursor)
		}
		calcPoolBytes += p.region.Size
	}

	if calcUsed != f.usedBytes {
		return errors.Errorf("used bytes counter is %d but taken blocks add up to %d", f.usedBytes, calcUsed)
	}
	if calcFree != f.freeBytes {
		return errors.Errorf("free bytes counter is %d but free blocks add up to %d", f.freeBytes, calcFree)
	}
	if calcPoolBytes != f.poolBytes {
		return errors.Errorf("pool bytes counter is %d but pools add up to %d", f.poolBytes, calcPoolBytes)
	}
	if calcAllocs != f.allocCount {
		return errors.Errorf("allocation counter is %d but %d taken blocks exist", f.allocCount, calcAllocs)
	}

	return nil
}

func (f *FreeList) freeListContains(b *block) bool {
	for candidate := f.freeLists[sizeClass(b.size)]; candidate != nil; candidate = candidate.nextFree {
		if candidate == b {
			return true
		}
	}
	return false
}
