package kheap

import (
	"unsafe"

	"github.com/osdevkit/kmem/memutils"
)

// Raw adapts a GlobalHeap to the raw-pointer contract a language runtime
// expects of its default allocator: every failure becomes a nil pointer, and
// no typed error crosses the boundary. It is the only component in this
// module that dereferences managed memory, and only to zero and copy regions
// the heap has already handed out.
type Raw struct {
	heap *GlobalHeap
}

func NewRaw(heap *GlobalHeap) Raw {
	return Raw{heap: heap}
}

// Alloc reserves layout.Size bytes at layout.Alignment and returns a raw
// pointer to them, or nil on any failure.
func (r Raw) Alloc(layout memutils.Layout) unsafe.Pointer {
	addr, err := r.heap.Alloc(layout)
	if err != nil {
		return nil
	}
	return unsafe.Pointer(uintptr(addr))
}

// AllocZeroed is Alloc followed by a bitwise zero-fill of the region.
func (r Raw) AllocZeroed(layout memutils.Layout) unsafe.Pointer {
	ptr := r.Alloc(layout)
	if ptr == nil {
		return nil
	}

	buf := unsafe.Slice((*byte)(ptr), layout.Size)
	for i := range buf {
		buf[i] = 0
	}
	return ptr
}

// Dealloc releases an allocation made through this adapter. The pointer and
// layout must match the allocating call; the contract offers no way to report
// a mismatch, so detection failures are dropped here.
func (r Raw) Dealloc(ptr unsafe.Pointer, layout memutils.Layout) {
	_ = r.heap.Dealloc(uint64(uintptr(ptr)), layout)
}

// Realloc resizes the allocation at ptr to newSize bytes, keeping oldLayout's
// alignment. A shrink returns ptr unchanged, since the existing region
// already covers newSize at the required alignment. A grow allocates fresh
// memory, copies oldLayout.Size bytes, frees the old region and returns the
// new pointer; on allocation failure it returns nil and the old region stays
// live and untouched.
func (r Raw) Realloc(ptr unsafe.Pointer, oldLayout memutils.Layout, newSize int) unsafe.Pointer {
	if ptr == nil {
		return r.Alloc(memutils.Layout{Size: newSize, Alignment: oldLayout.Alignment})
	}
	if newSize <= oldLayout.Size {
		return ptr
	}

	newPtr := r.Alloc(memutils.Layout{Size: newSize, Alignment: oldLayout.Alignment})
	if newPtr == nil {
		return nil
	}

	copy(unsafe.Slice((*byte)(newPtr), newSize), unsafe.Slice((*byte)(ptr), oldLayout.Size))
	r.Dealloc(ptr, oldLayout)
	return newPtr
}
