package kheap_test

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/kmem/kheap"
	"github.com/osdevkit/kmem/memutils"
	"github.com/osdevkit/kmem/sysmem"
)

// rawTestHeap backs a heap with real, dereferenceable memory so the adapter's
// zeroing and copying can be observed.
func rawTestHeap(t *testing.T) kheap.Raw {
	t.Helper()

	region, release, err := sysmem.Reserve(1 << 20)
	if errors.Is(err, sysmem.ErrNotSupported) {
		t.Skip("no anonymous mappings on this platform")
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, release())
	})

	h := kheap.New(kheap.Options{})
	h.Init(region)
	return kheap.NewRaw(h)
}

func TestRawAllocZeroed(t *testing.T) {
	raw := rawTestHeap(t)
	layout := memutils.Layout{Size: 256, Alignment: 8}

	// Dirty a block, free it, and demand zeroed memory: the free list hands
	// the same block back, so the zero-fill is what gets observed.
	ptr := raw.Alloc(layout)
	require.NotNil(t, ptr)

	buf := unsafe.Slice((*byte)(ptr), layout.Size)
	for i := range buf {
		buf[i] = 0xAA
	}
	raw.Dealloc(ptr, layout)

	ptr = raw.AllocZeroed(layout)
	require.NotNil(t, ptr)

	buf = unsafe.Slice((*byte)(ptr), layout.Size)
	for i, value := range buf {
		require.Zerof(t, value, "byte %d is not zeroed", i)
	}
	raw.Dealloc(ptr, layout)
}

func TestRawReallocGrowPreservesContents(t *testing.T) {
	raw := rawTestHeap(t)
	oldLayout := memutils.Layout{Size: 64, Alignment: 8}

	ptr := raw.Alloc(oldLayout)
	require.NotNil(t, ptr)

	buf := unsafe.Slice((*byte)(ptr), oldLayout.Size)
	for i := range buf {
		buf[i] = byte(i)
	}

	grown := raw.Realloc(ptr, oldLayout, 256)
	require.NotNil(t, grown)
	require.Zero(t, uintptr(grown)%8)

	grownBuf := unsafe.Slice((*byte)(grown), 256)
	for i := 0; i < oldLayout.Size; i++ {
		require.Equalf(t, byte(i), grownBuf[i], "byte %d was not preserved", i)
	}

	raw.Dealloc(grown, memutils.Layout{Size: 256, Alignment: 8})
}

func TestRawReallocShrinkReturnsSamePointer(t *testing.T) {
	raw := rawTestHeap(t)
	layout := memutils.Layout{Size: 256, Alignment: 8}

	ptr := raw.Alloc(layout)
	require.NotNil(t, ptr)

	shrunk := raw.Realloc(ptr, layout, 32)
	require.Equal(t, ptr, shrunk)

	raw.Dealloc(ptr, layout)
}

func TestRawReallocNilIsAlloc(t *testing.T) {
	raw := rawTestHeap(t)

	ptr := raw.Realloc(nil, memutils.Layout{Size: 128, Alignment: 16}, 128)
	require.NotNil(t, ptr)
	require.Zero(t, uintptr(ptr)%16)

	raw.Dealloc(ptr, memutils.Layout{Size: 128, Alignment: 16})
}

func TestRawAllocFailureIsNil(t *testing.T) {
	raw := rawTestHeap(t)

	require.Nil(t, raw.Alloc(memutils.Layout{Size: 1 << 30, Alignment: 8}))
	require.Nil(t, raw.AllocZeroed(memutils.Layout{Size: 1 << 30, Alignment: 8}))

	// A failed grow leaves the old allocation untouched.
	layout := memutils.Layout{Size: 64, Alignment: 8}
	ptr := raw.Alloc(layout)
	require.NotNil(t, ptr)
	require.Nil(t, raw.Realloc(ptr, layout, 1<<30))
	raw.Dealloc(ptr, layout)
}
