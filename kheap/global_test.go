package kheap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/kmem/kheap"
	"github.com/osdevkit/kmem/memutils"
)

// The process-wide singleton can only be initialized once per process, so
// every singleton behavior lives in this one test.
func TestGlobalHeapLifecycle(t *testing.T) {
	require.Panics(t, func() {
		kheap.Global()
	})
	require.Panics(t, func() {
		_ = kheap.AddMemory(0x90000000, 4096)
	})

	kheap.Init(0xC0000000, 1<<20)

	h := kheap.Global()
	require.NotNil(t, h)
	require.Same(t, h, kheap.Global())

	layout := memutils.Layout{Size: 128, Alignment: 16}
	addr, err := h.Alloc(layout)
	require.NoError(t, err)
	require.Zero(t, addr%16)
	require.NoError(t, h.Dealloc(addr, layout))

	available := h.AvailableBytes()
	require.NoError(t, kheap.AddMemory(0xD0000000, 8192))
	require.Equal(t, available+8192, h.AvailableBytes())

	require.Panics(t, func() {
		kheap.Init(0xE0000000, 1<<20)
	})
}
