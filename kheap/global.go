package kheap

import (
	"sync"

	"github.com/osdevkit/kmem/memutils"
)

// The process-wide heap. Kernel startup calls Init with the first boot
// region before any dynamic allocation runs; everything after that reaches
// the singleton through Global or the package-level helpers.
var (
	globalMu sync.Mutex
	global   *GlobalHeap
)

// Init performs one-time setup of the process-wide heap over the region
// [base, base+size). It must be called before any allocation and only once;
// a second call panics, since that is a kernel-programming bug rather than a
// runtime condition.
func Init(base uint64, size int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		panic("kheap: global heap initialized twice")
	}

	h := New(Options{})
	h.Init(memutils.Region{Base: base, Size: size})
	global = h
}

// AddMemory donates an additional region [base, base+size) to the
// process-wide heap's byte pool. Callable any number of times after Init.
func AddMemory(base uint64, size int) error {
	return Global().AddMemory(memutils.Region{Base: base, Size: size})
}

// Global returns the process-wide heap for diagnostics and statistics
// callers. It panics before Init.
func Global() *GlobalHeap {
	globalMu.Lock()
	h := global
	globalMu.Unlock()

	if h == nil {
		panic("kheap: global heap is not initialized")
	}
	return h
}
