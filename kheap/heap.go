// Package kheap composes a byte-granularity allocator with a page-granularity
// allocator into the memory-allocation core of a kernel heap. Arbitrary-size
// requests are served from the byte allocator; when it runs dry the heap
// grows it by carving pages from the page allocator and donating them,
// permanently, to the byte pool. Page-granularity requests bypass the byte
// allocator entirely.
//
// Addresses are opaque integers throughout: nothing in this package
// dereferences managed memory except the Raw adapter, which exists precisely
// to hand raw pointers to a runtime.
package kheap

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	cerrors "github.com/cockroachdb/errors"

	"github.com/osdevkit/kmem/bytealloc"
	"github.com/osdevkit/kmem/kheap/internal/utils"
	"github.com/osdevkit/kmem/memutils"
	"github.com/osdevkit/kmem/pagealloc"
)

const (
	// SeedSize is the size of the sub-region carved from the front of the
	// initial range and donated to the byte allocator during Init.
	SeedSize = 32 * 1024

	seedPages = SeedSize / memutils.PageSize

	// minGrowPages is the growth floor: the byte pool never grows by fewer
	// pages than this, so repeated small exhaustions are amortized instead of
	// each triggering its own page allocation.
	minGrowPages = 16

	// growSlack is headroom added to growth sizing for allocator bookkeeping,
	// so a donation sized for a request cannot fail the retry on overhead.
	growSlack = 64
)

// Options configures a GlobalHeap. Zero-value fields fall back to the
// defaults: a bytealloc.FreeList, a pagealloc.Bitmap, and a discard logger.
type Options struct {
	Bytes  bytealloc.Allocator
	Pages  pagealloc.Allocator
	Logger *slog.Logger
}

// GlobalHeap owns one byte allocator and one page allocator, each behind its
// own spin lock, and implements the composition policy between them.
//
// A GlobalHeap is constructed empty and must be handed its first memory
// region via Init, exactly once, before any allocation. It is never torn
// down; donated memory is owned until the process ends.
type GlobalHeap struct {
	logger *slog.Logger

	byteMu utils.SpinMutex
	bytes  bytealloc.Allocator

	pageMu utils.SpinMutex
	pages  pagealloc.Allocator

	initialized atomic.Bool
}

func New(o Options) *GlobalHeap {
	if o.Bytes == nil {
		o.Bytes = bytealloc.NewFreeList()
	}
	if o.Pages == nil {
		o.Pages = pagealloc.NewBitmap()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &GlobalHeap{
		logger: o.Logger,
		bytes:  o.Bytes,
		pages:  o.Pages,
	}
}

func (h *GlobalHeap) ensureInit() {
	if !h.initialized.Load() {
		panic("kheap: heap used before Init")
	}
}

// Init hands the heap its first region. The whole region is registered with
// the page allocator, then SeedSize bytes are allocated through the page
// allocator's own path and donated to the byte allocator, keeping page
// accounting consistent from the first byte.
//
// The region must be mapped, exclusively owned, and larger than SeedSize;
// violations are kernel-programming bugs and panic rather than return.
// Init is called exactly once, before any allocation.
func (h *GlobalHeap) Init(region memutils.Region) {
	if region.Size <= SeedSize {
		panic(fmt.Sprintf("kheap: initial region of %d bytes cannot hold the %d-byte seed", region.Size, SeedSize))
	}
	if !h.initialized.CompareAndSwap(false, true) {
		panic("kheap: Init called twice")
	}

	h.pageMu.Lock()
	err := h.pages.ManageRange(region)
	if err == nil {
		var seedBase uint64
		seedBase, err = h.pages.AllocPages(seedPages, 1)
		if err == nil {
			h.pageMu.Unlock()

			h.byteMu.Lock()
			err = h.bytes.AddPool(memutils.Region{Base: seedBase, Size: SeedSize})
			h.byteMu.Unlock()
			if err != nil {
				panic(fmt.Sprintf("kheap: seed donation failed: %+v", err))
			}

			h.logger.Debug("heap initialized",
				"base", region.Base, "size", region.Size, "seedBase", seedBase)
			return
		}
	}
	h.pageMu.Unlock()
	panic(fmt.Sprintf("kheap: initial region is unusable: %+v", err))
}

// AddMemory donates an additional region directly to the byte allocator,
// bypassing the page allocator. Callable any number of times after Init,
// e.g. for pre-reserved areas discovered after boot.
func (h *GlobalHeap) AddMemory(region memutils.Region) error {
	h.ensureInit()

	h.byteMu.Lock()
	defer h.byteMu.Unlock()
	return h.bytes.AddPool(region)
}

// growPages sizes a byte-pool growth for layout: the request plus alignment
// and bookkeeping slack, rounded up to whole pages, floored at minGrowPages.
func growPages(layout memutils.Layout) int {
	need := layout.Size + int(layout.Alignment) + growSlack
	pages := memutils.AlignUp(need, memutils.PageSize) >> memutils.PageShift
	if pages < minGrowPages {
		pages = minGrowPages
	}
	return pages
}

// Alloc reserves layout.Size bytes at a layout.Alignment-aligned address.
//
// The byte allocator is tried first. On exhaustion the heap computes a
// growth size, takes that many pages from the page allocator, donates them
// to the byte pool and retries exactly once. The two locks are never held
// together: the order is always byte, release, page, release, byte. If the
// donation lands but the retry still fails, the donated pages stay with the
// byte allocator as future capacity.
func (h *GlobalHeap) Alloc(layout memutils.Layout) (uint64, error) {
	h.ensureInit()

	if err := layout.Validate(); err != nil {
		return 0, err
	}

	h.byteMu.Lock()
	addr, err := h.bytes.Alloc(layout)
	h.byteMu.Unlock()
	if err == nil {
		return addr, nil
	}
	if !cerrors.Is(err, memutils.ErrNoMemory) {
		return 0, err
	}

	grow := growPages(layout)

	h.pageMu.Lock()
	base, pageErr := h.pages.AllocPages(grow, 1)
	h.pageMu.Unlock()
	if pageErr != nil {
		return 0, cerrors.Wrapf(pageErr, "byte pool exhausted and cannot grow by %d pages", grow)
	}

	donated := memutils.Region{Base: base, Size: grow * memutils.PageSize}
	h.logger.Debug("heap growth", "pages", grow, "base", base, "requestSize", layout.Size)

	h.byteMu.Lock()
	defer h.byteMu.Unlock()

	if err := h.bytes.AddPool(donated); err != nil {
		return 0, err
	}
	return h.bytes.Alloc(layout)
}

// Dealloc releases an allocation made by a prior Alloc. The address and
// layout must exactly match that call; beyond unknown-address detection in
// the byte allocator, mismatches are unchecked caller errors, as no
// per-allocation layout metadata is kept.
func (h *GlobalHeap) Dealloc(addr uint64, layout memutils.Layout) error {
	h.ensureInit()

	h.byteMu.Lock()
	defer h.byteMu.Unlock()
	return h.bytes.Dealloc(addr, layout)
}

// AllocPages reserves count contiguous pages at a page alignment of
// alignPages directly from the page allocator. There is no growth fallback at
// this granularity.
func (h *GlobalHeap) AllocPages(count int, alignPages uint) (uint64, error) {
	h.ensureInit()

	h.pageMu.Lock()
	defer h.pageMu.Unlock()
	return h.pages.AllocPages(count, alignPages)
}

// DeallocPages releases a run returned by a prior AllocPages. The address and
// count must match that call.
func (h *GlobalHeap) DeallocPages(addr uint64, count int) error {
	h.ensureInit()

	h.pageMu.Lock()
	defer h.pageMu.Unlock()
	return h.pages.DeallocPages(addr, count)
}

// UsedBytes reports the byte allocator's live allocation bytes. This only
// covers memory already donated to the byte pool, not pages still held by
// the page allocator.
func (h *GlobalHeap) UsedBytes() int {
	h.ensureInit()

	h.byteMu.Lock()
	defer h.byteMu.Unlock()
	return h.bytes.UsedBytes()
}

// AvailableBytes reports the byte allocator's free bytes across all donated
// pools.
func (h *GlobalHeap) AvailableBytes() int {
	h.ensureInit()

	h.byteMu.Lock()
	defer h.byteMu.Unlock()
	return h.bytes.AvailableBytes()
}

func (h *GlobalHeap) UsedPages() int {
	h.ensureInit()

	h.pageMu.Lock()
	defer h.pageMu.Unlock()
	return h.pages.UsedPages()
}

func (h *GlobalHeap) AvailablePages() int {
	h.ensureInit()

	h.pageMu.Lock()
	defer h.pageMu.Unlock()
	return h.pages.AvailablePages()
}
