package pagealloc

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/osdevkit/kmem/memutils"
)

// Bitmap is a first-fit page allocator backed by one bit per page in the
// managed range. A set bit marks an allocated page.
//
// Bitmap is not safe for concurrent use; callers serialize access.
type Bitmap struct {
	base  uint64
	pages int
	words []uint64
	used  int
}

var _ Allocator = (*Bitmap)(nil)

func NewBitmap() *Bitmap {
	return &Bitmap{}
}

func (b *Bitmap) ManageRange(region memutils.Region) error {
	if b.words != nil {
		return cerrors.Wrapf(memutils.ErrInvalidParam, "a page range is already under management")
	}
	if region.Size < 1 {
		return cerrors.Wrapf(memutils.ErrInvalidParam, "range size is %d", region.Size)
	}

	base := memutils.AlignUp(region.Base, memutils.PageSize)
	end := memutils.AlignDown(region.End(), memutils.PageSize)
	if end <= base {
		return cerrors.Wrapf(memutils.ErrInvalidParam,
			"range [%#x, %#x) does not contain a whole page", region.Base, region.End())
	}

	b.base = base
	b.pages = int((end - base) >> memutils.PageShift)
	b.words = make([]uint64, (b.pages+63)/64)
	return nil
}

func (b *Bitmap) isSet(page int) bool {
	return b.words[page/64]&(1<<(page%64)) != 0
}

func (b *Bitmap) set(page int) {
	b.words[page/64] |= 1 << (page % 64)
}

func (b *Bitmap) clear(page int) {
	b.words[page/64] &= ^(uint64(1) << (page % 64))
}

// firstTaken returns the index of the first allocated page in
// [start, start+count), or -1 if the whole run is free.
func (b *Bitmap) firstTaken(start, count int) int {
	for page := start; page < start+count; page++ {
		if b.isSet(page) {
			return page
		}
	}
	return -1
}

func (b *Bitmap) AllocPages(count int, alignPages uint) (uint64, error) {
	if b.words == nil {
		panic("pagealloc: AllocPages called before ManageRange")
	}
	if count < 1 {
		return 0, cerrors.Wrapf(memutils.ErrInvalidParam, "page count is %d", count)
	}
	if err := memutils.CheckPow2(alignPages, "page alignment"); err != nil {
		return 0, cerrors.Wrapf(memutils.ErrInvalidParam, "%s", err.Error())
	}

	memutils.DebugValidate(b)

	// Alignment applies to the absolute page index so the returned byte
	// address is aligned to alignPages*PageSize regardless of where the
	// managed range begins.
	basePage := b.base >> memutils.PageShift
	start := int(memutils.AlignUp(basePage, alignPages) - basePage)

	for start+count <= b.pages {
		taken := b.firstTaken(start, count)
		if taken < 0 {
			for page := start; page < start+count; page++ {
				b.set(page)
			}
			b.used += count
			return b.base + uint64(start)<<memutils.PageShift, nil
		}
		next := basePage + uint64(taken) + 1
		start = int(memutils.AlignUp(next, alignPages) - basePage)
	}

	return 0, cerrors.Wrapf(memutils.ErrNoMemory,
		"no run of %d free pages at page alignment %d", count, alignPages)
}

func (b *Bitmap) DeallocPages(addr uint64, count int) error {
	if b.words == nil {
		panic("pagealloc: DeallocPages called before ManageRange")
	}
	if count < 1 {
		return cerrors.Wrapf(memutils.ErrInvalidParam, "page count is %d", count)
	}
	if addr%memutils.PageSize != 0 {
		return cerrors.Wrapf(memutils.ErrInvalidParam, "address %#x is not page-aligned", addr)
	}
	if addr < b.base {
		return cerrors.Wrapf(memutils.ErrNotAllocated, "address %#x is below the managed range", addr)
	}

	start := int((addr - b.base) >> memutils.PageShift)
	if start+count > b.pages {
		return cerrors.Wrapf(memutils.ErrNotAllocated,
			"run of %d pages at %#x extends past the managed range", count, addr)
	}
	for page := start; page < start+count; page++ {
		if !b.isSet(page) {
			return cerrors.Wrapf(memutils.ErrNotAllocated,
				"page at %#x is not allocated", b.base+uint64(page)<<memutils.PageShift)
		}
	}

	for page := start; page < start+count; page++ {
		b.clear(page)
	}
	b.used -= count

	memutils.DebugValidate(b)
	return nil
}

func (b *Bitmap) UsedPages() int {
	return b.used
}

func (b *Bitmap) AvailablePages() int {
	return b.pages - b.used
}

func (b *Bitmap) TotalPages() int {
	return b.pages
}

// Validate recounts the bitmap and checks it against the used counter. It
// exists to diagnose implementation bugs under the debug_mem_utils build tag.
func (b *Bitmap) Validate() error {
	counted := 0
	for _, word := range b.words {
		counted += bits.OnesCount64(word)
	}
	if counted != b.used {
		return errors.Errorf("used counter is %d but %d pages are marked allocated", b.used, counted)
	}

	if tail := b.pages % 64; tail != 0 {
		if b.words[len(b.words)-1]&(^uint64(0)<<tail) != 0 {
			return errors.New("pages beyond the managed range are marked allocated")
		}
	}

	return nil
}
