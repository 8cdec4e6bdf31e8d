//go:build unix

package sysmem

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/osdevkit/kmem/memutils"
)

// Reserve maps size bytes of anonymous private memory and describes it as a
// Region. The returned release function unmaps the region; nothing may touch
// the memory afterwards. mmap hands back page-aligned memory, so the region
// needs no further trimming before page-allocator use.
func Reserve(size int) (memutils.Region, func() error, error) {
	if size < 1 {
		return memutils.Region{}, nil, cerrors.Wrapf(memutils.ErrInvalidParam, "reserve size is %d", size)
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return memutils.Region{}, nil, cerrors.Wrapf(memutils.ErrNoMemory,
			"mmap of %d anonymous bytes failed: %s", size, err)
	}

	region := memutils.Region{
		Base: uint64(uintptr(unsafe.Pointer(&buf[0]))),
		Size: size,
	}
	release := func() error {
		return unix.Munmap(buf)
	}
	return region, release, nil
}
