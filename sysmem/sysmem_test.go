package sysmem_test

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/kmem/memutils"
	"github.com/osdevkit/kmem/sysmem"
)

func TestReserve(t *testing.T) {
	region, release, err := sysmem.Reserve(8 * memutils.PageSize)
	if errors.Is(err, sysmem.ErrNotSupported) {
		t.Skip("no anonymous mappings on this platform")
	}
	require.NoError(t, err)
	require.Equal(t, 8*memutils.PageSize, region.Size)
	require.Zero(t, region.Base%memutils.PageSize)

	// The region is mapped, writable, and zeroed.
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(region.Base))), region.Size)
	require.Zero(t, buf[0])
	require.Zero(t, buf[len(buf)-1])
	buf[0] = 0x5A
	buf[len(buf)-1] = 0xA5
	require.Equal(t, byte(0x5A), buf[0])
	require.Equal(t, byte(0xA5), buf[len(buf)-1])

	require.NoError(t, release())
}

func TestReserveInvalidSize(t *testing.T) {
	_, _, err := sysmem.Reserve(0)
	if errors.Is(err, sysmem.ErrNotSupported) {
		t.Skip("no anonymous mappings on this platform")
	}
	require.ErrorIs(t, err, memutils.ErrInvalidParam)
}
