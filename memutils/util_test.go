package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdevkit/kmem/memutils"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 8, memutils.AlignUp(8, 8))
	require.Equal(t, 16, memutils.AlignUp(9, 8))
	require.Equal(t, uint64(0x2000), memutils.AlignUp(uint64(0x1001), 4096))
	require.Equal(t, uint64(0x1000), memutils.AlignUp(uint64(0x1000), 4096))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, memutils.AlignDown(7, 8))
	require.Equal(t, 8, memutils.AlignDown(8, 8))
	require.Equal(t, 8, memutils.AlignDown(15, 8))
	require.Equal(t, uint64(0x1000), memutils.AlignDown(uint64(0x1FFF), 4096))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(uint(1), "value"))
	require.NoError(t, memutils.CheckPow2(uint(2), "value"))
	require.NoError(t, memutils.CheckPow2(uint(4096), "value"))

	err := memutils.CheckPow2(uint(3), "value")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	err = memutils.CheckPow2(uint(0), "value")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, memutils.Layout{Size: 1, Alignment: 1}.Validate())
	require.NoError(t, memutils.Layout{Size: 64, Alignment: 256}.Validate())

	err := memutils.Layout{Size: 0, Alignment: 8}.Validate()
	require.ErrorIs(t, err, memutils.ErrInvalidParam)

	err = memutils.Layout{Size: 64, Alignment: 3}.Validate()
	require.ErrorIs(t, err, memutils.ErrInvalidParam)

	err = memutils.Layout{Size: 64, Alignment: 0}.Validate()
	require.ErrorIs(t, err, memutils.ErrInvalidParam)
}

func TestRegionOverlaps(t *testing.T) {
	base := memutils.Region{Base: 0x1000, Size: 0x1000}

	require.True(t, base.Overlaps(memutils.Region{Base: 0x1800, Size: 0x1000}))
	require.True(t, base.Overlaps(memutils.Region{Base: 0x800, Size: 0x1000}))
	require.True(t, base.Overlaps(memutils.Region{Base: 0x1000, Size: 0x1000}))
	require.True(t, base.Overlaps(memutils.Region{Base: 0x1FFF, Size: 1}))

	require.False(t, base.Overlaps(memutils.Region{Base: 0x2000, Size: 0x1000}))
	require.False(t, base.Overlaps(memutils.Region{Base: 0x800, Size: 0x800}))
}

func TestRegionEnd(t *testing.T) {
	require.Equal(t, uint64(0x2000), memutils.Region{Base: 0x1000, Size: 0x1000}.End())
}
