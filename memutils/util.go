package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

const (
	// PageSize is the granularity at which page allocators operate and at
	// which byte allocators are grown.
	PageSize = 4096
	// PageShift is log2(PageSize).
	PageShift = 12
)

func CheckPow2[T constraints.Integer](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T constraints.Integer](value T, alignment uint) T {
	return (value + T(alignment) - 1) & ^(T(alignment) - 1)
}

func AlignDown[T constraints.Integer](value T, alignment uint) T {
	return value & ^(T(alignment) - 1)
}
