package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// Region describes a contiguous span of already-valid memory as an opaque
// numeric range. Nothing in this module dereferences a Region: the caller
// guarantees the span is mapped and not aliased by any other owner, and that
// guarantee is a documented precondition, not a checked one.
type Region struct {
	// Base is the numeric address of the first byte of the span.
	Base uint64
	// Size is the length of the span in bytes. Must be positive.
	Size int
}

// End returns the address one past the last byte of the region.
func (r Region) End() uint64 {
	return r.Base + uint64(r.Size)
}

// Overlaps returns true if any byte of r is also a byte of other.
func (r Region) Overlaps(other Region) bool {
	return r.Base < other.End() && other.Base < r.End()
}

// Layout describes a single allocation request as a size and a minimum
// alignment. Alignment must be a power of two; Size must be positive for
// byte allocations.
type Layout struct {
	Size      int
	Alignment uint
}

// Validate checks the cheaply checkable Layout preconditions. Failures wrap
// ErrInvalidParam.
func (l Layout) Validate() error {
	if l.Size < 1 {
		return cerrors.Wrapf(ErrInvalidParam, "layout size is %d", l.Size)
	}
	if err := CheckPow2(l.Alignment, "layout alignment"); err != nil {
		return cerrors.Wrapf(ErrInvalidParam, "%s", err.Error())
	}
	return nil
}
