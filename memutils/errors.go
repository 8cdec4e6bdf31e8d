package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// Allocator failure kinds. Every fallible operation in this module returns
// one of these sentinels, usually wrapped with call-site context. Callers
// classify with errors.Is.
var (
	// ErrInvalidParam indicates a layout or region parameter that violates a
	// cheaply checkable precondition, such as a non-power-of-two alignment.
	ErrInvalidParam error = errors.New("invalid allocation parameter")

	// ErrNoMemory indicates that the targeted allocator, including any growth
	// fallback it may have, could not satisfy the request.
	ErrNoMemory error = errors.New("out of memory")

	// ErrMemoryOverlap indicates a donated region that overlaps memory the
	// allocator already manages.
	ErrMemoryOverlap error = errors.New("memory region overlaps a managed region")

	// ErrNotAllocated indicates a free of memory the allocator does not
	// recognize as currently allocated.
	ErrNotAllocated error = errors.New("memory is not currently allocated")
)
