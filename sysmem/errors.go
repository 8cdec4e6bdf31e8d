// Package sysmem reserves raw memory regions from the host operating system
// for hosted kernels and test rigs. A reserved region is mapped, zeroed and
// exclusively owned, which makes it a valid donation target for the
// allocators in this module.
package sysmem

import "github.com/pkg/errors"

// ErrNotSupported is returned by Reserve on platforms without an
// anonymous-mapping implementation.
var ErrNotSupported = errors.New("sysmem: anonymous mappings are not supported on this platform")
