//go:build windows

package sysmem

import (
	"github.com/osdevkit/kmem/memutils"
)

// Reserve is not implemented on windows.
func Reserve(size int) (memutils.Region, func() error, error) {
	return memutils.Region{}, nil, ErrNotSupported
}
