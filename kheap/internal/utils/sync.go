package utils

import (
	"runtime"
	"sync/atomic"
)

// SpinMutex is a spin-wait mutual-exclusion primitive for the allocator's
// short, non-blocking critical sections. A contended acquire busy-waits
// instead of parking the goroutine. On a bare-metal port, holding a SpinMutex
// is also where interrupt delivery is masked on the current execution unit;
// the hosted build yields the processor between attempts instead.
type SpinMutex struct {
	state atomic.Int32
}

func (m *SpinMutex) Lock() {
	for !m.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (m *SpinMutex) TryLock() bool {
	return m.state.CompareAndSwap(0, 1)
}

func (m *SpinMutex) Unlock() {
	if !m.state.CompareAndSwap(1, 0) {
		panic("unlock of an unlocked SpinMutex")
	}
}
