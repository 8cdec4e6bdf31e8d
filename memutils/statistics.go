package memutils

// Statistics describes the live state of a byte-granularity allocator: how
// many pools it manages, how many of their bytes are spoken for, and how many
// allocations are outstanding.
type Statistics struct {
	// PoolCount is the number of distinct memory pools the allocator manages.
	PoolCount int
	// AllocationCount is the number of live allocations across all pools.
	AllocationCount int
	// PoolBytes is the total size in bytes of all managed pools.
	PoolBytes int
	// AllocationBytes is the number of pool bytes held by live allocations.
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.PoolCount = 0
	s.AllocationCount = 0
	s.PoolBytes = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.PoolCount += other.PoolCount
	s.AllocationCount += other.AllocationCount
	s.PoolBytes += other.PoolBytes
	s.AllocationBytes += other.AllocationBytes
}
