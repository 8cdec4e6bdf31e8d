package kheap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/osdevkit/kmem/memutils"
)

// HeapStats is a snapshot of both sub-allocators' counters. The byte and page
// counters are read under their own locks but not atomically with respect to
// each other; they track disjoint resource pools, so no cross-allocator
// snapshot is needed.
type HeapStats struct {
	UsedBytes      int
	AvailableBytes int
	UsedPages      int
	AvailablePages int
	TotalPages     int
}

func (h *GlobalHeap) Stats() HeapStats {
	h.ensureInit()

	var stats HeapStats

	h.byteMu.Lock()
	stats.UsedBytes = h.bytes.UsedBytes()
	stats.AvailableBytes = h.bytes.AvailableBytes()
	h.byteMu.Unlock()

	h.pageMu.Lock()
	stats.UsedPages = h.pages.UsedPages()
	stats.AvailablePages = h.pages.AvailablePages()
	stats.TotalPages = h.pages.TotalPages()
	h.pageMu.Unlock()

	return stats
}

// PrintStats writes a JSON description of the heap's current state, for
// diagnostics surfaces that dump allocator maps.
func (h *GlobalHeap) PrintStats(writer *jwriter.Writer) {
	h.ensureInit()

	obj := writer.Object()
	defer obj.End()

	h.byteMu.Lock()
	var byteStats memutils.Statistics
	byteStats.Clear()
	h.bytes.AddStatistics(&byteStats)
	h.byteMu.Unlock()

	bytesObj := obj.Name("Bytes").Object()
	bytesObj.Name("Pools").Int(byteStats.PoolCount)
	bytesObj.Name("PoolBytes").Int(byteStats.PoolBytes)
	bytesObj.Name("Allocations").Int(byteStats.AllocationCount)
	bytesObj.Name("AllocationBytes").Int(byteStats.AllocationBytes)
	bytesObj.End()

	h.pageMu.Lock()
	usedPages := h.pages.UsedPages()
	availablePages := h.pages.AvailablePages()
	totalPages := h.pages.TotalPages()
	h.pageMu.Unlock()

	pagesObj := obj.Name("Pages").Object()
	pagesObj.Name("Used").Int(usedPages)
	pagesObj.Name("Available").Int(availablePages)
	pagesObj.Name("Total").Int(totalPages)
	pagesObj.Name("PageSize").Int(memutils.PageSize)
	pagesObj.End()
}

// BuildStatsString returns the PrintStats JSON as a string.
func (h *GlobalHeap) BuildStatsString() string {
	writer := jwriter.NewWriter()
	h.PrintStats(&writer)
	return string(writer.Bytes())
}
