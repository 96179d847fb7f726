package device

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// ScratchAllocator hands out reusable buffers for transient kernel
// outputs. Buffers are never returned to the backing allocator before
// Teardown: a release only marks the buffer free for the next lease, which
// trades peak memory for zero steady-state allocation cost.
//
// Not safe for concurrent use. The core assumes a single controlling
// goroutine issuing leases and releases, matching the single logical
// submission order of the streams; concurrent callers must serialize.
type ScratchAllocator struct {
	mem            memory.Allocator
	allocations    []scratchAllocation
	totalAllocated int64
	tornDown       bool
	log            *logger.Logger
}

type scratchAllocation struct {
	buf   []byte
	size  int
	inUse bool
}

// NewScratchAllocator builds an allocator over mem; nil selects the
// default Arrow allocator.
func NewScratchAllocator(mem memory.Allocator) *ScratchAllocator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &ScratchAllocator{
		mem: mem,
		log: logger.Log.Component("scratch"),
	}
}

// Lease returns a buffer of at least size bytes (exactly size when exact
// is set), reusing the smallest free tracked buffer that satisfies the
// request before allocating new memory.
func (a *ScratchAllocator) Lease(size int, exact bool) ([]byte, error) {
	if a.tornDown {
		return nil, ErrTornDown
	}
	if size <= 0 {
		// nothing to hand out and nothing worth tracking
		return nil, nil
	}

	best := -1
	for i := range a.allocations {
		alloc := &a.allocations[i]
		if alloc.inUse || alloc.size < size {
			continue
		}
		if exact && alloc.size != size {
			continue
		}
		if best < 0 || alloc.size < a.allocations[best].size {
			best = i
		}
	}
	if best >= 0 {
		a.allocations[best].inUse = true
		a.recordUsage()
		return a.allocations[best].buf, nil
	}

	buf := a.mem.Allocate(size)
	a.allocations = append(a.allocations, scratchAllocation{buf: buf, size: size, inUse: true})
	a.totalAllocated += int64(size)
	a.log.Info("allocated scratch buffer",
		"bytes", size,
		"total_bytes", a.totalAllocated,
		"tracked", len(a.allocations))
	a.recordUsage()
	return buf, nil
}

// Release marks the buffer free for reuse. Nil buffers and buffers this
// allocator does not track are ignored.
func (a *ScratchAllocator) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}
	for i := range a.allocations {
		if len(a.allocations[i].buf) == 0 {
			continue
		}
		if &a.allocations[i].buf[0] == &buf[0] {
			a.allocations[i].inUse = false
			a.recordUsage()
			return
		}
	}
}

// Teardown frees every tracked buffer. The allocator is unusable
// afterwards; a second call is a no-op.
func (a *ScratchAllocator) Teardown() {
	if a.tornDown {
		a.log.Warn("teardown called twice")
		return
	}
	for i := range a.allocations {
		a.mem.Free(a.allocations[i].buf)
	}
	a.log.Info("scratch teardown",
		"freed_buffers", len(a.allocations),
		"freed_bytes", a.totalAllocated)
	a.allocations = nil
	a.totalAllocated = 0
	a.tornDown = true
	a.recordUsage()
}

// AllocatedBytes reports the bytes physically allocated since creation.
func (a *ScratchAllocator) AllocatedBytes() int64 {
	return a.totalAllocated
}

// Tracked reports how many buffers the allocator owns.
func (a *ScratchAllocator) Tracked() int {
	return len(a.allocations)
}

// InUse reports how many buffers are currently leased.
func (a *ScratchAllocator) InUse() int {
	n := 0
	for i := range a.allocations {
		if a.allocations[i].inUse {
			n++
		}
	}
	return n
}

func (a *ScratchAllocator) recordUsage() {
	metrics.RecordScratchMemory(a.totalAllocated, a.InUse(), len(a.allocations))
}
