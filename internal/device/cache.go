package device

import (
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/format"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// TransposedCache memoizes transposed tensors within a training step so a
// weight needed by several matmuls is transposed once. Entries are keyed
// by the source buffer's identity plus an opaque owner identity; contents
// are never hashed, so the caller must invalidate whenever a source buffer
// is overwritten, either per tensor (Invalidate) or wholesale (Clear,
// typically right after the optimizer step).
//
// Identity keys alone are fragile if a buffer is freed and its address
// reused, so every source carries a generation counter: an entry computed
// under an older generation is a miss, not a hit.
//
// Not safe for concurrent use; see ScratchAllocator.
type TransposedCache struct {
	scratch     *ScratchAllocator
	entries     map[cacheKey]cacheEntry
	generations map[uintptr]uint64
	log         *logger.Logger
}

type cacheKey struct {
	src   uintptr
	owner uintptr
}

type cacheEntry struct {
	buf  []byte
	size int
	gen  uint64
}

func NewTransposedCache(scratch *ScratchAllocator) *TransposedCache {
	return &TransposedCache{
		scratch:     scratch,
		entries:     make(map[cacheKey]cacheEntry),
		generations: make(map[uintptr]uint64),
		log:         logger.Log.Component("transpose_cache"),
	}
}

// GetTransposed returns a buffer holding the transpose of src viewed as
// rows x cols, converted to outFmt. On a hit the cached buffer is returned
// without recomputation. On a miss with findOnly set, nil is returned and
// nothing is allocated. Otherwise a buffer is leased from the scratch
// allocator, populated by the transpose kernel unless compute is false,
// stored, and returned.
func (c *TransposedCache) GetTransposed(src Tensor, owner uintptr, rows, cols int, outFmt format.Type, compute, findOnly bool, stream *Stream) ([]byte, error) {
	key := cacheKey{src: src.ID(), owner: owner}
	size := rows * cols * outFmt.Size()
	gen := c.generations[key.src]

	if entry, ok := c.entries[key]; ok && entry.size == size && entry.gen == gen {
		metrics.RecordCacheLookup(true)
		return entry.buf, nil
	}
	metrics.RecordCacheLookup(false)
	if findOnly {
		return nil, nil
	}

	buf, err := c.scratch.Lease(size, true)
	if err != nil {
		return nil, err
	}
	if compute {
		transposed, err := NewTensor(buf[:size], outFmt, rows*cols)
		if err != nil {
			c.scratch.Release(buf)
			return nil, err
		}
		if err := Transpose(transposed, src, cols, rows, LaunchOptions{Stream: stream}); err != nil {
			c.scratch.Release(buf)
			return nil, fmt.Errorf("transpose for cache: %w", err)
		}
	}

	if stale, ok := c.entries[key]; ok {
		// replacing a stale entry for the same key: give its buffer back
		c.scratch.Release(stale.buf)
	}
	c.entries[key] = cacheEntry{buf: buf, size: size, gen: gen}
	return buf, nil
}

// Invalidate bumps the generation of a source buffer identity. Existing
// entries for it become misses without being released eagerly; their
// buffers return to the allocator on replacement or Clear.
func (c *TransposedCache) Invalidate(srcID uintptr) {
	c.generations[srcID]++
}

// Clear releases every cached buffer back to the scratch allocator and
// empties the cache.
func (c *TransposedCache) Clear() {
	for _, entry := range c.entries {
		c.scratch.Release(entry.buf)
	}
	c.log.Debug("cleared transpose cache", "entries", len(c.entries))
	c.entries = make(map[cacheKey]cacheEntry)
	c.generations = make(map[uintptr]uint64)
}

// Len reports the number of live entries.
func (c *TransposedCache) Len() int {
	return len(c.entries)
}
