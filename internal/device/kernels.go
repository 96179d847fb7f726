package device

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Kernel tuning constants. Block sizes are threads per block; a thread
// moves one 16-byte vector per step.
const (
	defaultCopyBlockSize      = 512
	defaultTransposeBlockSize = 256
	defaultAbsmaxBlockSize    = 512
	absmaxIterationsPerThread = 4
	minAbsmaxBlockSize        = 32
)

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// parallelBlocks fans a grid of blocks out over a bounded goroutine pool.
// Blocks are claimed from a shared counter; reversed flips the claim order,
// a scheduling hint for copies running against another kernel sweeping the
// same memory the other way.
func parallelBlocks(workers, numBlocks int, reversed bool, body func(block int)) {
	if numBlocks <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numBlocks {
		workers = numBlocks
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n := int(next.Add(1)) - 1
				if n >= numBlocks {
					return
				}
				b := n
				if reversed {
					b = numBlocks - 1 - n
				}
				body(b)
			}
		}()
	}
	wg.Wait()
}

// resolveScaleFactors reads the optional per-tensor scale slots once per
// launch. descale is never reciprocal; scale becomes its reciprocal unless
// direct multiply was requested or the factor is zero.
func resolveScaleFactors(in, out *Tensor, directScale bool) (descale, scale float32) {
	descale = 1.0
	scale = 1.0
	if in.Descale != nil {
		descale = *in.Descale
	}
	if out.Scale != nil {
		scale = *out.Scale
	}
	if !directScale && scale != 0.0 {
		scale = 1.0 / scale
	}
	return descale, scale
}
