package device

import (
	"math"
	"sync/atomic"
)

// Online absmax reduction. Non-negative floats order the same as their bit
// patterns, so each worker keeps a running uint32 maximum of |value| bits
// and folds it into the shared slot with one atomic max per worker per
// launch. The slot only grows until the caller resets it.

const floatAbsMask = 0x7FFFFFFF

func updateLocalAbsmax(local *uint32, v float32) {
	bits := math.Float32bits(v) & floatAbsMask
	if bits > *local {
		*local = bits
	}
}

func updateGlobalAbsmax(slot *uint32, local uint32) {
	if local == 0 {
		return
	}
	for {
		cur := atomic.LoadUint32(slot)
		if local <= cur {
			return
		}
		if atomic.CompareAndSwapUint32(slot, cur, local) {
			return
		}
	}
}

// AbsmaxValue reads an absmax slot as a float.
func AbsmaxValue(slot *uint32) float32 {
	return math.Float32frombits(atomic.LoadUint32(slot))
}

// ResetAbsmax starts a new reduction epoch.
func ResetAbsmax(slot *uint32) {
	atomic.StoreUint32(slot, 0)
}

// absmaxKernel is the standalone, non-fused pass: max |x| over raw stored
// values, no descale or elementwise transform applied. iters is how many
// vectors each thread reduces before folding.
func absmaxKernel(in Tensor, blockSize, iters, workers int) {
	vec := in.Format.VectorWidth()
	threadElems := iters * vec
	blockElems := blockSize * threadElems
	numBlocks := ceilDiv(in.Elems, blockElems)

	parallelBlocks(workers, numBlocks, false, func(block int) {
		var local uint32
		base := block * blockElems
		for tid := 0; tid < blockSize; tid++ {
			idx := base + tid*vec
			for i := 0; i < iters; i++ {
				for k := 0; k < vec; k++ {
					updateLocalAbsmax(&local, in.Get(idx+k))
				}
				idx += blockSize * vec
			}
		}
		updateGlobalAbsmax(in.Absmax, local)
	})
}
