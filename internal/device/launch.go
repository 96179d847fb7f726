package device

import (
	"fmt"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// LaunchOptions are the per-launch knobs shared by every entry point.
// The zero value means: identity transform, reciprocal output scaling,
// forward block order, kernel-default block size, one worker per CPU,
// default stream.
type LaunchOptions struct {
	Elementwise Elementwise

	// DirectScale multiplies by the output scale factor as-is instead of
	// its reciprocal.
	DirectScale bool

	// ReversedOrder processes grid blocks back to front. Scheduling hint
	// for the flat copy path only.
	ReversedOrder bool

	BlockSize int
	Workers   int
	Stream    *Stream

	// AbsmaxIterations overrides how many vectors each thread of the
	// standalone absmax pass reduces before folding. 0 means the kernel
	// default. Ignored by the fused kernels.
	AbsmaxIterations int
}

func (o *LaunchOptions) blockSize(def int) int {
	if o.BlockSize > 0 {
		return o.BlockSize
	}
	return def
}

func (o *LaunchOptions) absmaxIterations() int {
	if o.AbsmaxIterations > 0 {
		return o.AbsmaxIterations
	}
	return absmaxIterationsPerThread
}

// Copy enqueues the flat fused copy kernel: descale, elementwise
// transform, absmax capture (when out carries an absmax slot), output
// scaling and format conversion in one pass. Returns once the work is
// enqueued on the stream.
func Copy(out, in Tensor, opts LaunchOptions) error {
	if in.Elems != out.Elems {
		metrics.RecordContractViolation("copy", "shape")
		return fmt.Errorf("%w: copy of %d elements into %d", ErrShape, in.Elems, out.Elems)
	}
	vec := min(in.Format.VectorWidth(), out.Format.VectorWidth())
	if in.Elems%vec != 0 {
		metrics.RecordContractViolation("copy", "vector_alignment")
		return fmt.Errorf("%w: %d elements, vector width %d (%s -> %s)",
			ErrAlignment, in.Elems, vec, in.Format, out.Format)
	}

	p := copyParams{
		in:          in,
		out:         out,
		ew:          opts.Elementwise,
		directScale: opts.DirectScale,
		reversed:    opts.ReversedOrder,
		blockSize:   opts.blockSize(defaultCopyBlockSize),
		workers:     opts.Workers,
	}
	resolveStream(opts.Stream).enqueue(func() {
		start := time.Now()
		copyKernel(p)
		metrics.RecordLaunch("copy", p.in.Elems, time.Since(start))
		if p.out.Absmax != nil {
			metrics.RecordAbsmaxUpdate()
		}
	})
	return nil
}

// Transpose enqueues the tiled fused transpose of an in view shaped
// height x width. transposed receives the width x height result.
func Transpose(transposed, in Tensor, width, height int, opts LaunchOptions) error {
	return launchTranspose(transposed, nil, in, width, height, opts)
}

// CopyAndTranspose additionally writes an untransposed format-converted
// copy in the same pass, for callers that need both orientations of one
// source without a second traversal.
func CopyAndTranspose(transposed, copyOut, in Tensor, width, height int, opts LaunchOptions) error {
	if copyOut.Elems != width*height || copyOut.Format != transposed.Format {
		metrics.RecordContractViolation("copy_and_transpose", "shape")
		return fmt.Errorf("%w: copy output is %d %s elements, want %d %s",
			ErrShape, copyOut.Elems, copyOut.Format, width*height, transposed.Format)
	}
	return launchTranspose(transposed, &copyOut, in, width, height, opts)
}

// CopyOrTranspose selects between the flat copy and the tiled transpose
// for a width x height source.
func CopyOrTranspose(transposing bool, out, in Tensor, width, height int, opts LaunchOptions) error {
	if transposing {
		return Transpose(out, in, width, height, opts)
	}
	if in.Elems != width*height {
		metrics.RecordContractViolation("copy", "shape")
		return fmt.Errorf("%w: source is %d elements, want %dx%d", ErrShape, in.Elems, width, height)
	}
	return Copy(out, in, opts)
}

func launchTranspose(transposed Tensor, copyOut *Tensor, in Tensor, width, height int, opts LaunchOptions) error {
	name := "transpose"
	if copyOut != nil {
		name = "copy_and_transpose"
	}
	if width%TransposeTileSize != 0 || height%TransposeTileSize != 0 {
		metrics.RecordContractViolation(name, "tile_alignment")
		return fmt.Errorf("%w: %dx%d not a multiple of the %d tile",
			ErrGeometry, width, height, TransposeTileSize)
	}
	if in.Elems != width*height || transposed.Elems != width*height {
		metrics.RecordContractViolation(name, "shape")
		return fmt.Errorf("%w: in=%d transposed=%d elements, want %dx%d",
			ErrShape, in.Elems, transposed.Elems, width, height)
	}
	_, bsy, err := transposeGeometry(in.Format, opts.blockSize(defaultTransposeBlockSize))
	if err != nil {
		metrics.RecordContractViolation(name, "block_geometry")
		return fmt.Errorf("%w: no supported block height for %s input with block size %d",
			err, in.Format, opts.blockSize(defaultTransposeBlockSize))
	}

	p := transposeParams{
		transposed:  transposed,
		copyOut:     copyOut,
		in:          in,
		width:       width,
		height:      height,
		ew:          opts.Elementwise,
		directScale: opts.DirectScale,
		blockRows:   bsy,
		workers:     opts.Workers,
	}
	resolveStream(opts.Stream).enqueue(func() {
		start := time.Now()
		transposeKernel(p)
		metrics.RecordLaunch(name, p.in.Elems, time.Since(start))
		if p.transposed.Absmax != nil {
			metrics.RecordAbsmaxUpdate()
		}
	})
	return nil
}

// UpdateAbsmax enqueues the standalone absmax reduction over raw stored
// values. Tensors without an absmax slot and empty tensors are a no-op,
// not an error.
func UpdateAbsmax(in Tensor, opts LaunchOptions) error {
	if in.Elems == 0 || in.Absmax == nil {
		return nil
	}

	vec := in.Format.VectorWidth()
	iters := opts.absmaxIterations()
	blockSize := opts.blockSize(defaultAbsmaxBlockSize)
	for in.Elems%(blockSize*vec*iters) != 0 {
		blockSize /= 2
		if blockSize < minAbsmaxBlockSize {
			metrics.RecordContractViolation("update_absmax", "block_geometry")
			return fmt.Errorf("%w: no block size >= %d divides %d %s elements at %d iterations",
				ErrGeometry, minAbsmaxBlockSize, in.Elems, in.Format, iters)
		}
	}

	p := in
	bs, workers := blockSize, opts.Workers
	resolveStream(opts.Stream).enqueue(func() {
		start := time.Now()
		absmaxKernel(p, bs, iters, workers)
		metrics.RecordLaunch("update_absmax", p.Elems, time.Since(start))
		metrics.RecordAbsmaxUpdate()
	})
	return nil
}
