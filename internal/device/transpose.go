package device

import "github.com/23skdu/longbow-bodkin/internal/format"

// TransposeTileSize is the fixed square tile staged per block. Width and
// height of every transpose must be multiples of it.
const TransposeTileSize = 64

// transposeGeometry derives the block shape for a tiled transpose: enough
// threads along x for one tile row of 16-byte loads, and the tallest block
// height from the supported candidates that fits the requested block size.
// Combinations outside the candidate list are a configuration error.
func transposeGeometry(inFmt format.Type, blockSize int) (bsx, bsy int, err error) {
	bsx = TransposeTileSize * inFmt.Size() / format.VectorBytes
	bsy = min(TransposeTileSize, blockSize/bsx)
	switch bsy {
	case 64, 32, 16:
		return bsx, bsy, nil
	default:
		return 0, 0, ErrGeometry
	}
}

type transposeParams struct {
	transposed  Tensor  // width x height, row-major over the transposed shape
	copyOut     *Tensor // optional untransposed converted copy, same shape as in
	in          Tensor  // height rows x width cols, row-major
	width       int
	height      int
	ew          Elementwise
	directScale bool
	blockRows   int
	workers     int
}

// transposeKernel converts and transposes one tile at a time. Each tile is
// read row-major, fully converted (descale -> elementwise -> absmax ->
// scale -> output format) into a staging buffer, then written back
// transposed so both the global read and the global write stay
// row-contiguous. The staging stride is padded by one 4-byte bank so the
// transposed read pattern does not land on a power-of-two stride.
//
// A goroutine owns a whole tile, so the staging buffer needs no
// synchronization between the two phases and no writer-thread reduction
// for mismatched element widths: the same goroutine simply issues
// narrower writes.
func transposeKernel(p transposeParams) {
	const tile = TransposeTileSize
	outFmt := p.transposed.Format
	outSize := outFmt.Size()
	stageStride := tile + 4/outSize

	descale, scale := resolveScaleFactors(&p.in, &p.transposed, p.directScale)
	fn := p.ew.fn()
	withAbsmax := p.transposed.Absmax != nil

	tilesX := p.width / tile
	tilesY := p.height / tile
	numTiles := tilesX * tilesY

	parallelBlocks(p.workers, numTiles, false, func(block int) {
		tileX := block % tilesX
		tileY := block / tilesX
		stage := make([]byte, tile*stageStride*outSize)
		var local uint32

		// phase 1: read, convert, stage (and the optional plain copy)
		for j := 0; j < tile; j += p.blockRows {
			for r := 0; r < p.blockRows; r++ {
				y := tileY*tile + j + r
				rowBase := y*p.width + tileX*tile
				for x := 0; x < tile; x++ {
					v := fn(p.in.Get(rowBase+x) * descale)
					if withAbsmax {
						updateLocalAbsmax(&local, v)
					}
					out := v * scale
					outFmt.Encode(stage, (j+r)*stageStride+x, out)
					if p.copyOut != nil {
						p.copyOut.Set(rowBase+x, out)
					}
				}
			}
		}

		if withAbsmax {
			updateGlobalAbsmax(p.transposed.Absmax, local)
		}

		// phase 2: drain the staged tile transposed. Values are already in
		// the output format; this is pure byte movement.
		for x := 0; x < tile; x++ {
			col := tileX*tile + x
			dstBase := (col*p.height + tileY*tile) * outSize
			for y := 0; y < tile; y++ {
				srcOff := (y*stageStride + x) * outSize
				copy(p.transposed.Data[dstBase+y*outSize:dstBase+(y+1)*outSize],
					stage[srcOff:srcOff+outSize])
			}
		}
	})
}
