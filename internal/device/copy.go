package device

// Flat fused copy: per element, descale -> elementwise transform -> absmax
// capture -> output scale -> format conversion. No transpose; source and
// destination indices are identical.
//
// Each thread moves one vector of the wider format per step, so the element
// count must divide evenly into vectors (validated at dispatch).

type copyParams struct {
	in, out     Tensor
	ew          Elementwise
	directScale bool
	reversed    bool
	blockSize   int
	workers     int
}

func copyKernel(p copyParams) {
	// elements per 16-byte transaction of the wider format
	vec := min(p.in.Format.VectorWidth(), p.out.Format.VectorWidth())
	descale, scale := resolveScaleFactors(&p.in, &p.out, p.directScale)
	fn := p.ew.fn()
	withAbsmax := p.out.Absmax != nil

	blockElems := p.blockSize * vec
	numBlocks := ceilDiv(p.in.Elems, blockElems)

	parallelBlocks(p.workers, numBlocks, p.reversed, func(block int) {
		var local uint32
		start := block * blockElems
		end := start + blockElems
		if end > p.in.Elems {
			end = p.in.Elems
		}
		for idx := start; idx < end; idx += vec {
			for k := 0; k < vec; k++ {
				v := fn(p.in.Get(idx+k) * descale)
				if withAbsmax {
					updateLocalAbsmax(&local, v)
				}
				p.out.Set(idx+k, v*scale)
			}
		}
		if withAbsmax {
			updateGlobalAbsmax(p.out.Absmax, local)
		}
	})
}
