package equilibrium

import (
	"sync"

	"mutsel/internal/generator"
)

// multiplier computes dst = W*v. The power loop is the hot path of the
// solver, so the product may be partitioned by row blocks across
// workers; each call is a full barrier, no pipelining across
// iterations.
type multiplier func(dst, v []float64)

func newMultiplier(op *generator.Operator, workers int) multiplier {
	if workers < 2 || op.Classes() < workers {
		return op.DerivativeInto
	}
	return newRowBlocks(op, workers).multiply
}

// rowBlocks is a stateless parallel map over contiguous row ranges of
// the operator matrix. Workers share only read access to W and v.
type rowBlocks struct {
	op     *generator.Operator
	bounds []int
}

func newRowBlocks(op *generator.Operator, workers int) *rowBlocks {
	n := op.Classes()
	bounds := make([]int, 0, workers+1)
	start := 0
	for i := 0; i < workers; i++ {
		bounds = append(bounds, start)
		start += (n - start) / (workers - i)
	}
	bounds = append(bounds, n)
	return &rowBlocks{op: op, bounds: bounds}
}

func (r *rowBlocks) multiply(dst, v []float64) {
	var wg sync.WaitGroup
	w := r.op.Matrix()
	for b := 0; b+1 < len(r.bounds); b++ {
		lo, hi := r.bounds[b], r.bounds[b+1]
		if lo == hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				row := w.RawRowView(i)
				var s float64
				for j, x := range row {
					if v[j] != 0 {
						s += x * v[j]
					}
				}
				dst[i] = s
			}
		}(lo, hi)
	}
	wg.Wait()
}
