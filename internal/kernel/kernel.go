// Package kernel converts a probability distribution over mutational
// effects into the class-indexed, parent-conditioned transition matrix
// of the model.
//
// For a lattice of n classes the effect distribution p has 2n-1
// entries, p[k] being the mass of the offset (k-(n-1))*w. The kernel
// entry K[i][j] is the probability that a parent in class j produces
// offspring in class i, which is the mass of the effect (i-j)*w:
//
//	K[i][j] = p[(n-1)+i-j]
//
// Worked 3-class check: with p = (p-2, p-1, p0, p1, p2), column j=0 is
// (p0, p1, p2) reading offspring classes 0..2: a parent in the lowest
// class reaches higher classes only through positive (beneficial)
// effects, as it must.
package kernel

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"mutsel/internal/precision"
)

var (
	ErrEffectsLength = errors.New("kernel: effect distribution must have 2n-1 entries")
	ErrColumnZero    = errors.New("kernel: column mass rounded to zero, cannot renormalize")
)

// Build constructs the n-by-n kernel matrix from the effect
// distribution. When lossy is false each column is renormalized to sum
// exactly to 1 (stochastic); when true the raw windows are kept, so
// column sums below 1 represent mutational escape from the modeled
// range.
func Build(effects []float64, n int, lossy bool) (*mat.Dense, error) {
	if len(effects) != 2*n-1 {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEffectsLength, len(effects), 2*n-1)
	}
	k := mat.NewDense(n, n, nil)
	col := make([]float64, n)
	for j := 0; j < n; j++ {
		// Column j is the length-n window of effects starting at
		// n-1-j: entry i reads effects[(n-1)+i-j].
		window := effects[n-1-j : 2*n-1-j]
		if lossy {
			for i := 0; i < n; i++ {
				k.Set(i, j, window[i])
			}
			continue
		}
		copy(col, window)
		total, err := precision.Sum(col)
		if err != nil {
			return nil, err
		}
		if total <= 0 {
			return nil, fmt.Errorf("%w: column %d", ErrColumnZero, j)
		}
		for i := 0; i < n; i++ {
			k.Set(i, j, window[i]/total)
		}
	}
	return k, nil
}

// ColumnSums returns the compensated column sums of k.
func ColumnSums(k *mat.Dense) []float64 {
	rows, cols := k.Dims()
	sums := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, k)
		s, err := precision.Sum(col)
		if err != nil {
			continue
		}
		sums[j] = s
	}
	return sums
}

// CheckStochastic verifies that every column of k sums to 1 within tol
// (relative). Violation is an invariant failure of the non-lossy
// construction and is always surfaced, never corrected.
func CheckStochastic(k *mat.Dense, tol float64) error {
	for j, s := range ColumnSums(k) {
		if d := s - 1; d > tol || d < -tol {
			return fmt.Errorf("kernel: column %d sums to %g, want 1 within %g", j, s, tol)
		}
	}
	return nil
}

// Apply computes K @ x without materializing the matrix, as the valid
// convolution of x with the effect distribution. The lossy flag is
// implicit: the convolution never renormalizes, so this matches the
// lossy matrix product. Useful when n is large enough that the n*n
// kernel is not worth its memory.
func Apply(effects []float64, x []float64) ([]float64, error) {
	n := len(x)
	if len(effects) != 2*n-1 {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEffectsLength, len(effects), 2*n-1)
	}
	out := make([]float64, n)
	for j, xj := range x {
		if xj == 0 {
			continue
		}
		window := effects[n-1-j : 2*n-1-j]
		for i := range out {
			out[i] += window[i] * xj
		}
	}
	return out, nil
}
