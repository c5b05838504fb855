// Package generator combines the mutation kernel, birth rates, and
// death rate into the generator matrix W of the model,
//
//	W[i][j] = K[i][j]*birth[j]        (i != j)
//	W[j][j] = K[j][j]*birth[j] - death
//
// and exposes it as the derivative dP/dt = W @ P for integrators,
// together with a Jacobian and a matrix-free variant for lattices too
// large to materialize the n*n matrix.
//
// W is immutable after construction. Code that needs a diagonal shift
// (eigenvalue computations) builds its own shifted copy instead of
// perturbing and restoring W in place.
package generator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"mutsel/internal/kernel"
)

var (
	ErrDimensionMismatch = errors.New("generator: kernel and birth dimensions differ")
	ErrBadInterval       = errors.New("generator: restriction interval out of range")
)

// Operator is the realized generator. It implements the derivative and
// Jacobian contracts used by the evolution engine and the equilibrium
// solver.
type Operator struct {
	w     *mat.Dense
	birth []float64
	death float64
	n     int

	// Restriction cache: the sub-operator for the most recent
	// included interval, rebuilt only when the interval changes.
	subLo, subHi int
	sub          *Operator
}

// New builds the generator from a kernel matrix produced by
// kernel.Build, the per-class birth rates, and the death rate.
func New(k *mat.Dense, birth []float64, death float64) (*Operator, error) {
	rows, cols := k.Dims()
	if rows != cols || rows != len(birth) {
		return nil, fmt.Errorf("%w: kernel %dx%d, birth %d", ErrDimensionMismatch, rows, cols, len(birth))
	}
	w := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		b := birth[j]
		for i := 0; i < rows; i++ {
			w.Set(i, j, k.At(i, j)*b)
		}
		w.Set(j, j, w.At(j, j)-death)
	}
	return &Operator{
		w:     w,
		birth: append([]float64(nil), birth...),
		death: death,
		n:     rows,
		subLo: -1,
		subHi: -1,
	}, nil
}

// Classes returns the dimension n of the operator.
func (o *Operator) Classes() int { return o.n }

// Death returns the death rate baked into the diagonal.
func (o *Operator) Death() float64 { return o.death }

// Birth returns the per-class birth rates. The slice is shared;
// callers must not modify it.
func (o *Operator) Birth() []float64 { return o.birth }

// Matrix returns the generator matrix. The returned value aliases the
// operator's storage and must be treated as read-only; shifted or
// otherwise modified copies belong to the caller (see mat.Dense
// CloneFrom).
func (o *Operator) Matrix() *mat.Dense { return o.w }

// Derivative returns dP/dt = W @ p. The time argument is unused but
// part of the integrator calling convention.
func (o *Operator) Derivative(_ float64, p []float64) []float64 {
	out := make([]float64, o.n)
	o.DerivativeInto(out, p)
	return out
}

// DerivativeInto computes W @ p into dst, avoiding the per-step
// allocation on the integration hot path. dst and p must not alias.
func (o *Operator) DerivativeInto(dst, p []float64) {
	raw := o.w.RawMatrix()
	for i := 0; i < o.n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+o.n]
		var sum float64
		for j, pj := range p {
			if pj != 0 {
				sum += row[j] * pj
			}
		}
		dst[i] = sum
	}
}

// Jacobian returns the matrix of gradients of the derivative at state
// p, for integrators that exploit it: entry (i, j) is W[i][j]*p[j]
// off the diagonal and -death*p[j] on it.
func (o *Operator) Jacobian(_ float64, p []float64) *mat.Dense {
	j := mat.NewDense(o.n, o.n, nil)
	for r := 0; r < o.n; r++ {
		for c := 0; c < o.n; c++ {
			j.Set(r, c, o.w.At(r, c)*p[c])
		}
	}
	for d := 0; d < o.n; d++ {
		j.Set(d, d, -o.death*p[d])
	}
	return j
}

// Restrict returns a sub-operator over classes [lo, hi). The restricted
// matrix is cached and rebuilt only when the interval changes, so
// integrators tracking a narrowing support pay for reconstruction only
// on support changes.
func (o *Operator) Restrict(lo, hi int) (*Operator, error) {
	if lo < 0 || hi > o.n || lo >= hi {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrBadInterval, lo, hi, o.n)
	}
	if lo == 0 && hi == o.n {
		return o, nil
	}
	if o.sub != nil && o.subLo == lo && o.subHi == hi {
		return o.sub, nil
	}
	m := hi - lo
	w := mat.NewDense(m, m, nil)
	w.Copy(o.w.Slice(lo, hi, lo, hi))
	o.sub = &Operator{
		w:     w,
		birth: append([]float64(nil), o.birth[lo:hi]...),
		death: o.death,
		n:     m,
		subLo: -1,
		subHi: -1,
	}
	o.subLo, o.subHi = lo, hi
	return o.sub, nil
}

// MatrixFree is the convolution-backed variant of the operator for
// very large lattices: it never materializes W, computing the birth
// term as a convolution of birth-scaled frequencies with the effect
// distribution.
type MatrixFree struct {
	effects []float64
	birth   []float64
	death   float64
	n       int
}

// NewMatrixFree builds the matrix-free operator from the raw effect
// distribution (length 2n-1, not renormalized per column: the implied
// kernel is the lossy one).
func NewMatrixFree(effects, birth []float64, death float64) (*MatrixFree, error) {
	n := len(birth)
	if len(effects) != 2*n-1 {
		return nil, fmt.Errorf("%w: effects %d, birth %d", ErrDimensionMismatch, len(effects), n)
	}
	return &MatrixFree{
		effects: append([]float64(nil), effects...),
		birth:   append([]float64(nil), birth...),
		death:   death,
		n:       n,
	}, nil
}

// Classes returns the dimension n of the operator.
func (m *MatrixFree) Classes() int { return m.n }

// Derivative returns dP/dt computed as conv(birth*p, effects) - death*p.
func (m *MatrixFree) Derivative(_ float64, p []float64) []float64 {
	scaled := make([]float64, m.n)
	for i := range p {
		scaled[i] = m.birth[i] * p[i]
	}
	births, err := kernel.Apply(m.effects, scaled)
	if err != nil {
		// Lengths are validated at construction.
		panic(err)
	}
	for i := range births {
		births[i] -= m.death * p[i]
	}
	return births
}
