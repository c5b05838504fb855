// Package equilibrium finds the dominant eigenpair (lambda, v) of a
// generator operator: W v = lambda v with v non-negative and summing
// to 1, lambda the eigenvalue of largest real part.
//
// The pipeline is bootstrap (dense eigendecomposition, falling back to
// a random non-negative seed), power iteration in fixed blocks with
// power-of-two rescaling between blocks, and an optional inverse-power
// refinement that keeps an iterate only when it strictly lowers the
// residual. The achieved residual is always returned; callers decide
// whether it is good enough.
package equilibrium

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"mutsel/internal/generator"
	"mutsel/internal/precision"
	"mutsel/internal/stats"
)

var (
	ErrEmptyMatrix   = errors.New("equilibrium: empty operator")
	ErrDidNotImprove = errors.New("equilibrium: no usable iterate produced a finite residual")
)

// targetExponent is the exponent the between-block rescale aims the
// largest iterate entry at, comfortably inside float64 range.
const targetExponent = 512

// Result is a computed eigenpair with its achieved residual.
type Result struct {
	// Value is the Rayleigh-quotient eigenvalue estimate.
	Value float64
	// Vector is the eigenvector estimate, normalized to sum 1.
	Vector []float64
	// Error is the maximum absolute relative residual of Value*Vector
	// against W*Vector.
	Error float64
}

// Config tunes the solver. The zero value selects the defaults.
type Config struct {
	// BlockSize is the number of power iterations between rescale and
	// residual checks. Zero means 1000.
	BlockSize int
	// MaxBlocks caps the power-iteration blocks. Zero means 20.
	MaxBlocks int
	// Tolerance is the residual at which the power stage stops early.
	// Zero means 1e-14.
	Tolerance float64
	// RefineIterations is the inverse-power iteration count. Zero
	// means 5; negative disables refinement.
	RefineIterations int
	// Workers parallelizes the matrix-vector product over row blocks.
	// Values below 2 keep the product single-threaded.
	Workers int
	// Seed controls the random fallback vector.
	Seed int64
	// Warn receives warning-level degeneracy notices (singular solve,
	// failed bootstrap). Nil discards them.
	Warn func(string)
}

func (c Config) withDefaults() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = 1000
	}
	if c.MaxBlocks <= 0 {
		c.MaxBlocks = 20
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-14
	}
	if c.RefineIterations == 0 {
		c.RefineIterations = 5
	}
	return c
}

func (c Config) warnf(format string, args ...any) {
	if c.Warn != nil {
		c.Warn(fmt.Sprintf(format, args...))
	}
}

// Rayleigh returns the Rayleigh quotient (v'Wv)/(v'v) and the maximum
// absolute relative residual of lambda*v against W*v. An entry where
// lambda*v and W*v are both exactly zero contributes no residual; a
// mismatch against a zero element of W*v makes the residual infinite.
func Rayleigh(op *generator.Operator, v []float64) (value, residual float64, err error) {
	wv := op.Derivative(0, v)
	num, err := precision.Dot(v, wv)
	if err != nil {
		return 0, 0, err
	}
	den, err := precision.Dot(v, v)
	if err != nil {
		return 0, 0, err
	}
	value = num / den
	scaled := make([]float64, len(v))
	for i, x := range v {
		scaled[i] = value * x
	}
	residual, err = stats.MaxAbsRelativeError(scaled, wv)
	if err != nil {
		return 0, 0, err
	}
	return value, residual, nil
}

// Solve computes the dominant eigenpair of op.
func Solve(op *generator.Operator, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	n := op.Classes()
	if n == 0 {
		return nil, ErrEmptyMatrix
	}

	v, ok := bootstrap(op)
	if !ok {
		cfg.warnf("dense eigendecomposition failed, seeding power iteration randomly")
		v = randomSeed(n, cfg.Seed)
	}
	if err := normalize(v); err != nil {
		v = randomSeed(n, cfg.Seed)
		if err := normalize(v); err != nil {
			return nil, err
		}
	}

	mul := newMultiplier(op, cfg.Workers)
	best, err := powerIterate(op, mul, v, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RefineIterations > 0 {
		refine(op, best, cfg)
	}
	return best, nil
}

// powerIterate runs blocks of v <- v + Wv, rescaling between blocks by
// an exact power of two and keeping the best (lowest-residual) iterate
// seen rather than the last.
func powerIterate(op *generator.Operator, mul multiplier, v []float64, cfg Config) (*Result, error) {
	wv := make([]float64, len(v))
	best := &Result{Error: math.Inf(1)}
	for block := 0; block < cfg.MaxBlocks; block++ {
		for it := 0; it < cfg.BlockSize; it++ {
			mul(wv, v)
			for i := range v {
				v[i] += wv[i]
			}
		}
		// Lossless recentering keeps the iterate in range without
		// touching mantissas.
		if _, err := precision.BiasExponents(v, targetExponent); err != nil {
			return nil, err
		}
		cand := append([]float64(nil), v...)
		if err := normalize(cand); err != nil {
			return nil, err
		}
		value, residual, err := Rayleigh(op, cand)
		if err != nil {
			return nil, err
		}
		if residual < best.Error {
			best.Value = value
			best.Vector = cand
			best.Error = residual
		}
		if best.Error <= cfg.Tolerance {
			break
		}
	}
	if best.Vector == nil {
		return nil, ErrDidNotImprove
	}
	return best, nil
}

// refine applies inverse power iteration: solve (W - lambda*I) v' = v,
// renormalize, and keep v' only if it strictly lowers the residual. A
// singular factorization stops refinement; it is a degeneracy of the
// shift, not a failure of the result already in hand.
func refine(op *generator.Operator, best *Result, cfg Config) {
	n := op.Classes()
	shifted := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, append([]float64(nil), best.Vector...))
	sol := mat.NewVecDense(n, nil)
	value := best.Value
	for it := 0; it < cfg.RefineIterations; it++ {
		shiftDiagonal(shifted, op.Matrix(), value)
		var lu mat.LU
		lu.Factorize(shifted)
		if err := lu.SolveVecTo(sol, false, rhs); err != nil {
			cfg.warnf("inverse-power solve singular at iteration %d: %v", it, err)
			return
		}
		cand := append([]float64(nil), sol.RawVector().Data...)
		if err := normalize(cand); err != nil {
			return
		}
		candValue, residual, err := Rayleigh(op, cand)
		if err != nil {
			return
		}
		copy(rhs.RawVector().Data, cand)
		if residual < best.Error {
			best.Value = candValue
			best.Vector = cand
			best.Error = residual
			value = candValue
		}
	}
}

// shiftDiagonal sets dst = w - value*I without touching w.
func shiftDiagonal(dst *mat.Dense, w *mat.Dense, value float64) {
	dst.Copy(w)
	n, _ := dst.Dims()
	for i := 0; i < n; i++ {
		dst.Set(i, i, w.At(i, i)-value)
	}
}

// bootstrap extracts the eigenvector of largest real eigenvalue from a
// dense eigendecomposition, ignoring eigenpairs with a material
// imaginary part. The second return is false when the decomposition
// fails or no usable eigenvalue exists.
func bootstrap(op *generator.Operator) ([]float64, bool) {
	var eig mat.Eigen
	if ok := eig.Factorize(op.Matrix(), mat.EigenRight); !ok {
		return nil, false
	}
	values := eig.Values(nil)
	const imagTol = 1e-12
	bestIdx := -1
	bestReal := math.Inf(-1)
	for i, ev := range values {
		if math.Abs(imag(ev)) > imagTol*(1+math.Abs(real(ev))) {
			continue
		}
		if real(ev) > bestReal {
			bestReal = real(ev)
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, false
	}
	n := op.Classes()
	var vectors mat.CDense
	eig.VectorsTo(&vectors)
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = real(vectors.At(i, bestIdx))
	}
	return v, true
}

func randomSeed(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	return v
}

// normalize scales v to sum 1, flipping sign first when the mass is
// negative (dense eigenvectors come back with arbitrary sign).
func normalize(v []float64) error {
	s, err := precision.Sum(v)
	if err != nil {
		return err
	}
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("equilibrium: cannot normalize, sum is %g", s)
	}
	for i := range v {
		v[i] /= s
	}
	return nil
}
