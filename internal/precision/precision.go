// Package precision provides elementary numeric operations that behave
// identically in the fixed-precision (float64) and arbitrary-precision
// (big.Float) regimes: error-compensated summation, exponent/mantissa
// decomposition, lossless power-of-two rescaling, and conversion between
// the two regimes.
//
// Higher layers choose the regime explicitly via Kind at construction
// time; nothing here inspects element types at runtime.
package precision

import (
	"errors"
	"math"
)

// Kind selects the numeric regime of a component.
type Kind int

const (
	// Fixed is the IEEE 754 binary64 regime.
	Fixed Kind = iota
	// Arbitrary is the big.Float regime with configurable mantissa bits.
	Arbitrary
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Arbitrary:
		return "arbitrary"
	default:
		return "unknown"
	}
}

var ErrEmptyInput = errors.New("precision: empty input")

// Sum returns the sum of a using Neumaier's compensated summation.
// Probability sums over hundreds of entries spanning extreme magnitudes
// lose mass under naive left-to-right addition; the running compensation
// keeps the result correctly rounded in practice.
func Sum(a []float64) (float64, error) {
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}
	sum := a[0]
	var comp float64
	for _, x := range a[1:] {
		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			comp += (sum - t) + x
		} else {
			comp += (x - t) + sum
		}
		sum = t
	}
	return sum + comp, nil
}

// Dot returns the compensated dot product of u and v. Both slices must
// have the same length.
func Dot(u, v []float64) (float64, error) {
	if len(u) == 0 {
		return 0, ErrEmptyInput
	}
	if len(u) != len(v) {
		return 0, errors.New("precision: dot operands differ in length")
	}
	sum := u[0] * v[0]
	var comp float64
	for i := 1; i < len(u); i++ {
		x := u[i] * v[i]
		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			comp += (sum - t) + x
		} else {
			comp += (x - t) + sum
		}
		sum = t
	}
	return sum + comp, nil
}

// Frexp decomposes x into a mantissa in [1/2, 1) and an integer exponent
// such that x == frac * 2**exp.
func Frexp(x float64) (frac float64, exp int) {
	return math.Frexp(x)
}

// MaxExponent returns the base-2 exponent of the element of a with the
// largest magnitude.
func MaxExponent(a []float64) (int, error) {
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}
	max := math.Abs(a[0])
	for _, x := range a[1:] {
		if ax := math.Abs(x); ax > max {
			max = ax
		}
	}
	_, exp := math.Frexp(max)
	return exp, nil
}

// BiasExponents scales a in place by an integer power of two so that the
// maximum element's exponent becomes target. Mantissas are unchanged.
// The applied base-2 log-scalar is returned so true values can be
// recovered later. Applying the operation twice with the same target is
// a no-op (the second shift is 2**0).
func BiasExponents(a []float64, target int) (int, error) {
	cur, err := MaxExponent(a)
	if err != nil {
		return 0, err
	}
	shift := target - cur
	if shift == 0 {
		return 0, nil
	}
	for i := range a {
		a[i] = math.Ldexp(a[i], shift)
	}
	return shift, nil
}
