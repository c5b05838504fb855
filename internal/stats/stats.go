// Package stats computes weighted summary statistics and relative-error
// metrics over frequency distributions. Sums are compensated via the
// precision package so that statistics stay meaningful when frequencies
// span hundreds of orders of magnitude.
package stats

import (
	"errors"
	"math"

	"mutsel/internal/precision"
)

var (
	ErrShapeMismatch = errors.New("stats: arguments differ in shape")
	ErrEmptyInput    = errors.New("stats: empty input")
	ErrZeroMass      = errors.New("stats: total frequency is zero")
)

// Mean returns the weighted mean of x under the (not necessarily
// normalized) frequency distribution freq.
func Mean(freq, x []float64) (float64, error) {
	m, _, err := MeanVariance(freq, x)
	return m, err
}

// MeanVariance returns the weighted mean and variance of x under freq,
// using the raw-moment formula var = E[x**2] - E[x]**2.
func MeanVariance(freq, x []float64) (mean, variance float64, err error) {
	if len(freq) == 0 {
		return 0, 0, ErrEmptyInput
	}
	if len(freq) != len(x) {
		return 0, 0, ErrShapeMismatch
	}
	norm, err := precision.Sum(freq)
	if err != nil {
		return 0, 0, err
	}
	if norm == 0 {
		return 0, 0, ErrZeroMass
	}
	mom1, err := precision.Dot(freq, x)
	if err != nil {
		return 0, 0, err
	}
	x2 := make([]float64, len(x))
	for i, v := range x {
		x2[i] = v * v
	}
	mom2, err := precision.Dot(freq, x2)
	if err != nil {
		return 0, 0, err
	}
	mean = mom1 / norm
	variance = (mom2 - mom1*mom1/norm) / norm
	return mean, variance, nil
}

// Moment returns the n-th raw weighted moment of x under freq.
func Moment(freq, x []float64, n int) (float64, error) {
	if len(freq) == 0 {
		return 0, ErrEmptyInput
	}
	if len(freq) != len(x) {
		return 0, ErrShapeMismatch
	}
	norm, err := precision.Sum(freq)
	if err != nil {
		return 0, err
	}
	if norm == 0 {
		return 0, ErrZeroMass
	}
	xn := make([]float64, len(x))
	for i, v := range x {
		xn[i] = math.Pow(v, float64(n))
	}
	mom, err := precision.Dot(freq, xn)
	if err != nil {
		return 0, err
	}
	return mom / norm, nil
}

// RelativeError returns (actual - desired) / desired elementwise, with
// 0/0 defined equal to 0. If any element pair has desired == 0 but
// actual != 0 the whole result is reported as +Inf through the scalar
// return of MaxAbsRelativeError; here such entries are set to +Inf.
func RelativeError(actual, desired []float64) ([]float64, error) {
	if len(actual) != len(desired) {
		return nil, ErrShapeMismatch
	}
	out := make([]float64, len(desired))
	for i := range desired {
		if actual[i] == desired[i] {
			continue
		}
		if desired[i] == 0 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = (actual[i] - desired[i]) / desired[i]
	}
	return out, nil
}

// MaxAbsRelativeError returns the largest absolute relative error of
// actual versus desired.
func MaxAbsRelativeError(actual, desired []float64) (float64, error) {
	errs, err := RelativeError(actual, desired)
	if err != nil {
		return 0, err
	}
	var max float64
	for _, e := range errs {
		if a := math.Abs(e); a > max {
			max = a
		}
	}
	return max, nil
}

// RegressThroughOrigin returns the slope of the least-squares line
// through the origin for the points (x[i], y[i]).
func RegressThroughOrigin(x, y []float64) (float64, error) {
	if len(x) == 0 {
		return 0, ErrEmptyInput
	}
	if len(x) != len(y) {
		return 0, ErrShapeMismatch
	}
	sumX, err := precision.Sum(x)
	if err != nil {
		return 0, err
	}
	sumY, err := precision.Sum(y)
	if err != nil {
		return 0, err
	}
	n := float64(len(x))
	xy, err := precision.Dot(x, y)
	if err != nil {
		return 0, err
	}
	xx, err := precision.Dot(x, x)
	if err != nil {
		return 0, err
	}
	cov := xy - sumX*sumY/n
	varX := xx - sumX*sumX/n
	if varX == 0 {
		return 0, ErrZeroMass
	}
	return cov / varX, nil
}

// MinMax returns the smallest and largest elements of a.
func MinMax(a []float64) (min, max float64, err error) {
	if len(a) == 0 {
		return 0, 0, ErrEmptyInput
	}
	min, max = a[0], a[0]
	for _, x := range a[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max, nil
}
