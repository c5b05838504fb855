// Package dist builds the discrete probability distributions consumed
// by the engine: initial frequency distributions over the class lattice
// and mutational-effect distributions over the 2n-1 effect offsets.
//
// Effect distributions are symmetric by construction: masses of
// positive effects are computed from a continuous distribution and
// reflected about zero, optionally with asymmetric weighting of the
// beneficial and deleterious tails.
package dist

import (
	"errors"
	"fmt"
	"math"

	"mutsel/internal/lattice"
	"mutsel/internal/precision"
)

var (
	ErrWeightRange = errors.New("dist: mixture weight outside [0, 1]")
	ErrNonPositive = errors.New("dist: scale parameter must be positive")
	ErrDegenerate  = errors.New("dist: distribution mass rounded to zero")
)

// Effects is a probability distribution over the mutational-effect
// offsets of a lattice. Offsets has odd length 2n-1; P[k] is the mass
// of effect Offsets[k], and the middle index is the zero effect.
type Effects struct {
	Offsets []float64
	P       []float64
	Width   float64
}

func newEffects(l *lattice.Lattice) *Effects {
	offsets := l.Effects()
	return &Effects{
		Offsets: offsets,
		P:       make([]float64, len(offsets)),
		Width:   l.BinWidth,
	}
}

// PointMass returns the identity effect distribution: every mutation
// has zero effect.
func PointMass(l *lattice.Lattice) *Effects {
	e := newEffects(l)
	e.P[e.zeroIndex()] = 1
	return e
}

// Gaussian returns the symmetric discretized Normal(0, std) effect
// distribution. Masses of positive effects are CDF differences over
// the bins centered on the offsets; the zero bin takes twice the mass
// of (0, width/2]; negative effects mirror positive ones. The result
// is normalized.
func Gaussian(l *lattice.Lattice, std float64) (*Effects, error) {
	if std <= 0 {
		return nil, ErrNonPositive
	}
	e := newEffects(l)
	k := e.zeroIndex()
	cdf := func(x float64) float64 {
		return 0.5 * (1 + math.Erf(x/(std*math.Sqrt2)))
	}
	for i := 1; i <= k; i++ {
		x := e.Offsets[k+i]
		lo, hi := x-e.Width/2, x+e.Width/2
		mass := cdf(hi) - cdf(lo)
		e.P[k+i] = mass
		e.P[k-i] = mass
	}
	e.P[k] = 2 * (cdf(e.Width/2) - cdf(0))
	if err := e.Normalize(); err != nil {
		return nil, err
	}
	return e, nil
}

// GammaCCDF returns the complementary CDF of the Gamma distribution
// with shape 1/2 and the given rate beta. With shape 1/2 the CCDF
// reduces to erfc(sqrt(beta*x)), which is both faster and more
// accurate than the incomplete gamma function.
func GammaCCDF(beta float64) func(float64) float64 {
	return func(x float64) float64 {
		if x <= 0 {
			return 1
		}
		return math.Erfc(math.Sqrt(beta * x))
	}
}

// ReflectionMixture returns the mixture of a binned distribution over
// beneficial effects and its reflection over deleterious effects,
// weighted gamma and 1-gamma respectively. ccdf is the complementary
// CDF of a continuous distribution supported on the positive reals.
// The middle bin takes the unweighted mass of (0, width/2). The result
// is normalized unless normed is false (lossy callers keep the raw
// masses so that truncated tail mass shows up as column loss).
func ReflectionMixture(l *lattice.Lattice, ccdf func(float64) float64, gamma float64, normed bool) (*Effects, error) {
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("%w: %g", ErrWeightRange, gamma)
	}
	e := newEffects(l)
	k := e.zeroIndex()
	// Bin walls at width/2, 3*width/2, ... plus a wall at zero.
	prev := ccdf(0)
	first := ccdf(e.Width / 2)
	e.P[k] = prev - first
	prev = first
	for i := 1; i <= k; i++ {
		next := ccdf((float64(i) + 0.5) * e.Width)
		mass := prev - next
		prev = next
		e.P[k+i] = gamma * mass
		e.P[k-i] = (1 - gamma) * mass
	}
	if normed {
		if err := e.Normalize(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Normalize divides all masses by their compensated sum.
func (e *Effects) Normalize() error {
	total, err := precision.Sum(e.P)
	if err != nil {
		return err
	}
	if total <= 0 {
		return ErrDegenerate
	}
	for i := range e.P {
		e.P[i] /= total
	}
	return nil
}

// Mass returns the compensated sum of all masses.
func (e *Effects) Mass() float64 {
	total, err := precision.Sum(e.P)
	if err != nil {
		return 0
	}
	return total
}

// Neutral returns the probability of a zero-effect mutation.
func (e *Effects) Neutral() float64 { return e.P[e.zeroIndex()] }

// Deleterious returns the total probability of negative effects.
func (e *Effects) Deleterious() float64 {
	total, _ := precision.Sum(e.P[:e.zeroIndex()])
	return total
}

// Beneficial returns the total probability of positive effects.
func (e *Effects) Beneficial() float64 {
	total, _ := precision.Sum(e.P[e.zeroIndex()+1:])
	return total
}

// DeleteriousToBeneficial returns the ratio of the tail masses, +Inf
// when there is no beneficial mass.
func (e *Effects) DeleteriousToBeneficial() float64 {
	b := e.Beneficial()
	if b <= 0 {
		return math.Inf(1)
	}
	return e.Deleterious() / b
}

// MeanVariance returns the mean and variance of the effect offsets
// under the distribution.
func (e *Effects) MeanVariance() (float64, float64, error) {
	norm := e.Mass()
	if norm == 0 {
		return 0, 0, ErrDegenerate
	}
	mom1, err := precision.Dot(e.P, e.Offsets)
	if err != nil {
		return 0, 0, err
	}
	sq := make([]float64, len(e.Offsets))
	for i, x := range e.Offsets {
		sq[i] = x * x
	}
	mom2, err := precision.Dot(e.P, sq)
	if err != nil {
		return 0, 0, err
	}
	mean := mom1 / norm
	return mean, mom2/norm - mean*mean, nil
}

func (e *Effects) zeroIndex() int { return len(e.P) / 2 }
