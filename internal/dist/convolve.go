package dist

import (
	"errors"

	"mutsel/internal/precision"
)

var ErrConvLength = errors.New("dist: convolution operand shorter than half the effect array")

// Convolve returns the convolution of x with the effect distribution,
// trimmed back to the length of x. Out-of-range components are lumped
// onto the endpoints of the result unless discardExcess is true, in
// which case they are dropped (the legacy behavior, which leaks mass).
func (e *Effects) Convolve(x []float64, discardExcess bool) ([]float64, error) {
	half := len(e.P) / 2
	if len(x) <= half {
		return nil, ErrConvLength
	}
	// Full convolution, length len(x) + len(p) - 1.
	full := make([]float64, len(x)+len(e.P)-1)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		for j, pj := range e.P {
			full[i+j] += xi * pj
		}
	}
	if !discardExcess {
		low, err := precision.Sum(full[:half])
		if err != nil {
			return nil, err
		}
		high, err := precision.Sum(full[len(full)-half:])
		if err != nil {
			return nil, err
		}
		full[half] += low
		full[len(full)-half-1] += high
	}
	return full[half : len(full)-half], nil
}

// SelfConvolve replaces the distribution with the 2**times-fold
// convolution of itself, doubling the modeled mutation count each
// round. With discardExcess the distribution is renormalized after
// each round to compensate the dropped tail mass.
func (e *Effects) SelfConvolve(times int, discardExcess bool) error {
	for i := 0; i < times; i++ {
		p, err := e.Convolve(e.P, discardExcess)
		if err != nil {
			return err
		}
		copy(e.P, p)
		if discardExcess {
			if err := e.Normalize(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IIDEffects reshapes the single-mutation distribution into the
// distribution of the summed effect of independent mutations across
// 2**logLoci loci, each mutating with probability mutations/2**logLoci.
// With mutations == 1 and logLoci == 0 the distribution is unchanged.
func (e *Effects) IIDEffects(mutations float64, logLoci int) error {
	mu := mutations / float64(int64(1)<<uint(logLoci))
	k := e.zeroIndex()
	for i := range e.P {
		e.P[i] *= mu
	}
	e.P[k] += 1 - mu
	return e.SelfConvolve(logLoci, false)
}
