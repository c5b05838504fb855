package precision

import (
	"math"
	"math/big"
)

// DefaultPrec is the default mantissa size, in bits, of values in the
// arbitrary-precision regime. Roughly 60 decimal digits.
const DefaultPrec = 200

// BigSum returns the sum of a using the same Neumaier compensation as
// Sum. Every big.Float Add rounds at the working precision, so a plain
// accumulation loses mass under cancellation exactly as float64 does;
// the compensation term recovers it. The accumulator carries the
// widest precision found among the inputs.
func BigSum(a []*big.Float) (*big.Float, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	prec := a[0].Prec()
	for _, x := range a[1:] {
		if p := x.Prec(); p > prec {
			prec = p
		}
	}
	var (
		sum  = new(big.Float).SetPrec(prec).Set(a[0])
		comp = new(big.Float).SetPrec(prec)
		t    = new(big.Float).SetPrec(prec)
		d    = new(big.Float).SetPrec(prec)
		absS = new(big.Float)
		absX = new(big.Float)
	)
	for _, x := range a[1:] {
		t.Add(sum, x)
		if absS.Abs(sum).Cmp(absX.Abs(x)) >= 0 {
			d.Sub(sum, t)
			d.Add(d, x)
		} else {
			d.Sub(x, t)
			d.Add(d, sum)
		}
		comp.Add(comp, d)
		sum.Set(t)
	}
	return sum.Add(sum, comp), nil
}

// BigFrexp decomposes x into a mantissa in [1/2, 1) and an integer
// exponent such that x == frac * 2**exp. Zero decomposes to (0, 0).
func BigFrexp(x *big.Float) (*big.Float, int) {
	frac := new(big.Float).SetPrec(x.Prec()).Set(x)
	if x.Sign() == 0 {
		return frac, 0
	}
	exp := x.MantExp(nil)
	frac.SetMantExp(frac, -exp)
	return frac, exp
}

// BigMaxExponent returns the base-2 exponent of the element of a with
// the largest magnitude.
func BigMaxExponent(a []*big.Float) (int, error) {
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}
	absMax := new(big.Float).Abs(a[0])
	abs := new(big.Float)
	for _, x := range a[1:] {
		if abs.Abs(x).Cmp(absMax) > 0 {
			absMax.Set(abs)
		}
	}
	return absMax.MantExp(nil), nil
}

// BigBiasExponents scales a in place by an integer power of two so that
// the maximum element's exponent becomes target. The applied base-2
// log-scalar is returned.
func BigBiasExponents(a []*big.Float, target int) (int, error) {
	cur, err := BigMaxExponent(a)
	if err != nil {
		return 0, err
	}
	shift := target - cur
	if shift == 0 {
		return 0, nil
	}
	// SetMantExp(x, shift) is x*2**shift: the exponent argument adds
	// to the mantissa's own exponent.
	for _, x := range a {
		x.SetMantExp(x, shift)
	}
	return shift, nil
}

// ToBig converts a to arbitrary-precision values with the given
// mantissa size. Pass prec 0 for DefaultPrec.
func ToBig(a []float64, prec uint) []*big.Float {
	if prec == 0 {
		prec = DefaultPrec
	}
	out := make([]*big.Float, len(a))
	for i, x := range a {
		out[i] = new(big.Float).SetPrec(prec).SetFloat64(x)
	}
	return out
}

// ToFloat converts a to float64 values. Values outside the float64
// range round to ±Inf, matching big.Float semantics.
func ToFloat(a []*big.Float) []float64 {
	out := make([]float64, len(a))
	for i, x := range a {
		f, _ := x.Float64()
		out[i] = f
	}
	return out
}

// BigLdexp returns x * 2**shift without altering x.
func BigLdexp(x *big.Float, shift int) *big.Float {
	out := new(big.Float).SetPrec(x.Prec()).Set(x)
	if x.Sign() == 0 || shift == 0 {
		return out
	}
	return out.SetMantExp(out, shift)
}

// Ldexp is the fixed-regime counterpart of BigLdexp.
func Ldexp(x float64, shift int) float64 {
	return math.Ldexp(x, shift)
}
