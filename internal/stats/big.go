package stats

import (
	"math/big"

	"mutsel/internal/precision"
)

// BigMeanVariance is the arbitrary-precision counterpart of
// MeanVariance. The result carries the working precision of freq.
func BigMeanVariance(freq, x []*big.Float) (mean, variance *big.Float, err error) {
	if len(freq) == 0 {
		return nil, nil, ErrEmptyInput
	}
	if len(freq) != len(x) {
		return nil, nil, ErrShapeMismatch
	}
	prec := freq[0].Prec()
	fx := make([]*big.Float, len(freq))
	fx2 := make([]*big.Float, len(freq))
	for i := range freq {
		fx[i] = new(big.Float).SetPrec(prec).Mul(freq[i], x[i])
		fx2[i] = new(big.Float).SetPrec(prec).Mul(fx[i], x[i])
	}
	norm, err := precision.BigSum(freq)
	if err != nil {
		return nil, nil, err
	}
	if norm.Sign() == 0 {
		return nil, nil, ErrZeroMass
	}
	mom1, err := precision.BigSum(fx)
	if err != nil {
		return nil, nil, err
	}
	mom2, err := precision.BigSum(fx2)
	if err != nil {
		return nil, nil, err
	}
	mean = new(big.Float).SetPrec(prec).Quo(mom1, norm)
	// var = (mom2 - mom1**2 / norm) / norm
	sq := new(big.Float).SetPrec(prec).Mul(mom1, mom1)
	sq.Quo(sq, norm)
	variance = new(big.Float).SetPrec(prec).Sub(mom2, sq)
	variance.Quo(variance, norm)
	return mean, variance, nil
}
