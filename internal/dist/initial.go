package dist

import (
	"math"

	"mutsel/internal/lattice"
	"mutsel/internal/precision"
)

// GaussianFrequencies returns the density-style discretized Gaussian
// initial distribution over the lattice's growth values, the form the
// legacy experiments use: each class gets mass proportional to the
// normal density at its center, classes more than zLimit standard
// deviations from the mean get exactly zero, and the result is
// normalized. Pass zLimit <= 0 to disable cropping.
func GaussianFrequencies(l *lattice.Lattice, mean, std, zLimit float64) ([]float64, error) {
	if std <= 0 {
		return nil, ErrNonPositive
	}
	p := make([]float64, l.Classes())
	for i, g := range l.Growth {
		z := (g - mean) / std
		if zLimit > 0 && math.Abs(z) > zLimit {
			continue
		}
		p[i] = math.Exp(-0.5 * z * z)
	}
	return normalized(p)
}

// BinnedGaussianFrequencies returns the CDF-differenced discretized
// Gaussian over the lattice. Bin masses come from differencing the CDF
// below the mean and the complementary CDF above it, which keeps the
// far tails from cancelling to zero.
func BinnedGaussianFrequencies(l *lattice.Lattice, mean, std float64) ([]float64, error) {
	if std <= 0 {
		return nil, ErrNonPositive
	}
	walls := l.Walls()
	cdf := func(x float64) float64 {
		return 0.5 * (1 + math.Erf((x-mean)/(std*math.Sqrt2)))
	}
	ccdf := func(x float64) float64 {
		return 0.5 * math.Erfc((x-mean)/(std*math.Sqrt2))
	}
	p := make([]float64, l.Classes())
	for i := range p {
		if walls[i+1] < mean {
			p[i] = cdf(walls[i+1]) - cdf(walls[i])
		} else {
			p[i] = ccdf(walls[i]) - ccdf(walls[i+1])
		}
	}
	return normalized(p)
}

func normalized(p []float64) ([]float64, error) {
	total, err := precision.Sum(p)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, ErrDegenerate
	}
	for i := range p {
		p[i] /= total
	}
	return p, nil
}
