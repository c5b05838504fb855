// Package lattice derives the per-class birth and growth rates of the
// mutation-selection model from the global parameters: class count, bin
// width, death rate, and maximum growth rate.
//
// The class lattice is an ordered sequence of equispaced growth-rate
// values spanning [-death, maxGrowth]. Birth rates are growth + death,
// so birth[0] is exactly zero by construction; the constructor verifies
// this rather than trusting floating-point cancellation.
package lattice

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrTooFewClasses      = errors.New("lattice: need at least two classes")
	ErrNonPositiveWidth   = errors.New("lattice: bin width must be positive")
	ErrNegativeDeath      = errors.New("lattice: death rate must be non-negative")
	ErrBirthOriginNonzero = errors.New("lattice: birth rate of lowest class is not zero")
	ErrRangeMismatch      = errors.New("lattice: bin width inconsistent with growth range")
)

// Config holds the parameters of the class lattice.
type Config struct {
	// Classes is the number of discrete growth-rate classes, n.
	Classes int
	// BinWidth is the spacing w between consecutive classes. Zero
	// means derive it from the growth range and class count.
	BinWidth float64
	// Death is the uniform death rate d.
	Death float64
	// MaxGrowth is the top of the growth interval.
	MaxGrowth float64
	// ExcludeUpper selects the legacy discretization that omits the
	// top endpoint of [-death, maxGrowth]. For equivalent resolution
	// with the endpoint included, use Classes+1.
	ExcludeUpper bool
}

// Lattice is the realized class lattice with its rate vectors.
type Lattice struct {
	Growth []float64
	Birth  []float64

	Death     float64
	MaxGrowth float64
	BinWidth  float64
}

// New builds the lattice. Birth rates are computed as exact integer
// multiples of the bin width so that birth[0] == 0 holds exactly and
// spacing cannot drift; growth is birth - death.
func New(cfg Config) (*Lattice, error) {
	if cfg.Classes < 2 {
		return nil, ErrTooFewClasses
	}
	if cfg.Death < 0 {
		return nil, ErrNegativeDeath
	}
	span := cfg.MaxGrowth + cfg.Death
	if span <= 0 {
		return nil, fmt.Errorf("lattice: growth range [%g, %g] is empty", -cfg.Death, cfg.MaxGrowth)
	}

	steps := cfg.Classes - 1
	if cfg.ExcludeUpper {
		steps = cfg.Classes
	}
	width := span / float64(steps)
	if cfg.BinWidth != 0 {
		if cfg.BinWidth <= 0 {
			return nil, ErrNonPositiveWidth
		}
		// A supplied width must agree with the derived one.
		if math.Abs(cfg.BinWidth-width) > 1e-9*width {
			return nil, fmt.Errorf("%w: given %g, derived %g", ErrRangeMismatch, cfg.BinWidth, width)
		}
		width = cfg.BinWidth
	}

	l := &Lattice{
		Growth:    make([]float64, cfg.Classes),
		Birth:     make([]float64, cfg.Classes),
		Death:     cfg.Death,
		MaxGrowth: cfg.MaxGrowth,
		BinWidth:  width,
	}
	for i := range l.Birth {
		l.Birth[i] = float64(i) * width
		l.Growth[i] = l.Birth[i] - cfg.Death
	}
	if l.Birth[0] != 0 {
		return nil, ErrBirthOriginNonzero
	}
	return l, nil
}

// FromRange builds a lattice from the fitness interval endpoints and
// the bin width, the way the legacy experiments parameterize it. The
// upper endpoint is included.
func FromRange(minFitness, maxFitness, binWidth float64) (*Lattice, error) {
	if binWidth <= 0 {
		return nil, ErrNonPositiveWidth
	}
	n := int(math.Round((maxFitness-minFitness)/binWidth)) + 1
	return New(Config{
		Classes:   n,
		BinWidth:  binWidth,
		Death:     -minFitness,
		MaxGrowth: maxFitness,
	})
}

// Classes returns the class count n.
func (l *Lattice) Classes() int { return len(l.Growth) }

// Effects returns the 2n-1 mutational-effect offsets, the signed
// differences between any offspring class value and any parent class
// value: (-birth reversed) followed by birth[1:]. Index k corresponds
// to the effect (k - (n-1)) * BinWidth.
func (l *Lattice) Effects() []float64 {
	n := l.Classes()
	effects := make([]float64, 2*n-1)
	for i, b := range l.Birth {
		effects[n-1-i] = -b
		effects[n-1+i] = b
	}
	return effects
}

// Walls returns the n+1 bin boundaries centered on the growth values,
// used by CDF-differencing discretizers.
func (l *Lattice) Walls() []float64 {
	n := l.Classes()
	walls := make([]float64, n+1)
	for i := range walls {
		walls[i] = (float64(i)-0.5)*l.BinWidth - l.Death
	}
	return walls
}
