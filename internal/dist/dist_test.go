package dist

import (
	"errors"
	"math"
	"testing"

	"mutsel/internal/lattice"
	"mutsel/internal/precision"
)

func testLattice(t *testing.T, n int) *lattice.Lattice {
	t.Helper()
	l, err := lattice.New(lattice.Config{Classes: n, Death: 0.1, MaxGrowth: 0.15})
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	return l
}

func TestPointMass(t *testing.T) {
	e := PointMass(testLattice(t, 11))
	if e.Neutral() != 1 {
		t.Fatalf("point mass should be neutral: %g", e.Neutral())
	}
	if e.Deleterious() != 0 || e.Beneficial() != 0 {
		t.Fatalf("point mass has tail mass: %g %g", e.Deleterious(), e.Beneficial())
	}
}

func TestGaussianSymmetric(t *testing.T) {
	e, err := Gaussian(testLattice(t, 51), 0.002)
	if err != nil {
		t.Fatalf("gaussian effects failed: %v", err)
	}
	if math.Abs(e.Mass()-1) > 1e-12 {
		t.Fatalf("gaussian effects not normalized: %g", e.Mass())
	}
	n := len(e.P)
	for i := 0; i < n/2; i++ {
		if e.P[i] != e.P[n-1-i] {
			t.Fatalf("asymmetry at %d: %g vs %g", i, e.P[i], e.P[n-1-i])
		}
	}
	mean, variance, err := e.MeanVariance()
	if err != nil {
		t.Fatalf("mean/variance failed: %v", err)
	}
	if math.Abs(mean) > 1e-15 {
		t.Fatalf("symmetric distribution has nonzero mean: %g", mean)
	}
	if variance <= 0 {
		t.Fatalf("expected positive variance, got %g", variance)
	}
}

func TestReflectionMixtureWeighting(t *testing.T) {
	l := testLattice(t, 251)
	gamma := 1e-3
	e, err := ReflectionMixture(l, GammaCCDF(500), gamma, true)
	if err != nil {
		t.Fatalf("reflection mixture failed: %v", err)
	}
	if math.Abs(e.Mass()-1) > 1e-12 {
		t.Fatalf("mixture not normalized: %g", e.Mass())
	}
	// Tail masses obey the (1-gamma)/gamma ratio bin by bin.
	k := len(e.P) / 2
	wantRatio := (1 - gamma) / gamma
	for i := 1; i <= k; i++ {
		if e.P[k+i] == 0 {
			continue
		}
		ratio := e.P[k-i] / e.P[k+i]
		if math.Abs(ratio-wantRatio) > 1e-6*wantRatio {
			t.Fatalf("weight ratio at offset %d: got=%g want=%g", i, ratio, wantRatio)
		}
	}
	if got := e.DeleteriousToBeneficial(); math.Abs(got-wantRatio) > 1e-6*wantRatio {
		t.Fatalf("tail ratio: got=%g want=%g", got, wantRatio)
	}
}

func TestReflectionMixtureWeightRange(t *testing.T) {
	l := testLattice(t, 11)
	if _, err := ReflectionMixture(l, GammaCCDF(500), -0.1, true); !errors.Is(err, ErrWeightRange) {
		t.Fatalf("expected ErrWeightRange, got %v", err)
	}
	if _, err := ReflectionMixture(l, GammaCCDF(500), 1.5, true); !errors.Is(err, ErrWeightRange) {
		t.Fatalf("expected ErrWeightRange, got %v", err)
	}
}

func TestReflectionMixtureLossy(t *testing.T) {
	// A slowly decaying distribution, so the mass beyond the outer bin
	// wall is far above one ulp; a rate like 500 on this lattice leaves
	// a tail below 1e-50 that is invisible next to 1.0.
	l := testLattice(t, 11)
	beta := 5.0
	e, err := ReflectionMixture(l, GammaCCDF(beta), 0.5, false)
	if err != nil {
		t.Fatalf("reflection mixture failed: %v", err)
	}
	// Unnormalized: the mass excluded by truncating at the maximum
	// effect stays missing, and the deficit is exactly the continuous
	// tail beyond the outer wall.
	outerWall := (float64(len(e.P)/2) + 0.5) * e.Width
	wantDeficit := GammaCCDF(beta)(outerWall)
	if wantDeficit < 1e-3 {
		t.Fatalf("test distribution decays too fast to observe truncation: %g", wantDeficit)
	}
	if e.Mass() >= 1 {
		t.Fatalf("lossy mixture should keep total mass below 1, got %g", e.Mass())
	}
	if got := 1 - e.Mass(); math.Abs(got-wantDeficit) > 1e-12 {
		t.Fatalf("truncated tail deficit: got=%g want=%g", got, wantDeficit)
	}
}

func TestGammaCCDF(t *testing.T) {
	ccdf := GammaCCDF(500)
	if got := ccdf(0); got != 1 {
		t.Fatalf("ccdf(0) must be 1, got %g", got)
	}
	if got := ccdf(-1); got != 1 {
		t.Fatalf("ccdf of negative must be 1, got %g", got)
	}
	if ccdf(1e-3) <= ccdf(2e-3) {
		t.Fatal("ccdf must be decreasing")
	}
}

func TestConvolvePreservesMass(t *testing.T) {
	l := testLattice(t, 21)
	e, err := Gaussian(l, 0.01)
	if err != nil {
		t.Fatalf("gaussian effects failed: %v", err)
	}
	x := make([]float64, l.Classes())
	x[10] = 1
	out, err := e.Convolve(x, false)
	if err != nil {
		t.Fatalf("convolve failed: %v", err)
	}
	if len(out) != len(x) {
		t.Fatalf("convolution length: got=%d want=%d", len(out), len(x))
	}
	mass, err := precision.Sum(out)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if math.Abs(mass-1) > 1e-12 {
		t.Fatalf("lumped convolution must conserve mass, got %g", mass)
	}

	dropped, err := e.Convolve(x, true)
	if err != nil {
		t.Fatalf("convolve failed: %v", err)
	}
	droppedMass, err := precision.Sum(dropped)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if droppedMass > mass {
		t.Fatalf("discarding excess must not add mass: %g > %g", droppedMass, mass)
	}
}

func TestIIDEffectsIdentity(t *testing.T) {
	l := testLattice(t, 21)
	e, err := Gaussian(l, 0.01)
	if err != nil {
		t.Fatalf("gaussian effects failed: %v", err)
	}
	before := append([]float64(nil), e.P...)
	if err := e.IIDEffects(1, 0); err != nil {
		t.Fatalf("iid effects failed: %v", err)
	}
	for i := range before {
		if math.Abs(e.P[i]-before[i]) > 1e-15 {
			t.Fatalf("identity reshape changed mass at %d: %g vs %g", i, e.P[i], before[i])
		}
	}
}

func TestGaussianFrequencies(t *testing.T) {
	l, err := lattice.FromRange(-0.1, 0.15, 1e-3)
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	p, err := GaussianFrequencies(l, 0.044, 0.005, 11.2)
	if err != nil {
		t.Fatalf("gaussian frequencies failed: %v", err)
	}
	total, err := precision.Sum(p)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("initial frequencies not normalized: %g", total)
	}
	// Mass concentrates near growth = 0.044.
	peak := 0
	for i := range p {
		if p[i] > p[peak] {
			peak = i
		}
	}
	if math.Abs(l.Growth[peak]-0.044) > l.BinWidth {
		t.Fatalf("peak off target: growth=%g", l.Growth[peak])
	}
	// Cropping forces exact zeros in the far tails.
	if p[0] != 0 || p[len(p)-1] != 0 {
		t.Fatalf("expected cropped tails, got %g and %g", p[0], p[len(p)-1])
	}
}

func TestBinnedGaussianFrequencies(t *testing.T) {
	l, err := lattice.FromRange(-0.1, 0.15, 1e-3)
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	p, err := BinnedGaussianFrequencies(l, 0.044, 0.005)
	if err != nil {
		t.Fatalf("binned gaussian failed: %v", err)
	}
	total, err := precision.Sum(p)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("binned frequencies not normalized: %g", total)
	}
	for i, v := range p {
		if v < 0 {
			t.Fatalf("negative mass at %d: %g", i, v)
		}
	}
}
