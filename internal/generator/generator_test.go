package generator

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"mutsel/internal/dist"
	"mutsel/internal/kernel"
	"mutsel/internal/lattice"
)

func buildOperator(t *testing.T, n int, lossy bool) (*Operator, *lattice.Lattice) {
	t.Helper()
	l, err := lattice.New(lattice.Config{Classes: n, Death: 0.1, MaxGrowth: 0.15})
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	e, err := dist.Gaussian(l, 0.005)
	if err != nil {
		t.Fatalf("effects failed: %v", err)
	}
	k, err := kernel.Build(e.P, n, lossy)
	if err != nil {
		t.Fatalf("kernel failed: %v", err)
	}
	op, err := New(k, l.Birth, l.Death)
	if err != nil {
		t.Fatalf("generator failed: %v", err)
	}
	return op, l
}

func TestNewEntries(t *testing.T) {
	// Identity kernel: W = diag(birth) - death*I.
	l, err := lattice.New(lattice.Config{Classes: 5, BinWidth: 0.1, Death: 0.1, MaxGrowth: 0.3})
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	k, err := kernel.Build(dist.PointMass(l).P, 5, false)
	if err != nil {
		t.Fatalf("kernel failed: %v", err)
	}
	op, err := New(k, l.Birth, l.Death)
	if err != nil {
		t.Fatalf("generator failed: %v", err)
	}
	w := op.Matrix()
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			want := 0.0
			if i == j {
				want = l.Birth[i] - 0.1
			}
			if math.Abs(w.At(i, j)-want) > 1e-15 {
				t.Fatalf("W[%d][%d]: got=%g want=%g", i, j, w.At(i, j), want)
			}
		}
	}
}

func TestNewDimensionMismatch(t *testing.T) {
	k := mat.NewDense(3, 3, nil)
	if _, err := New(k, []float64{0, 1}, 0.1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestDerivativeMatchesMatrix(t *testing.T) {
	op, _ := buildOperator(t, 31, false)
	p := make([]float64, op.Classes())
	for i := range p {
		p[i] = float64(i) * 0.01
	}
	got := op.Derivative(0, p)

	var want mat.VecDense
	want.MulVec(op.Matrix(), mat.NewVecDense(len(p), p))
	for i := range p {
		if math.Abs(got[i]-want.AtVec(i)) > 1e-14 {
			t.Fatalf("derivative row %d: got=%g want=%g", i, got[i], want.AtVec(i))
		}
	}
}

func TestMassConservationOfDerivative(t *testing.T) {
	// For a stochastic kernel, column sums of W are birth[j] - death,
	// so d(sum P)/dt equals sum((birth-death)*P). With death equal to
	// each birth rate the flow balances exactly; just verify the
	// column-sum identity here.
	op, l := buildOperator(t, 21, false)
	w := op.Matrix()
	for j := 0; j < op.Classes(); j++ {
		var sum float64
		for i := 0; i < op.Classes(); i++ {
			sum += w.At(i, j)
		}
		want := l.Birth[j] - l.Death
		if math.Abs(sum-want) > 1e-12 {
			t.Fatalf("column %d sum: got=%g want=%g", j, sum, want)
		}
	}
}

func TestJacobianShape(t *testing.T) {
	op, _ := buildOperator(t, 7, false)
	p := []float64{1, 2, 3, 4, 5, 6, 7}
	j := op.Jacobian(0, p)
	for d := 0; d < 7; d++ {
		if got := j.At(d, d); math.Abs(got-(-0.1*p[d])) > 1e-15 {
			t.Fatalf("jacobian diagonal %d: got=%g", d, got)
		}
	}
	if got := j.At(1, 0); math.Abs(got-op.Matrix().At(1, 0)*p[0]) > 1e-15 {
		t.Fatalf("jacobian off-diagonal: got=%g", got)
	}
}

func TestRestrictCaching(t *testing.T) {
	op, _ := buildOperator(t, 31, false)
	sub1, err := op.Restrict(5, 20)
	if err != nil {
		t.Fatalf("restrict failed: %v", err)
	}
	if sub1.Classes() != 15 {
		t.Fatalf("unexpected restricted size: %d", sub1.Classes())
	}
	sub2, err := op.Restrict(5, 20)
	if err != nil {
		t.Fatalf("restrict failed: %v", err)
	}
	if sub1 != sub2 {
		t.Fatal("same interval must return the cached sub-operator")
	}
	sub3, err := op.Restrict(4, 20)
	if err != nil {
		t.Fatalf("restrict failed: %v", err)
	}
	if sub3 == sub1 {
		t.Fatal("changed interval must rebuild the sub-operator")
	}
	whole, err := op.Restrict(0, 31)
	if err != nil {
		t.Fatalf("restrict failed: %v", err)
	}
	if whole != op {
		t.Fatal("full interval must return the operator itself")
	}
	if _, err := op.Restrict(-1, 10); !errors.Is(err, ErrBadInterval) {
		t.Fatalf("expected ErrBadInterval, got %v", err)
	}
	if _, err := op.Restrict(10, 5); !errors.Is(err, ErrBadInterval) {
		t.Fatalf("expected ErrBadInterval, got %v", err)
	}
}

func TestMatrixFreeMatchesDense(t *testing.T) {
	l, err := lattice.New(lattice.Config{Classes: 25, Death: 0.1, MaxGrowth: 0.15})
	if err != nil {
		t.Fatalf("lattice construction failed: %v", err)
	}
	e, err := dist.Gaussian(l, 0.005)
	if err != nil {
		t.Fatalf("effects failed: %v", err)
	}
	// The matrix-free operator implies the lossy kernel.
	k, err := kernel.Build(e.P, l.Classes(), true)
	if err != nil {
		t.Fatalf("kernel failed: %v", err)
	}
	dense, err := New(k, l.Birth, l.Death)
	if err != nil {
		t.Fatalf("generator failed: %v", err)
	}
	free, err := NewMatrixFree(e.P, l.Birth, l.Death)
	if err != nil {
		t.Fatalf("matrix-free generator failed: %v", err)
	}

	p := make([]float64, l.Classes())
	for i := range p {
		p[i] = 1 / float64(i+1)
	}
	dGot := free.Derivative(0, p)
	dWant := dense.Derivative(0, p)
	for i := range p {
		if math.Abs(dGot[i]-dWant[i]) > 1e-13 {
			t.Fatalf("matrix-free derivative row %d: got=%g want=%g", i, dGot[i], dWant[i])
		}
	}
}
