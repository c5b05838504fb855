package evolve

import (
	"errors"
	"math"
)

var errStepUnderflow = errors.New("evolve: adaptive step size underflow")

type rk45Options struct {
	AbsTol  float64
	RelTol  float64
	MaxStep float64
}

// rk45 integrates y' = f(t, y) from t0 to t1 in place using the
// Dormand-Prince embedded Runge-Kutta 4(5) pair with standard
// proportional step control. The fifth-order solution propagates; the
// embedded fourth-order solution only sizes the steps.
func rk45(f func(float64, []float64) []float64, y []float64, t0, t1 float64, opt rk45Options) error {
	// Dormand-Prince tableau.
	var (
		c = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
		a = [7][6]float64{
			{},
			{1.0 / 5},
			{3.0 / 40, 9.0 / 40},
			{44.0 / 45, -56.0 / 15, 32.0 / 9},
			{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
			{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
			{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
		}
		// Fifth-order weights (identical to the last tableau row).
		b5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
		// Embedded fourth-order weights.
		b4 = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
	)

	n := len(y)
	var k [7][]float64
	stage := make([]float64, n)
	y5 := make([]float64, n)

	h := opt.MaxStep
	if h <= 0 || h > t1-t0 {
		h = t1 - t0
	}
	t := t0
	minStep := (t1 - t0) * 1e-14

	for t < t1 {
		if t+h > t1 {
			h = t1 - t
		}
		// Evaluate the seven stages.
		for s := 0; s < 7; s++ {
			copy(stage, y)
			for j := 0; j < s; j++ {
				if a[s][j] == 0 {
					continue
				}
				haj := h * a[s][j]
				for i := 0; i < n; i++ {
					stage[i] += haj * k[j][i]
				}
			}
			k[s] = f(t+c[s]*h, stage)
		}
		// Fifth-order candidate and scaled error of the embedded pair.
		var errNorm float64
		for i := 0; i < n; i++ {
			var d5, d4 float64
			for s := 0; s < 7; s++ {
				d5 += b5[s] * k[s][i]
				d4 += b4[s] * k[s][i]
			}
			y5[i] = y[i] + h*d5
			scale := opt.AbsTol + opt.RelTol*math.Max(math.Abs(y[i]), math.Abs(y5[i]))
			e := h * (d5 - d4) / scale
			errNorm += e * e
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if errNorm <= 1 {
			t += h
			copy(y, y5)
		}
		// Step-size update with the usual safety clamp.
		factor := 2.0
		if errNorm > 0 {
			factor = 0.9 * math.Pow(errNorm, -0.2)
			if factor > 2 {
				factor = 2
			} else if factor < 0.1 {
				factor = 0.1
			}
		}
		h *= factor
		if opt.MaxStep > 0 && h > opt.MaxStep {
			h = opt.MaxStep
		}
		if h < minStep {
			return errStepUnderflow
		}
	}
	return nil
}
