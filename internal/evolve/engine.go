// Package evolve advances a frequency vector through time under a
// generator operator, one reporting epoch at a time.
//
// Each epoch: rescale the vector by a power of two to a fixed target
// exponent (lossless, mantissas unchanged), integrate (fixed-step Euler
// or adaptive Runge-Kutta 4(5)), zero entries at or below the
// configured threshold, and record a snapshot plus the aggregate sum.
// Divergence (NaN/Inf/zero total mass) is recorded, not fatal; callers
// query the trajectory for the last valid epoch.
package evolve

import (
	"context"
	"errors"
	"math"

	"mutsel/internal/precision"
)

var (
	ErrAdaptiveWithThreshold = errors.New("evolve: adaptive integrator cannot be combined with thresholding")
	ErrZeroForeverNeedsNorm  = errors.New("evolve: zero-forever policy requires a norm")
	ErrEmptyInitial          = errors.New("evolve: empty initial distribution")
	ErrBadSteps              = errors.New("evolve: steps per year must be positive")
)

// Derivative is the operator contract the engine integrates. Both
// generator.Operator and generator.MatrixFree satisfy it.
type Derivative interface {
	Classes() int
	Derivative(t float64, p []float64) []float64
}

// derivativeInto is the allocation-free fast path offered by the dense
// operator; the engine uses it when available.
type derivativeInto interface {
	DerivativeInto(dst, p []float64)
}

// Norm aggregates a frequency vector for thresholding, e.g. the total
// or the maximum.
type Norm func([]float64) float64

// SumNorm is the compensated total mass of p.
func SumNorm(p []float64) float64 {
	s, err := precision.Sum(p)
	if err != nil {
		return 0
	}
	return s
}

// MaxNorm is the largest element of p.
func MaxNorm(p []float64) float64 {
	var max float64
	for _, x := range p {
		if x > max {
			max = x
		}
	}
	return max
}

// Config controls an evolution run.
type Config struct {
	// StepsPerYear is the Euler sub-step count; the step size is its
	// reciprocal.
	StepsPerYear int
	// YearsPerEpoch is the number of years integrated per reported
	// epoch.
	YearsPerEpoch int
	// ClassStride downsamples recorded snapshots by class index;
	// 0 or 1 records every class.
	ClassStride int
	// Threshold, relative to Norm(P), below or at which entries are
	// forced to exactly zero. Ignored when Norm is nil.
	Threshold float64
	// Norm supplies the aggregate for thresholding; nil disables
	// thresholding entirely.
	Norm Norm
	// ZeroForever makes zeroed indices permanently absorbing.
	ZeroForever bool
	// Adaptive selects the Runge-Kutta 4(5) integrator instead of
	// fixed-step Euler. Incompatible with thresholding: zeroing
	// introduces discontinuities the step controller cannot step
	// through.
	Adaptive bool
	// TargetExponent is the exponent the per-epoch rescale aims the
	// maximum entry at. Zero means DefaultTargetExponent.
	TargetExponent int
}

// DefaultTargetExponent centers the representable range comfortably
// below the float64 overflow exponent.
const DefaultTargetExponent = 512

// Engine owns a single frequency vector and its evolution state.
type Engine struct {
	cfg    Config
	op     Derivative
	fast   derivativeInto
	freqs  []float64
	deriv  []float64
	zeroed []bool

	// logScalar accumulates the base-2 log of all rescales applied, so
	// true frequencies are freqs * 2**-logScalar.
	logScalar int
}

// New prepares an engine over a copy of the initial distribution.
func New(op Derivative, initial []float64, cfg Config) (*Engine, error) {
	if len(initial) == 0 {
		return nil, ErrEmptyInitial
	}
	if cfg.Adaptive && cfg.Norm != nil {
		return nil, ErrAdaptiveWithThreshold
	}
	if cfg.ZeroForever && cfg.Norm == nil {
		return nil, ErrZeroForeverNeedsNorm
	}
	if cfg.StepsPerYear <= 0 {
		return nil, ErrBadSteps
	}
	if cfg.YearsPerEpoch <= 0 {
		cfg.YearsPerEpoch = 1
	}
	if cfg.ClassStride <= 0 {
		cfg.ClassStride = 1
	}
	if cfg.TargetExponent == 0 {
		cfg.TargetExponent = DefaultTargetExponent
	}
	e := &Engine{
		cfg:   cfg,
		op:    op,
		freqs: append([]float64(nil), initial...),
		deriv: make([]float64, len(initial)),
	}
	if fast, ok := op.(derivativeInto); ok {
		e.fast = fast
	}
	if cfg.ZeroForever {
		e.zeroed = make([]bool, len(initial))
	}
	// Apply the threshold to the initial state as well, so the first
	// snapshot honors the policy.
	e.applyThreshold()
	return e, nil
}

// Frequencies returns the current (scaled) frequency vector. The slice
// aliases engine state.
func (e *Engine) Frequencies() []float64 { return e.freqs }

// LogScalar returns the cumulative base-2 log of rescales applied so
// far. True frequencies are Frequencies() * 2**-LogScalar().
func (e *Engine) LogScalar() int { return e.logScalar }

// Run extends the trajectory by epochs reporting epochs, creating it if
// traj is nil. The context is checked between epochs; a cancelled run
// returns the trajectory built so far along with the context error.
func (e *Engine) Run(ctx context.Context, traj *Trajectory, epochs int) (*Trajectory, error) {
	if traj == nil {
		traj = newTrajectory(e.cfg.ClassStride, e.cfg.YearsPerEpoch)
		traj.record(e.freqs)
	}
	for ep := 0; ep < epochs; ep++ {
		if err := ctx.Err(); err != nil {
			return traj, err
		}
		// Lossless power-of-two recentering before each epoch.
		shift, err := precision.BiasExponents(e.freqs, e.cfg.TargetExponent)
		if err == nil {
			e.logScalar += shift
		}
		if e.cfg.Adaptive {
			if err := e.epochAdaptive(); err != nil {
				return traj, err
			}
		} else {
			e.epochEuler()
		}
		traj.record(e.freqs)
	}
	return traj, nil
}

func (e *Engine) epochEuler() {
	stepSize := 1 / float64(e.cfg.StepsPerYear)
	steps := e.cfg.StepsPerYear * e.cfg.YearsPerEpoch
	for s := 0; s < steps; s++ {
		e.derivative(e.deriv, e.freqs)
		for i := range e.freqs {
			e.freqs[i] += stepSize * e.deriv[i]
		}
		e.applyThreshold()
	}
}

func (e *Engine) epochAdaptive() error {
	duration := float64(e.cfg.YearsPerEpoch)
	f := func(t float64, p []float64) []float64 {
		return e.op.Derivative(t, p)
	}
	return rk45(f, e.freqs, 0, duration, rk45Options{
		AbsTol:  1e-11,
		RelTol:  1e-13,
		MaxStep: 1.0 / 128,
	})
}

func (e *Engine) derivative(dst, p []float64) {
	if e.fast != nil {
		e.fast.DerivativeInto(dst, p)
		return
	}
	copy(dst, e.op.Derivative(0, p))
}

// applyThreshold zeroes entries at or below threshold*norm. Under the
// zero-forever policy the zeroed set only grows; an index once zeroed
// stays excluded even if the raw dynamics would push it positive.
func (e *Engine) applyThreshold() {
	if e.cfg.Norm == nil {
		return
	}
	cut := e.cfg.Threshold * e.cfg.Norm(e.freqs)
	for i, x := range e.freqs {
		if e.cfg.ZeroForever && e.zeroed[i] {
			e.freqs[i] = 0
			continue
		}
		if x <= cut {
			e.freqs[i] = 0
			if e.cfg.ZeroForever {
				e.zeroed[i] = true
			}
		}
	}
}

// diverged reports whether x is unusable as a population total.
func diverged(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0) || x == 0
}
