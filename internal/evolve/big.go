package evolve

import (
	"context"
	"math/big"

	"mutsel/internal/precision"
)

// BigEngine carries the frequency state as arbitrary-precision floats
// while evaluating the derivative in float64. Accumulating Euler
// updates at high precision removes the summation error of the fixed
// regime without paying for a full arbitrary-precision operator; the
// derivative itself is well conditioned at float64.
type BigEngine struct {
	cfg    Config
	op     Derivative
	freqs  []*big.Float
	zeroed []bool
	prec   uint
}

// NewBig prepares an arbitrary-precision engine. prec is the mantissa
// size in bits; zero means precision.DefaultPrec. The adaptive
// integrator is not offered in this regime.
func NewBig(op Derivative, initial []float64, prec uint, cfg Config) (*BigEngine, error) {
	if len(initial) == 0 {
		return nil, ErrEmptyInitial
	}
	if cfg.Adaptive {
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
	if prec == 0 {
		prec = precision.DefaultPrec
	}
	e := &BigEngine{
		cfg:   cfg,
		op:    op,
		freqs: precision.ToBig(initial, prec),
		prec:  prec,
	}
	if cfg.ZeroForever {
		e.zeroed = make([]bool, len(initial))
	}
	e.applyThreshold()
	return e, nil
}

// Frequencies returns the current state converted to float64.
func (e *BigEngine) Frequencies() []float64 {
	return precision.ToFloat(e.freqs)
}

// Run extends traj by the given number of epochs, creating it if nil.
// Snapshots are recorded in float64.
func (e *BigEngine) Run(ctx context.Context, traj *Trajectory, epochs int) (*Trajectory, error) {
	if traj == nil {
		traj = newTrajectory(e.cfg.ClassStride, e.cfg.YearsPerEpoch)
		traj.record(e.Frequencies())
	}
	stepSize := new(big.Float).SetPrec(e.prec).SetFloat64(1 / float64(e.cfg.StepsPerYear))
	scratch := new(big.Float).SetPrec(e.prec)
	for ep := 0; ep < epochs; ep++ {
		if err := ctx.Err(); err != nil {
			return traj, err
		}
		steps := e.cfg.StepsPerYear * e.cfg.YearsPerEpoch
		for s := 0; s < steps; s++ {
			deriv := e.op.Derivative(0, e.Frequencies())
			for i := range e.freqs {
				scratch.SetFloat64(deriv[i])
				scratch.Mul(scratch, stepSize)
				e.freqs[i].Add(e.freqs[i], scratch)
			}
			e.applyThreshold()
		}
		traj.record(e.Frequencies())
	}
	return traj, nil
}

func (e *BigEngine) applyThreshold() {
	if e.cfg.Norm == nil {
		return
	}
	cut := new(big.Float).SetPrec(e.prec).SetFloat64(e.cfg.Threshold * e.cfg.Norm(e.Frequencies()))
	for i, x := range e.freqs {
		if e.cfg.ZeroForever && e.zeroed[i] {
			x.SetInt64(0)
			continue
		}
		if x.Cmp(cut) <= 0 {
			x.SetInt64(0)
			if e.cfg.ZeroForever {
				e.zeroed[i] = true
			}
		}
	}
}
