package evolve

import (
	"mutsel/internal/precision"
	"mutsel/internal/stats"
)

// Trajectory is the recorded evolution of a frequency vector: one
// snapshot per reporting epoch (possibly downsampled by class stride)
// plus the per-epoch aggregate sums used for divergence detection.
type Trajectory struct {
	Snapshots [][]float64
	Sums      []float64

	ClassStride   int
	YearsPerEpoch int
}

func newTrajectory(classStride, yearsPerEpoch int) *Trajectory {
	return &Trajectory{ClassStride: classStride, YearsPerEpoch: yearsPerEpoch}
}

func (t *Trajectory) record(freqs []float64) {
	snap := make([]float64, 0, (len(freqs)+t.ClassStride-1)/t.ClassStride)
	for i := 0; i < len(freqs); i += t.ClassStride {
		snap = append(snap, freqs[i])
	}
	sum, err := precision.Sum(freqs)
	if err != nil {
		sum = 0
	}
	t.Snapshots = append(t.Snapshots, snap)
	t.Sums = append(t.Sums, sum)
}

// Epochs returns the number of recorded epochs, including epoch 0.
func (t *Trajectory) Epochs() int { return len(t.Snapshots) }

// Years returns the simulated years covered by the trajectory.
func (t *Trajectory) Years() int {
	if len(t.Snapshots) == 0 {
		return 0
	}
	return t.YearsPerEpoch * (len(t.Snapshots) - 1)
}

// LastValidEpoch returns the index of the last epoch before the first
// NaN, Inf, or exactly zero aggregate sum; the full length minus one
// when no divergence occurred. Callers discard epochs after it.
func (t *Trajectory) LastValidEpoch() int {
	for i, s := range t.Sums {
		if diverged(s) {
			return i - 1
		}
	}
	return len(t.Sums) - 1
}

// Normalized returns the snapshots each divided by its recorded sum.
// Diverged epochs are returned as-is (the caller is expected to slice
// by LastValidEpoch first).
func (t *Trajectory) Normalized() [][]float64 {
	out := make([][]float64, len(t.Snapshots))
	for i, snap := range t.Snapshots {
		row := make([]float64, len(snap))
		if s := t.Sums[i]; !diverged(s) {
			for j, x := range snap {
				row[j] = x / s
			}
		} else {
			copy(row, snap)
		}
		out[i] = row
	}
	return out
}

// MeanVariance returns the time series of weighted mean and variance of
// fitness over the trajectory. fitness must align with the recorded
// (strided) snapshots.
func (t *Trajectory) MeanVariance(fitness []float64) (means, variances []float64, err error) {
	means = make([]float64, len(t.Snapshots))
	variances = make([]float64, len(t.Snapshots))
	for i, snap := range t.Snapshots {
		m, v, err := stats.MeanVariance(snap, fitness)
		if err != nil {
			return nil, nil, err
		}
		means[i] = m
		variances[i] = v
	}
	return means, variances, nil
}
