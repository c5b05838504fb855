package mutsel

import (
	"encoding/json"
	"fmt"
	"os"

	"mutsel/internal/dist"
	"mutsel/internal/evolve"
	"mutsel/internal/generator"
	"mutsel/internal/kernel"
	"mutsel/internal/lattice"
	"mutsel/internal/model"
	"mutsel/internal/precision"
	"mutsel/internal/reference"
	"mutsel/internal/stats"
)

func latticeFromParams(p model.LatticeParams) (*lattice.Lattice, error) {
	return lattice.New(lattice.Config{
		Classes:      p.Classes,
		BinWidth:     p.BinWidth,
		Death:        p.Death,
		MaxGrowth:    p.MaxGrowth,
		ExcludeUpper: p.ExcludeUpper,
	})
}

func effectsFromParams(l *lattice.Lattice, p model.EffectsParams) (*dist.Effects, error) {
	switch p.Kind {
	case "gaussian":
		return dist.Gaussian(l, p.Std)
	case "gamma_mixture":
		return dist.ReflectionMixture(l, dist.GammaCCDF(p.Beta), p.Gamma, !p.Lossy)
	case "point_mass":
		return dist.PointMass(l), nil
	default:
		return nil, fmt.Errorf("unsupported effect distribution: %s", p.Kind)
	}
}

func buildOperator(run model.Run) (*lattice.Lattice, *generator.Operator, error) {
	l, err := latticeFromParams(run.Lattice)
	if err != nil {
		return nil, nil, err
	}
	effects, err := effectsFromParams(l, run.Effects)
	if err != nil {
		return nil, nil, err
	}
	k, err := kernel.Build(effects.P, l.Classes(), run.Effects.Lossy)
	if err != nil {
		return nil, nil, err
	}
	op, err := generator.New(k, l.Birth, l.Death)
	if err != nil {
		return nil, nil, err
	}
	return l, op, nil
}

func normFromName(name string) (evolve.Norm, error) {
	switch name {
	case "":
		return nil, nil
	case "sum":
		return evolve.SumNorm, nil
	case "max":
		return evolve.MaxNorm, nil
	default:
		return nil, fmt.Errorf("unsupported norm: %s", name)
	}
}

func kindFromName(name string) (precision.Kind, error) {
	switch name {
	case "", "fixed":
		return precision.Fixed, nil
	case "big":
		return precision.Arbitrary, nil
	default:
		return precision.Fixed, fmt.Errorf("unsupported precision: %s", name)
	}
}

func trajectoryRecord(runID string, traj *evolve.Trajectory, logScalar int) model.Trajectory {
	return model.Trajectory{
		VersionedRecord: versionedRecord(),
		RunID:           runID,
		Snapshots:       traj.Snapshots,
		Sums:            traj.Sums,
		LogScalar:       logScalar,
		ClassStride:     traj.ClassStride,
		YearsPerEpoch:   traj.YearsPerEpoch,
	}
}

func trajectoryFromRecord(record model.Trajectory) *evolve.Trajectory {
	stride := record.ClassStride
	if stride <= 0 {
		stride = 1
	}
	years := record.YearsPerEpoch
	if years <= 0 {
		years = 1
	}
	return &evolve.Trajectory{
		Snapshots:     record.Snapshots,
		Sums:          record.Sums,
		ClassStride:   stride,
		YearsPerEpoch: years,
	}
}

// finalMoments returns the weighted mean and variance of growth rate
// at the last valid epoch.
func finalMoments(l *lattice.Lattice, traj *evolve.Trajectory) (mean, variance float64, err error) {
	last := traj.LastValidEpoch()
	if last < 0 {
		return 0, 0, fmt.Errorf("trajectory diverged at epoch 0")
	}
	growth := strided(l.Growth, traj.ClassStride)
	return stats.MeanVariance(traj.Snapshots[last], growth)
}

func strided(a []float64, stride int) []float64 {
	if stride <= 1 {
		return a
	}
	out := make([]float64, 0, (len(a)+stride-1)/stride)
	for i := 0; i < len(a); i += stride {
		out = append(out, a[i])
	}
	return out
}

func exportDocument(run model.Run, record model.Trajectory) (*reference.Document, error) {
	l, err := latticeFromParams(run.Lattice)
	if err != nil {
		return nil, err
	}
	traj := trajectoryFromRecord(record)
	last := traj.LastValidEpoch()
	if last < 0 {
		return nil, fmt.Errorf("trajectory diverged at epoch 0")
	}

	birth := strided(l.Birth, traj.ClassStride)
	growth := strided(l.Growth, traj.ClassStride)
	normalized := traj.Normalized()[:last+1]
	means, variances, err := traj.MeanVariance(growth)
	if err != nil {
		return nil, err
	}

	return &reference.Document{
		Label:           run.Label,
		Classes:         len(birth),
		Years:           traj.Years(),
		Birth:           birth,
		Initial:         normalized[0],
		Final:           normalized[last],
		MeanFitness:     means[:last+1],
		VarianceFitness: variances[:last+1],
		Snapshots:       normalized,
	}, nil
}

func writeDocument(path string, doc *reference.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
