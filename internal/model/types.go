package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// LatticeParams is the scalar metadata needed to reconstruct a class
// lattice: class count, bin width, and death rate.
type LatticeParams struct {
	Classes      int     `json:"classes"`
	BinWidth     float64 `json:"bin_width"`
	Death        float64 `json:"death"`
	MaxGrowth    float64 `json:"max_growth"`
	ExcludeUpper bool    `json:"exclude_upper,omitempty"`
}

// EffectsParams describes how the mutational-effect distribution was
// discretized.
type EffectsParams struct {
	// Kind is "gaussian", "gamma_mixture", or "point_mass".
	Kind string `json:"kind"`
	// Std is the Gaussian standard deviation (gaussian kind).
	Std float64 `json:"std,omitempty"`
	// Beta is the Gamma rate parameter (gamma_mixture kind).
	Beta float64 `json:"beta,omitempty"`
	// Gamma is the beneficial-effect weight (gamma_mixture kind).
	Gamma float64 `json:"gamma,omitempty"`
	// Lossy leaves boundary-truncated kernel columns unnormalized.
	Lossy bool `json:"lossy,omitempty"`
}

// EngineParams records the integration settings of a run.
type EngineParams struct {
	StepsPerYear  int     `json:"steps_per_year"`
	YearsPerEpoch int     `json:"years_per_epoch"`
	ClassStride   int     `json:"class_stride"`
	Threshold     float64 `json:"threshold"`
	Norm          string  `json:"norm,omitempty"`
	ZeroForever   bool    `json:"zero_forever,omitempty"`
	Adaptive      bool    `json:"adaptive,omitempty"`
	Precision     string  `json:"precision,omitempty"`
}

// Run is a persisted simulation run: its parameters plus bookkeeping.
type Run struct {
	VersionedRecord
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Label     string        `json:"label,omitempty"`
	Lattice   LatticeParams `json:"lattice"`
	Effects   EffectsParams `json:"effects"`
	Engine    EngineParams  `json:"engine"`
	Epochs    int           `json:"epochs"`
}

// Trajectory is the persisted numeric payload of a run.
type Trajectory struct {
	VersionedRecord
	RunID         string      `json:"run_id"`
	Snapshots     [][]float64 `json:"snapshots"`
	Sums          []float64   `json:"sums"`
	LogScalar     int         `json:"log_scalar"`
	ClassStride   int         `json:"class_stride"`
	YearsPerEpoch int         `json:"years_per_epoch"`
}

// Equilibrium is a persisted dominant eigenpair with the residual the
// solver achieved.
type Equilibrium struct {
	VersionedRecord
	RunID  string    `json:"run_id"`
	Value  float64   `json:"value"`
	Vector []float64 `json:"vector"`
	Error  float64   `json:"error"`
}
