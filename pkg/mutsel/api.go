// Package mutsel is the public facade over the mutation-selection
// engine: it builds lattices, kernels, and generator operators from
// request parameters, runs trajectory simulations and equilibrium
// solves, and persists results through the storage layer.
package mutsel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"mutsel/internal/dist"
	"mutsel/internal/equilibrium"
	"mutsel/internal/evolve"
	"mutsel/internal/model"
	"mutsel/internal/precision"
	"mutsel/internal/reference"
	"mutsel/internal/stats"
	"mutsel/internal/storage"
)

const defaultDBPath = "mutsel.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

// RunRequest describes a trajectory simulation. Zero values select the
// standard Gaussian-effects scenario.
type RunRequest struct {
	Label string

	Classes      int
	BinWidth     float64
	Death        float64
	MaxGrowth    float64
	ExcludeUpper bool

	// EffectKind is "gaussian", "gamma_mixture", or "point_mass".
	EffectKind string
	Std        float64
	Beta       float64
	Gamma      float64
	Lossy      bool

	InitialMean   float64
	InitialStd    float64
	InitialZLimit float64

	Epochs        int
	StepsPerYear  int
	YearsPerEpoch int
	ClassStride   int
	Threshold     float64
	// Norm is "", "sum", or "max"; empty disables thresholding.
	Norm        string
	ZeroForever bool
	Adaptive    bool

	// Precision is "fixed" (default) or "big".
	Precision string
	PrecBits  uint
}

type RunSummary struct {
	RunID          string
	Epochs         int
	LastValidEpoch int
	LogScalar      int
	FinalMean      float64
	FinalVariance  float64
}

type EquilibriumRequest struct {
	// RunID reuses the parameters of a stored run. When empty, Run
	// supplies the model parameters inline.
	RunID string
	Run   *RunRequest

	BlockSize        int
	MaxBlocks        int
	Tolerance        float64
	RefineIterations int
	Workers          int
	Seed             int64
}

type EquilibriumSummary struct {
	RunID string
	Value float64
	Error float64
	Mean  float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Label        string
	Classes      int
	Epochs       int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowSummary struct {
	Run            model.Run
	Epochs         int
	LastValidEpoch int
	FinalMean      float64
	FinalVariance  float64
	Equilibrium    *EquilibriumSummary
}

type ExportRequest struct {
	RunID  string
	Latest bool
	Path   string
}

type ExportSummary struct {
	RunID string
	Path  string
}

type ValidateRequest struct {
	RunID         string
	Latest        bool
	ReferencePath string
	Tolerance     float64
}

type ValidateSummary struct {
	RunID string
	Worst reference.Comparison
	Pass  bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withRunDefaults(req)
	run := recordFromRequest(req)

	l, op, err := buildOperator(run)
	if err != nil {
		return RunSummary{}, err
	}

	initial, err := dist.GaussianFrequencies(l, req.InitialMean, req.InitialStd, req.InitialZLimit)
	if err != nil {
		return RunSummary{}, err
	}

	norm, err := normFromName(req.Norm)
	if err != nil {
		return RunSummary{}, err
	}
	cfg := evolve.Config{
		StepsPerYear:  req.StepsPerYear,
		YearsPerEpoch: req.YearsPerEpoch,
		ClassStride:   req.ClassStride,
		Threshold:     req.Threshold,
		Norm:          norm,
		ZeroForever:   req.ZeroForever,
		Adaptive:      req.Adaptive,
	}

	var (
		traj      *evolve.Trajectory
		logScalar int
	)
	kind, err := kindFromName(req.Precision)
	if err != nil {
		return RunSummary{}, err
	}
	switch kind {
	case precision.Fixed:
		eng, err := evolve.New(op, initial, cfg)
		if err != nil {
			return RunSummary{}, err
		}
		traj, err = eng.Run(ctx, nil, req.Epochs)
		if err != nil {
			return RunSummary{}, err
		}
		logScalar = eng.LogScalar()
	case precision.Arbitrary:
		eng, err := evolve.NewBig(op, initial, req.PrecBits, cfg)
		if err != nil {
			return RunSummary{}, err
		}
		traj, err = eng.Run(ctx, nil, req.Epochs)
		if err != nil {
			return RunSummary{}, err
		}
	}

	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTrajectory(ctx, trajectoryRecord(run.ID, traj, logScalar)); err != nil {
		return RunSummary{}, err
	}

	mean, variance, err := finalMoments(l, traj)
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:          run.ID,
		Epochs:         traj.Epochs(),
		LastValidEpoch: traj.LastValidEpoch(),
		LogScalar:      logScalar,
		FinalMean:      mean,
		FinalVariance:  variance,
	}, nil
}

func (c *Client) Equilibrium(ctx context.Context, req EquilibriumRequest) (EquilibriumSummary, error) {
	if req.RunID != "" && req.Run != nil {
		return EquilibriumSummary{}, errors.New("use either run id or inline parameters")
	}

	var run model.Run
	switch {
	case req.RunID != "":
		stored, ok, err := c.store.GetRun(ctx, req.RunID)
		if err != nil {
			return EquilibriumSummary{}, err
		}
		if !ok {
			return EquilibriumSummary{}, fmt.Errorf("run not found: %s", req.RunID)
		}
		run = stored
	case req.Run != nil:
		run = recordFromRequest(withRunDefaults(*req.Run))
		if err := c.store.SaveRun(ctx, run); err != nil {
			return EquilibriumSummary{}, err
		}
	default:
		return EquilibriumSummary{}, errors.New("equilibrium requires run id or inline parameters")
	}

	l, op, err := buildOperator(run)
	if err != nil {
		return EquilibriumSummary{}, err
	}

	res, err := equilibrium.Solve(op, equilibrium.Config{
		BlockSize:        req.BlockSize,
		MaxBlocks:        req.MaxBlocks,
		Tolerance:        req.Tolerance,
		RefineIterations: req.RefineIterations,
		Workers:          req.Workers,
		Seed:             req.Seed,
		Warn: func(msg string) {
			fmt.Fprintln(os.Stderr, "warning:", msg)
		},
	})
	if err != nil {
		return EquilibriumSummary{}, err
	}

	record := model.Equilibrium{
		VersionedRecord: versionedRecord(),
		RunID:           run.ID,
		Value:           res.Value,
		Vector:          res.Vector,
		Error:           res.Error,
	}
	if err := c.store.SaveEquilibrium(ctx, record); err != nil {
		return EquilibriumSummary{}, err
	}

	mean, _, err := stats.MeanVariance(res.Vector, l.Growth)
	if err != nil {
		return EquilibriumSummary{}, err
	}
	return EquilibriumSummary{RunID: run.ID, Value: res.Value, Error: res.Error, Mean: mean}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[len(runs)-req.Limit:]
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAt.UTC().Format(time.RFC3339),
			Label:        run.Label,
			Classes:      run.Lattice.Classes,
			Epochs:       run.Epochs,
		})
	}
	return out, nil
}

func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowSummary, error) {
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ShowSummary{}, err
	}
	summary := ShowSummary{Run: run}

	record, ok, err := c.store.GetTrajectory(ctx, run.ID)
	if err != nil {
		return ShowSummary{}, err
	}
	if ok {
		l, err := latticeFromParams(run.Lattice)
		if err != nil {
			return ShowSummary{}, err
		}
		traj := trajectoryFromRecord(record)
		summary.Epochs = traj.Epochs()
		summary.LastValidEpoch = traj.LastValidEpoch()
		summary.FinalMean, summary.FinalVariance, err = finalMoments(l, traj)
		if err != nil {
			return ShowSummary{}, err
		}
	}

	eqRecord, ok, err := c.store.GetEquilibrium(ctx, run.ID)
	if err != nil {
		return ShowSummary{}, err
	}
	if ok {
		summary.Equilibrium = &EquilibriumSummary{
			RunID: run.ID,
			Value: eqRecord.Value,
			Error: eqRecord.Error,
		}
	}
	return summary, nil
}

// Export writes a run's trajectory as a reference-format JSON document
// so an independent implementation can compare against it.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	record, ok, err := c.store.GetTrajectory(ctx, run.ID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("trajectory not found for run id: %s", run.ID)
	}

	doc, err := exportDocument(run, record)
	if err != nil {
		return ExportSummary{}, err
	}
	path := req.Path
	if path == "" {
		path = run.ID + ".json"
	}
	if err := writeDocument(path, doc); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: run.ID, Path: path}, nil
}

// Validate compares a run's normalized trajectory against a reference
// document and reports the worst per-epoch relative error.
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (ValidateSummary, error) {
	if req.ReferencePath == "" {
		return ValidateSummary{}, errors.New("validate requires a reference path")
	}
	if req.Tolerance <= 0 {
		req.Tolerance = 1e-9
	}
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ValidateSummary{}, err
	}
	record, ok, err := c.store.GetTrajectory(ctx, run.ID)
	if err != nil {
		return ValidateSummary{}, err
	}
	if !ok {
		return ValidateSummary{}, fmt.Errorf("trajectory not found for run id: %s", run.ID)
	}

	doc, err := reference.Load(req.ReferencePath)
	if err != nil {
		return ValidateSummary{}, err
	}
	traj := trajectoryFromRecord(record)
	comparisons, err := reference.CompareSeries("snapshots", traj.Normalized(), doc.Snapshots)
	if err != nil {
		return ValidateSummary{}, err
	}
	worst := reference.Worst(comparisons)
	return ValidateSummary{
		RunID: run.ID,
		Worst: worst,
		Pass:  worst.MaxAbsRelative <= req.Tolerance,
	}, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (model.Run, error) {
	if runID != "" && latest {
		return model.Run{}, errors.New("use either run id or latest")
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return model.Run{}, err
		}
		if len(runs) == 0 {
			return model.Run{}, errors.New("no runs available")
		}
		return runs[len(runs)-1], nil
	}
	if runID == "" {
		return model.Run{}, errors.New("run id or latest is required")
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}
	if !ok {
		return model.Run{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func withRunDefaults(req RunRequest) RunRequest {
	if req.Classes <= 0 {
		req.Classes = 251
	}
	if req.Death == 0 && req.MaxGrowth == 0 {
		req.Death = 0.1
		req.MaxGrowth = 0.15
	}
	if req.EffectKind == "" {
		req.EffectKind = "gaussian"
	}
	if req.EffectKind == "gaussian" && req.Std == 0 {
		req.Std = 0.005
	}
	if req.InitialStd == 0 {
		req.InitialMean = 0.044
		req.InitialStd = 0.005
	}
	if req.Epochs <= 0 {
		req.Epochs = 300
	}
	if req.StepsPerYear <= 0 {
		req.StepsPerYear = 1
	}
	if req.YearsPerEpoch <= 0 {
		req.YearsPerEpoch = 1
	}
	return req
}

func recordFromRequest(req RunRequest) model.Run {
	id := uuid.NewString()
	return model.Run{
		VersionedRecord: versionedRecord(),
		ID:              id,
		CreatedAt:       time.Now().UTC(),
		Label:           req.Label,
		Lattice: model.LatticeParams{
			Classes:      req.Classes,
			BinWidth:     req.BinWidth,
			Death:        req.Death,
			MaxGrowth:    req.MaxGrowth,
			ExcludeUpper: req.ExcludeUpper,
		},
		Effects: model.EffectsParams{
			Kind:  req.EffectKind,
			Std:   req.Std,
			Beta:  req.Beta,
			Gamma: req.Gamma,
			Lossy: req.Lossy,
		},
		Engine: model.EngineParams{
			StepsPerYear:  req.StepsPerYear,
			YearsPerEpoch: req.YearsPerEpoch,
			ClassStride:   req.ClassStride,
			Threshold:     req.Threshold,
			Norm:          req.Norm,
			ZeroForever:   req.ZeroForever,
			Adaptive:      req.Adaptive,
			Precision:     req.Precision,
		},
		Epochs: req.Epochs,
	}
}

func versionedRecord() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
