package storage

import (
	"context"
	"testing"
	"time"

	"mutsel/internal/model"
)

func versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Run{
		VersionedRecord: versioned(),
		ID:              "run-1",
		CreatedAt:       time.Now().UTC(),
		Lattice:         model.LatticeParams{Classes: 251, BinWidth: 1e-3, Death: 0.1, MaxGrowth: 0.15},
		Effects:         model.EffectsParams{Kind: "gaussian", Std: 0.005},
		Engine:          model.EngineParams{StepsPerYear: 1, YearsPerEpoch: 1, Threshold: 1e-9, Norm: "sum"},
		Epochs:          300,
	}
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if output.Lattice.Classes != 251 || output.Effects.Std != 0.005 {
		t.Fatalf("unexpected run: %+v", output)
	}
}

func TestMemoryStoreListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Now().UTC()
	for i, id := range []string{"run-c", "run-a", "run-b"} {
		run := model.Run{
			VersionedRecord: versioned(),
			ID:              id,
			CreatedAt:       base.Add(time.Duration(-i) * time.Minute),
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.Before(runs[i-1].CreatedAt) {
			t.Fatalf("runs out of order: %s before %s", runs[i].ID, runs[i-1].ID)
		}
	}
}

func TestMemoryStoreTrajectoryIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Trajectory{
		VersionedRecord: versioned(),
		RunID:           "run-1",
		Snapshots:       [][]float64{{0.25, 0.75}, {0.5, 0.5}},
		Sums:            []float64{1, 1},
		YearsPerEpoch:   1,
		ClassStride:     1,
	}
	if err := store.SaveTrajectory(ctx, input); err != nil {
		t.Fatalf("save trajectory: %v", err)
	}

	// Mutating the caller's slices must not reach the stored copy.
	input.Snapshots[0][0] = -1
	input.Sums[0] = -1

	output, ok, err := store.GetTrajectory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get trajectory: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted trajectory")
	}
	if output.Snapshots[0][0] != 0.25 || output.Sums[0] != 1 {
		t.Fatalf("stored trajectory aliases caller memory: %+v", output)
	}
}

func TestMemoryStoreEquilibriumRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Equilibrium{
		VersionedRecord: versioned(),
		RunID:           "run-1",
		Value:           0.044,
		Vector:          []float64{0.2, 0.3, 0.5},
		Error:           1e-14,
	}
	if err := store.SaveEquilibrium(ctx, input); err != nil {
		t.Fatalf("save equilibrium: %v", err)
	}

	output, ok, err := store.GetEquilibrium(ctx, "run-1")
	if err != nil {
		t.Fatalf("get equilibrium: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted equilibrium")
	}
	if output.Value != 0.044 || len(output.Vector) != 3 {
		t.Fatalf("unexpected equilibrium: %+v", output)
	}
}

func TestMemoryStoreMissingLookups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetRun(ctx, "absent"); err != nil || ok {
		t.Fatalf("get absent run: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetTrajectory(ctx, "absent"); err != nil || ok {
		t.Fatalf("get absent trajectory: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetEquilibrium(ctx, "absent"); err != nil || ok {
		t.Fatalf("get absent equilibrium: ok=%v err=%v", ok, err)
	}
}
