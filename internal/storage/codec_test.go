package storage

import (
	"errors"
	"testing"

	"mutsel/internal/model"
)

func TestTrajectoryCodecRoundTrip(t *testing.T) {
	input := model.Trajectory{
		VersionedRecord: versioned(),
		RunID:           "run-1",
		Snapshots:       [][]float64{{1e-300, 0.5, 1e300}, {0, 0.25, 0.75}},
		Sums:            []float64{1.0000000000000002, 1},
		LogScalar:       515,
		ClassStride:     2,
		YearsPerEpoch:   1,
	}

	data, err := EncodeTrajectory(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeTrajectory(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.LogScalar != 515 || output.ClassStride != 2 {
		t.Fatalf("metadata lost: %+v", output)
	}
	for i, snap := range input.Snapshots {
		for j, x := range snap {
			if output.Snapshots[i][j] != x {
				t.Fatalf("numeric fidelity lost at [%d][%d]: %g != %g", i, j, output.Snapshots[i][j], x)
			}
		}
	}
	if output.Sums[0] != input.Sums[0] {
		t.Fatalf("sum fidelity lost: %g != %g", output.Sums[0], input.Sums[0])
	}
}

func TestEquilibriumCodecRoundTrip(t *testing.T) {
	input := model.Equilibrium{
		VersionedRecord: versioned(),
		RunID:           "run-1",
		Value:           0.15000000000000002,
		Vector:          []float64{1e-17, 0.99},
		Error:           3.19e-16,
	}
	data, err := EncodeEquilibrium(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeEquilibrium(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.Value != input.Value || output.Error != input.Error || output.Vector[0] != input.Vector[0] {
		t.Fatalf("fidelity lost: %+v", output)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	stale := model.Run{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
	}
	data, err := EncodeRun(stale)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	trajectory := model.Trajectory{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
		RunID:           "run-1",
	}
	blob, err := EncodeTrajectory(trajectory)
	if err != nil {
		t.Fatalf("encode trajectory: %v", err)
	}
	if _, err := DecodeTrajectory(blob); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeTrajectoryRejectsGarbage(t *testing.T) {
	if _, err := DecodeTrajectory([]byte("not gzip")); err == nil {
		t.Fatal("expected decode failure on non-gzip payload")
	}
}
