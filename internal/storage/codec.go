package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"

	"mutsel/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Run records are small and stay plain JSON; trajectory and
// equilibrium payloads carry large numeric arrays and are gzipped.

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeTrajectory(t model.Trajectory) ([]byte, error) {
	return compressJSON(t)
}

func DecodeTrajectory(data []byte) (model.Trajectory, error) {
	var trajectory model.Trajectory
	if err := decompressJSON(data, &trajectory); err != nil {
		return model.Trajectory{}, err
	}
	if err := checkVersion(trajectory.VersionedRecord); err != nil {
		return model.Trajectory{}, err
	}
	return trajectory, nil
}

func EncodeEquilibrium(e model.Equilibrium) ([]byte, error) {
	return compressJSON(e)
}

func DecodeEquilibrium(data []byte) (model.Equilibrium, error) {
	var equilibrium model.Equilibrium
	if err := decompressJSON(data, &equilibrium); err != nil {
		return model.Equilibrium{}, err
	}
	if err := checkVersion(equilibrium.VersionedRecord); err != nil {
		return model.Equilibrium{}, err
	}
	return equilibrium, nil
}

func compressJSON(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressJSON(data []byte, v any) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return err
	}
	if err := zr.Close(); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
