package main

import (
	"encoding/json"
	"fmt"
	"os"

	"mutsel/pkg/mutsel"
)

// loadRunRequestFromConfig reads a run request from a JSON file. Unknown
// keys are ignored and numeric fields accept any JSON number form.
func loadRunRequestFromConfig(path string) (mutsel.RunRequest, error) {
	var req mutsel.RunRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read config: %w", err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return req, fmt.Errorf("parse config: %w", err)
	}

	if v, ok := asString(raw["label"]); ok {
		req.Label = v
	}
	if v, ok := asInt(raw["classes"]); ok {
		req.Classes = v
	}
	if v, ok := asFloat64(raw["bin_width"]); ok {
		req.BinWidth = v
	}
	if v, ok := asFloat64(raw["death"]); ok {
		req.Death = v
	}
	if v, ok := asFloat64(raw["max_growth"]); ok {
		req.MaxGrowth = v
	}
	if v, ok := asBool(raw["exclude_upper"]); ok {
		req.ExcludeUpper = v
	}
	if v, ok := asString(raw["effect_kind"]); ok {
		req.EffectKind = v
	}
	if v, ok := asFloat64(raw["effect_std"]); ok {
		req.Std = v
	}
	if v, ok := asFloat64(raw["effect_beta"]); ok {
		req.Beta = v
	}
	if v, ok := asFloat64(raw["effect_gamma"]); ok {
		req.Gamma = v
	}
	if v, ok := asBool(raw["effect_lossy"]); ok {
		req.Lossy = v
	}
	if v, ok := asFloat64(raw["initial_mean"]); ok {
		req.InitialMean = v
	}
	if v, ok := asFloat64(raw["initial_std"]); ok {
		req.InitialStd = v
	}
	if v, ok := asFloat64(raw["initial_z_limit"]); ok {
		req.InitialZLimit = v
	}
	if v, ok := asInt(raw["epochs"]); ok {
		req.Epochs = v
	}
	if v, ok := asInt(raw["steps_per_year"]); ok {
		req.StepsPerYear = v
	}
	if v, ok := asInt(raw["years_per_epoch"]); ok {
		req.YearsPerEpoch = v
	}
	if v, ok := asInt(raw["class_stride"]); ok {
		req.ClassStride = v
	}
	if v, ok := asFloat64(raw["threshold"]); ok {
		req.Threshold = v
	}
	if v, ok := asString(raw["norm"]); ok {
		req.Norm = v
	}
	if v, ok := asBool(raw["zero_forever"]); ok {
		req.ZeroForever = v
	}
	if v, ok := asBool(raw["adaptive"]); ok {
		req.Adaptive = v
	}
	if v, ok := asString(raw["precision"]); ok {
		req.Precision = v
	}
	if v, ok := asInt(raw["prec_bits"]); ok {
		req.PrecBits = uint(v)
	}

	return req, nil
}

// loadOrDefaultRunRequest returns a zero request when no config path is
// given, leaving defaults to the client.
func loadOrDefaultRunRequest(path string) (mutsel.RunRequest, error) {
	if path == "" {
		return mutsel.RunRequest{}, nil
	}
	return loadRunRequestFromConfig(path)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(n), true
	}
	return 0, false
}
