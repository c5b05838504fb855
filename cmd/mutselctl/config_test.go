package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_config.json")
	payload := map[string]any{
		"label":           "fisher-baseline",
		"classes":         501,
		"bin_width":       0.0005,
		"death":           0.1,
		"max_growth":      0.15,
		"exclude_upper":   true,
		"effect_kind":     "gamma_mixture",
		"effect_beta":     500,
		"effect_gamma":    0.001,
		"effect_lossy":    true,
		"initial_mean":    0.044,
		"initial_std":     0.005,
		"initial_z_limit": 2,
		"epochs":          2500,
		"steps_per_year":  4,
		"years_per_epoch": 1,
		"class_stride":    2,
		"threshold":       1e-9,
		"norm":            "max",
		"zero_forever":    true,
		"precision":       "big",
		"prec_bits":       300,
		"not_a_real_key":  "ignored",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Label != "fisher-baseline" || req.Classes != 501 || req.BinWidth != 0.0005 {
		t.Fatalf("unexpected lattice fields: %+v", req)
	}
	if req.Death != 0.1 || req.MaxGrowth != 0.15 || !req.ExcludeUpper {
		t.Fatalf("unexpected rate fields: %+v", req)
	}
	if req.EffectKind != "gamma_mixture" || req.Beta != 500 || req.Gamma != 0.001 || !req.Lossy {
		t.Fatalf("unexpected effect fields: %+v", req)
	}
	if req.InitialMean != 0.044 || req.InitialStd != 0.005 || req.InitialZLimit != 2 {
		t.Fatalf("unexpected initial fields: %+v", req)
	}
	if req.Epochs != 2500 || req.StepsPerYear != 4 || req.YearsPerEpoch != 1 || req.ClassStride != 2 {
		t.Fatalf("unexpected stepping fields: %+v", req)
	}
	if req.Threshold != 1e-9 || req.Norm != "max" || !req.ZeroForever || req.Adaptive {
		t.Fatalf("unexpected threshold fields: %+v", req)
	}
	if req.Precision != "big" || req.PrecBits != 300 {
		t.Fatalf("unexpected precision fields: %+v", req)
	}
}

func TestLoadRunRequestFromConfigMissingFile(t *testing.T) {
	if _, err := loadRunRequestFromConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRunRequestFromConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadRunRequestFromConfig(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadOrDefaultRunRequestEmptyPath(t *testing.T) {
	req, err := loadOrDefaultRunRequest("")
	if err != nil {
		t.Fatalf("load default request: %v", err)
	}
	if req.Classes != 0 || req.Label != "" {
		t.Fatalf("expected zero request, got %+v", req)
	}
}
