// Package reference imports the JSON output of an independent
// implementation of the same model and compares it against engine
// results. The import contract is deliberately thin: plain numeric
// arrays plus the scalar metadata needed to line the arrays up with a
// class lattice.
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"mutsel/internal/stats"
)

var (
	ErrShapeMismatch = errors.New("reference: array shape does not match metadata")
	ErrMissingField  = errors.New("reference: required field missing")
)

// Document is a parsed reference dataset.
type Document struct {
	Label   string `json:"label,omitempty"`
	Classes int    `json:"classes"`
	Years   int    `json:"years"`

	Birth           []float64   `json:"birth"`
	Initial         []float64   `json:"initial"`
	Final           []float64   `json:"final"`
	MeanFitness     []float64   `json:"mean_fitness,omitempty"`
	VarianceFitness []float64   `json:"variance_fitness,omitempty"`
	EffectProbs     []float64   `json:"effect_probs,omitempty"`
	Snapshots       [][]float64 `json:"snapshots,omitempty"`
}

// Load reads and validates a reference document from a file.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a reference document from r.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("reference: decode: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.Classes <= 0 {
		return fmt.Errorf("%w: classes", ErrMissingField)
	}
	if len(d.Birth) == 0 {
		return fmt.Errorf("%w: birth", ErrMissingField)
	}
	for name, a := range map[string][]float64{
		"birth":   d.Birth,
		"initial": d.Initial,
		"final":   d.Final,
	} {
		if a != nil && len(a) != d.Classes {
			return fmt.Errorf("%w: %s has %d elements, expected %d", ErrShapeMismatch, name, len(a), d.Classes)
		}
	}
	for i, snap := range d.Snapshots {
		if len(snap) != d.Classes {
			return fmt.Errorf("%w: snapshot %d has %d elements, expected %d", ErrShapeMismatch, i, len(snap), d.Classes)
		}
	}
	return nil
}

// Comparison is the result of matching one engine array against its
// reference counterpart.
type Comparison struct {
	Name string
	// MaxAbsRelative is the maximum absolute relative error across
	// elements, with exact agreement at zero contributing nothing and
	// a mismatch against a zero reference element reported as +Inf.
	MaxAbsRelative float64
	Elements       int
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: max |rel err| %.3e over %d elements", c.Name, c.MaxAbsRelative, c.Elements)
}

// Compare measures got against the reference array want.
func Compare(name string, got, want []float64) (Comparison, error) {
	maxErr, err := stats.MaxAbsRelativeError(got, want)
	if err != nil {
		return Comparison{}, fmt.Errorf("reference: %s: %w", name, err)
	}
	return Comparison{Name: name, MaxAbsRelative: maxErr, Elements: len(want)}, nil
}

// CompareSeries measures a time series of arrays element-for-element,
// returning the per-epoch comparisons.
func CompareSeries(name string, got, want [][]float64) ([]Comparison, error) {
	if len(got) != len(want) {
		return nil, fmt.Errorf("%w: %s has %d epochs, reference has %d", ErrShapeMismatch, name, len(got), len(want))
	}
	out := make([]Comparison, len(want))
	for i := range want {
		c, err := Compare(fmt.Sprintf("%s[%d]", name, i), got[i], want[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Worst returns the comparison with the largest error, or a zero
// Comparison for an empty slice.
func Worst(comparisons []Comparison) Comparison {
	var worst Comparison
	for _, c := range comparisons {
		if c.MaxAbsRelative >= worst.MaxAbsRelative {
			worst = c
		}
	}
	return worst
}
