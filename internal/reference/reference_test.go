package reference

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const sampleJSON = `{
	"label": "independent run, gaussian effects",
	"classes": 3,
	"years": 2,
	"birth": [0.0, 0.1, 0.2],
	"initial": [0.2, 0.5, 0.3],
	"final": [0.1, 0.4, 0.5],
	"snapshots": [
		[0.2, 0.5, 0.3],
		[0.15, 0.45, 0.4],
		[0.1, 0.4, 0.5]
	]
}`

func TestParseSample(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Classes != 3 || doc.Years != 2 {
		t.Fatalf("metadata wrong: %+v", doc)
	}
	if len(doc.Snapshots) != 3 || doc.Snapshots[2][2] != 0.5 {
		t.Fatalf("snapshots wrong: %+v", doc.Snapshots)
	}
}

func TestParseRejectsShapeMismatch(t *testing.T) {
	bad := `{"classes": 3, "birth": [0.0, 0.1]}`
	if _, err := Parse(strings.NewReader(bad)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestParseRejectsMissingMetadata(t *testing.T) {
	bad := `{"birth": [0.0, 0.1]}`
	if _, err := Parse(strings.NewReader(bad)); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	got := []float64{1.0, 2.0, 0.0}
	want := []float64{1.0, 2.5, 0.0}
	c, err := Compare("final", got, want)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	// |2.0-2.5|/2.5 = 0.2; exact zero against zero contributes nothing.
	if math.Abs(c.MaxAbsRelative-0.2) > 1e-15 {
		t.Fatalf("max rel err: got=%g want=0.2", c.MaxAbsRelative)
	}
	if c.Elements != 3 {
		t.Fatalf("elements: got=%d want=3", c.Elements)
	}
}

func TestCompareZeroReferenceIsInfinite(t *testing.T) {
	c, err := Compare("final", []float64{1e-300}, []float64{0})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !math.IsInf(c.MaxAbsRelative, 1) {
		t.Fatalf("expected +Inf against zero reference, got %g", c.MaxAbsRelative)
	}
}

func TestCompareSeriesAndWorst(t *testing.T) {
	got := [][]float64{{1, 1}, {1, 1.5}}
	want := [][]float64{{1, 1}, {1, 1}}
	comparisons, err := CompareSeries("snapshots", got, want)
	if err != nil {
		t.Fatalf("compare series: %v", err)
	}
	if len(comparisons) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(comparisons))
	}
	worst := Worst(comparisons)
	if math.Abs(worst.MaxAbsRelative-0.5) > 1e-15 {
		t.Fatalf("worst: got=%g want=0.5", worst.MaxAbsRelative)
	}
	if _, err := CompareSeries("snapshots", got[:1], want); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
