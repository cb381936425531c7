package model

import (
	"math"
	"testing"
)

func TestVectorNorm(t *testing.T) {
	v := Vector{X: 3, Y: 4, Z: 0}
	if got := v.Norm(); got != 5 {
		t.Fatalf("norm: got %f want 5", got)
	}
	if got := (Vector{}).Norm(); got != 0 {
		t.Fatalf("zero norm: got %f", got)
	}
}

func TestVectorArithmetic(t *testing.T) {
	a := Vector{X: 1, Y: 2, Z: 3}
	b := Vector{X: 4, Y: 6, Z: 8}

	d := b.Sub(a)
	if d != (Vector{X: 3, Y: 4, Z: 5}) {
		t.Fatalf("sub: got %+v", d)
	}
	if got := d.Add(a); got != b {
		t.Fatalf("add: got %+v want %+v", got, b)
	}
	if got := d.Scale(2); got != (Vector{X: 6, Y: 8, Z: 10}) {
		t.Fatalf("scale: got %+v", got)
	}
	if got := d.Neg().Add(d); got != (Vector{}) {
		t.Fatalf("neg: got %+v", got)
	}
	if got := a.Dot(b); math.Abs(got-40) > 1e-12 {
		t.Fatalf("dot: got %f want 40", got)
	}
}

func TestPhaseCycle(t *testing.T) {
	if !PhaseTraining.Valid() || !PhaseConvergence.Valid() || !PhaseProduction.Valid() {
		t.Fatal("expected canonical phases to be valid")
	}
	if Phase("anneal").Valid() {
		t.Fatal("unexpected valid phase")
	}
	if PhaseTraining.Next() != PhaseConvergence {
		t.Fatalf("training next: got %s", PhaseTraining.Next())
	}
	if PhaseConvergence.Next() != PhaseProduction {
		t.Fatalf("convergence next: got %s", PhaseConvergence.Next())
	}
	if PhaseProduction.Next() != PhaseTraining {
		t.Fatalf("production next: got %s", PhaseProduction.Next())
	}
}
