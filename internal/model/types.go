package model

import "math"

// Vector is a site position or force in simulation units.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: s * v.X, Y: s * v.Y, Z: s * v.Z}
}

func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y, Z: -v.Z}
}

func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// ForceEnergy is the output of one restraint evaluation: the force applied
// to the first site (the host applies the opposite force to the second) and
// the potential energy of the bias.
type ForceEnergy struct {
	Force  Vector
	Energy float64
}

// Phase identifies the stage of a BRER iteration.
type Phase string

const (
	PhaseTraining    Phase = "training"
	PhaseConvergence Phase = "convergence"
	PhaseProduction  Phase = "production"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseTraining, PhaseConvergence, PhaseProduction:
		return true
	}
	return false
}

// Next returns the phase that follows p within one iteration. Production
// wraps back to training for the next iteration.
func (p Phase) Next() Phase {
	switch p {
	case PhaseTraining:
		return PhaseConvergence
	case PhaseConvergence:
		return PhaseProduction
	default:
		return PhaseTraining
	}
}
