// Package schedule provides the periodic boundary bookkeeping shared by the
// restraint state machines: deciding whether a sample or window boundary has
// been reached at the current simulation time, and computing the next one.
package schedule

import "fmt"

// Sampler tracks evenly spaced boundaries along simulation time. The next
// boundary is always recomputed as base + (n+1)*period from an integer
// boundary count, never by adding the period to the previous boundary, so
// floating-point drift stays bounded no matter how many boundaries elapse
// or how irregular the host's step size is.
type Sampler struct {
	period  float64
	base    float64
	count   int
	next    float64
	started bool
}

func NewSampler(period float64) (*Sampler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sample period must be > 0, got %g", period)
	}
	return &Sampler{period: period}, nil
}

// Start anchors the boundary grid at time t. The first boundary is one
// period after t.
func (s *Sampler) Start(t float64) {
	s.base = t
	s.count = 0
	s.next = t + s.period
	s.started = true
}

// Started reports whether Start (or Reset) has been called.
func (s *Sampler) Started() bool {
	return s.started
}

// Due reports whether t has reached or passed the next boundary.
func (s *Sampler) Due(t float64) bool {
	return s.started && t >= s.next
}

// Advance records that the current boundary has been consumed and computes
// the following one from the anchored base.
func (s *Sampler) Advance() {
	s.count++
	s.next = s.base + float64(s.count+1)*s.period
}

// Reset re-anchors the grid at time t and zeroes the boundary count. Used at
// window boundaries to clean up accumulated scheduling slack.
func (s *Sampler) Reset(t float64) {
	s.Start(t)
}

// Count returns the number of boundaries consumed since the last anchor.
func (s *Sampler) Count() int {
	return s.count
}

// Next returns the time of the upcoming boundary.
func (s *Sampler) Next() float64 {
	return s.next
}

// Base returns the anchor time of the current grid.
func (s *Sampler) Base() float64 {
	return s.base
}

// Period returns the boundary spacing.
func (s *Sampler) Period() float64 {
	return s.period
}
