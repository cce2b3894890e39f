// Package integrator is a minimal black-box simulation used by the
// netoff-worker demo: one real input, rate, drives two real outputs —
// echo (the rate fed back unchanged) and value (its running integral
// over whatever timestep the driver's successive INPUTS calls imply).
package integrator

import "github.com/atsika/netoff"

// PossibleInputs and PossibleOutputs are the full variable lists this
// simulation reports from ADD_SIM; the demo driver selects all of them.
func PossibleInputs() *netoff.VariableList {
	v := netoff.NewVariableList()
	v.AddReal("rate")
	return v
}

func PossibleOutputs() *netoff.VariableList {
	v := netoff.NewVariableList()
	v.AddReals([]string{"echo", "value"})
	return v
}

// Integrator holds the running state of one simulation instance.
type Integrator struct {
	value    float64
	lastTime float64
	paused   bool
}

// New returns an Integrator with value 0 at t=0.
func New() *Integrator { return &Integrator{} }

// Init sets the initial value and returns the (echo, value) pair for the
// INIT_SIM response.
func (s *Integrator) Init(initialRate float64) (echo, value float64) {
	s.value = initialRate
	s.lastTime = 0
	return initialRate, s.value
}

// Step advances the integration to t using rate, returning the (echo,
// value) pair. A paused integrator holds value steady regardless of rate.
func (s *Integrator) Step(t, rate float64) (echo, value float64) {
	if !s.paused {
		dt := t - s.lastTime
		s.value += rate * dt
	}
	s.lastTime = t
	return rate, s.value
}

func (s *Integrator) Pause()   { s.paused = true }
func (s *Integrator) Unpause() { s.paused = false }

// Reset zeroes the running value and the time the next Step integrates
// from; the paused flag is left as it is. Used with the worker-side RESET
// handling that keeps the session alive.
func (s *Integrator) Reset() {
	s.value = 0
	s.lastTime = 0
}
