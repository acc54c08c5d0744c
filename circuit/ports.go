// Package circuit implements the control network embedded in a creature:
// gates with numbered signal ports, the channels between them and the
// registry of gate kinds.
package circuit

import "math"

// SignalLimit bounds every value carried on a channel.
const SignalLimit = 1e6

// Channel carries one signal from a gate output to a gate input.
// The value written during a tick is read on the next update of the sink.
type Channel struct {
	v float64
}

// Read returns the last value written.
func (c *Channel) Read() float64 {
	return c.v
}

// Write stores v, clamped to ±SignalLimit. NaN is stored as 0.
func (c *Channel) Write(v float64) {
	c.v = clampSignal(v)
}

// Ports is the numbered input/output channel set of a gate.
// Gates embed it to satisfy the IO half of the Gate interface.
type Ports struct {
	in  []*Channel
	out []*Channel
}

// IO returns the port set.
func (p *Ports) IO() *Ports { return p }

// NumInputs returns the number of connected inputs.
func (p *Ports) NumInputs() int { return len(p.in) }

// NumOutputs returns the number of connected outputs.
func (p *Ports) NumOutputs() int { return len(p.out) }

// In reads input i. Reading past the last input yields 0.
func (p *Ports) In(i int) float64 {
	if i < 0 || i >= len(p.in) {
		return 0
	}
	return p.in[i].Read()
}

// Out writes v to output i. Writing past the last output is a no-op.
func (p *Ports) Out(i int, v float64) {
	if i < 0 || i >= len(p.out) {
		return
	}
	p.out[i].Write(v)
}

// Broadcast writes v to every output.
func (p *Ports) Broadcast(v float64) {
	for _, c := range p.out {
		c.Write(v)
	}
}

// Gate is a stateful signal-processing unit.
type Gate interface {
	// Update reads inputs, computes and writes outputs.
	Update()
	IO() *Ports
}

func clampSignal(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > SignalLimit:
		return SignalLimit
	case v < -SignalLimit:
		return -SignalLimit
	}
	return v
}
