package circuit

import (
	"math"
	"math/rand/v2"
)

// paramLimit bounds gains, biases and constants.
const paramLimit = 100.0

// perturbParams jitters every parameter with noise proportional to its magnitude.
func perturbParams(params []float64, sigma float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(params))
	for i, p := range params {
		out[i] = p + rng.NormFloat64()*sigma*(1+math.Abs(p))
	}
	return out
}

// fitParams resizes params to n, zero filling, and replaces non-finite values with def.
func fitParams(params []float64, n int, def float64) []float64 {
	out := make([]float64, n)
	copy(out, params)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = def
		}
	}
	return out
}

func clampParam(v float64) float64 {
	return math.Max(-paramLimit, math.Min(paramLimit, v))
}

// Reductions: sum, product, max, min over all inputs, broadcast to all outputs.

type reduceFn func(p *Ports) float64

func reduceSum(p *Ports) float64 {
	s := 0.0
	for i := range p.NumInputs() {
		s += p.In(i)
	}
	return s
}

func reduceProduct(p *Ports) float64 {
	s := 1.0
	for i := range p.NumInputs() {
		s *= p.In(i)
	}
	return s
}

func reduceMax(p *Ports) float64 {
	if p.NumInputs() == 0 {
		return 0
	}
	s := p.In(0)
	for i := 1; i < p.NumInputs(); i++ {
		s = math.Max(s, p.In(i))
	}
	return s
}

func reduceMin(p *Ports) float64 {
	if p.NumInputs() == 0 {
		return 0
	}
	s := p.In(0)
	for i := 1; i < p.NumInputs(); i++ {
		s = math.Min(s, p.In(i))
	}
	return s
}

type reduceGate struct {
	Ports
	fn reduceFn
}

func (g *reduceGate) Update() {
	g.Broadcast(g.fn(&g.Ports))
}

type reduceFactory reduceFn

func (reduceFactory) NumParams() int                    { return 0 }
func (reduceFactory) RandomParams(*rand.Rand) []float64 { return nil }
func (reduceFactory) Normalize([]float64) []float64     { return nil }
func (reduceFactory) Perturb([]float64, float64, *rand.Rand) []float64 {
	return nil
}
func (f reduceFactory) New([]float64) Gate { return &reduceGate{fn: reduceFn(f)} }

// MultiplexGate forwards one input per update, advancing round-robin.
type MultiplexGate struct {
	Ports
	next int
}

func (g *MultiplexGate) Update() {
	v := 0.0
	if n := g.NumInputs(); n > 0 {
		g.next = (g.next + 1) % n
		v = g.In(g.next)
	}
	g.Broadcast(v)
}

type multiplexFactory struct{}

func (multiplexFactory) NumParams() int                    { return 0 }
func (multiplexFactory) RandomParams(*rand.Rand) []float64 { return nil }
func (multiplexFactory) Normalize([]float64) []float64     { return nil }
func (multiplexFactory) Perturb([]float64, float64, *rand.Rand) []float64 {
	return nil
}
func (multiplexFactory) New([]float64) Gate { return &MultiplexGate{} }

// TimerGate is a sawtooth: it accumulates Incr per update and wraps at Reset.
type TimerGate struct {
	Ports
	Time, Incr, Reset float64
}

func (g *TimerGate) Update() {
	g.Time += g.Incr
	if g.Time >= g.Reset {
		g.Time = math.Mod(g.Time, g.Reset)
	}
	g.Broadcast(g.Time)
}

// timerFactory params: time, incr, reset.
type timerFactory struct{}

func (timerFactory) NumParams() int { return 3 }

func (timerFactory) RandomParams(rng *rand.Rand) []float64 {
	reset := 0.5 + rng.Float64()*4.5
	return []float64{
		reset * rng.Float64(),
		reset * rng.Float64() * 0.1,
		reset,
	}
}

func (timerFactory) Normalize(params []float64) []float64 {
	p := fitParams(params, 3, 0)
	p[2] = math.Min(math.Max(p[2], 1e-6), paramLimit)
	p[1] = math.Max(math.Min(p[1], p[2]), 0)
	p[0] = math.Max(math.Min(p[0], p[2]), 0)
	return p
}

func (f timerFactory) Perturb(params []float64, sigma float64, rng *rand.Rand) []float64 {
	return f.Normalize(perturbParams(params, sigma, rng))
}

func (f timerFactory) New(params []float64) Gate {
	p := f.Normalize(params)
	return &TimerGate{Time: p[0], Incr: p[1], Reset: p[2]}
}

// ConstantGate emits a fixed value.
type ConstantGate struct {
	Ports
	Value float64
}

func (g *ConstantGate) Update() { g.Broadcast(g.Value) }

type constantFactory struct{}

func (constantFactory) NumParams() int { return 1 }

func (constantFactory) RandomParams(rng *rand.Rand) []float64 {
	return []float64{rng.Float64()*2 - 1}
}

func (constantFactory) Normalize(params []float64) []float64 {
	p := fitParams(params, 1, 0)
	p[0] = clampParam(p[0])
	return p
}

func (f constantFactory) Perturb(params []float64, sigma float64, rng *rand.Rand) []float64 {
	return f.Normalize(perturbParams(params, sigma, rng))
}

func (f constantFactory) New(params []float64) Gate {
	return &ConstantGate{Value: f.Normalize(params)[0]}
}

// Per-input functions: output i = fn(gain*input_i + bias).

type unaryFn func(float64) float64

func fnSin(x float64) float64    { return math.Sin(x) }
func fnExp(x float64) float64    { return math.Exp(math.Min(x, 50)) }
func fnNegate(x float64) float64 { return -x }
func fnTan(x float64) float64    { return math.Tan(x) }
func fnAtan(x float64) float64   { return math.Atan(x) }

func fnLog(x float64) float64 {
	if x <= 0 {
		return math.Log(1e-9)
	}
	return math.Log(x)
}

func fnReciprocal(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		return math.Copysign(SignalLimit, x)
	}
	return 1 / x
}

type unaryGate struct {
	Ports
	fn         unaryFn
	gain, bias float64
}

func (g *unaryGate) Update() {
	for i := range g.NumOutputs() {
		g.Out(i, g.fn(g.gain*g.In(i)+g.bias))
	}
}

type unaryFactory unaryFn

func (unaryFactory) NumParams() int { return 2 }

func (unaryFactory) RandomParams(rng *rand.Rand) []float64 {
	return []float64{rng.Float64()*4 - 2, rng.Float64()*2 - 1}
}

func (unaryFactory) Normalize(params []float64) []float64 {
	p := fitParams(params, 2, 0)
	p[0] = clampParam(p[0])
	p[1] = clampParam(p[1])
	return p
}

func (f unaryFactory) Perturb(params []float64, sigma float64, rng *rand.Rand) []float64 {
	return f.Normalize(perturbParams(params, sigma, rng))
}

func (f unaryFactory) New(params []float64) Gate {
	p := f.Normalize(params)
	return &unaryGate{fn: unaryFn(f), gain: p[0], bias: p[1]}
}
