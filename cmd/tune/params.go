package main

import (
	"github.com/pthm-cable/creatures/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of mutation parameters to tune.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Continuous jitter
			{Name: "rate", Path: "mutation.rate", Min: 0.001, Max: 0.2},
			{Name: "sigma", Path: "mutation.sigma", Min: 0.01, Max: 0.5},
			{Name: "angle_sigma", Path: "mutation.angle_sigma", Min: 0.01, Max: 1.0},
			{Name: "reflect_rate", Path: "mutation.reflect_rate", Min: 0, Max: 0.1},
			{Name: "retarget_rate", Path: "mutation.retarget_rate", Min: 0, Max: 0.1},
			{Name: "rewire_rate", Path: "mutation.rewire_rate", Min: 0, Max: 0.1},
			// Structural growth
			{Name: "add_node", Path: "mutation.add_node", Min: 0, Max: 0.2},
			{Name: "add_edge", Path: "mutation.add_edge", Min: 0, Max: 0.2},
			{Name: "add_gate", Path: "mutation.add_gate", Min: 0, Max: 0.2},
			{Name: "add_wire", Path: "mutation.add_wire", Min: 0, Max: 0.2},
			// Structural shrinkage
			{Name: "remove_node", Path: "mutation.remove_node", Min: 0, Max: 0.2},
			{Name: "remove_edge", Path: "mutation.remove_edge", Min: 0, Max: 0.2},
			{Name: "remove_gate", Path: "mutation.remove_gate", Min: 0, Max: 0.2},
			{Name: "remove_wire", Path: "mutation.remove_wire", Min: 0, Max: 0.2},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	m := &cfg.Mutation
	for i, dst := range []*float64{
		&m.Rate, &m.Sigma, &m.AngleSigma, &m.ReflectRate, &m.RetargetRate, &m.RewireRate,
		&m.AddNode, &m.AddEdge, &m.AddGate, &m.AddWire,
		&m.RemoveNode, &m.RemoveEdge, &m.RemoveGate, &m.RemoveWire,
	} {
		*dst = c[i]
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	m := cfg.Mutation
	return []float64{
		m.Rate, m.Sigma, m.AngleSigma, m.ReflectRate, m.RetargetRate, m.RewireRate,
		m.AddNode, m.AddEdge, m.AddGate, m.AddWire,
		m.RemoveNode, m.RemoveEdge, m.RemoveGate, m.RemoveWire,
	}
}
