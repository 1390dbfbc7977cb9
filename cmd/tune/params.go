// Package main provides CMA-ES tuning for aquarium simulation parameters.
package main

import (
	"github.com/pthm-cable/aquarium/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound

	get func(*config.Config) float64
	set func(*config.Config, float64)
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Flock steering
			{Name: "turn_speed", Path: "flock.turn_speed", Min: 0.5, Max: 4.0,
				get: func(c *config.Config) float64 { return c.Flock.TurnSpeed },
				set: func(c *config.Config, v float64) { c.Flock.TurnSpeed = v }},
			{Name: "separation_dist", Path: "flock.separation_dist", Min: 0.2, Max: 1.5,
				get: func(c *config.Config) float64 { return c.Flock.SeparationDist },
				set: func(c *config.Config, v float64) { c.Flock.SeparationDist = v }},
			{Name: "separation_strength", Path: "flock.separation_strength", Min: 0.5, Max: 10,
				get: func(c *config.Config) float64 { return c.Flock.SeparationStrength },
				set: func(c *config.Config, v float64) { c.Flock.SeparationStrength = v }},
			{Name: "max_bounce_angle", Path: "flock.max_bounce_angle", Min: 0, Max: 0.8,
				get: func(c *config.Config) float64 { return c.Flock.MaxBounceAngle },
				set: func(c *config.Config, v float64) { c.Flock.MaxBounceAngle = v }},
			// Water surface
			{Name: "water_damping", Path: "water.damping", Min: 0.95, Max: 0.999,
				get: func(c *config.Config) float64 { return c.Water.Damping },
				set: func(c *config.Config, v float64) { c.Water.Damping = v }},
			{Name: "agent_disturbance", Path: "water.agent_disturbance", Min: 0.002, Max: 0.1,
				get: func(c *config.Config) float64 { return c.Water.AgentDisturbance },
				set: func(c *config.Config, v float64) { c.Water.AgentDisturbance = v }},
			// Kelp response
			{Name: "kelp_repel_strength", Path: "kelp.repel_strength", Min: 0.5, Max: 8,
				get: func(c *config.Config) float64 { return c.Kelp.RepelStrength },
				set: func(c *config.Config, v float64) { c.Kelp.RepelStrength = v }},
			{Name: "kelp_spring_k", Path: "kelp.spring_k", Min: 1, Max: 15,
				get: func(c *config.Config) float64 { return c.Kelp.SpringK },
				set: func(c *config.Config, v float64) { c.Kelp.SpringK = v }},
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
		clamped[i] = max(spec.Min, min(v[i], spec.Max))
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.get(cfg)
	}
	return out
}
