// Package components defines ECS components for the simulation.
package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position is an agent's world position.
type Position struct {
	r3.Vec
}

// Velocity is an agent's velocity in world units per second.
type Velocity struct {
	r3.Vec
}

// Acceleration accumulates forces for the current tick. It is reset at the
// start of every tick and kept afterwards for inspection.
type Acceleration struct {
	r3.Vec
}

// Fish holds per-agent physical properties and the current seek target.
type Fish struct {
	ID     uint32
	Mass   float64
	Radius float64 // collision radius
	Phase  float64 // swim animation offset, radians
	Target r3.Vec
}

// Heading is the visual orientation. It rotates the model's snout axis onto
// the direction of travel and never feeds back into physics.
type Heading struct {
	Q mgl64.Quat
}
