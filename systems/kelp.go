package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/geometry"
)

var up = r3.Vec{Y: 1}

// KelpParams configures every kelp chain.
type KelpParams struct {
	Segments    int // points per chain, base included
	JointLength float64
	SpringK     float64
	Damping     float64 // velocity decays by exp(-Damping*dt)

	RepelRadius   float64
	RepelStrength float64
	UpwardBias    float64 // added to the push direction so kelp bends up and away

	SwayAmplitude float64
	SwayFrequency float64 // radians per second
	SwayPhaseStep float64 // phase offset between consecutive points
	SwayTwist     float64 // max rotation of the sway target about the vertical, radians

	BaseWidth float64
	TipWidth  float64
}

// Chain is one anchored strand. Points[0] is pinned to Base.
type Chain struct {
	Base       r3.Vec
	Points     []r3.Vec
	Velocities []r3.Vec
	Phase      float64
}

// KelpStats reports the outcome of one Update.
type KelpStats struct {
	Pushes        int     // point/agent pairs inside the repel radius
	MaxJointError float64 // worst |segment length - joint length| after relaxation
}

// KelpSystem owns all kelp chains.
type KelpSystem struct {
	params KelpParams
	chains []Chain
}

// NewKelpSystem grows one straight, upright chain per base point.
func NewKelpSystem(p KelpParams, bases []r3.Vec, rng *rand.Rand) *KelpSystem {
	if p.Segments < 2 {
		p.Segments = 2
	}
	s := &KelpSystem{params: p, chains: make([]Chain, len(bases))}
	for i, b := range bases {
		c := Chain{
			Base:       b,
			Points:     make([]r3.Vec, p.Segments),
			Velocities: make([]r3.Vec, p.Segments),
			Phase:      rng.Float64() * 2 * math.Pi,
		}
		for j := range c.Points {
			c.Points[j] = r3.Add(b, r3.Scale(float64(j)*p.JointLength, up))
		}
		s.chains[i] = c
	}
	return s
}

// Len returns the number of chains.
func (s *KelpSystem) Len() int { return len(s.chains) }

// Chain returns chain i. The slices are live; callers must not modify them.
func (s *KelpSystem) Chain(i int) *Chain { return &s.chains[i] }

// Update advances every chain by dt. t is the simulation clock used for the
// idle sway; agents is the flock position snapshot for this tick.
func (s *KelpSystem) Update(dt, t float64, agents []r3.Vec) KelpStats {
	return s.UpdateRange(0, len(s.chains), dt, t, agents)
}

// UpdateRange advances chains [start, end) only. Chains do not interact, so
// disjoint ranges may run concurrently while agents is not being written.
func (s *KelpSystem) UpdateRange(start, end int, dt, t float64, agents []r3.Vec) KelpStats {
	var stats KelpStats
	if dt < 0 {
		dt = 0
	}
	for i := start; i < end; i++ {
		stats.Pushes += s.step(&s.chains[i], dt, t, agents)
		stats.MaxJointError = math.Max(stats.MaxJointError, s.jointError(&s.chains[i]))
	}
	return stats
}

func (s *KelpSystem) step(c *Chain, dt, t float64, agents []r3.Vec) int {
	p := s.params
	c.Points[0] = c.Base
	c.Velocities[0] = r3.Vec{}

	pushes := 0
	radiusSq := p.RepelRadius * p.RepelRadius
	decay := math.Exp(-p.Damping * dt)

	for j := 1; j < len(c.Points); j++ {
		pt := c.Points[j]
		vel := c.Velocities[j]

		for _, a := range agents {
			away := r3.Sub(pt, a)
			d2 := r3.Norm2(away)
			if d2 >= radiusSq {
				continue
			}
			falloff := 1 - math.Sqrt(d2)/p.RepelRadius
			push := safeUnit(r3.Add(safeUnit(away, up), r3.Scale(p.UpwardBias, up)), up)
			vel = r3.Add(vel, r3.Scale(p.RepelStrength*falloff*dt, push))
			pushes++
		}

		target := r3.Add(c.Points[j-1], r3.Scale(p.JointLength, s.swayDir(c, j, t)))

		vel = r3.Add(vel, r3.Scale(p.SpringK*dt, r3.Sub(target, pt)))
		vel = r3.Scale(decay, vel)
		c.Velocities[j] = vel
		c.Points[j] = r3.Add(pt, vel)
	}

	s.relax(c)
	return pushes
}

// swayDir is the resting direction of segment j: mostly up, with a small
// phased lateral offset twisted about the vertical.
func (s *KelpSystem) swayDir(c *Chain, j int, t float64) r3.Vec {
	p := s.params
	phase := p.SwayFrequency*t + c.Phase + float64(j)*p.SwayPhaseStep
	lateral := r3.Vec{
		X: p.SwayAmplitude * math.Sin(phase),
		Y: 1,
		Z: 0.5 * p.SwayAmplitude * math.Cos(0.7*phase),
	}
	dir := safeUnit(lateral, up)
	if p.SwayTwist != 0 {
		dir = r3.Rotate(dir, p.SwayTwist*math.Sin(0.5*phase), up)
	}
	return dir
}

// relax walks the chain from the base and puts every point exactly one
// joint length from its corrected predecessor, keeping its direction.
func (s *KelpSystem) relax(c *Chain) {
	l := s.params.JointLength
	for j := 1; j < len(c.Points); j++ {
		dir := safeUnit(r3.Sub(c.Points[j], c.Points[j-1]), up)
		c.Points[j] = r3.Add(c.Points[j-1], r3.Scale(l, dir))
	}
}

func (s *KelpSystem) jointError(c *Chain) float64 {
	var worst float64
	for j := 1; j < len(c.Points); j++ {
		d := r3.Norm(r3.Sub(c.Points[j], c.Points[j-1]))
		worst = math.Max(worst, math.Abs(d-s.params.JointLength))
	}
	return worst
}

// Ribbon rebuilds the tapered strip for chain i from its current points.
func (s *KelpSystem) Ribbon(i int) geometry.Submesh {
	return geometry.Ribbon(s.chains[i].Points, s.params.BaseWidth, s.params.TipWidth)
}
