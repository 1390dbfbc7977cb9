package systems

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/components"
)

// ModelForward is the snout direction of the creature mesh in model space.
// The mesh is built with the snout at the origin and the tail along +X.
var ModelForward = mgl64.Vec3{-1, 0, 0}

// FlockParams configures steering and collision avoidance.
type FlockParams struct {
	Speed              float64 // cruise speed, units/s
	TurnSpeed          float64 // fraction of the way to the desired heading per second
	SeparationDist     float64
	SeparationStrength float64

	Flocking          bool
	AlignmentStrength float64
	CohesionStrength  float64
	FlockRadius       float64

	Bounds           r3.Vec  // motion half-extents
	ArrivalDistSq    float64 // retarget when closer than this (squared)
	OrientationBlend float64 // slerp factor per tick
	Mass             float64
	CollisionRadius  float64
	MaxBounceAngle   float64 // radians
}

// AgentState is a read-only copy of one agent.
type AgentState struct {
	ID           uint32
	Position     r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
	Target       r3.Vec
	Mass         float64
	Radius       float64
	Phase        float64
	Heading      mgl64.Quat
}

// FlockStats reports what happened during one Update.
type FlockStats struct {
	Retargets int
	Bounces   int
}

// FlockSystem owns the fish agents and advances them each tick.
// Agents live in the ECS world; the system keeps them in creation order so
// population shrinks remove the newest agents first.
type FlockSystem struct {
	world  *ecs.World
	mapper *ecs.Map5[components.Position, components.Velocity, components.Acceleration, components.Fish, components.Heading]
	agents []ecs.Entity
	grid   *SpatialGrid
	params FlockParams
	rng    *rand.Rand
	nextID uint32

	// Scratch reused across ticks.
	pos       []r3.Vec
	neighbors []Neighbor
}

// NewFlockSystem creates an empty flock.
func NewFlockSystem(w *ecs.World, p FlockParams, rng *rand.Rand) *FlockSystem {
	cell := math.Max(p.SeparationDist, 0.5)
	if p.Flocking {
		cell = math.Max(cell, p.FlockRadius)
	}
	return &FlockSystem{
		world:  w,
		mapper: ecs.NewMap5[components.Position, components.Velocity, components.Acceleration, components.Fish, components.Heading](w),
		grid:   NewSpatialGrid(p.Bounds, cell),
		params: p,
		rng:    rng,
	}
}

// Params returns the active parameters.
func (s *FlockSystem) Params() FlockParams { return s.params }

// Len returns the number of live agents.
func (s *FlockSystem) Len() int { return len(s.agents) }

// Resize grows or shrinks the population to n. Must not be called during Update.
func (s *FlockSystem) Resize(n int) {
	if n < 0 {
		n = 0
	}
	for len(s.agents) < n {
		dir := randomUnit(s.rng)
		s.Add(randomInBox(s.rng, s.params.Bounds), r3.Scale(s.params.Speed, dir))
	}
	for len(s.agents) > n {
		last := len(s.agents) - 1
		s.world.RemoveEntity(s.agents[last])
		s.agents = s.agents[:last]
	}
}

// Add spawns one agent with the given state and a fresh random target.
// Returns its index.
func (s *FlockSystem) Add(pos, vel r3.Vec) int {
	s.nextID++
	fish := components.Fish{
		ID:     s.nextID,
		Mass:   s.params.Mass,
		Radius: s.params.CollisionRadius,
		Phase:  s.rng.Float64() * 2 * math.Pi,
		Target: randomInBox(s.rng, s.params.Bounds),
	}
	if fish.Mass <= 0 {
		fish.Mass = 1
	}

	heading := mgl64.QuatIdent()
	if d := safeUnit(vel, r3.Vec{}); d != (r3.Vec{}) {
		heading = mgl64.QuatBetweenVectors(ModelForward, toMgl(d))
	}

	e := s.mapper.NewEntity(
		&components.Position{Vec: pos},
		&components.Velocity{Vec: vel},
		&components.Acceleration{},
		&fish,
		&components.Heading{Q: heading},
	)
	s.agents = append(s.agents, e)
	return len(s.agents) - 1
}

// Agent returns a copy of agent i.
func (s *FlockSystem) Agent(i int) AgentState {
	pos, vel, acc, fish, heading := s.mapper.Get(s.agents[i])
	return AgentState{
		ID:           fish.ID,
		Position:     pos.Vec,
		Velocity:     vel.Vec,
		Acceleration: acc.Vec,
		Target:       fish.Target,
		Mass:         fish.Mass,
		Radius:       fish.Radius,
		Phase:        fish.Phase,
		Heading:      heading.Q,
	}
}

// SetAgent overwrites agent i's position and velocity.
func (s *FlockSystem) SetAgent(i int, pos, vel r3.Vec) {
	p, v, _, _, _ := s.mapper.Get(s.agents[i])
	p.Vec = pos
	v.Vec = vel
}

// SetTarget replaces agent i's seek target.
func (s *FlockSystem) SetTarget(i int, target r3.Vec) {
	_, _, _, fish, _ := s.mapper.Get(s.agents[i])
	fish.Target = target
}

// Positions appends every agent position to dst. The result is a snapshot
// that stays valid while the flock keeps moving.
func (s *FlockSystem) Positions(dst []r3.Vec) []r3.Vec {
	for _, e := range s.agents {
		pos, _, _, _, _ := s.mapper.Get(e)
		dst = append(dst, pos.Vec)
	}
	return dst
}

// SeparationForce is the linear spring repulsion on an agent at self from a
// neighbour at other: strength*(dist-d) directed away from the neighbour,
// zero once d reaches dist. Coincident agents are pushed along fallback.
func SeparationForce(self, other r3.Vec, dist, strength float64, fallback r3.Vec) r3.Vec {
	away := r3.Sub(self, other)
	d := r3.Norm(away)
	if d >= dist {
		return r3.Vec{}
	}
	return r3.Scale(strength*(dist-d), safeUnit(away, fallback))
}

// Update advances every agent by dt seconds.
//
// Forces are computed from a snapshot of positions taken at the start of
// the tick, so the result does not depend on agent order.
func (s *FlockSystem) Update(dt float64) FlockStats {
	var stats FlockStats
	if dt < 0 {
		dt = 0
	}
	p := s.params

	s.pos = s.pos[:0]
	for _, e := range s.agents {
		pos, _, acc, _, _ := s.mapper.Get(e)
		acc.Vec = r3.Vec{}
		s.pos = append(s.pos, pos.Vec)
	}
	s.grid.Rebuild(s.pos)

	radius := p.SeparationDist
	if p.Flocking {
		radius = math.Max(radius, p.FlockRadius)
	}

	// Forces.
	for i, e := range s.agents {
		_, vel, acc, fish, _ := s.mapper.Get(e)
		s.neighbors = s.grid.QueryRadiusInto(s.neighbors[:0], i, s.pos, radius)

		var avgVel, avgPos r3.Vec
		var flockN int
		for _, nb := range s.neighbors {
			if nb.DistSq < p.SeparationDist*p.SeparationDist {
				f := SeparationForce(s.pos[i], s.pos[nb.Index], p.SeparationDist, p.SeparationStrength, coincidentAxis(i, nb.Index))
				acc.Vec = r3.Add(acc.Vec, r3.Scale(1/fish.Mass, f))
			}
			if p.Flocking && nb.DistSq < p.FlockRadius*p.FlockRadius {
				_, nv, _, _, _ := s.mapper.Get(s.agents[nb.Index])
				avgVel = r3.Add(avgVel, nv.Vec)
				avgPos = r3.Add(avgPos, s.pos[nb.Index])
				flockN++
			}
		}
		if flockN > 0 {
			inv := 1 / float64(flockN)
			avgVel = r3.Scale(inv, avgVel)
			avgPos = r3.Scale(inv, avgPos)
			ownDir := safeUnit(vel.Vec, r3.Vec{})
			align := r3.Scale(p.AlignmentStrength, r3.Sub(avgVel, ownDir))
			cohere := r3.Scale(p.CohesionStrength, safeUnit(r3.Sub(avgPos, s.pos[i]), r3.Vec{}))
			acc.Vec = r3.Add(acc.Vec, r3.Add(align, cohere))
		}
	}

	// Integration.
	turn := clamp01(p.TurnSpeed * dt)
	for _, e := range s.agents {
		pos, vel, acc, fish, heading := s.mapper.Get(e)

		v := r3.Add(vel.Vec, r3.Scale(dt, acc.Vec))
		current := safeUnit(v, safeUnit(vel.Vec, r3.Vec{X: 1}))
		desired := safeUnit(r3.Sub(fish.Target, pos.Vec), current)
		dir := safeUnit(lerpVec(current, desired, turn), desired)
		v = r3.Scale(p.Speed, dir)

		next := r3.Add(pos.Vec, r3.Scale(dt, v))
		bounced := false
		for axis := 0; axis < 3; axis++ {
			h := component(p.Bounds, axis)
			c := component(next, axis)
			if c > h || c < -h {
				setComponent(&next, axis, clampFloat(c, -h, h))
				setComponent(&v, axis, -component(v, axis))
				bounced = true
			}
		}
		if bounced {
			stats.Bounces++
			if p.MaxBounceAngle > 0 {
				// Nudge off the axis so agents do not ping-pong along it forever.
				angle := (s.rng.Float64()*2 - 1) * p.MaxBounceAngle
				v = r3.Rotate(v, angle, randomUnit(s.rng))
			}
		}

		pos.Vec = next
		vel.Vec = v

		if r3.Norm2(r3.Sub(fish.Target, next)) < p.ArrivalDistSq {
			fish.Target = randomInBox(s.rng, p.Bounds)
			stats.Retargets++
		}

		if d := safeUnit(v, r3.Vec{}); d != (r3.Vec{}) {
			heading.Q = slerpToward(heading.Q, mgl64.QuatBetweenVectors(ModelForward, toMgl(d)), p.OrientationBlend)
		}
	}

	return stats
}

// coincidentAxis gives each member of a coincident pair an opposite push.
func coincidentAxis(self, other int) r3.Vec {
	if self < other {
		return r3.Vec{X: -1}
	}
	return r3.Vec{X: 1}
}

// slerpToward rotates q toward want by amount along the shorter arc.
func slerpToward(q, want mgl64.Quat, amount float64) mgl64.Quat {
	if q.Dot(want) < 0 {
		want = want.Scale(-1)
	}
	return mgl64.QuatSlerp(q, want, clamp01(amount)).Normalize()
}

func toMgl(v r3.Vec) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
