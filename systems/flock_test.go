package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

func testFlockParams() FlockParams {
	return FlockParams{
		Speed:              2,
		TurnSpeed:          1.5,
		SeparationDist:     1,
		SeparationStrength: 2,
		Bounds:             r3.Vec{X: 10, Y: 10, Z: 10},
		ArrivalDistSq:      0.25,
		OrientationBlend:   0.1,
		Mass:               1,
		CollisionRadius:    0.3,
		MaxBounceAngle:     math.Pi / 8,
	}
}

func newTestFlock(p FlockParams) *FlockSystem {
	return NewFlockSystem(ecs.NewWorld(), p, rand.New(rand.NewSource(7)))
}

func vecFinite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func TestSeparationForce(t *testing.T) {
	const dist, strength = 1.0, 2.0
	prev := 0.0
	for _, d := range []float64{0.99, 0.8, 0.5, 0.3, 0.1, 0.001} {
		f := SeparationForce(r3.Vec{X: d}, r3.Vec{}, dist, strength, r3.Vec{X: 1})
		if f.X <= 0 || f.Y != 0 || f.Z != 0 {
			t.Errorf("d=%v: force %v should point away from the neighbour (+X)", d, f)
		}
		mag := r3.Norm(f)
		if math.Abs(mag-strength*(dist-d)) > 1e-12 {
			t.Errorf("d=%v: magnitude %v, want %v", d, mag, strength*(dist-d))
		}
		if mag <= prev {
			t.Errorf("d=%v: magnitude %v did not grow from %v", d, mag, prev)
		}
		prev = mag
	}

	if f := SeparationForce(r3.Vec{X: 1.5}, r3.Vec{}, dist, strength, r3.Vec{X: 1}); f != (r3.Vec{}) {
		t.Errorf("force beyond separation distance = %v, want zero", f)
	}
	if f := SeparationForce(r3.Vec{}, r3.Vec{}, dist, strength, r3.Vec{Y: 1}); f != (r3.Vec{Y: strength}) {
		t.Errorf("coincident force = %v, want fallback direction", f)
	}
}

func TestFlockSeparationEqualAndOpposite(t *testing.T) {
	s := newTestFlock(testFlockParams())
	s.Add(r3.Vec{}, r3.Vec{X: 2})
	s.Add(r3.Vec{X: 0.2}, r3.Vec{X: 2})

	s.Update(0.1)

	a0 := s.Agent(0).Acceleration
	a1 := s.Agent(1).Acceleration
	if r3.Norm(a0) == 0 || r3.Norm(a1) == 0 {
		t.Fatalf("accelerations should be non-zero: %v, %v", a0, a1)
	}
	if math.Abs(r3.Norm(a0)-r3.Norm(a1)) > 1e-12 {
		t.Errorf("magnitudes differ: %v vs %v", r3.Norm(a0), r3.Norm(a1))
	}
	if sum := r3.Add(a0, a1); r3.Norm(sum) > 1e-12 {
		t.Errorf("accelerations not opposite, sum %v", sum)
	}
	// Agent 0 sits at lower X, so it is pushed toward -X.
	if a0.X >= 0 {
		t.Errorf("agent 0 pushed toward +X: %v", a0)
	}
	if want := 2 * (1 - 0.2); math.Abs(r3.Norm(a0)-want) > 1e-9 {
		t.Errorf("magnitude %v, want %v", r3.Norm(a0), want)
	}
}

func TestFlockCoincidentAgents(t *testing.T) {
	s := newTestFlock(testFlockParams())
	p := r3.Vec{X: 1, Y: 1, Z: 1}
	s.Add(p, r3.Vec{Z: 2})
	s.Add(p, r3.Vec{Z: 2})

	s.Update(0.05)

	a0, a1 := s.Agent(0), s.Agent(1)
	for _, a := range []AgentState{a0, a1} {
		if !vecFinite(a.Acceleration) || !vecFinite(a.Position) || !vecFinite(a.Velocity) {
			t.Fatalf("non-finite state: %+v", a)
		}
	}
	if r3.Norm(r3.Add(a0.Acceleration, a1.Acceleration)) > 1e-12 || r3.Norm(a0.Acceleration) == 0 {
		t.Errorf("coincident pair should get equal and opposite pushes: %v, %v", a0.Acceleration, a1.Acceleration)
	}
}

func TestFlockSeekArrives(t *testing.T) {
	s := newTestFlock(testFlockParams())
	s.Add(r3.Vec{}, r3.Vec{X: 2})
	target := r3.Vec{X: 5}
	s.SetTarget(0, target)

	const dt = 0.1
	for tick := 1; tick <= 50; tick++ {
		s.Update(dt)
		a := s.Agent(0)
		if r3.Norm(r3.Sub(a.Position, target)) < 0.5 {
			dir := r3.Unit(a.Velocity)
			if dir.X < 0.95 {
				t.Errorf("arrived heading %v, want roughly +X", dir)
			}
			if math.Abs(r3.Norm(a.Velocity)-2) > 1e-9 {
				t.Errorf("speed %v, want cruise speed 2", r3.Norm(a.Velocity))
			}
			return
		}
	}
	t.Fatalf("agent never came within 0.5 of %v; ended at %v", target, s.Agent(0).Position)
}

func TestFlockRetargetsOnArrival(t *testing.T) {
	s := newTestFlock(testFlockParams())
	s.Add(r3.Vec{}, r3.Vec{X: 2})
	s.SetTarget(0, r3.Vec{X: 0.1})

	stats := s.Update(0.01)
	if stats.Retargets != 1 {
		t.Fatalf("retargets = %d, want 1", stats.Retargets)
	}
	tgt := s.Agent(0).Target
	b := s.Params().Bounds
	if math.Abs(tgt.X) > b.X || math.Abs(tgt.Y) > b.Y || math.Abs(tgt.Z) > b.Z {
		t.Errorf("new target %v outside bounds %v", tgt, b)
	}
}

func TestFlockStaysInBounds(t *testing.T) {
	p := testFlockParams()
	p.Bounds = r3.Vec{X: 3, Y: 1.5, Z: 2}
	p.Speed = 4
	p.Flocking = true
	p.AlignmentStrength = 0.5
	p.CohesionStrength = 0.8
	p.FlockRadius = 2
	s := newTestFlock(p)
	s.Resize(40)

	var bounces int
	for tick := 0; tick < 500; tick++ {
		bounces += s.Update(1.0 / 30).Bounces
		for i := 0; i < s.Len(); i++ {
			pos := s.Agent(i).Position
			if math.Abs(pos.X) > p.Bounds.X || math.Abs(pos.Y) > p.Bounds.Y || math.Abs(pos.Z) > p.Bounds.Z {
				t.Fatalf("tick %d: agent %d escaped to %v", tick, i, pos)
			}
			if !vecFinite(pos) {
				t.Fatalf("tick %d: agent %d non-finite", tick, i)
			}
		}
	}
	if bounces == 0 {
		t.Error("expected at least one wall bounce in a small tank")
	}
}

func TestFlockWallBounceReflects(t *testing.T) {
	p := testFlockParams()
	p.MaxBounceAngle = 0
	p.TurnSpeed = 0
	s := newTestFlock(p)
	s.Add(r3.Vec{X: 9.95}, r3.Vec{X: 2})
	s.SetTarget(0, r3.Vec{X: 20})

	stats := s.Update(0.1)
	a := s.Agent(0)
	if stats.Bounces != 1 {
		t.Fatalf("bounces = %d, want 1", stats.Bounces)
	}
	if a.Position.X != 10 {
		t.Errorf("position %v not clamped to the wall", a.Position)
	}
	if a.Velocity.X >= 0 {
		t.Errorf("velocity %v not reflected", a.Velocity)
	}
}

func TestFlockTurnFactorClamped(t *testing.T) {
	p := testFlockParams()
	p.TurnSpeed = 1000
	s := newTestFlock(p)
	s.Add(r3.Vec{}, r3.Vec{Z: 2})
	s.SetTarget(0, r3.Vec{X: 8})

	s.Update(0.1)
	v := s.Agent(0).Velocity
	if math.Abs(v.X-2) > 1e-9 || math.Abs(v.Z) > 1e-9 {
		t.Errorf("velocity %v, want (2,0,0): large turn factor should land exactly on the target heading", v)
	}
}

func TestFlockHeadingFollowsVelocity(t *testing.T) {
	s := newTestFlock(testFlockParams())
	s.Add(r3.Vec{X: -8}, r3.Vec{Z: 2})
	s.SetTarget(0, r3.Vec{X: 9})

	for i := 0; i < 80; i++ {
		s.Update(0.05)
	}
	a := s.Agent(0)
	facing := a.Heading.Rotate(ModelForward)
	dir := r3.Unit(a.Velocity)
	if cos := facing.Dot(mgl64.Vec3{dir.X, dir.Y, dir.Z}); cos < 0.95 {
		t.Errorf("heading faces %v, velocity %v (cos %.3f)", facing, dir, cos)
	}
	if math.Abs(a.Heading.Len()-1) > 1e-9 {
		t.Errorf("heading not unit: %v", a.Heading.Len())
	}
}

func TestFlockAlignmentCohesion(t *testing.T) {
	p := testFlockParams()
	p.SeparationStrength = 0
	p.Flocking = true
	p.AlignmentStrength = 1
	p.CohesionStrength = 1
	p.FlockRadius = 3
	s := newTestFlock(p)
	s.Add(r3.Vec{}, r3.Vec{X: 2})
	s.Add(r3.Vec{Z: 2}, r3.Vec{Y: 2})

	s.Update(0.01)
	a := s.Agent(0).Acceleration
	// Cohesion pulls agent 0 toward +Z, alignment toward the neighbour's +Y heading.
	if a.Z <= 0 || a.Y <= 0 {
		t.Errorf("acceleration %v should pull toward +Y and +Z", a)
	}
}

func TestFlockResize(t *testing.T) {
	s := newTestFlock(testFlockParams())
	s.Resize(10)
	if s.Len() != 10 {
		t.Fatalf("len %d, want 10", s.Len())
	}
	ids := make([]uint32, 3)
	for i := range ids {
		ids[i] = s.Agent(i).ID
	}

	s.Resize(3)
	if s.Len() != 3 {
		t.Fatalf("len %d, want 3", s.Len())
	}
	for i, id := range ids {
		if got := s.Agent(i).ID; got != id {
			t.Errorf("agent %d id %d, want %d (oldest agents survive)", i, got, id)
		}
	}
	if len(s.Positions(nil)) != 3 {
		t.Error("positions snapshot length mismatch")
	}

	s.Resize(-4)
	if s.Len() != 0 {
		t.Errorf("negative resize left %d agents", s.Len())
	}
	s.Update(0.1)
}

func TestSpatialGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	half := r3.Vec{X: 5, Y: 3, Z: 4}
	pts := make([]r3.Vec, 200)
	for i := range pts {
		pts[i] = randomInBox(rng, half)
	}
	g := NewSpatialGrid(half, 0.7)
	g.Rebuild(pts)

	const radius = 1.3
	for i := range pts {
		got := g.QueryRadiusInto(nil, i, pts, radius)
		want := 0
		for j := range pts {
			if j != i && r3.Norm2(r3.Sub(pts[j], pts[i])) <= radius*radius {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("point %d: grid found %d neighbours, brute force %d", i, len(got), want)
		}
	}
}

func BenchmarkFlockUpdate(b *testing.B) {
	p := testFlockParams()
	p.Flocking = true
	p.FlockRadius = 2
	p.AlignmentStrength = 0.5
	p.CohesionStrength = 0.5
	s := newTestFlock(p)
	s.Resize(300)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Update(1.0 / 60)
	}
}
