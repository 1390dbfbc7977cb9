package game

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/config"
	"github.com/pthm-cable/aquarium/geometry"
	"github.com/pthm-cable/aquarium/systems"
)

// flockParams maps the flock section onto the simulator parameters.
func flockParams(cfg *config.Config) systems.FlockParams {
	f := cfg.Flock
	return systems.FlockParams{
		Speed:              f.Speed,
		TurnSpeed:          f.TurnSpeed,
		SeparationDist:     f.SeparationDist,
		SeparationStrength: f.SeparationStrength,
		Flocking:           f.Flocking,
		AlignmentStrength:  f.AlignmentStrength,
		CohesionStrength:   f.CohesionStrength,
		FlockRadius:        f.FlockRadius,
		Bounds:             r3.Vec{X: cfg.Derived.BoundsX, Y: cfg.Derived.BoundsY, Z: cfg.Derived.BoundsZ},
		ArrivalDistSq:      f.ArrivalDistSq,
		OrientationBlend:   f.OrientationBlend,
		Mass:               f.Mass,
		CollisionRadius:    f.CollisionRadius,
		MaxBounceAngle:     f.MaxBounceAngle,
	}
}

func kelpParams(cfg *config.Config) systems.KelpParams {
	k := cfg.Kelp
	return systems.KelpParams{
		Segments:      k.Segments,
		JointLength:   k.JointLength,
		SpringK:       k.SpringK,
		Damping:       k.Damping,
		RepelRadius:   k.RepelRadius,
		RepelStrength: k.RepelStrength,
		UpwardBias:    k.UpwardBias,
		SwayAmplitude: k.SwayAmplitude,
		SwayFrequency: k.SwayFrequency,
		SwayPhaseStep: k.SwayPhaseStep,
		SwayTwist:     k.SwayTwist,
		BaseWidth:     k.BaseWidth,
		TipWidth:      k.TipWidth,
	}
}

func sandParams(cfg *config.Config) systems.SandParams {
	s := cfg.Sand
	return systems.SandParams{
		Resolution: s.Resolution,
		Amplitude:  s.Amplitude,
		NoiseScale: s.NoiseScale,
		RelaxRate:  s.RelaxRate,
	}
}

// creatureShape converts the creature section into control curves and
// sampling densities. Top, bottom and fin points are [x, y]; side points
// are [x, z].
func creatureShape(c config.CreatureConfig) (geometry.CreatureShape, geometry.Resolution, error) {
	shape := geometry.CreatureShape{
		Top:    profileXY(c.Top),
		Bottom: profileXY(c.Bottom),
		Side:   profileXZ(c.Side),
	}
	for _, fin := range c.Fins {
		attach, err := geometry.ParseAttachment(fin.Attach)
		if err != nil {
			return geometry.CreatureShape{}, geometry.Resolution{}, fmt.Errorf("fin %q: %w", fin.Name, err)
		}
		shape.Fins = append(shape.Fins, geometry.FinShape{
			Name:    fin.Name,
			Attach:  attach,
			Contour: profileXY(fin.Contour),
		})
	}
	res := geometry.Resolution{
		CurveSamples: c.CurveSamples,
		FinSamples:   c.FinSamples,
		FrameSize:    c.FrameSize,
		AxialStep:    c.AxialStep,
		Fin:          geometry.FinParams{Inset: c.FinInset, Thickness: c.FinThickness},
	}
	return shape, res, nil
}

func profileXY(pts [][]float64) geometry.Curve {
	out := make(geometry.Curve, 0, len(pts))
	for _, p := range pts {
		if len(p) == 2 {
			out = append(out, r3.Vec{X: p[0], Y: p[1]})
		}
	}
	return out
}

func profileXZ(pts [][]float64) geometry.Curve {
	out := make(geometry.Curve, 0, len(pts))
	for _, p := range pts {
		if len(p) == 2 {
			out = append(out, r3.Vec{X: p[0], Z: p[1]})
		}
	}
	return out
}
