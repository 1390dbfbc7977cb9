package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateLenSq is the squared length below which a vector has no usable direction.
const degenerateLenSq = 1e-24

// clampFloat clamps v between minVal and maxVal.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// safeUnit normalizes v, returning fallback when v has no direction.
// Keeps NaN out of the state when two agents coincide or a velocity
// collapses to zero.
func safeUnit(v, fallback r3.Vec) r3.Vec {
	l2 := r3.Norm2(v)
	if l2 < degenerateLenSq || math.IsNaN(l2) {
		return fallback
	}
	return r3.Scale(1/math.Sqrt(l2), v)
}

// lerpVec linearly interpolates from a to b.
func lerpVec(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// randomUnit returns a uniformly distributed direction.
func randomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
		l2 := r3.Norm2(v)
		if l2 > 1e-6 && l2 <= 1 {
			return r3.Scale(1/math.Sqrt(l2), v)
		}
	}
}

// randomInBox returns a point uniformly distributed in [-half, +half].
func randomInBox(rng *rand.Rand, half r3.Vec) r3.Vec {
	return r3.Vec{
		X: (rng.Float64()*2 - 1) * half.X,
		Y: (rng.Float64()*2 - 1) * half.Y,
		Z: (rng.Float64()*2 - 1) * half.Z,
	}
}

// component returns axis 0, 1 or 2 of v.
func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func setComponent(v *r3.Vec, axis int, value float64) {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
}
