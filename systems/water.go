package systems

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WaterStabilityLimit bounds waveSpeed*dt*dt for the explicit wave step.
// The Laplacian averages four neighbours, so its eigenvalues lie in [-2, 0].
const WaterStabilityLimit = 2.0

// StableDT returns the largest dt the wave step tolerates for waveSpeed.
func StableDT(waveSpeed float64) float64 {
	if waveSpeed <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(WaterStabilityLimit / waveSpeed)
}

// WaterSystem is a square height-field advanced with a damped wave equation.
// The outermost ring of cells is a fixed boundary and never changes.
type WaterSystem struct {
	res       int
	sizeX     float64
	sizeZ     float64
	waveSpeed float64
	damping   float64

	height   []float64
	velocity []float64
}

// NewWaterSystem creates a res×res grid covering sizeX×sizeZ world units
// centred on the origin.
func NewWaterSystem(res int, sizeX, sizeZ, waveSpeed, damping float64) *WaterSystem {
	if res < 3 {
		res = 3
	}
	n := res * res
	return &WaterSystem{
		res:       res,
		sizeX:     sizeX,
		sizeZ:     sizeZ,
		waveSpeed: waveSpeed,
		damping:   damping,
		height:    make([]float64, n),
		velocity:  make([]float64, n),
	}
}

// Resolution returns the number of cells per side.
func (w *WaterSystem) Resolution() int { return w.res }

// Height returns the height of cell (i, j); i runs along X, j along Z.
func (w *WaterSystem) Height(i, j int) float64 { return w.height[j*w.res+i] }

// Velocity returns the vertical velocity of cell (i, j).
func (w *WaterSystem) Velocity(i, j int) float64 { return w.velocity[j*w.res+i] }

// Heights returns the backing height array, row-major by Z. Read only.
func (w *WaterSystem) Heights() []float64 { return w.height }

// Update advances the field by dt in a single in-place sweep over the
// interior, row by row along X. Each cell reads the already updated heights
// of its left and lower-Z neighbours, so a disturbance reaches the cells
// after it in sweep order within the same tick.
func (w *WaterSystem) Update(dt float64) {
	if dt <= 0 {
		return
	}
	r := w.res
	coeff := w.waveSpeed * dt
	for j := 1; j < r-1; j++ {
		row := j * r
		for i := 1; i < r-1; i++ {
			k := row + i
			lap := (w.height[k-1]+w.height[k+1]+w.height[k-r]+w.height[k+r])*0.25 - w.height[k]
			v := (w.velocity[k] + lap*coeff) * w.damping
			w.velocity[k] = v
			w.height[k] += v * dt
		}
	}
}

// Cell maps a world-space (x, z) to the nearest interior cell.
func (w *WaterSystem) Cell(x, z float64) (i, j int) {
	span := float64(w.res - 1)
	i = int(math.Round((x/w.sizeX + 0.5) * span))
	j = int(math.Round((z/w.sizeZ + 0.5) * span))
	return clampInt(i, 1, w.res-2), clampInt(j, 1, w.res-2)
}

// Disturb adds an impulse to the velocity of the cell under (x, z).
// Points outside the surface hit the nearest interior cell.
func (w *WaterSystem) Disturb(x, z, strength float64) {
	i, j := w.Cell(x, z)
	w.DisturbCell(i, j, strength)
}

// DisturbCell adds an impulse to cell (i, j), clamped to the interior.
func (w *WaterSystem) DisturbCell(i, j int, strength float64) {
	i = clampInt(i, 1, w.res-2)
	j = clampInt(j, 1, w.res-2)
	w.velocity[j*w.res+i] += strength
}

// KineticEnergy is the sum of squared cell velocities.
func (w *WaterSystem) KineticEnergy() float64 {
	return floats.Dot(w.velocity, w.velocity)
}

// Energy is kinetic plus the gradient potential that the Laplacian releases:
// sum v² + waveSpeed/4 * sum over grid edges of (Δh)².
func (w *WaterSystem) Energy() float64 {
	r := w.res
	var pot float64
	for j := 0; j < r; j++ {
		for i := 0; i < r; i++ {
			k := j*r + i
			if i+1 < r {
				d := w.height[k+1] - w.height[k]
				pot += d * d
			}
			if j+1 < r {
				d := w.height[k+r] - w.height[k]
				pot += d * d
			}
		}
	}
	return w.KineticEnergy() + w.waveSpeed*0.25*pot
}

// MaxAbsHeight returns the largest absolute height on the grid.
func (w *WaterSystem) MaxAbsHeight() float64 {
	return floats.Norm(w.height, math.Inf(1))
}
