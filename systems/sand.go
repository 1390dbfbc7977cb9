package systems

import (
	"math"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/floats"
)

// SandParams configures the tank floor.
type SandParams struct {
	Resolution int
	Amplitude  float64 // dune height
	NoiseScale float64 // dunes per world unit
	RelaxRate  float64 // per second; dents fill back toward the rest shape
}

// SandSystem is the deformable floor of the tank: a height grid seeded with
// simplex-noise dunes. Heights are relative to floorY.
type SandSystem struct {
	params SandParams
	res    int
	sizeX  float64
	sizeZ  float64
	floorY float64

	rest    []float64
	height  []float64
	scratch []float64
}

// NewSandSystem creates a res×res floor covering sizeX×sizeZ centred on the
// origin at world height floorY.
func NewSandSystem(p SandParams, sizeX, sizeZ, floorY float64, seed int64) *SandSystem {
	res := p.Resolution
	if res < 2 {
		res = 2
	}
	s := &SandSystem{
		params:  p,
		res:     res,
		sizeX:   sizeX,
		sizeZ:   sizeZ,
		floorY:  floorY,
		rest:    make([]float64, res*res),
		height:  make([]float64, res*res),
		scratch: make([]float64, res*res),
	}

	noise := opensimplex.New(seed)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			x, z := s.cellWorld(i, j)
			// Two octaves: broad dunes plus ripples.
			h := noise.Eval2(x*p.NoiseScale, z*p.NoiseScale) +
				0.35*noise.Eval2(x*p.NoiseScale*3.1, z*p.NoiseScale*3.1)
			s.rest[j*res+i] = (h*0.5 + 0.5) * p.Amplitude
		}
	}
	copy(s.height, s.rest)
	return s
}

// Resolution returns the number of cells per side.
func (s *SandSystem) Resolution() int { return s.res }

// Heights returns the current relative heights, row-major by Z. Read only.
func (s *SandSystem) Heights() []float64 { return s.height }

// cellWorld returns the world (x, z) of cell (i, j).
func (s *SandSystem) cellWorld(i, j int) (x, z float64) {
	span := float64(s.res - 1)
	return (float64(i)/span - 0.5) * s.sizeX, (float64(j)/span - 0.5) * s.sizeZ
}

// HeightAt returns the world-space floor height under (x, z), bilinearly
// interpolated and clamped to the grid.
func (s *SandSystem) HeightAt(x, z float64) float64 {
	span := float64(s.res - 1)
	fx := clampFloat((x/s.sizeX+0.5)*span, 0, span)
	fz := clampFloat((z/s.sizeZ+0.5)*span, 0, span)
	i0, j0 := int(fx), int(fz)
	i1, j1 := min(i0+1, s.res-1), min(j0+1, s.res-1)
	tx, tz := fx-float64(i0), fz-float64(j0)

	h00 := s.height[j0*s.res+i0]
	h10 := s.height[j0*s.res+i1]
	h01 := s.height[j1*s.res+i0]
	h11 := s.height[j1*s.res+i1]
	h := (h00*(1-tx)+h10*tx)*(1-tz) + (h01*(1-tx)+h11*tx)*tz
	return s.floorY + h
}

// Deform presses a gaussian dent of the given depth and radius into the
// floor at (x, z). Returns the number of cells touched.
func (s *SandSystem) Deform(x, z, strength, radius float64) int {
	if radius <= 0 || strength == 0 {
		return 0
	}
	reach := 3 * radius
	touched := 0
	twoSigmaSq := 2 * radius * radius
	for j := 0; j < s.res; j++ {
		for i := 0; i < s.res; i++ {
			cx, cz := s.cellWorld(i, j)
			dx, dz := cx-x, cz-z
			d2 := dx*dx + dz*dz
			if d2 > reach*reach {
				continue
			}
			s.height[j*s.res+i] -= strength * math.Exp(-d2/twoSigmaSq)
			touched++
		}
	}
	return touched
}

// Update relaxes the floor toward its rest shape.
func (s *SandSystem) Update(dt float64) {
	if dt <= 0 || s.params.RelaxRate <= 0 {
		return
	}
	k := 1 - math.Exp(-s.params.RelaxRate*dt)
	for i := range s.height {
		s.height[i] += (s.rest[i] - s.height[i]) * k
	}
}

// Displacement returns the total height removed from the rest shape.
func (s *SandSystem) Displacement() float64 {
	floats.SubTo(s.scratch, s.rest, s.height)
	return floats.Sum(s.scratch)
}
