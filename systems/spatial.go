// Package systems holds the per-tick simulators: flock, kelp, water and sand.
package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Neighbor is a nearby agent with precomputed spatial data.
type Neighbor struct {
	Index  int
	Delta  r3.Vec  // other - self
	DistSq float64 // avoid sqrt in the hot path
}

// SpatialGrid buckets agent indices into uniform cells covering a box
// centred on the origin. Positions outside the box land in edge cells.
type SpatialGrid struct {
	cellSize float64
	half     r3.Vec
	nx       int
	ny       int
	nz       int
	cells    [][]int
}

// NewSpatialGrid creates a grid covering [-half, +half] with the given cell size.
func NewSpatialGrid(half r3.Vec, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	nx := int(2*half.X/cellSize) + 1
	ny := int(2*half.Y/cellSize) + 1
	nz := int(2*half.Z/cellSize) + 1

	cells := make([][]int, nx*ny*nz)
	for i := range cells {
		cells[i] = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		half:     half,
		nx:       nx,
		ny:       ny,
		nz:       nz,
		cells:    cells,
	}
}

// Clear removes all indices from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Rebuild clears the grid and inserts every position by its slice index.
func (g *SpatialGrid) Rebuild(positions []r3.Vec) {
	g.Clear()
	for i, p := range positions {
		g.Insert(i, p)
	}
}

// Insert adds an index at the given position.
func (g *SpatialGrid) Insert(i int, p r3.Vec) {
	cx, cy, cz := g.cellCoords(p)
	idx := g.flat(cx, cy, cz)
	g.cells[idx] = append(g.cells[idx], i)
}

// QueryRadiusInto appends every index within radius of positions[self]
// (excluding self) to dst and returns it. Reuse dst across calls.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, self int, positions []r3.Vec, radius float64) []Neighbor {
	origin := positions[self]
	reach := int(math.Ceil(radius/g.cellSize))
	cx, cy, cz := g.cellCoords(origin)
	radiusSq := radius * radius

	for x := max(cx-reach, 0); x <= min(cx+reach, g.nx-1); x++ {
		for y := max(cy-reach, 0); y <= min(cy+reach, g.ny-1); y++ {
			for z := max(cz-reach, 0); z <= min(cz+reach, g.nz-1); z++ {
				for _, j := range g.cells[g.flat(x, y, z)] {
					if j == self {
						continue
					}
					d := r3.Sub(positions[j], origin)
					distSq := r3.Norm2(d)
					if distSq <= radiusSq {
						dst = append(dst, Neighbor{Index: j, Delta: d, DistSq: distSq})
					}
				}
			}
		}
	}
	return dst
}

func (g *SpatialGrid) flat(x, y, z int) int {
	return (z*g.ny+y)*g.nx + x
}

// cellCoords returns clamped cell coordinates for a world position.
func (g *SpatialGrid) cellCoords(p r3.Vec) (int, int, int) {
	return clampInt(int((p.X+g.half.X)/g.cellSize), 0, g.nx-1),
		clampInt(int((p.Y+g.half.Y)/g.cellSize), 0, g.ny-1),
		clampInt(int((p.Z+g.half.Z)/g.cellSize), 0, g.nz-1)
}
