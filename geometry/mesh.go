package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMalformedMesh is returned when frames or submeshes cannot be merged.
var ErrMalformedMesh = errors.New("malformed mesh")

// Part tags each vertex for the shading stage.
type Part uint8

const (
	PartBody Part = iota
	PartFin
	PartKelp
)

// Submesh is a standalone triangle list with local indices.
type Submesh struct {
	Vertices []r3.Vec
	Indices  []uint32
	Part     Part
}

// Mesh is the merged, indexed creature surface.
type Mesh struct {
	Positions []r3.Vec
	Normals   []r3.Vec
	Parts     []Part
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Validate checks buffer lengths and that every index references a vertex.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if len(m.Normals) != n || len(m.Parts) != n {
		return fmt.Errorf("%w: %d positions, %d normals, %d parts", ErrMalformedMesh, n, len(m.Normals), len(m.Parts))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", ErrMalformedMesh, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d references vertex %d of %d", ErrMalformedMesh, i, idx, n)
		}
	}
	return nil
}

// Float32Buffers flattens positions and normals into xyz float32 arrays.
func (m *Mesh) Float32Buffers() (positions, normals []float32) {
	positions = make([]float32, 0, 3*len(m.Positions))
	normals = make([]float32, 0, 3*len(m.Normals))
	for i, p := range m.Positions {
		n := m.Normals[i]
		positions = append(positions, float32(p.X), float32(p.Y), float32(p.Z))
		normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return positions, normals
}

// Assemble merges the body frame stack and the fin submeshes into one mesh.
// The body becomes a grid of quads between consecutive frames, wrapping
// around each ring. Fin vertices follow the body vertices in argument order.
func Assemble(frames []Frame, fins ...Submesh) (*Mesh, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 frames, got %d", ErrMalformedMesh, len(frames))
	}
	ring := len(frames[0])
	if ring < 3 {
		return nil, fmt.Errorf("%w: frame size %d", ErrMalformedMesh, ring)
	}

	total := len(frames) * ring
	for i, f := range fins {
		for _, idx := range f.Indices {
			if int(idx) >= len(f.Vertices) {
				return nil, fmt.Errorf("%w: fin %d index %d out of %d vertices", ErrMalformedMesh, i, idx, len(f.Vertices))
			}
		}
		total += len(f.Vertices)
	}

	m := &Mesh{
		Positions: make([]r3.Vec, 0, total),
		Parts:     make([]Part, 0, total),
	}

	for i, f := range frames {
		if len(f) != ring {
			return nil, fmt.Errorf("%w: frame %d has %d points, want %d", ErrMalformedMesh, i, len(f), ring)
		}
		m.Positions = append(m.Positions, f...)
		for range f {
			m.Parts = append(m.Parts, PartBody)
		}
	}

	cells := (len(frames) - 1) * ring
	m.Indices = make([]uint32, 0, cells*6)
	for f := 0; f < len(frames)-1; f++ {
		for j := 0; j < ring; j++ {
			a := uint32(f*ring + j)
			b := uint32(f*ring + (j+1)%ring)
			c := a + uint32(ring)
			d := b + uint32(ring)
			m.Indices = append(m.Indices,
				a, c, d,
				a, d, b,
			)
		}
	}

	for _, f := range fins {
		m.append(f)
	}

	m.Normals = smoothNormals(m.Positions, m.Indices)
	return m, nil
}

// append adds a submesh, shifting its indices past the existing vertices.
func (m *Mesh) append(s Submesh) {
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, s.Vertices...)
	for range s.Vertices {
		m.Parts = append(m.Parts, s.Part)
	}
	for _, idx := range s.Indices {
		m.Indices = append(m.Indices, base+idx)
	}
}

// FromSubmesh wraps a single submesh as a mesh with computed normals.
func FromSubmesh(s Submesh) *Mesh {
	m := &Mesh{}
	m.append(s)
	m.Normals = smoothNormals(m.Positions, m.Indices)
	return m
}

// smoothNormals accumulates area-weighted face normals per vertex.
// Vertices touched only by zero-area faces get +Y.
func smoothNormals(pos []r3.Vec, idx []uint32) []r3.Vec {
	acc := make([]r3.Vec, len(pos))
	for t := 0; t+2 < len(idx); t += 3 {
		a, b, c := idx[t], idx[t+1], idx[t+2]
		n := r3.Cross(r3.Sub(pos[b], pos[a]), r3.Sub(pos[c], pos[a]))
		acc[a] = r3.Add(acc[a], n)
		acc[b] = r3.Add(acc[b], n)
		acc[c] = r3.Add(acc[c], n)
	}
	up := r3.Vec{Y: 1}
	for i, n := range acc {
		l := r3.Norm(n)
		if l < 1e-12 {
			acc[i] = up
			continue
		}
		acc[i] = r3.Scale(1/l, n)
	}
	return acc
}
