package geometry

import "gonum.org/v1/gonum/spatial/r3"

// Ribbon builds a flat strip along points whose width shrinks linearly from
// baseWidth at points[0] to tipWidth at the last point. Used for kelp, which
// is rebuilt every tick.
func Ribbon(points []r3.Vec, baseWidth, tipWidth float64) Submesh {
	n := len(points)
	if n < 2 {
		return Submesh{Part: PartKelp}
	}

	verts := make([]r3.Vec, 0, 2*n)
	for i, p := range points {
		var tangent r3.Vec
		if i < n-1 {
			tangent = r3.Sub(points[i+1], p)
		} else {
			tangent = r3.Sub(p, points[i-1])
		}
		side := r3.Cross(tangent, r3.Vec{Z: 1})
		if l := r3.Norm(side); l > 1e-12 {
			side = r3.Scale(1/l, side)
		} else {
			side = r3.Vec{X: 1}
		}

		w := baseWidth + (tipWidth-baseWidth)*float64(i)/float64(n-1)
		half := r3.Scale(w/2, side)
		verts = append(verts, r3.Sub(p, half), r3.Add(p, half))
	}

	idx := make([]uint32, 0, 6*(n-1))
	for i := 0; i < n-1; i++ {
		l0, r0 := uint32(2*i), uint32(2*i+1)
		l1, r1 := l0+2, r0+2
		idx = append(idx, l0, r0, r1, l0, r1, l1)
	}
	return Submesh{Vertices: verts, Indices: idx, Part: PartKelp}
}
