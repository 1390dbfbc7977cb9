package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Attachment selects which body profile a fin grows from.
type Attachment uint8

const (
	AttachTop Attachment = iota
	AttachBottom
)

// ParseAttachment maps a config string to an Attachment.
func ParseAttachment(s string) (Attachment, error) {
	switch s {
	case "top":
		return AttachTop, nil
	case "bottom":
		return AttachBottom, nil
	}
	return 0, fmt.Errorf("unknown fin attachment %q (want top or bottom)", s)
}

func (a Attachment) String() string {
	if a == AttachBottom {
		return "bottom"
	}
	return "top"
}

// FinParams controls how a blade meets the body.
type FinParams struct {
	Inset     float64 // pull the root toward the body centre so it never floats off the surface
	Thickness float64 // half-thickness at the root; the outer edge gets a quarter of it
}

// edgeThicknessRatio gives the blade a wedge cross-section.
const edgeThicknessRatio = 0.25

// BuildFin builds a double-sided blade between the body profile attach and
// the outer contour. For every contour sample the root point is looked up on
// attach at the same X. Front and back strips are offset in Z at interior
// samples only, so the blade closes to the centreline at both ends.
func BuildFin(attach, contour Polyline, side Attachment, p FinParams) (Submesh, error) {
	n := len(contour)
	if n < 2 {
		return Submesh{}, fmt.Errorf("%w: fin contour has %d samples", ErrInvalidCurve, n)
	}

	inset := -p.Inset
	if side == AttachBottom {
		inset = p.Inset
	}

	roots := make([]r3.Vec, n)
	for i, c := range contour {
		a, err := Lookup(attach, c.X)
		if err != nil {
			return Submesh{}, fmt.Errorf("fin root %d: %w", i, err)
		}
		a.Y += inset
		a.Z = 0
		roots[i] = a
	}

	verts := make([]r3.Vec, 0, 4*n)
	for _, sign := range []float64{1, -1} {
		for i := 0; i < n; i++ {
			w := 0.0
			if i > 0 && i < n-1 {
				w = sign * p.Thickness
			}
			edge := contour[i]
			edge.Z = w * edgeThicknessRatio
			root := roots[i]
			root.Z = w
			verts = append(verts, edge, root)
		}
	}

	idx := make([]uint32, 0, 2*6*(n-1))
	back := uint32(2 * n)
	for i := 0; i < n-1; i++ {
		c0, r0 := uint32(2*i), uint32(2*i+1)
		c1, r1 := c0+2, r0+2
		idx = append(idx,
			c0, r0, r1,
			c0, r1, c1,
		)
		// Back face winds the other way so its normal points outward.
		idx = append(idx,
			back+c0, back+r1, back+r0,
			back+c0, back+c1, back+r1,
		)
	}

	return Submesh{Vertices: verts, Indices: idx, Part: PartFin}, nil
}
