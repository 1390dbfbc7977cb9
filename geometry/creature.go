package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// FinShape is one fin: its outline and the body profile it grows from.
type FinShape struct {
	Name    string
	Attach  Attachment
	Contour Curve
}

// CreatureShape holds the control curves of a creature. The snout sits at
// the origin and the body extends along +X.
type CreatureShape struct {
	Top    Curve // XY plane, Y above the axis
	Bottom Curve // XY plane, Y below the axis
	Side   Curve // XZ plane, Z is the half-width
	Fins   []FinShape
}

// Resolution controls sampling density.
type Resolution struct {
	CurveSamples int     // samples per body profile
	FinSamples   int     // samples per fin contour
	FrameSize    int     // points per frame ring
	AxialStep    float64 // spacing between frames
	Fin          FinParams
}

// BuildCreature samples every curve, then builds frames and fins and merges
// them. All curves are validated before any geometry is produced.
func BuildCreature(shape CreatureShape, res Resolution) (*Mesh, error) {
	top, err := Sample(shape.Top, res.CurveSamples)
	if err != nil {
		return nil, fmt.Errorf("top curve: %w", err)
	}
	bottom, err := Sample(shape.Bottom, res.CurveSamples)
	if err != nil {
		return nil, fmt.Errorf("bottom curve: %w", err)
	}
	side, err := Sample(shape.Side, res.CurveSamples)
	if err != nil {
		return nil, fmt.Errorf("side curve: %w", err)
	}
	contours := make([]Polyline, len(shape.Fins))
	for i, fin := range shape.Fins {
		contours[i], err = Sample(fin.Contour, res.FinSamples)
		if err != nil {
			return nil, fmt.Errorf("fin %q: %w", fin.Name, err)
		}
	}

	frames, err := BuildFrames(top, bottom, side, res.AxialStep, res.FrameSize)
	if err != nil {
		return nil, err
	}

	subs := make([]Submesh, len(shape.Fins))
	for i, fin := range shape.Fins {
		attach := top
		if fin.Attach == AttachBottom {
			attach = bottom
		}
		subs[i], err = BuildFin(attach, contours[i], fin.Attach, res.Fin)
		if err != nil {
			return nil, fmt.Errorf("fin %q: %w", fin.Name, err)
		}
	}

	return Assemble(frames, subs...)
}

// DefaultShape is a small reef fish one unit long with a dorsal fin, an anal
// fin and a two-lobed tail.
func DefaultShape() CreatureShape {
	return CreatureShape{
		Top: Curve{
			{X: 0, Y: 0}, {X: 0.1, Y: 0.11}, {X: 0.35, Y: 0.19}, {X: 0.7, Y: 0.1}, {X: 1, Y: 0.03},
		},
		Bottom: Curve{
			{X: 0, Y: 0}, {X: 0.1, Y: -0.09}, {X: 0.35, Y: -0.15}, {X: 0.7, Y: -0.07}, {X: 1, Y: -0.03},
		},
		Side: Curve{
			{X: 0, Z: 0}, {X: 0.1, Z: 0.07}, {X: 0.35, Z: 0.09}, {X: 0.7, Z: 0.04}, {X: 1, Z: 0.015},
		},
		Fins: []FinShape{
			{Name: "dorsal", Attach: AttachTop, Contour: Curve{
				{X: 0.3, Y: 0.18}, {X: 0.4, Y: 0.33}, {X: 0.5, Y: 0.3}, {X: 0.62, Y: 0.13},
			}},
			{Name: "anal", Attach: AttachBottom, Contour: Curve{
				{X: 0.55, Y: -0.1}, {X: 0.62, Y: -0.2}, {X: 0.7, Y: -0.19}, {X: 0.76, Y: -0.06},
			}},
			{Name: "tail-upper", Attach: AttachTop, Contour: Curve{
				{X: 0.8, Y: 0.07}, {X: 0.88, Y: 0.18}, {X: 0.96, Y: 0.28}, {X: 0.99, Y: 0.04},
			}},
			{Name: "tail-lower", Attach: AttachBottom, Contour: Curve{
				{X: 0.8, Y: -0.06}, {X: 0.88, Y: -0.16}, {X: 0.96, Y: -0.25}, {X: 0.99, Y: -0.04},
			}},
		},
	}
}

// DefaultResolution matches the densities the renderer was tuned for.
func DefaultResolution() Resolution {
	return Resolution{
		CurveSamples: 100,
		FinSamples:   40,
		FrameSize:    200,
		AxialStep:    0.05,
		Fin:          FinParams{Inset: 0.01, Thickness: 0.006},
	}
}

// Centroid returns the mean vertex position, handy for pivoting the model.
func (m *Mesh) Centroid() r3.Vec {
	var c r3.Vec
	if len(m.Positions) == 0 {
		return c
	}
	for _, p := range m.Positions {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(m.Positions)), c)
}
