// Package geometry builds the creature surface from shaping curves.
//
// Curves are sampled once into dense polylines; frames (body cross-sections)
// and fin blades are derived from those polylines and merged into a single
// indexed mesh. Nothing here is rebuilt per tick except kelp ribbons.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidCurve is returned for curves with fewer than two control points
	// or a sample count below two.
	ErrInvalidCurve = errors.New("invalid curve")

	// ErrOutOfRange is returned when an axial lookup falls outside the
	// sampled X domain of a polyline.
	ErrOutOfRange = errors.New("axial lookup out of range")
)

// Curve is an ordered list of control points. Insertion order is shape order.
type Curve []r3.Vec

// Polyline is a dense, ordered list of sampled points.
type Polyline []r3.Vec

// Dense evaluation steps per spline segment before arc-length resampling.
const subdivisions = 32

// lookupEps absorbs float noise at the ends of a sampled domain.
const lookupEps = 1e-9

// Sample evaluates an open Catmull-Rom spline through ctrl and returns n
// points evenly spaced by arc length. The first and last returned points are
// exactly the first and last control points.
func Sample(ctrl Curve, n int) (Polyline, error) {
	if len(ctrl) < 2 {
		return nil, fmt.Errorf("%w: %d control points, need at least 2", ErrInvalidCurve, len(ctrl))
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: sample count %d, need at least 2", ErrInvalidCurve, n)
	}

	last := len(ctrl) - 1
	at := func(i int) r3.Vec {
		// Reflect phantom points so the end tangents follow the first and last segments.
		switch {
		case i < 0:
			return r3.Sub(r3.Scale(2, ctrl[0]), ctrl[1])
		case i > last:
			return r3.Sub(r3.Scale(2, ctrl[last]), ctrl[last-1])
		}
		return ctrl[i]
	}

	dense := make([]r3.Vec, 0, last*subdivisions+1)
	dense = append(dense, ctrl[0])
	for seg := 0; seg < last; seg++ {
		p0, p1, p2, p3 := at(seg-1), at(seg), at(seg+1), at(seg+2)
		for k := 1; k < subdivisions; k++ {
			dense = append(dense, catmullRom(p0, p1, p2, p3, float64(k)/subdivisions))
		}
		dense = append(dense, p2)
	}

	out := resample(dense, n, false)
	out[0] = ctrl[0]
	out[n-1] = ctrl[last]
	return out, nil
}

// SampleClosed evaluates a closed Catmull-Rom loop through ctrl and returns n
// points evenly spaced by arc length. The seam is not duplicated: point n-1
// is adjacent to point 0.
func SampleClosed(ctrl Curve, n int) (Polyline, error) {
	if len(ctrl) < 2 {
		return nil, fmt.Errorf("%w: %d control points, need at least 2", ErrInvalidCurve, len(ctrl))
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: sample count %d, need at least 2", ErrInvalidCurve, n)
	}

	count := len(ctrl)
	at := func(i int) r3.Vec {
		return ctrl[((i%count)+count)%count]
	}

	dense := make([]r3.Vec, 0, count*subdivisions+1)
	dense = append(dense, ctrl[0])
	for seg := 0; seg < count; seg++ {
		p0, p1, p2, p3 := at(seg-1), at(seg), at(seg+1), at(seg+2)
		for k := 1; k < subdivisions; k++ {
			dense = append(dense, catmullRom(p0, p1, p2, p3, float64(k)/subdivisions))
		}
		dense = append(dense, p2)
	}

	return resample(dense, n, true), nil
}

// catmullRom evaluates the uniform Catmull-Rom segment between p1 and p2.
func catmullRom(p0, p1, p2, p3 r3.Vec, t float64) r3.Vec {
	t2 := t * t
	t3 := t2 * t
	a := r3.Scale(2, p1)
	b := r3.Scale(t, r3.Sub(p2, p0))
	c := r3.Scale(t2, r3.Add(r3.Sub(r3.Scale(2, p0), r3.Scale(5, p1)), r3.Sub(r3.Scale(4, p2), p3)))
	d := r3.Scale(t3, r3.Add(r3.Sub(r3.Scale(3, p1), p0), r3.Sub(p3, r3.Scale(3, p2))))
	return r3.Scale(0.5, r3.Add(r3.Add(a, b), r3.Add(c, d)))
}

// resample walks a dense polyline and picks n points at equal arc-length
// spacing. A closed polyline must end with its first point repeated; the
// returned ring then omits that duplicate.
func resample(dense []r3.Vec, n int, closed bool) Polyline {
	segLen := make([]float64, len(dense))
	for i := 1; i < len(dense); i++ {
		segLen[i] = r3.Norm(r3.Sub(dense[i], dense[i-1]))
	}
	cum := floats.CumSum(make([]float64, len(segLen)), segLen)
	total := cum[len(cum)-1]

	out := make(Polyline, n)
	if total == 0 {
		for i := range out {
			out[i] = dense[0]
		}
		return out
	}

	spans := n - 1
	if closed {
		spans = n
	}

	j := 1
	for i := 0; i < n; i++ {
		target := total * float64(i) / float64(spans)
		for j < len(cum)-1 && cum[j] < target {
			j++
		}
		span := cum[j] - cum[j-1]
		t := 0.0
		if span > 0 {
			t = (target - cum[j-1]) / span
		}
		out[i] = lerp(dense[j-1], dense[j], clamp01(t))
	}
	return out
}

// XRange returns the minimum and maximum X over the polyline.
func XRange(p Polyline) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range p {
		lo = math.Min(lo, v.X)
		hi = math.Max(hi, v.X)
	}
	return lo, hi
}

// Lookup finds the first pair of consecutive samples whose X values bracket x
// and interpolates linearly between them. Queries outside the sampled X
// domain return ErrOutOfRange rather than an extrapolated point.
func Lookup(p Polyline, x float64) (r3.Vec, error) {
	if len(p) == 0 {
		return r3.Vec{}, fmt.Errorf("%w: empty polyline", ErrOutOfRange)
	}
	lo, hi := XRange(p)
	if x < lo-lookupEps || x > hi+lookupEps {
		return r3.Vec{}, fmt.Errorf("%w: x=%.6f outside [%.6f, %.6f]", ErrOutOfRange, x, lo, hi)
	}
	if len(p) == 1 {
		return p[0], nil
	}
	x = math.Max(lo, math.Min(hi, x))

	for i := 1; i < len(p); i++ {
		a, b := p[i-1], p[i]
		if x < math.Min(a.X, b.X) || x > math.Max(a.X, b.X) {
			continue
		}
		if a.X == b.X {
			return a, nil
		}
		return lerp(a, b, (x-a.X)/(b.X-a.X)), nil
	}
	// Unreachable for a connected polyline once x is clamped into its range.
	return r3.Vec{}, fmt.Errorf("%w: x=%.6f", ErrOutOfRange, x)
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
