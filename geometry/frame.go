package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is one closed ring of points around the body axis at a fixed X.
// Point 0 and point len-1 are neighbours on the ring.
type Frame []r3.Vec

// BuildFrame computes the cross-section at axial position x from the sampled
// top, bottom and side profiles. The top and bottom profiles live in the XY
// plane; the side profile gives the half-width as Z.
func BuildFrame(top, bottom, side Polyline, x float64, m int) (Frame, error) {
	t, err := Lookup(top, x)
	if err != nil {
		return nil, fmt.Errorf("top profile: %w", err)
	}
	b, err := Lookup(bottom, x)
	if err != nil {
		return nil, fmt.Errorf("bottom profile: %w", err)
	}
	s, err := Lookup(side, x)
	if err != nil {
		return nil, fmt.Errorf("side profile: %w", err)
	}

	midY := (t.Y + b.Y) / 2
	halfW := math.Abs(s.Z)
	ring := Curve{
		{X: x, Y: b.Y},
		{X: x, Y: midY, Z: halfW},
		{X: x, Y: t.Y},
		{X: x, Y: midY, Z: -halfW},
	}

	pts, err := SampleClosed(ring, m)
	if err != nil {
		return nil, err
	}
	return Frame(pts), nil
}

// BuildFrames stacks frames along the body axis. The first frame is the
// degenerate snout (all points at the origin), then one frame every step
// inside the X domain shared by all three profiles, then a final frame at
// the tail end of that domain. Every frame has exactly m points.
func BuildFrames(top, bottom, side Polyline, step float64, m int) ([]Frame, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: axial step %.4f must be positive", ErrInvalidCurve, step)
	}
	if m < 3 {
		return nil, fmt.Errorf("%w: frame size %d, need at least 3", ErrInvalidCurve, m)
	}

	start, end := commonDomain(top, bottom, side)
	if end <= start {
		return nil, fmt.Errorf("%w: profiles share no X domain", ErrOutOfRange)
	}

	frames := []Frame{make(Frame, m)}
	for k := 1; ; k++ {
		x := start + float64(k)*step
		// Leave room so the last regular frame does not sit on top of the tail frame.
		if x >= end-step*0.5 {
			break
		}
		f, err := BuildFrame(top, bottom, side, x, m)
		if err != nil {
			return nil, fmt.Errorf("frame at x=%.4f: %w", x, err)
		}
		frames = append(frames, f)
	}

	tail, err := BuildFrame(top, bottom, side, end, m)
	if err != nil {
		return nil, fmt.Errorf("tail frame: %w", err)
	}
	return append(frames, tail), nil
}

func commonDomain(curves ...Polyline) (start, end float64) {
	start, end = math.Inf(-1), math.Inf(1)
	for _, c := range curves {
		lo, hi := XRange(c)
		start = math.Max(start, lo)
		end = math.Min(end, hi)
	}
	return start, end
}
