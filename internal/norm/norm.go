// Package norm applies per-channel affine normalization to point sequences.
package norm

import (
	"fmt"
	"math"

	"inkdistill/internal/stroke"
)

// Eps guards the divisor against a zero std slipping through validation.
const Eps = 1e-8

// Constants are the corpus-wide normalization scalars for the dx/dy
// channels. They are computed once (or loaded) and immutable thereafter.
type Constants struct {
	MeanDX float64 `json:"mean_dx"`
	StdDX  float64 `json:"std_dx"`
	MeanDY float64 `json:"mean_dy"`
	StdDY  float64 `json:"std_dy"`
}

// FromFile converts a corpus file's embedded norm block.
func FromFile(n *stroke.Norm) Constants {
	return Constants{MeanDX: n.MeanDX, StdDX: n.StdDX, MeanDY: n.MeanDY, StdDY: n.StdDY}
}

// Validate rejects non-finite or non-positive std values. A std that is not
// strictly positive means the stats computation went wrong; it is never
// silently substituted.
func (c Constants) Validate() error {
	if !isFinite(c.MeanDX) || !isFinite(c.MeanDY) {
		return fmt.Errorf("non-finite mean: mean_dx=%v mean_dy=%v", c.MeanDX, c.MeanDY)
	}
	if !isFinite(c.StdDX) || c.StdDX <= 0 {
		return fmt.Errorf("invalid std_dx: %v", c.StdDX)
	}
	if !isFinite(c.StdDY) || c.StdDY <= 0 {
		return fmt.Errorf("invalid std_dy: %v", c.StdDY)
	}
	return nil
}

// Apply normalizes dx/dy out-of-place and passes the pen channel through
// unchanged. With zeroStrokeStarts, every row whose Pen >= 0.5 gets
// DX = DY = 0 exactly after normalization: boundary tokens carry discrete
// meaning and must be [0, 0, 1] in model input space regardless of
// accumulated float noise.
func Apply(points []stroke.Point, c Constants, zeroStrokeStarts bool) []stroke.Point {
	out := make([]stroke.Point, len(points))
	for i, p := range points {
		out[i] = stroke.Point{
			DX:  float32((float64(p.DX) - c.MeanDX) / (c.StdDX + Eps)),
			DY:  float32((float64(p.DY) - c.MeanDY) / (c.StdDY + Eps)),
			Pen: p.Pen,
		}
		if zeroStrokeStarts && p.Pen >= 0.5 {
			out[i].DX = 0
			out[i].DY = 0
		}
	}
	return out
}

// ZeroStrokeStarts forces dx = dy = 0 on every stroke-start row, out-of-place.
// Used by the normalize=none path when the zeroing invariant is still wanted.
func ZeroStrokeStarts(points []stroke.Point) []stroke.Point {
	out := make([]stroke.Point, len(points))
	copy(out, points)
	for i := range out {
		if out[i].Pen >= 0.5 {
			out[i].DX = 0
			out[i].DY = 0
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
