// Package stroke defines the pen-stroke point type shared by the whole
// pipeline and the ingestion paths that produce it.
//
// Canonical marker convention: inside this module Pen == 1 marks the FIRST
// sample of a stroke (stroke-start). Producers that emit pen-lift-at-end
// markers (IAM lineStrokes XML) are converted at the ingestion boundary via
// EndsToStarts; StartsToEnds is the exact inverse for worker-side interop.
package stroke

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is one (dx, dy, p) sample: planar deltas between consecutive pen
// positions plus a binary stroke-boundary marker.
type Point struct {
	DX  float32
	DY  float32
	Pen float32
}

// MarshalJSON encodes the point as the 3-array [dx, dy, p].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float32{p.DX, p.DY, p.Pen})
}

// UnmarshalJSON decodes a 3-array row. Rows of any other width are rejected.
func (p *Point) UnmarshalJSON(data []byte) error {
	var row []float64
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) != 3 {
		return fmt.Errorf("expected point row of width 3, got %d", len(row))
	}
	p.DX = float32(row[0])
	p.DY = float32(row[1])
	p.Pen = float32(row[2])
	return nil
}

// Finite reports whether every channel of every point is a finite number.
func Finite(points []Point) bool {
	for _, pt := range points {
		for _, v := range [3]float32{pt.DX, pt.DY, pt.Pen} {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}

// EndsToStarts converts pen-lift-at-stroke-END markers into stroke-start
// markers. The first point always starts a stroke; a point following an end
// marker starts the next stroke.
func EndsToStarts(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	prevEnd := true
	for i := range out {
		end := points[i].Pen >= 0.5
		if prevEnd {
			out[i].Pen = 1
		} else {
			out[i].Pen = 0
		}
		prevEnd = end
	}
	return out
}

// StartsToEnds converts stroke-start markers into pen-lift-at-stroke-END
// markers: a point directly before the next stroke's start carries the lift,
// and the final point always does.
func StartsToEnds(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := range out {
		if i+1 < len(points) && points[i+1].Pen >= 0.5 {
			out[i].Pen = 1
		} else {
			out[i].Pen = 0
		}
	}
	if n := len(out); n > 0 {
		out[n-1].Pen = 1
	}
	return out
}
