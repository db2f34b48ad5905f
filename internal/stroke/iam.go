package stroke

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strconv"
)

// IAM lineStrokes XML layout, reduced to what ingestion needs.
type iamWhiteboard struct {
	StrokeSet *iamStrokeSet `xml:"StrokeSet"`
}

type iamStrokeSet struct {
	Strokes []iamStroke `xml:"Stroke"`
}

type iamStroke struct {
	Points []iamPoint `xml:"Point"`
}

type iamPoint struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
}

// ReadIAMFile parses one IAM lineStrokes XML file into a delta sequence with
// pen-lift-at-stroke-END markers (the format's native convention; callers
// wanting the pipeline's canonical form convert with EndsToStarts).
//
// The first point of the file gets dx = dy = 0; deltas run across stroke
// boundaries, so the first point of each later stroke carries the "teleport"
// jump from the previous stroke's last position. Points with missing or
// non-finite coordinates are skipped.
func ReadIAMFile(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IAM file: %w", err)
	}
	return ParseIAM(data)
}

// ParseIAM parses raw IAM lineStrokes XML.
func ParseIAM(data []byte) ([]Point, error) {
	var doc iamWhiteboard
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse IAM XML: %w", err)
	}
	if doc.StrokeSet == nil {
		return nil, fmt.Errorf("missing StrokeSet in IAM XML")
	}

	var points []Point
	var prevX, prevY float64
	havePrev := false

	for _, stroke := range doc.StrokeSet.Strokes {
		coords := make([][2]float64, 0, len(stroke.Points))
		for _, pt := range stroke.Points {
			x, errX := strconv.ParseFloat(pt.X, 64)
			y, errY := strconv.ParseFloat(pt.Y, 64)
			if errX != nil || errY != nil {
				continue
			}
			if !finite(x) || !finite(y) {
				continue
			}
			coords = append(coords, [2]float64{x, y})
		}
		if len(coords) == 0 {
			continue
		}

		for i, c := range coords {
			var dx, dy float64
			if havePrev {
				dx = c[0] - prevX
				dy = c[1] - prevY
			}
			pen := float32(0)
			if i == len(coords)-1 {
				pen = 1
			}
			points = append(points, Point{DX: float32(dx), DY: float32(dy), Pen: pen})
			prevX, prevY = c[0], c[1]
			havePrev = true
		}
	}

	return points, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
