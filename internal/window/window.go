// Package window segments point sequences into fixed-stride windows and
// pads them to a fixed length with validity masks.
package window

import (
	"fmt"

	"inkdistill/internal/stroke"
)

// Segment splits points into windows of at most maxLen points taken at
// stride maxLen-overlap. The final window may be shorter than maxLen;
// padding is a separate step. Windows alias the input slice. An empty
// input yields an empty result, not an error.
func Segment(points []stroke.Point, maxLen, overlap int) ([][]stroke.Point, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("max_len must be > 0, got %d", maxLen)
	}
	if overlap < 0 || overlap >= maxLen {
		return nil, fmt.Errorf("overlap must be in [0, max_len), got %d", overlap)
	}

	stride := maxLen - overlap
	var windows [][]stroke.Point
	for start := 0; start < len(points); start += stride {
		end := start + maxLen
		if end > len(points) {
			end = len(points)
		}
		windows = append(windows, points[start:end])
	}
	return windows, nil
}

// Pad right-pads (or silently truncates) a window to exactly maxLen rows and
// returns it with a same-length 0/1 validity mask. The mask is a prefix of
// 1s followed by 0s; its sum equals min(len(window), maxLen). A zero-length
// window yields all zeros rather than an error.
func Pad(win []stroke.Point, maxLen int) ([]stroke.Point, []float32, error) {
	if maxLen <= 0 {
		return nil, nil, fmt.Errorf("max_len must be > 0, got %d", maxLen)
	}

	x := make([]stroke.Point, maxLen)
	mask := make([]float32, maxLen)

	n := len(win)
	if n > maxLen {
		n = maxLen
	}
	copy(x, win[:n])
	for i := 0; i < n; i++ {
		mask[i] = 1
	}
	return x, mask, nil
}
