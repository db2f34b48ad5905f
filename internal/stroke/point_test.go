package stroke

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointJSON(t *testing.T) {
	t.Run("encodes as a 3-array", func(t *testing.T) {
		data, err := json.Marshal(Point{DX: 1.5, DY: -2, Pen: 1})
		require.NoError(t, err)
		assert.JSONEq(t, "[1.5, -2, 1]", string(data))
	})

	t.Run("decodes a 3-array", func(t *testing.T) {
		var p Point
		require.NoError(t, json.Unmarshal([]byte("[0.25, -0.5, 0]"), &p))
		assert.Equal(t, Point{DX: 0.25, DY: -0.5, Pen: 0}, p)
	})

	t.Run("rejects rows of other widths", func(t *testing.T) {
		for _, raw := range []string{"[1, 2]", "[1, 2, 3, 4]", "[]", "{}", "3"} {
			var p Point
			assert.Error(t, json.Unmarshal([]byte(raw), &p), "input %s", raw)
		}
	})
}

func TestFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	assert.True(t, Finite(nil))
	assert.True(t, Finite([]Point{{DX: 1, DY: 2, Pen: 0}}))
	assert.False(t, Finite([]Point{{DX: nan}}))
	assert.False(t, Finite([]Point{{DY: inf}}))
	assert.False(t, Finite([]Point{{Pen: nan}}))
	assert.False(t, Finite([]Point{{DX: 1}, {DY: -inf}}))
}

func TestEndsToStarts(t *testing.T) {
	// Two strokes of 3 and 2 points, end-marked: lift on points 2 and 4.
	in := []Point{
		{DX: 0, Pen: 0},
		{DX: 1, Pen: 0},
		{DX: 2, Pen: 1},
		{DX: 3, Pen: 0},
		{DX: 4, Pen: 1},
	}
	out := EndsToStarts(in)

	want := []float32{1, 0, 0, 1, 0}
	for i, p := range out {
		assert.Equal(t, want[i], p.Pen, "point %d", i)
		assert.Equal(t, in[i].DX, p.DX, "deltas must be untouched")
	}
	// Out-of-place.
	assert.Equal(t, float32(0), in[0].Pen)
}

func TestStartsToEnds(t *testing.T) {
	in := []Point{
		{Pen: 1},
		{Pen: 0},
		{Pen: 0},
		{Pen: 1},
		{Pen: 0},
	}
	out := StartsToEnds(in)

	want := []float32{0, 0, 1, 0, 1}
	for i, p := range out {
		assert.Equal(t, want[i], p.Pen, "point %d", i)
	}
}

// The two conversions are inverses whenever the last point genuinely ends a
// stroke, which EndsToStarts output always satisfies after a round trip.
func TestMarkerConversionRoundTrip(t *testing.T) {
	ends := []Point{
		{DX: 1, Pen: 0}, {DX: 2, Pen: 1},
		{DX: 3, Pen: 0}, {DX: 4, Pen: 0}, {DX: 5, Pen: 1},
		{DX: 6, Pen: 1},
	}
	starts := EndsToStarts(ends)
	back := StartsToEnds(starts)
	assert.Empty(t, cmp.Diff(ends, back))

	again := EndsToStarts(back)
	assert.Empty(t, cmp.Diff(starts, again))
}

func TestMarkerConversionEmpty(t *testing.T) {
	assert.Empty(t, EndsToStarts(nil))
	assert.Empty(t, StartsToEnds(nil))
}
