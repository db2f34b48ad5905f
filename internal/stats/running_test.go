package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoPass computes mean and population variance directly, as the reference
// for the online accumulator.
func twoPass(values []float64) (mean, variance float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, variance
}

func TestRunning_MatchesTwoPass(t *testing.T) {
	cases := map[string][]float64{
		"small integers":    {1, 2, 3, 4, 5},
		"mixed signs":       {-3.5, 0, 7.25, -1.125, 2.5, 100},
		"wide magnitudes":   {1e-6, 1e6, 3.14159, -2.71828, 0.5, -1e5, 42},
		"constant sequence": {7, 7, 7, 7},
		"single value":      {-13.25},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			var r Running
			for _, v := range values {
				r.Update(v)
			}

			wantMean, wantVar := twoPass(values)
			assert.Equal(t, int64(len(values)), r.Count())
			assert.InDelta(t, wantMean, r.Mean(), 1e-9)
			assert.InDelta(t, wantVar, r.PopulationVariance(), 1e-9)
			assert.InDelta(t, math.Sqrt(wantVar), r.PopulationStd(), 1e-9)
		})
	}
}

func TestRunning_SkipsNonFinite(t *testing.T) {
	var r Running
	r.Update(1)
	r.Update(math.NaN())
	r.Update(math.Inf(1))
	r.Update(math.Inf(-1))
	r.Update(3)

	require.Equal(t, int64(2), r.Count())
	assert.InDelta(t, 2.0, r.Mean(), 1e-12)
	assert.InDelta(t, 1.0, r.PopulationVariance(), 1e-12)
}

func TestRunning_EmptyIsUndefined(t *testing.T) {
	var r Running
	assert.Equal(t, int64(0), r.Count())
	assert.Equal(t, 0.0, r.Mean())
	assert.True(t, math.IsNaN(r.PopulationVariance()), "variance of nothing must be NaN, not zero")
	assert.True(t, math.IsNaN(r.PopulationStd()))
}
