// Package stats computes corpus-wide normalization statistics.
package stats

import "math"

// Running is an online mean/variance accumulator (Welford's algorithm).
// It stays numerically stable across corpora with millions of points and
// widely varying magnitudes, which a naive sum-of-squares formulation does
// not; the update rule below must not be replaced with a two-pass form.
type Running struct {
	n    int64
	mean float64
	m2   float64
}

// Update folds one value into the running state. Non-finite inputs are
// skipped so they cannot corrupt count, mean, or variance.
func (r *Running) Update(x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	r.n++
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

// Count returns how many finite values have been folded in.
func (r *Running) Count() int64 { return r.n }

// Mean returns the running mean (0 before the first update).
func (r *Running) Mean() float64 { return r.mean }

// PopulationVariance returns m2/n, or NaN when no values have been seen.
// An undefined variance is reported as NaN, never as zero.
func (r *Running) PopulationVariance() float64 {
	if r.n <= 0 {
		return math.NaN()
	}
	return r.m2 / float64(r.n)
}

// PopulationStd returns the non-negative square root of the population
// variance, or NaN when the variance is undefined or negative due to
// floating error.
func (r *Running) PopulationStd() float64 {
	v := r.PopulationVariance()
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return math.NaN()
	}
	return math.Sqrt(v)
}
