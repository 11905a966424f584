package cmp

import (
	"math"
	"sort"
)

// lineValue returns round(gradient*x) + intercept as an int64. Encode and
// decode both evaluate the line from the demoted (f32,i32) values, so the
// round-trip is exact.
func lineValue(gradient float32, intercept int32, x int) int64 {
	return int64(math.Round(float64(gradient)*float64(x))) + int64(intercept)
}

// Detrend computes a robust least-absolute-deviation line over samples via
// bisection on slope with a median-based intercept, demotes (m,b) to
// (f32,i32), and returns the sample-by-sample residual after subtracting
// the integer-rounded line.
func Detrend(samples []int32) (residuals []int32, gradient float32, intercept int32) {
	n := len(samples)
	residuals = make([]int32, n)

	if n == 0 {
		return residuals, 0, 0
	}
	if n == 1 {
		return []int32{0}, 0, samples[0]
	}

	m, b := ladFit(samples)
	gradient = float32(m)
	intercept = int32(math.Round(b))

	for i, s := range samples {
		residuals[i] = s - int32(lineValue(gradient, intercept, i))
	}

	return residuals, gradient, intercept
}

// Restore reverses Detrend, reconstructing the original samples from their
// residuals and the stored (gradient, intercept).
func Restore(residuals []int32, gradient float32, intercept int32) []int32 {
	samples := make([]int32, len(residuals))
	for i, r := range residuals {
		samples[i] = r + int32(lineValue(gradient, intercept, i))
	}
	return samples
}

// ladFit finds the least-absolute-deviation line y = m*x + b over
// (x=index, y=sample) via bisection on slope: for a candidate slope, the
// optimal intercept is the median residual, and the subgradient of the
// objective with respect to slope (holding that intercept fixed) is
// monotonic, so its sign bisects the search interval.
func ladFit(samples []int32) (m, b float64) {
	n := len(samples)

	yMin, yMax := float64(samples[0]), float64(samples[0])
	for _, s := range samples {
		v := float64(s)
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}

	// A generous bound on the true LAD slope: the steepest possible line
	// through the data's range, with headroom.
	bound := (yMax - yMin + 1) * 4
	lo, hi := -bound, bound

	residual := make([]float64, n)

	subgradient := func(slope float64) (float64, float64) {
		for i, s := range samples {
			residual[i] = float64(s) - slope*float64(i)
		}

		sorted := append([]float64(nil), residual...)
		sort.Float64s(sorted)
		median := sorted[n/2]
		if n%2 == 0 {
			median = (sorted[n/2-1] + sorted[n/2]) / 2
		}

		var grad float64
		for i, r := range residual {
			switch {
			case r-median > 0:
				grad += float64(i)
			case r-median < 0:
				grad -= float64(i)
			}
		}

		return grad, median
	}

	var median float64
	const maxIterations = 60
	for iter := 0; iter < maxIterations; iter++ {
		mid := (lo + hi) / 2
		grad, med := subgradient(mid)
		median = med

		// Increasing the slope shifts later (higher-index) residuals down;
		// a positive subgradient means the objective still decreases as
		// slope increases, so move the lower bound up.
		if grad > 0 {
			lo = mid
		} else {
			hi = mid
		}

		if hi-lo < 1e-9 {
			break
		}
	}

	m = (lo + hi) / 2
	_, median = subgradient(m)

	return m, median
}
