package cmp

import (
	"math"
	"sort"

	"github.com/MEDFormat/MEDC-sub001/errs"
)

// maxAmplitudeScaleAttempts bounds FindAmplitudeScale's binary search.
const maxAmplitudeScaleAttempts = 32

// ScaleAmplitude divides each sample by s, rounding to the nearest
// integer. Lossy.
func ScaleAmplitude(samples []int32, s float32) []int32 {
	out := make([]int32, len(samples))
	for i, v := range samples {
		out[i] = int32(math.Round(float64(v) / float64(s)))
	}
	return out
}

// UnscaleAmplitude reverses ScaleAmplitude: multiply each sample by s and
// round to the nearest integer.
func UnscaleAmplitude(samples []int32, s float32) []int32 {
	out := make([]int32, len(samples))
	for i, v := range samples {
		out[i] = int32(math.Round(float64(v) * float64(s)))
	}
	return out
}

// CompressionRatio is satisfied by a caller-supplied function that reports
// how many bytes a candidate scale factor would produce for the block, so
// FindAmplitudeScale can binary-search without this package needing to know
// about the concrete encoding in use.
type CompressionRatio func(scale float32) (bytesOut int, meanResidualRatio float64)

// FindAmplitudeScale iterates a scale factor s to hit either a target
// compression ratio or a target mean-residual-ratio, binary-searching
// between 1.0 and an estimated upper bound.
func FindAmplitudeScale(rawBytes int, targetRatio float64, targetMeanResidualRatio float64, estimate CompressionRatio) (float32, error) {
	lo, hi := float32(1.0), float32(rawBytes)
	if hi < 2 {
		hi = 2
	}

	var best float32 = 1.0

	for attempt := 0; attempt < maxAmplitudeScaleAttempts; attempt++ {
		mid := (lo + hi) / 2
		bytesOut, meanRatio := estimate(mid)

		ratio := float64(rawBytes) / float64(max(bytesOut, 1))

		if targetRatio > 0 {
			if ratio >= targetRatio {
				best = mid
				hi = mid
			} else {
				lo = mid
			}
		} else {
			if meanRatio <= targetMeanResidualRatio {
				best = mid
				hi = mid
			} else {
				lo = mid
			}
		}

		if hi-lo < 1e-3 {
			return best, nil
		}
	}

	return best, errs.ErrSearchExhausted
}

// NormalityScore computes a Kolmogorov-Smirnov-like normality score: the
// correlation between the sample distribution's empirical quantiles and
// the standard normal's theoretical quantiles, mapped to [0,254].
func NormalityScore(samples []int32) uint8 {
	n := len(samples)
	if n < 2 {
		return 254
	}

	sorted := make([]float64, n)
	var mean float64
	for i, s := range samples {
		sorted[i] = float64(s)
		mean += float64(s)
	}
	mean /= float64(n)

	var variance float64
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 254
	}

	sort.Float64s(sorted)

	theoretical := make([]float64, n)
	for i := range sorted {
		p := (float64(i) + 0.5) / float64(n)
		theoretical[i] = math.Sqrt2 * math.Erfinv(2*p-1)
	}

	var sumXY, sumXX, sumYY float64
	for i := range sorted {
		x := (sorted[i] - mean) / stddev
		y := theoretical[i]
		sumXY += x * y
		sumXX += x * x
		sumYY += y * y
	}

	denom := math.Sqrt(sumXX * sumYY)
	if denom == 0 {
		return 0
	}

	corr := sumXY / denom
	if corr < 0 {
		corr = 0
	}
	if corr > 1 {
		corr = 1
	}

	return uint8(math.Round(corr * 254))
}

// ScaleFrequency is reserved for a future resampling transform. The
// encode side reports it unimplemented rather than silently altering
// samples; the parameter still round-trips through the parameter region.
func ScaleFrequency([]int32, float32) ([]int32, error) {
	return nil, errs.ErrUnsupportedOperation
}

// FrequencyScale is the decode-side counterpart: an identity transform,
// kept so blocks written by a future version that performs the resample
// still decode under the current rules.
func FrequencyScale(samples []int32, _ float32) []int32 {
	return samples
}
