package util

import "golang.org/x/exp/constraints"

// DivRound divides n by d rounding to the nearest integer, halves away from
// zero, without going through floating point.
func DivRound[T constraints.Integer](n, d T) T {
	if (n < 0) != (d < 0) {
		return (n - d/2) / d
	}
	return (n + d/2) / d
}

// ArgminRange returns the offset from begin of the smallest element in
// v[begin:end]. Ties go to the earliest index. The range is clamped to v and
// an empty range yields 0.
func ArgminRange[T constraints.Ordered](v []T, begin, end int) int {
	size := len(v)
	if begin > size {
		begin = size
	}
	if end > size {
		end = size
	}
	if begin >= end {
		return 0
	}

	minIndex := begin
	minValue := v[begin]
	for i := begin + 1; i < end; i++ {
		if v[i] < minValue {
			minValue = v[i]
			minIndex = i
		}
	}
	return minIndex - begin
}

// ToMono averages interleaved channels into a single channel. Trailing
// samples that do not form a whole frame are dropped.
func ToMono[T constraints.Float](v []T, channels int) []T {
	if channels <= 1 {
		out := make([]T, len(v))
		copy(out, v)
		return out
	}
	frames := len(v) / channels
	out := make([]T, frames)
	for i := 0; i < frames; i++ {
		var s T
		for j := 0; j < channels; j++ {
			s += v[i*channels+j] / T(channels)
		}
		out[i] = s
	}
	return out
}
