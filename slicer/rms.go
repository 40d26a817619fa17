package slicer

import (
	"math"

	"golang.org/x/exp/constraints"
)

// GetRMS computes a framewise RMS curve of arr with a window of frameLength
// samples sampled every hopLength samples, yielding len(arr)/hopLength+1
// frames.
//
// The window is centered, with zeros assumed outside arr. Instead of padding,
// the window grows from half its length at the start and shrinks at the end,
// and every frame is normalised by the nominal frameLength, so edge frames
// come out attenuated.
func GetRMS[T constraints.Float](arr []T, frameLength, hopLength int) []float64 {
	arrLength := len(arr)
	padding := frameLength / 2
	rms := make([]float64, arrLength/hopLength+1)

	left, right := 0, 0
	hopCount := 0
	rmsIndex := 0
	val := 0.0

	sq := func(i int) float64 {
		x := float64(arr[i])
		return x * x
	}
	emit := func() {
		rms[rmsIndex] = math.Sqrt(math.Max(0, val/float64(frameLength)))
		rmsIndex++
	}
	step := func() {
		hopCount++
		if hopCount == hopLength {
			emit()
			hopCount = 0
		}
	}

	// frame 0 sits at the start of the padded array
	for right < padding && right < arrLength {
		val += sq(right)
		right++
	}
	emit()

	// window still growing on the right
	for right < frameLength && right < arrLength && rmsIndex < len(rms) {
		val += sq(right)
		step()
		right++
	}

	if frameLength < arrLength {
		for right < arrLength && rmsIndex < len(rms) {
			val += sq(right) - sq(left)
			step()
			left++
			right++
		}
	} else {
		for right < frameLength && rmsIndex < len(rms) {
			step()
			right++
		}
	}

	// window shrinking on the left
	for left < arrLength && rmsIndex < len(rms) {
		val -= sq(left)
		step()
		left++
		right++
	}

	return rms
}
