package slicer

import (
	"github.com/jsphweid/notescribe/util"
)

// silenceKind classifies a silent run by its length L against maxSilKept M.
type silenceKind int

const (
	// ShortSilence: L <= M. Cut at the single quietest frame.
	ShortSilence silenceKind = iota
	// MediumSilence: M < L <= 2M.
	MediumSilence
	// LongSilence: L > 2M. Keep M frames of silence on each side.
	LongSilence
)

func (k silenceKind) String() string {
	switch k {
	case ShortSilence:
		return "short"
	case MediumSilence:
		return "medium"
	default:
		return "long"
	}
}

func classifySilence(length, maxSilKept int) silenceKind {
	switch {
	case length <= maxSilKept:
		return ShortSilence
	case length <= 2*maxSilKept:
		return MediumSilence
	default:
		return LongSilence
	}
}

// silenceTag is a half-open range of RMS frames removed from the output.
type silenceTag struct {
	begin int
	end   int
}

// cutSilence picks the frames to remove for the silent run [start, i) that
// ended at non-silent frame i. It returns the tag and the new clip start.
func (s *Slicer) cutSilence(rmsList []float64, start, i int) (silenceTag, int) {
	m := s.maxSilKept
	switch classifySilence(i-start, m) {
	case ShortSilence:
		pos := util.ArgminRange(rmsList, start, i+1) + start
		if start == 0 {
			return silenceTag{0, pos}, pos
		}
		return silenceTag{pos, pos}, pos

	case MediumSilence:
		pos := util.ArgminRange(rmsList, i-m, start+m+1) + i - m
		posL := util.ArgminRange(rmsList, start, start+m+1) + start
		posR := util.ArgminRange(rmsList, i-m, i+1) + i - m
		if start == 0 {
			return silenceTag{0, posR}, posR
		}
		clipStart := util.Max(posR, pos)
		return silenceTag{util.Min(posL, pos), clipStart}, clipStart

	default:
		posL := util.ArgminRange(rmsList, start, start+m+1) + start
		posR := util.ArgminRange(rmsList, i-m, i+1) + i - m
		if start == 0 {
			return silenceTag{0, posR}, posR
		}
		return silenceTag{posL, posR}, posR
	}
}

// silenceTags scans the RMS curve and returns the sorted silence ranges to
// remove. A trailing tag ends at len(rmsList)+1.
func (s *Slicer) silenceTags(rmsList []float64) []silenceTag {
	var tags []silenceTag
	silenceStart := 0
	hasSilenceStart := false
	clipStart := 0

	for i, rms := range rmsList {
		if rms < s.threshold {
			if !hasSilenceStart {
				silenceStart = i
				hasSilenceStart = true
			}
			continue
		}
		if !hasSilenceStart {
			continue
		}

		isLeadingSilence := silenceStart == 0 && i > s.maxSilKept
		needSliceMiddle := i-silenceStart >= s.minInterval && i-clipStart >= s.minLength
		if !isLeadingSilence && !needSliceMiddle {
			hasSilenceStart = false
			continue
		}

		var tag silenceTag
		tag, clipStart = s.cutSilence(rmsList, silenceStart, i)
		tags = append(tags, tag)
		hasSilenceStart = false
	}

	totalFrames := len(rmsList)
	if hasSilenceStart && totalFrames-silenceStart >= s.minInterval {
		silenceEnd := util.Min(totalFrames-1, silenceStart+s.maxSilKept)
		pos := util.ArgminRange(rmsList, silenceStart, silenceEnd+1) + silenceStart
		// TODO: confirm whether the +1 past the last frame is meant as a
		// sentinel; markers never reach it because they are clamped.
		tags = append(tags, silenceTag{pos, totalFrames + 1})
	}
	return tags
}
