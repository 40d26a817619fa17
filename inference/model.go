// Package inference talks to the note prediction model.
package inference

import (
	"context"

	"github.com/jsphweid/notescribe/model"
)

// Model predicts notes for waveform[begin : begin+count]. The range is
// clamped to the waveform; an empty range yields empty notes.
// Implementations must be safe for concurrent use.
type Model interface {
	Infer(ctx context.Context, waveform []float32, begin, count int) (model.Notes, error)
}

// Clamp returns the part of waveform a model call covers.
func Clamp(waveform []float32, begin, count int) []float32 {
	if begin < 0 {
		count += begin
		begin = 0
	}
	if begin >= len(waveform) || count <= 0 {
		return nil
	}
	end := begin + count
	if end > len(waveform) {
		end = len(waveform)
	}
	return waveform[begin:end]
}

func emptyNotes() model.Notes {
	return model.Notes{Midi: []float32{}, Rest: []bool{}, Dur: []float32{}}
}
