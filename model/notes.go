package model

import (
	"fmt"
	"math"
)

// Notes is the per-chunk prediction sequence returned by the model. The
// three slices are parallel.
type Notes struct {
	Midi []float32 `json:"note_midi"`
	Rest []bool    `json:"note_rest"`
	Dur  []float32 `json:"note_dur"`
}

// NotePrediction is one element of Notes. DurationUnits is in seconds.
type NotePrediction struct {
	Pitch         float32
	IsRest        bool
	DurationUnits float32
}

func (n Notes) Len() int {
	return len(n.Midi)
}

func (n Notes) At(i int) NotePrediction {
	return NotePrediction{Pitch: n.Midi[i], IsRest: n.Rest[i], DurationUnits: n.Dur[i]}
}

// Validate checks that the three slices have the same length and that every
// pitch and duration is a finite number.
func (n Notes) Validate() error {
	if len(n.Midi) != len(n.Dur) || len(n.Midi) != len(n.Rest) {
		return fmt.Errorf("the sizes of `note_midi` (%d), `note_dur` (%d), `note_rest` (%d) do not match",
			len(n.Midi), len(n.Dur), len(n.Rest))
	}
	for i := range n.Midi {
		if !finite(n.Midi[i]) || !finite(n.Dur[i]) {
			return fmt.Errorf("note %d is not a finite number (note_midi %v, note_dur %v)", i, n.Midi[i], n.Dur[i])
		}
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// NoteEvent is a note placed on the output tick grid. StartTick < EndTick.
type NoteEvent struct {
	Pitch     int `json:"pitch"`
	StartTick int `json:"start_tick"`
	EndTick   int `json:"end_tick"`
}
