// Package timeline places per-chunk note predictions on an absolute tick
// grid.
package timeline

import (
	"fmt"
	"math"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
)

// Builder converts predictions to NoteEvents for one tempo and resolution.
// It holds no per-run state.
type Builder struct {
	ticksPerSecond float64
	sampleRate     int
}

// NewBuilder returns a Builder for audio at sampleRate written at tempo
// (beats per minute) with ticksPerBeat ticks per quarter note.
func NewBuilder(tempo float64, ticksPerBeat, sampleRate int) (*Builder, error) {
	if tempo <= 0 || math.IsNaN(tempo) || math.IsInf(tempo, 0) {
		return nil, apperror.InvalidArgument("tempo must be a positive number").WithDetail("tempo", tempo)
	}
	if ticksPerBeat <= 0 {
		return nil, apperror.InvalidArgument("ticks per beat must be positive").WithDetail("ticks_per_beat", ticksPerBeat)
	}
	if sampleRate <= 0 {
		return nil, apperror.InvalidArgument("Invalid audio sample rate!").WithDetail("sample_rate", sampleRate)
	}
	return &Builder{
		ticksPerSecond: tempo * float64(ticksPerBeat) / 60,
		sampleRate:     sampleRate,
	}, nil
}

func (b *Builder) TicksPerSecond() float64 {
	return b.ticksPerSecond
}

// maxTick bounds every tick value. Float conversions outside the int range
// are undefined.
const maxTick = 1 << 53

// Offset returns the tick at which a waveform frame falls.
func (b *Builder) Offset(frame int) int {
	return roundTick(float64(frame) * b.ticksPerSecond / float64(b.sampleRate))
}

func (b *Builder) ticks(seconds float64) int {
	return roundTick(seconds * b.ticksPerSecond)
}

func roundTick(x float64) int {
	switch {
	case x > maxTick:
		return maxTick
	case x < -maxTick:
		return -maxTick
	}
	return int(math.Round(x))
}

// Chunk builds the events of markers[index] from its predictions.
//
// Durations are rounded on their running sum so rounding error does not pile
// up along the chunk. Unless this is the last chunk, no event may end after
// the next chunk's offset. Rests and notes that end up empty emit nothing but
// still use up their time. On error the chunk yields no events.
func (b *Builder) Chunk(markers []model.Marker, index int, notes model.Notes) ([]model.NoteEvent, error) {
	if index < 0 || index >= len(markers) {
		return nil, apperror.InvalidArgument(fmt.Sprintf("chunk %d is out of range", index)).
			WithDetail("chunks", len(markers))
	}
	if err := notes.Validate(); err != nil {
		return nil, apperror.DataIntegrity(err.Error()).WithDetail("chunk", index)
	}

	start := b.Offset(markers[index].Begin)
	limit := math.MaxInt
	if index < len(markers)-1 {
		limit = b.Offset(markers[index+1].Begin)
	}

	var events []model.NoteEvent
	var cumSum, cumSumPrev float64
	for i := 0; i < notes.Len(); i++ {
		p := notes.At(i)
		cumSumPrev = cumSum
		cumSum += float64(p.DurationUnits)
		noteTick := b.ticks(cumSum) - b.ticks(cumSumPrev)

		// NOTE: a negative duration would otherwise walk start backwards
		end := start + noteTick
		if end < start {
			end = start
		}
		if end > limit {
			end = limit
		}
		if start < end && !p.IsRest {
			events = append(events, model.NoteEvent{
				Pitch:     roundTick(float64(p.Pitch)),
				StartTick: start,
				EndTick:   end,
			})
		}
		start = end
	}
	return events, nil
}

// Build concatenates the events of every chunk in marker order. It stops at
// the first chunk that fails.
func (b *Builder) Build(markers []model.Marker, predictions []model.Notes) ([]model.NoteEvent, error) {
	if len(markers) != len(predictions) {
		return nil, apperror.DataIntegrity(fmt.Sprintf("got predictions for %d chunks, expected %d", len(predictions), len(markers)))
	}
	var res []model.NoteEvent
	for i := range markers {
		events, err := b.Chunk(markers, i, predictions[i])
		if err != nil {
			return nil, err
		}
		res = append(res, events...)
	}
	return res, nil
}

// BuildLenient is Build without the early exit: a failing chunk contributes
// no events and its error is collected.
func (b *Builder) BuildLenient(markers []model.Marker, predictions []model.Notes) ([]model.NoteEvent, []error) {
	if len(markers) != len(predictions) {
		return nil, []error{apperror.DataIntegrity(fmt.Sprintf("got predictions for %d chunks, expected %d", len(predictions), len(markers)))}
	}
	var res []model.NoteEvent
	var errs []error
	for i := range markers {
		events, err := b.Chunk(markers, i, predictions[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res = append(res, events...)
	}
	return res, errs
}
