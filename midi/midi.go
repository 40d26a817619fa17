// Package midi writes NoteEvents to Standard MIDI Files and reads them back.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/constants"
	"github.com/jsphweid/notescribe/model"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const channel = 0

type reducedEvent struct {
	tick      int
	isNoteOff bool
	key       uint8
}

func clampKey(pitch int) uint8 {
	if pitch < 0 {
		return 0
	}
	if pitch > 127 {
		return 127
	}
	return uint8(pitch)
}

// Create builds a single track file: the tempo at tick 0 followed by a
// note on/off pair per event.
func Create(events []model.NoteEvent, tempo float64, ticksPerBeat int) (*smf.SMF, error) {
	if ticksPerBeat <= 0 || ticksPerBeat > math.MaxInt16 {
		return nil, apperror.InvalidArgument(fmt.Sprintf("ticks per beat must be in 1..%d", math.MaxInt16)).
			WithDetail("ticks_per_beat", ticksPerBeat)
	}
	if tempo <= 0 {
		return nil, apperror.InvalidArgument("tempo must be a positive number").WithDetail("tempo", tempo)
	}

	reducedEvents := make([]reducedEvent, 0, len(events)*2)
	for _, e := range events {
		if e.StartTick < 0 || e.EndTick <= e.StartTick {
			return nil, apperror.DataIntegrity(fmt.Sprintf("note event %d-%d is empty or negative", e.StartTick, e.EndTick))
		}
		key := clampKey(e.Pitch)
		reducedEvents = append(reducedEvents,
			reducedEvent{tick: e.StartTick, key: key},
			reducedEvent{tick: e.EndTick, isNoteOff: true, key: key},
		)
	}

	// at equal ticks, release before pressing again
	sort.SliceStable(reducedEvents, func(i, j int) bool {
		if reducedEvents[i].tick != reducedEvents[j].tick {
			return reducedEvents[i].tick < reducedEvents[j].tick
		}
		return reducedEvents[i].isNoteOff && !reducedEvents[j].isNoteOff
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerBeat)

	var track smf.Track
	track.Add(0, smf.MetaTempo(tempo))
	var last int
	for _, evt := range reducedEvents {
		delta := uint32(evt.tick - last)
		if evt.isNoteOff {
			track.Add(delta, midi.NoteOff(channel, evt.key))
		} else {
			track.Add(delta, midi.NoteOn(channel, evt.key, constants.NoteVelocity))
		}
		last = evt.tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, apperror.Internal(err)
	}
	return s, nil
}

func Write(w io.Writer, events []model.NoteEvent, tempo float64, ticksPerBeat int) error {
	s, err := Create(events, tempo, ticksPerBeat)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return apperror.Internal(fmt.Errorf("writing midi: %w", err))
	}
	return nil
}

func WriteFile(path string, events []model.NoteEvent, tempo float64, ticksPerBeat int) error {
	s, err := Create(events, tempo, ticksPerBeat)
	if err != nil {
		return err
	}
	if err := s.WriteFile(path); err != nil {
		return apperror.Internal(fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}

func ReadMidiFile(filepath string) (s *smf.SMF, e error) {
	var blank smf.SMF

	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			s = &blank
			e = apperror.InvalidArgument(fmt.Sprintf("Error parsing midi file... %s", r)).WithCause(errors.New(r))
		}
	}()

	dat, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return &blank, apperror.NotFound(filepath)
		}
		return &blank, apperror.Internal(fmt.Errorf("Error reading midi file... %w", err))
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return &blank, apperror.InvalidArgument(fmt.Sprintf("Error parsing midi file... %s", err.Error())).WithCause(err)
	}
	return res, nil
}

// TicksPerBeat returns the file's resolution, or 0 for SMPTE time.
func TicksPerBeat(s *smf.SMF) int {
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		return int(mt.Resolution())
	}
	return 0
}

// Tempo returns the first tempo in the file, or the MIDI default of 120.
func Tempo(s *smf.SMF) float64 {
	for _, track := range s.Tracks {
		for _, evt := range track {
			var bpm float64
			if evt.Message.GetMetaTempo(&bpm) {
				return bpm
			}
		}
	}
	return 120
}

// NoteEvents pairs the note ons and offs of every track. A note on with
// velocity 0 counts as a note off; notes never released are dropped.
func NoteEvents(s *smf.SMF) []model.NoteEvent {
	var res []model.NoteEvent
	for _, track := range s.Tracks {
		pressed := make(map[uint8]int)
		var absTicks int
		for _, event := range track {
			absTicks += int(event.Delta)
			var ch, key, velocity uint8
			switch {
			case event.Message.GetNoteOn(&ch, &key, &velocity) && velocity > 0:
				if _, ok := pressed[key]; !ok {
					pressed[key] = absTicks
				}
			case event.Message.GetNoteOff(&ch, &key, &velocity),
				event.Message.GetNoteOn(&ch, &key, &velocity):
				if start, ok := pressed[key]; ok {
					delete(pressed, key)
					if start < absTicks {
						res = append(res, model.NoteEvent{Pitch: int(key), StartTick: start, EndTick: absTicks})
					}
				}
			}
		}
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].StartTick != res[j].StartTick {
			return res[i].StartTick < res[j].StartTick
		}
		return res[i].Pitch < res[j].Pitch
	})
	return res
}
