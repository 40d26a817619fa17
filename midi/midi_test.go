package midi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

func roundTrip(t *testing.T, events []model.NoteEvent, tempo float64, ticksPerBeat int) *smf.SMF {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, events, tempo, ticksPerBeat))
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return s
}

func TestWriteKeepsEvents(t *testing.T) {
	events := []model.NoteEvent{
		{Pitch: 60, StartTick: 0, EndTick: 240},
		{Pitch: 64, StartTick: 240, EndTick: 480},
		{Pitch: 67, StartTick: 960, EndTick: 1000},
	}
	s := roundTrip(t, events, 120, 480)

	assert.Equal(t, 480, TicksPerBeat(s))
	assert.InDelta(t, 120, Tempo(s), 1e-6)
	assert.Equal(t, events, NoteEvents(s))
}

func TestWriteNoteOnAttributes(t *testing.T) {
	s := roundTrip(t, []model.NoteEvent{{Pitch: 72, StartTick: 10, EndTick: 20}}, 90, 96)

	require.Len(t, s.Tracks, 1)
	var ch, key, velocity uint8
	found := false
	for _, evt := range s.Tracks[0] {
		if evt.Message.GetNoteOn(&ch, &key, &velocity) && velocity > 0 {
			found = true
			assert.Equal(t, uint8(0), ch)
			assert.Equal(t, uint8(72), key)
			assert.Equal(t, uint8(64), velocity)
		}
	}
	assert.True(t, found)
	assert.InDelta(t, 90, Tempo(s), 1e-3)
}

func TestWriteClampsPitch(t *testing.T) {
	s := roundTrip(t, []model.NoteEvent{
		{Pitch: -3, StartTick: 0, EndTick: 10},
		{Pitch: 200, StartTick: 0, EndTick: 10},
	}, 120, 480)

	assert.Equal(t, []model.NoteEvent{
		{Pitch: 0, StartTick: 0, EndTick: 10},
		{Pitch: 127, StartTick: 0, EndTick: 10},
	}, NoteEvents(s))
}

func TestWriteRepeatedPitchBackToBack(t *testing.T) {
	events := []model.NoteEvent{
		{Pitch: 62, StartTick: 0, EndTick: 100},
		{Pitch: 62, StartTick: 100, EndTick: 200},
	}
	s := roundTrip(t, events, 120, 480)
	assert.Equal(t, events, NoteEvents(s))
}

func TestWriteEmpty(t *testing.T) {
	s := roundTrip(t, nil, 120, 480)
	assert.Empty(t, NoteEvents(s))
}

func TestCreateValidation(t *testing.T) {
	_, err := Create(nil, 120, 0)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidArgument))

	_, err = Create(nil, 0, 480)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidArgument))

	_, err = Create([]model.NoteEvent{{Pitch: 60, StartTick: 5, EndTick: 5}}, 120, 480)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeDataIntegrity))
}

func TestWriteFileThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mid")
	events := []model.NoteEvent{{Pitch: 48, StartTick: 480, EndTick: 960}}
	require.NoError(t, WriteFile(path, events, 100, 480))

	s, err := ReadMidiFile(path)
	require.NoError(t, err)
	assert.Equal(t, events, NoteEvents(s))
}

func TestReadMidiFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadMidiFile(filepath.Join(dir, "missing.mid"))
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeNotFound))

	garbage := filepath.Join(dir, "garbage.mid")
	require.NoError(t, os.WriteFile(garbage, []byte("not midi at all"), 0666))
	s, err := ReadMidiFile(garbage)
	assert.Error(t, err)
	assert.NotNil(t, s)
}

func TestNoteEventsIgnoresUnreleasedNotes(t *testing.T) {
	var track smf.Track
	track.Add(0, smf.Message{0x90, 60, 100})
	track.Add(10, smf.Message{0x90, 60, 0})
	track.Add(0, smf.Message{0x90, 61, 100})
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	require.NoError(t, s.Add(track))

	assert.Equal(t, []model.NoteEvent{{Pitch: 60, StartTick: 0, EndTick: 10}}, NoteEvents(s))
}

func TestExcerpt(t *testing.T) {
	s, err := Create([]model.NoteEvent{
		{Pitch: 60, StartTick: 0, EndTick: 100},
		{Pitch: 62, StartTick: 200, EndTick: 300},
		{Pitch: 64, StartTick: 300, EndTick: 450},
	}, 100, 480)
	require.NoError(t, err)

	ex := Excerpt(s, 150, 0)
	assert.Equal(t, 480, TicksPerBeat(ex))
	assert.InDelta(t, 100, Tempo(ex), 1e-3)
	assert.Equal(t, []model.NoteEvent{
		{Pitch: 62, StartTick: 50, EndTick: 150},
		{Pitch: 64, StartTick: 150, EndTick: 300},
	}, NoteEvents(ex))

	// stops right after the first note off
	ex = Excerpt(s, 0, 2)
	assert.Equal(t, []model.NoteEvent{{Pitch: 60, StartTick: 0, EndTick: 100}}, NoteEvents(ex))

	var buf bytes.Buffer
	_, err = ex.WriteTo(&buf)
	assert.NoError(t, err)
}
