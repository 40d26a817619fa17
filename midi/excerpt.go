package midi

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Excerpt copies s keeping the note events at or after fromTick, up to
// maxNotes note on/off messages per track (0 keeps all). Other messages are
// kept but pulled together so the excerpt starts right away.
func Excerpt(s *smf.SMF, fromTick uint64, maxNotes int) *smf.SMF {
	res := smf.New()
	res.TimeFormat = s.TimeFormat

	for _, track := range s.Tracks {
		var newTrack smf.Track
		var absTicks, lastKept uint64
		var numNoteOnOff int
	TrackEventLoop:
		for _, evt := range track {
			absTicks += uint64(evt.Delta)
			switch {
			case evt.Message.Is(midi.NoteOnMsg), evt.Message.Is(midi.NoteOffMsg):
				if absTicks < fromTick {
					continue
				}
				start := lastKept
				if start < fromTick {
					start = fromTick
				}
				newTrack = append(newTrack, smf.Event{Delta: uint32(absTicks - start), Message: evt.Message})
				lastKept = absTicks
				numNoteOnOff++
				if maxNotes > 0 && numNoteOnOff >= maxNotes {
					break TrackEventLoop
				}
			case evt.Message.Is(smf.MetaEndOfTrackMsg):
				// closed below
			default:
				newTrack = append(newTrack, smf.Event{Delta: 0, Message: evt.Message})
			}
		}
		newTrack.Close(0)
		res.Tracks = append(res.Tracks, newTrack)
	}
	return res
}
