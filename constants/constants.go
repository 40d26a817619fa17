package constants

import "os"

func GetOutDir() string {
	path := os.Getenv("NOTESCRIBE_OUT_DIR")
	if path != "" {
		return path
	}
	return "./out"
}

// The model is trained on audio at this rate.
const TargetSampleRate = 44100

// Inputs of this many seconds or more are refused.
const MaxAllowedLength = 20 * 60

const NoteVelocity = 64

const DefaultTicksPerBeat = 480

const DefaultTempo = 120.0

// Slicer settings used for transcription. Note MaxSilKept is tighter than
// the slicer's own default.
const (
	SliceThresholdDB = -40.0
	SliceMinLength   = 5000
	SliceMinInterval = 300
	SliceHopSize     = 20
	SliceMaxSilKept  = 1000
)

var AudioExtensions = []string{".wav", ".wave"}
