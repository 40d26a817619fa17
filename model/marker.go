package model

// Marker is a half-open range [Begin, End) of waveform frames holding
// non-silent audio.
type Marker struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

func (m Marker) Len() int {
	return m.End - m.Begin
}
