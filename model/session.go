package model

// Session is everything needed to rebuild a timeline without running the
// model again.
type Session struct {
	Source      string
	SampleRate  int
	Markers     []Marker
	Predictions []Notes
}
