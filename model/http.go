package model

type SegmentResponse struct {
	RequestId  string   `json:"request_id"`
	SampleRate int      `json:"sample_rate"`
	Frames     int      `json:"frames"`
	Markers    []Marker `json:"markers"`
}

type TimelineChunk struct {
	Marker
	Notes Notes `json:"notes"`
}

type TimelineRequestBody struct {
	SampleRate   int             `json:"sample_rate"`
	Tempo        float64         `json:"tempo"`
	TicksPerBeat int             `json:"ticks_per_beat"`
	Chunks       []TimelineChunk `json:"chunks"`
}

type TimelineResponse struct {
	RequestId string         `json:"request_id"`
	Events    []NoteEvent    `json:"events"`
	Skipped   []SkippedChunk `json:"skipped,omitempty"`
}

// SkippedChunk names a chunk that contributed no events. Index is -1 when
// the failure is not tied to one chunk.
type SkippedChunk struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"detail"`
}
