package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jsphweid/notescribe/midi"
	"github.com/jsphweid/notescribe/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

func newTestHandler(t *testing.T) http.Handler {
	setup(t)
	return newServer(cfg, fakeModel{}, appLog).Handler()
}

func wavBody(t *testing.T, samples []float32, sampleRate int) *bytes.Reader {
	data, err := os.ReadFile(writeWav(t, samples, sampleRate))
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func serveRequest(h http.Handler, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

func decodeError(t *testing.T, resp *http.Response) model.ErrorResponse {
	var e model.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	resp := serveRequest(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestRequestIDIsKept(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc")

	resp := serveRequest(h, req)
	assert.Equal(t, "abc", resp.Header.Get(requestIDHeader))
}

func TestSegment(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/segment", wavBody(t, twoPhrases(), sr))
	resp := serveRequest(h, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.SegmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, sr, body.SampleRate)
	assert.Equal(t, 573300, body.Frames)
	assert.Equal(t, twoPhraseMarkers, body.Markers)
	assert.Equal(t, resp.Header.Get(requestIDHeader), body.RequestId)
}

func TestSegmentRejectsGarbage(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/segment", strings.NewReader("RIFF but not really"))
	resp := serveRequest(h, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "AUDIO_ERROR", decodeError(t, resp).Code)
}

func timelineRequest(t *testing.T, body model.TimelineRequestBody, query string) *http.Request {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/timeline"+query, bytes.NewReader(data))
}

func TestTimeline(t *testing.T) {
	h := newTestHandler(t)
	body := model.TimelineRequestBody{
		SampleRate:   sr,
		Tempo:        60,
		TicksPerBeat: 100,
		Chunks: []model.TimelineChunk{
			{Marker: twoPhraseMarkers[0], Notes: model.Notes{Midi: []float32{60}, Rest: []bool{false}, Dur: []float32{10}}},
			{Marker: twoPhraseMarkers[1], Notes: model.Notes{Midi: []float32{62}, Rest: []bool{false}, Dur: []float32{1}}},
		},
	}
	resp := serveRequest(h, timelineRequest(t, body, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.TimelineResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, []model.NoteEvent{
		{Pitch: 60, StartTick: 0, EndTick: 604},
		{Pitch: 62, StartTick: 604, EndTick: 704},
	}, res.Events)
}

func TestTimelineMismatch(t *testing.T) {
	h := newTestHandler(t)
	body := model.TimelineRequestBody{
		SampleRate: sr,
		Chunks: []model.TimelineChunk{
			{Marker: twoPhraseMarkers[0], Notes: model.Notes{Midi: []float32{60, 61}, Rest: []bool{false}, Dur: []float32{1}}},
		},
	}

	resp := serveRequest(h, timelineRequest(t, body, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, resp).Code)

	resp = serveRequest(h, timelineRequest(t, body, "?lenient=true"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res model.TimelineResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Empty(t, res.Events)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 0, res.Skipped[0].Index)
	assert.Contains(t, res.Skipped[0].Error, "do not match")
}

func TestTimelineLenientReportsSkippedChunks(t *testing.T) {
	h := newTestHandler(t)
	body := model.TimelineRequestBody{
		SampleRate:   sr,
		Tempo:        60,
		TicksPerBeat: 100,
		Chunks: []model.TimelineChunk{
			{Marker: twoPhraseMarkers[0], Notes: model.Notes{Midi: []float32{60}, Rest: []bool{false}, Dur: []float32{1}}},
			{Marker: twoPhraseMarkers[1], Notes: model.Notes{Midi: []float32{67}, Rest: []bool{}, Dur: []float32{1}}},
		},
	}

	resp := serveRequest(h, timelineRequest(t, body, "?lenient=true"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res model.TimelineResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, []model.NoteEvent{{Pitch: 60, StartTick: 0, EndTick: 100}}, res.Events)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, res.Skipped[0].Index)
}

func TestTimelineRejectsBadInput(t *testing.T) {
	h := newTestHandler(t)

	resp := serveRequest(h, httptest.NewRequest(http.MethodPost, "/timeline", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = serveRequest(h, timelineRequest(t, model.TimelineRequestBody{}, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, resp).Code)
}

func TestTranscribe(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/transcribe?tempo=60", wavBody(t, twoPhrases(), sr))
	resp := serveRequest(h, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/midi", resp.Header.Get("Content-Type"))
	assert.Equal(t, "2", resp.Header.Get("X-Note-Count"))

	s, err := smf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.InDelta(t, 60, midi.Tempo(s), 1e-6)

	// 480 ticks per second at tempo 60
	assert.Equal(t, []model.NoteEvent{
		{Pitch: 60, StartTick: 0, EndTick: 480},
		{Pitch: 67, StartTick: 2899, EndTick: 3379},
	}, midi.NoteEvents(s))
}

func TestTranscribeRejectsOtherSampleRates(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", wavBody(t, tone(48000), 48000))
	resp := serveRequest(h, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Error, "44100")
}

func TestTranscribeRejectsBadTempo(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/transcribe?tempo=fast", wavBody(t, tone(sr), sr))
	resp := serveRequest(h, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/segment", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp := serveRequest(h, req)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
