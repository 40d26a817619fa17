package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/audio"
	"github.com/jsphweid/notescribe/config"
	"github.com/jsphweid/notescribe/inference"
	"github.com/jsphweid/notescribe/logger"
	"github.com/jsphweid/notescribe/midi"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/timeline"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-Id"

type server struct {
	cfg   *config.Config
	model inference.Model
	log   zerolog.Logger
}

func newServer(c *config.Config, m inference.Model, log zerolog.Logger) *server {
	return &server{cfg: c, model: m, log: logger.WithComponent(log, "server")}
}

// NewHandler returns the API handler, asking m for predictions.
func NewHandler(c *config.Config, m inference.Model, log zerolog.Logger) http.Handler {
	return newServer(c, m, log).Handler()
}

// Handler routes the API and applies CORS.
func (s *server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.withRequestID)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/segment", s.handleSegment).Methods(http.MethodPost)
	router.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodPost)
	router.HandleFunc("/transcribe", s.handleTranscribe).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(router)
}

func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *server) requestLog(w http.ResponseWriter) zerolog.Logger {
	return s.log.With().Str(logger.FieldRequestID, w.Header().Get(requestIDHeader)).Logger()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal(err)
	}
	log := s.requestLog(w)
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Msg("request rejected")
	}
	writeJSON(w, appErr.HTTPStatus(), model.ErrorResponse{Code: string(appErr.Code), Error: appErr.Message})
}

func (s *server) readWaveform(w http.ResponseWriter, r *http.Request) (*audio.Waveform, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		return nil, apperror.InvalidArgument("could not read request body").WithCause(err)
	}
	return audio.Decode(bytes.NewReader(body))
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperror.InvalidArgument("query parameter " + name + " must be a number")
	}
	return f, nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSegment answers with the markers of a WAV body.
func (s *server) handleSegment(w http.ResponseWriter, r *http.Request) {
	wf, err := s.readWaveform(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sl, err := newSlicer(s.cfg, wf.SampleRate, s.requestLog(w))
	if err != nil {
		s.writeError(w, err)
		return
	}
	markers, err := sl.Slice(wf.Samples, wf.Channels)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SegmentResponse{
		RequestId:  w.Header().Get(requestIDHeader),
		SampleRate: wf.SampleRate,
		Frames:     wf.Frames(),
		Markers:    markers,
	})
}

// handleTimeline places client supplied predictions on the tick grid.
func (s *server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var input model.TimelineRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, apperror.InvalidArgument("Could not unmarshal request body: "+err.Error()))
		return
	}
	if input.Tempo == 0 {
		input.Tempo = s.cfg.Timeline.Tempo
	}
	if input.TicksPerBeat == 0 {
		input.TicksPerBeat = s.cfg.Timeline.TicksPerBeat
	}
	b, err := timeline.NewBuilder(input.Tempo, input.TicksPerBeat, input.SampleRate)
	if err != nil {
		s.writeError(w, err)
		return
	}

	markers := make([]model.Marker, len(input.Chunks))
	predictions := make([]model.Notes, len(input.Chunks))
	for i, c := range input.Chunks {
		markers[i] = c.Marker
		predictions[i] = c.Notes
	}

	var events []model.NoteEvent
	var skipped []model.SkippedChunk
	if r.URL.Query().Get("lenient") == "true" {
		var errs []error
		events, errs = b.BuildLenient(markers, predictions)
		log := s.requestLog(w)
		for _, err := range errs {
			log.Warn().Err(err).Msg("skipped chunk")
			skipped = append(skipped, skippedChunk(err))
		}
	} else {
		events, err = b.Build(markers, predictions)
		if err != nil {
			s.writeError(w, clientError(err))
			return
		}
	}
	if events == nil {
		events = []model.NoteEvent{}
	}
	writeJSON(w, http.StatusOK, model.TimelineResponse{
		RequestId: w.Header().Get(requestIDHeader),
		Events:    events,
		Skipped:   skipped,
	})
}

// clientError turns a data integrity failure in request supplied predictions
// into an invalid argument.
func clientError(err error) error {
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code != apperror.ErrCodeDataIntegrity {
		return err
	}
	res := apperror.InvalidArgument(appErr.Message).WithCause(err)
	for k, v := range appErr.Details {
		res.WithDetail(k, v)
	}
	return res
}

func skippedChunk(err error) model.SkippedChunk {
	res := model.SkippedChunk{Index: -1, Error: err.Error()}
	if appErr, ok := apperror.As(err); ok {
		res.Error = appErr.Message
		if i, ok := appErr.Details["chunk"].(int); ok {
			res.Index = i
		}
	}
	return res
}

// handleTranscribe runs the whole pipeline on a WAV body and answers with a
// MIDI file.
func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	tempo, err := floatParam(r, "tempo", s.cfg.Timeline.Tempo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	wf, err := s.readWaveform(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pipeline, err := newPipeline(s.cfg, s.model, tempo, s.requestLog(w))
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := pipeline.Run(r.Context(), wf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := midi.Write(&buf, res.Events, tempo, s.cfg.Timeline.TicksPerBeat); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("X-Note-Count", strconv.Itoa(len(res.Events)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
